package replay_test

import (
	"context"
	"testing"

	"github.com/asrlab/recscore/pkg/corpus"
	"github.com/asrlab/recscore/pkg/decoder"
	"github.com/asrlab/recscore/pkg/decoder/replay"
)

func TestDecode_RoundTripsHypothesisText(t *testing.T) {
	t.Parallel()

	utts := []corpus.Utterance{
		{ID: "u1", Hypotheses: []string{"hello world", "hello word"}},
		{ID: "u2", Hypotheses: []string{"good morning"}},
	}
	d := replay.New(utts)
	mapper := d.WordMapper()

	nbests, err := d.Decode(context.Background(), utts, decoder.Params{}, decoder.Word, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(nbests) != 2 {
		t.Fatalf("got %d n-best lists, want 2", len(nbests))
	}

	wants := [][]string{
		{"hello world", "hello word"},
		{"good morning"},
	}
	for i, nb := range nbests {
		if len(nb) != len(wants[i]) {
			t.Fatalf("utterance %d: got %d hypotheses, want %d", i, len(nb), len(wants[i]))
		}
		for n, h := range nb {
			if got := mapper(h.IDs); got != wants[i][n] {
				t.Errorf("utterance %d rank %d = %q, want %q", i, n, got, wants[i][n])
			}
		}
	}
}

func TestDecode_CharGranularity(t *testing.T) {
	t.Parallel()

	utts := []corpus.Utterance{
		{ID: "u1", Hypotheses: []string{"ab"}, CharHypothesis: "a b"},
	}
	d := replay.New(utts)
	mapper := d.CharMapper()

	nbests, err := d.Decode(context.Background(), utts, decoder.Params{}, decoder.Char, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(nbests) != 1 || len(nbests[0]) != 1 {
		t.Fatalf("nbests = %v, want one single-hypothesis list", nbests)
	}
	if got := mapper(nbests[0][0].IDs); got != "a b" {
		t.Errorf("char hypothesis = %q, want %q", got, "a b")
	}
}

func TestDecode_UnrecordedUtterance(t *testing.T) {
	t.Parallel()

	d := replay.New([]corpus.Utterance{{ID: "u1", Hypotheses: []string{"a"}}})
	missing := []corpus.Utterance{{ID: "u2"}}
	if _, err := d.Decode(context.Background(), missing, decoder.Params{}, decoder.Word, nil); err == nil {
		t.Error("Decode of unrecorded utterance: got nil error")
	}
	if _, err := d.DecodeStreaming(context.Background(), missing, decoder.Params{}); err == nil {
		t.Error("DecodeStreaming of unrecorded utterance: got nil error")
	}
}

func TestDecodeStreaming_ReturnsRankZero(t *testing.T) {
	t.Parallel()

	utts := []corpus.Utterance{
		{ID: "u1", Hypotheses: []string{"first best", "second best"}},
	}
	d := replay.New(utts)
	mapper := d.WordMapper()

	best, err := d.DecodeStreaming(context.Background(), utts, decoder.Params{})
	if err != nil {
		t.Fatalf("DecodeStreaming: %v", err)
	}
	if len(best) != 1 {
		t.Fatalf("got %d hypotheses, want 1", len(best))
	}
	if got := mapper(best[0].IDs); got != "first best" {
		t.Errorf("streaming hypothesis = %q, want %q", got, "first best")
	}
	if best[0].Attention != nil {
		t.Error("replayed streaming hypothesis carries attention weights")
	}
}

func TestWordMapper_UnknownIDsRenderEmpty(t *testing.T) {
	t.Parallel()

	d := replay.New([]corpus.Utterance{{ID: "u1", Hypotheses: []string{"a b"}}})
	mapper := d.WordMapper()
	if got := mapper([]int{0, 99}); got != "a " {
		t.Errorf("mapper with out-of-range id = %q, want %q", got, "a ")
	}
}
