package corpus_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/asrlab/recscore/pkg/corpus"
)

func TestSliceSource_BatchedIteration(t *testing.T) {
	t.Parallel()

	utts := makeUtts("u1", "u2", "u3", "u4", "u5")
	src := corpus.NewSliceSource(utts)
	if src.Len() != 5 {
		t.Errorf("Len = %d, want 5", src.Len())
	}
	if err := src.Reset(2, corpus.OrderSequential); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	var got []string
	var sizes []int
	for {
		batch, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		sizes = append(sizes, len(batch))
		for _, u := range batch {
			got = append(got, u.ID)
		}
	}

	want := []string{"u1", "u2", "u3", "u4", "u5"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("iteration order = %v, want %v", got, want)
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("batch sizes = %v, want [2 2 1]", sizes)
	}
}

func TestSliceSource_ResetRewinds(t *testing.T) {
	t.Parallel()

	src := corpus.NewSliceSource(makeUtts("u1", "u2"))
	if err := src.Reset(2, corpus.OrderSequential); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := src.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after exhaustion: got %v, want io.EOF", err)
	}

	if err := src.Reset(1, corpus.OrderSequential); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	batch, err := src.Next()
	if err != nil {
		t.Fatalf("Next after rewind: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != "u1" {
		t.Errorf("batch after rewind = %v, want [u1]", batch)
	}
}

func TestSliceSource_ResetValidation(t *testing.T) {
	t.Parallel()

	src := corpus.NewSliceSource(makeUtts("u1"))
	if err := src.Reset(0, corpus.OrderSequential); err == nil {
		t.Error("Reset with zero batch size: got nil error")
	}
	if err := src.Reset(1, corpus.Order("shuffle")); err == nil {
		t.Error("Reset with unknown order: got nil error")
	}
	if _, err := src.Next(); err == nil {
		t.Error("Next without successful Reset: got nil error")
	}
}

func TestShard_PartitionsWithoutOverlap(t *testing.T) {
	t.Parallel()

	utts := makeUtts("u1", "u2", "u3", "u4", "u5", "u6", "u7")
	const worldSize = 3

	var total int
	seen := map[string]bool{}
	for rank := range worldSize {
		shard := corpus.Shard(utts, rank, worldSize)
		total += len(shard)
		for _, u := range shard {
			if seen[u.ID] {
				t.Errorf("utterance %q appears in more than one shard", u.ID)
			}
			seen[u.ID] = true
		}
		// Shards are balanced to within one utterance.
		if len(shard) < 2 || len(shard) > 3 {
			t.Errorf("rank %d shard size = %d, want 2 or 3", rank, len(shard))
		}
	}
	if total != len(utts) {
		t.Errorf("shards cover %d utterances, want %d", total, len(utts))
	}
}

func TestShard_SingleWorkerGetsEverything(t *testing.T) {
	t.Parallel()

	utts := makeUtts("u1", "u2")
	shard := corpus.Shard(utts, 0, 1)
	if len(shard) != len(utts) {
		t.Errorf("shard size = %d, want %d", len(shard), len(utts))
	}
}

func TestShard_PanicsOnInvalidRank(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("Shard with out-of-range rank did not panic")
		}
	}()
	corpus.Shard(makeUtts("u1"), 2, 2)
}

func TestReadManifest(t *testing.T) {
	t.Parallel()

	manifest := `{"utt_id":"u1","speaker":"spk1","text":"hello world","input_length":120}

{"utt_id":"u2","speaker":"spk2","text":"good morning","hypotheses":["good evening","good morning"],"char_hypothesis":"good morning"}
`
	utts, err := corpus.ReadManifest(strings.NewReader(manifest))
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(utts) != 2 {
		t.Fatalf("got %d utterances, want 2", len(utts))
	}

	u1 := utts[0]
	if u1.ID != "u1" || u1.Speaker != "spk1" || u1.Reference != "hello world" || u1.InputLength != 120 {
		t.Errorf("first record = %+v", u1)
	}
	u2 := utts[1]
	if len(u2.Hypotheses) != 2 || u2.Hypotheses[0] != "good evening" {
		t.Errorf("hypotheses = %v, want pre-decoded texts in rank order", u2.Hypotheses)
	}
	if u2.CharHypothesis != "good morning" {
		t.Errorf("char hypothesis = %q, want %q", u2.CharHypothesis, "good morning")
	}
}

func TestReadManifest_Errors(t *testing.T) {
	t.Parallel()

	if _, err := corpus.ReadManifest(strings.NewReader(`{"text":"no id"}`)); err == nil {
		t.Error("record without utt_id: got nil error")
	}
	if _, err := corpus.ReadManifest(strings.NewReader(`not json`)); err == nil {
		t.Error("malformed line: got nil error")
	}
}

func makeUtts(ids ...string) []corpus.Utterance {
	utts := make([]corpus.Utterance, len(ids))
	for i, id := range ids {
		utts[i] = corpus.Utterance{ID: id, Speaker: "spk", Reference: "ref"}
	}
	return utts
}
