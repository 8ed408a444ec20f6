// Package replay implements a [decoder.Decoder] that replays pre-decoded
// hypotheses carried on corpus records.
//
// Recognition systems commonly dump their n-best output once and score it
// many times offline. Replay turns such a dump back into the decoder
// contract: hypothesis texts are interned into a token vocabulary built from
// the corpus, Decode returns the corresponding token-id sequences, and the
// matching TokenMapper renders them back to text. No attention weights are
// available, so replayed corpora cannot drive unknown-token resolution
// merges that require them.
package replay

import (
	"context"
	"fmt"
	"strings"

	"github.com/asrlab/recscore/pkg/corpus"
	"github.com/asrlab/recscore/pkg/decoder"
)

// Decoder replays pre-decoded hypotheses from corpus records. It is
// read-only after construction and safe for concurrent use.
type Decoder struct {
	word      map[string]decoder.NBest
	char      map[string]decoder.NBest
	wordVocab *vocab
	charVocab *vocab
}

var _ decoder.Decoder = (*Decoder)(nil)

// New builds a replay decoder over utts. Word-level vocabulary is interned
// from every hypothesis text; character-level vocabulary from every
// char_hypothesis. Utterances without hypotheses are simply absent and fail
// at decode time.
func New(utts []corpus.Utterance) *Decoder {
	d := &Decoder{
		word:      make(map[string]decoder.NBest, len(utts)),
		char:      make(map[string]decoder.NBest),
		wordVocab: newVocab(),
		charVocab: newVocab(),
	}
	for _, u := range utts {
		if len(u.Hypotheses) > 0 {
			nb := make(decoder.NBest, len(u.Hypotheses))
			for n, text := range u.Hypotheses {
				nb[n] = decoder.Hypothesis{IDs: d.wordVocab.encode(strings.Fields(text))}
			}
			d.word[u.ID] = nb
		}
		if u.CharHypothesis != "" {
			runes := []rune(u.CharHypothesis)
			toks := make([]string, len(runes))
			for i, r := range runes {
				toks[i] = string(r)
			}
			d.char[u.ID] = decoder.NBest{{IDs: d.charVocab.encode(toks)}}
		}
	}
	return d
}

// Decode returns the replayed n-best lists for utts at the requested
// granularity. Ensemble members are ignored: the dump already reflects
// whatever ensemble produced it.
func (d *Decoder) Decode(ctx context.Context, utts []corpus.Utterance, params decoder.Params, gran decoder.Granularity, ensemble []decoder.Decoder) ([]decoder.NBest, error) {
	table := d.word
	if gran == decoder.Char {
		table = d.char
	}
	out := make([]decoder.NBest, len(utts))
	for i, u := range utts {
		nb, ok := table[u.ID]
		if !ok {
			return nil, fmt.Errorf("replay: no %s hypotheses recorded for utterance %q", gran, u.ID)
		}
		out[i] = nb
	}
	return out, nil
}

// DecodeStreaming returns the rank-0 replayed hypothesis per utterance.
func (d *Decoder) DecodeStreaming(ctx context.Context, utts []corpus.Utterance, params decoder.Params) ([]decoder.Hypothesis, error) {
	out := make([]decoder.Hypothesis, len(utts))
	for i, u := range utts {
		nb, ok := d.word[u.ID]
		if !ok {
			return nil, fmt.Errorf("replay: no hypotheses recorded for utterance %q", u.ID)
		}
		out[i] = decoder.Hypothesis{IDs: nb[0].IDs}
	}
	return out, nil
}

// WordMapper returns the idx2token mapping for word-level replayed output.
func (d *Decoder) WordMapper() decoder.TokenMapper {
	return d.wordVocab.render(" ")
}

// CharMapper returns the idx2token mapping for character-level replayed
// output.
func (d *Decoder) CharMapper() decoder.TokenMapper {
	return d.charVocab.render("")
}

// vocab interns tokens into dense ids.
type vocab struct {
	tokens []string
	index  map[string]int
}

func newVocab() *vocab {
	return &vocab{index: make(map[string]int)}
}

func (v *vocab) encode(toks []string) []int {
	ids := make([]int, len(toks))
	for i, t := range toks {
		id, ok := v.index[t]
		if !ok {
			id = len(v.tokens)
			v.index[t] = id
			v.tokens = append(v.tokens, t)
		}
		ids[i] = id
	}
	return ids
}

// render returns a TokenMapper joining decoded tokens with sep. Unknown ids
// render as empty tokens rather than panicking: a mapper must stay total.
func (v *vocab) render(sep string) decoder.TokenMapper {
	return func(ids []int) string {
		toks := make([]string, len(ids))
		for i, id := range ids {
			if id >= 0 && id < len(v.tokens) {
				toks[i] = v.tokens[id]
			}
		}
		return strings.Join(toks, sep)
	}
}
