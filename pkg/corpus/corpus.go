// Package corpus defines the evaluation data source protocol: immutable
// utterance records, batched iteration with an explicit reset, and rank
// sharding for distributed evaluation.
//
// A Source is reset with the requested batch size and ordering mode before
// each corpus pass and yields batches until io.EOF. After a pass the driver
// resets it again so the same Source can serve a later pass.
package corpus

import (
	"fmt"
	"io"
)

// Order selects the iteration order a [Source] uses after a reset.
type Order string

const (
	// OrderSequential yields utterances in their stored order. This is the
	// only order the scoring driver requests: transcript files must list
	// utterances in processing order.
	OrderSequential Order = "seq"
)

// IsValid reports whether o is a recognised ordering mode.
func (o Order) IsValid() bool {
	return o == OrderSequential
}

// Utterance is one evaluation record: the reference transcript plus the
// identifiers and optional pre-decoded hypotheses needed to score it.
// Records are immutable after creation.
type Utterance struct {
	// ID uniquely identifies the utterance within the corpus.
	ID string `json:"utt_id"`

	// Speaker identifies the speaker or session. Hyphens are normalised to
	// underscores when written to trn files.
	Speaker string `json:"speaker"`

	// Reference is the ground-truth transcript.
	Reference string `json:"text"`

	// InputLength is the length of the acoustic input in frames. Used only
	// for length-binned error reporting.
	InputLength int `json:"input_length"`

	// Features carries the opaque acoustic input handed to the decoder.
	// Replay sources leave it nil.
	Features any `json:"-"`

	// Hypotheses holds pre-decoded word-level hypothesis texts ordered by
	// rank, for replay scoring of decoder output dumps. Live decoders
	// ignore it.
	Hypotheses []string `json:"hypotheses,omitempty"`

	// CharHypothesis holds the pre-decoded character-level best hypothesis
	// used when replaying an unknown-token resolution pass.
	CharHypothesis string `json:"char_hypothesis,omitempty"`
}

// Source yields a corpus as ordered batches of utterances.
//
// Implementations are consumed by a single driver per pass and need not be
// safe for concurrent use.
type Source interface {
	// Reset rewinds the source and sets the batch size and ordering for the
	// next pass. It must be called before the first Next and may be called
	// again after exhaustion to reuse the source.
	Reset(batchSize int, order Order) error

	// Next returns the next batch in the requested order, or io.EOF once
	// the corpus is exhausted. Returned batches have at least one utterance.
	Next() ([]Utterance, error)

	// Len returns the total number of utterances in the corpus.
	Len() int
}

// SliceSource is an in-memory [Source] backed by a slice of utterances.
type SliceSource struct {
	utts      []Utterance
	batchSize int
	pos       int
}

var _ Source = (*SliceSource)(nil)

// NewSliceSource returns a SliceSource over utts. The source must be Reset
// before iteration.
func NewSliceSource(utts []Utterance) *SliceSource {
	return &SliceSource{utts: utts}
}

// Reset rewinds the source. batchSize must be positive and order must be a
// recognised ordering mode.
func (s *SliceSource) Reset(batchSize int, order Order) error {
	if batchSize <= 0 {
		return fmt.Errorf("corpus: batch size %d must be positive", batchSize)
	}
	if !order.IsValid() {
		return fmt.Errorf("corpus: order %q is invalid; valid values: seq", order)
	}
	s.batchSize = batchSize
	s.pos = 0
	return nil
}

// Next returns the next batch of at most the configured batch size.
func (s *SliceSource) Next() ([]Utterance, error) {
	if s.batchSize <= 0 {
		return nil, fmt.Errorf("corpus: source not reset")
	}
	if s.pos >= len(s.utts) {
		return nil, io.EOF
	}
	end := min(s.pos+s.batchSize, len(s.utts))
	batch := s.utts[s.pos:end]
	s.pos = end
	return batch, nil
}

// Len returns the number of utterances in the source.
func (s *SliceSource) Len() int { return len(s.utts) }

// Shard returns the contiguous slice of utts owned by rank in a worldSize
// worker group. Every utterance belongs to exactly one rank and ranks are
// balanced to within one utterance. Shard panics if rank is out of range or
// worldSize is not positive.
func Shard(utts []Utterance, rank, worldSize int) []Utterance {
	if worldSize <= 0 || rank < 0 || rank >= worldSize {
		panic(fmt.Sprintf("corpus: invalid shard rank %d of %d", rank, worldSize))
	}
	lo := len(utts) * rank / worldSize
	hi := len(utts) * (rank + 1) / worldSize
	return utts[lo:hi]
}
