// Package decoder defines the boundary contracts between the scoring engine
// and the external recognition system: the Decoder that produces ranked
// token-id hypotheses, the TokenMapper that renders them as text, and the
// Resolver that splices character-level re-decodings into word hypotheses
// containing unknown-token markers.
//
// The scoring engine treats decode calls as opaque, possibly slow
// operations. Cancellation, batching on the device, and model internals are
// the implementation's responsibility; implementations should respect ctx.
package decoder

import (
	"context"

	"github.com/asrlab/recscore/pkg/corpus"
)

// Decoder is the abstraction over any recognition model that can be scored.
//
// Ensemble decoding is expressed through the same interface: auxiliary
// ensemble members are further Decoder instances passed to Decode, and the
// receiver combines their scores however it sees fit.
type Decoder interface {
	// Decode produces an n-best hypothesis list per utterance in utts, at
	// the requested token granularity. The returned slice is parallel to
	// utts and every element holds at least one hypothesis, ordered by rank
	// with rank 0 first. Attention weights are attached when the model
	// produces them.
	Decode(ctx context.Context, utts []corpus.Utterance, params Params, gran Granularity, ensemble []Decoder) ([]NBest, error)

	// DecodeStreaming produces the single best hypothesis per utterance
	// using incremental (session-level) decoding. No n-best list and no
	// attention weights are available in this mode.
	DecodeStreaming(ctx context.Context, utts []corpus.Utterance, params Params) ([]Hypothesis, error)
}

// Resolver merges a word-level hypothesis containing unknown-token markers
// with a character-level re-decoding of the same utterance, using the two
// attention alignments to locate the spans to splice. The merge algorithm
// itself is external to the scoring engine; the engine only strips residual
// splice-marker characters from the returned text before scoring.
type Resolver interface {
	Resolve(wordHyp string, charIDs []int, wordAttention, charAttention [][]float64, mapper TokenMapper, subsampleWord, subsampleChar int) (string, error)
}
