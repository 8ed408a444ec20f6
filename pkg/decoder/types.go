package decoder

// Granularity selects the token granularity of a decode pass.
type Granularity string

const (
	// Word decodes at the word level, the primary scoring granularity.
	Word Granularity = "word"

	// Char decodes at the character level, used for the auxiliary pass
	// that resolves unknown-token markers.
	Char Granularity = "char"
)

// IsValid reports whether g is a recognised granularity.
func (g Granularity) IsValid() bool {
	return g == Word || g == Char
}

// Hypothesis is one ranked candidate for one utterance, as produced by a
// [Decoder].
type Hypothesis struct {
	// IDs is the token-id sequence of the hypothesis, without any
	// end-of-sequence marker. Render it as text with a [TokenMapper].
	IDs []int

	// Attention holds the decoder's attention weights over the input for
	// this hypothesis, when the model produces them. The scoring engine
	// never interprets the weights; they are passed through to the
	// [Resolver] only. Nil when unavailable (e.g. streaming decoding).
	Attention [][]float64
}

// NBest is a ranked hypothesis list for one utterance. Index 0 is the
// primary (best) hypothesis.
type NBest []Hypothesis

// TokenMapper renders a token-id sequence as text. Implementations must be
// deterministic; the conventional name for this mapping is idx2token.
type TokenMapper func(ids []int) string

// Params are the recognition hyperparameters a [Decoder] honours during a
// decode pass. The scoring engine forwards them unchanged, except for the
// auxiliary unknown-token resolution pass which forces BeamWidth to 1 and
// LMWeight to 0.
type Params struct {
	// BeamWidth is the beam search width. 1 selects greedy decoding.
	BeamWidth int

	// LengthPenalty rewards longer hypotheses during search.
	LengthPenalty float64

	// CoveragePenalty penalises attention mass concentrated on few frames.
	CoveragePenalty float64

	// MinLenRatio and MaxLenRatio bound hypothesis length relative to the
	// input length.
	MinLenRatio float64
	MaxLenRatio float64

	// LMWeight is the shallow-fusion language model weight.
	LMWeight float64
}
