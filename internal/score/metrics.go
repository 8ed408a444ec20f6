package score

// Rate is a normalized error rate that may be undefined. A rate is
// undefined when its denominator was zero — for example the word error rate
// of a corpus pass that accumulated no reference tokens. Callers must check
// Defined before using Value; an undefined rate is never reported as a
// numeric zero, which would be indistinguishable from a perfect score.
type Rate struct {
	Value   float64
	Defined bool
}

// definedRate builds a defined Rate from an integer numerator and
// denominator. The caller guarantees den != 0.
func definedRate(num, den int) Rate {
	return Rate{Value: float64(num) / float64(den), Defined: true}
}

// GranularityMetrics holds the finalized error rates and raw counts for one
// token granularity.
type GranularityMetrics struct {
	// ErrorRate is errors / reference tokens; SubRate, InsRate and DelRate
	// are the per-operation shares over the same denominator. All four are
	// undefined when ReferenceTokens is zero.
	ErrorRate Rate
	SubRate   Rate
	InsRate   Rate
	DelRate   Rate

	// Raw counts the rates were derived from.
	Errors          int
	Sub             int
	Ins             int
	Del             int
	ReferenceTokens int
}

// BinAverage is the mean per-utterance error fraction of one input-length
// bin.
type BinAverage struct {
	// Bin is the upper edge of the input-length bucket.
	Bin int

	// Mean is the average error fraction of the utterances in the bin.
	Mean float64

	// Count is the number of utterances that fell into the bin.
	Count int
}

// Metrics is the immutable result of one finalized corpus pass.
type Metrics struct {
	// Word and Char hold the finalized metrics per granularity.
	Word GranularityMetrics
	Char GranularityMetrics

	// OracleWER is the best achievable word error rate over the n-best
	// lists, normalized by the same reference-token total as the primary
	// WER. Undefined when no reference tokens were accumulated.
	OracleWER Rate

	// OracleHitRate is the share of utterances whose rank-0 hypothesis
	// already achieved the oracle error count, over all utterances that
	// received oracle scoring. Undefined when none did.
	OracleHitRate Rate

	// OOVTotal is the total number of unknown-token markers seen in primary
	// hypotheses before resolution.
	OOVTotal int

	// Utterances is the number of utterances scored.
	Utterances int

	// Bins holds the length-binned average error fractions, sorted by bin
	// key ascending. Empty unless fine-grained reporting was enabled.
	Bins []BinAverage
}

// WER returns the primary word error rate.
func (m Metrics) WER() Rate { return m.Word.ErrorRate }

// CER returns the character error rate.
func (m Metrics) CER() Rate { return m.Char.ErrorRate }
