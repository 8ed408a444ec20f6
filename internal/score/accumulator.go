// Package score accumulates alignment results across a corpus pass and
// finalizes them into normalized error metrics.
//
// An Accumulator is owned by exactly one evaluation driver run: created at
// corpus start, mutated once per utterance, consumed exactly once by
// Finalize, then discarded. Its counters are plain integers and are not safe
// for unsynchronized concurrent mutation; a caller that scores utterances in
// parallel must serialize the Update* calls.
package score

import (
	"errors"
	"fmt"
	"sort"

	"github.com/asrlab/recscore/internal/align"
	"github.com/asrlab/recscore/pkg/decoder"
)

// ErrFinalized is returned when an Accumulator is used after Finalize.
var ErrFinalized = errors.New("score: accumulator already finalized")

// tally is the running error accounting for one granularity.
type tally struct {
	errors, sub, ins, del int
	refTokens             int
}

func (t *tally) add(r align.Result, refLen int) {
	t.errors += r.Total
	t.sub += r.Sub
	t.ins += r.Ins
	t.del += r.Del
	t.refTokens += refLen
}

func (t *tally) finalize() GranularityMetrics {
	gm := GranularityMetrics{
		Errors:          t.errors,
		Sub:             t.sub,
		Ins:             t.ins,
		Del:             t.del,
		ReferenceTokens: t.refTokens,
	}
	if t.refTokens == 0 {
		return gm
	}
	gm.ErrorRate = definedRate(t.errors, t.refTokens)
	gm.SubRate = definedRate(t.sub, t.refTokens)
	gm.InsRate = definedRate(t.ins, t.refTokens)
	gm.DelRate = definedRate(t.del, t.refTokens)
	return gm
}

// Accumulator aggregates per-utterance alignment results into corpus totals.
// The zero value is not usable; construct with [NewAccumulator].
type Accumulator struct {
	word tally
	char tally

	oracleErrors int
	oracleHits   int
	oracleUtts   int

	utterances int
	oov        int

	bins map[int][]float64

	finalized bool
}

// NewAccumulator returns an empty Accumulator ready for one corpus pass.
func NewAccumulator() *Accumulator {
	return &Accumulator{bins: make(map[int][]float64)}
}

// Update adds one utterance's alignment result to the running totals of the
// given granularity. refLen is the reference length in tokens of that
// granularity.
func (a *Accumulator) Update(gran decoder.Granularity, r align.Result, refLen int) error {
	if a.finalized {
		return ErrFinalized
	}
	switch gran {
	case decoder.Word:
		a.word.add(r, refLen)
	case decoder.Char:
		a.char.add(r, refLen)
	default:
		return fmt.Errorf("score: unknown granularity %q", gran)
	}
	return nil
}

// UpdateOracle adds one utterance's oracle result. hit reports whether the
// rank-0 hypothesis already achieved the oracle error count; each hitting
// utterance counts exactly once.
func (a *Accumulator) UpdateOracle(errs int, hit bool) error {
	if a.finalized {
		return ErrFinalized
	}
	a.oracleErrors += errs
	a.oracleUtts++
	if hit {
		a.oracleHits++
	}
	return nil
}

// UpdateBin appends one utterance's error fraction to the given
// input-length bin, creating the bin on first use.
func (a *Accumulator) UpdateBin(bin int, fraction float64) error {
	if a.finalized {
		return ErrFinalized
	}
	a.bins[bin] = append(a.bins[bin], fraction)
	return nil
}

// AddOOV adds n unknown-token marker occurrences to the running total.
func (a *Accumulator) AddOOV(n int) error {
	if a.finalized {
		return ErrFinalized
	}
	a.oov += n
	return nil
}

// AddUtterances adds n scored utterances to the running count.
func (a *Accumulator) AddUtterances(n int) error {
	if a.finalized {
		return ErrFinalized
	}
	a.utterances += n
	return nil
}

// Finalize normalizes the accumulated counts into Metrics and consumes the
// Accumulator. Rates with a zero denominator are reported as undefined, not
// zero. Calling Finalize twice returns ErrFinalized.
func (a *Accumulator) Finalize() (Metrics, error) {
	if a.finalized {
		return Metrics{}, ErrFinalized
	}
	a.finalized = true

	m := Metrics{
		Word:       a.word.finalize(),
		Char:       a.char.finalize(),
		OOVTotal:   a.oov,
		Utterances: a.utterances,
	}

	// Oracle WER shares the primary WER's denominator.
	if a.oracleUtts > 0 {
		if a.word.refTokens > 0 {
			m.OracleWER = definedRate(a.oracleErrors, a.word.refTokens)
		}
		m.OracleHitRate = definedRate(a.oracleHits, a.oracleUtts)
	}

	keys := make([]int, 0, len(a.bins))
	for bin := range a.bins {
		keys = append(keys, bin)
	}
	sort.Ints(keys)
	for _, bin := range keys {
		fracs := a.bins[bin]
		var sum float64
		for _, f := range fracs {
			sum += f
		}
		m.Bins = append(m.Bins, BinAverage{
			Bin:   bin,
			Mean:  sum / float64(len(fracs)),
			Count: len(fracs),
		})
	}

	return m, nil
}
