// Package align computes minimal-cost edit alignments between a reference
// token sequence and a recognition hypothesis, classifying every aligned
// position as a match, substitution, insertion, or deletion.
//
// The alignment is the classic dynamic-programming edit distance with unit
// costs. The total error count is unique, but the substitution/insertion/
// deletion split depends on how cost ties are broken during the backtrace.
// To match conventional WER reporting the backtrace prefers, in order:
//
//  1. substitution (diagonal predecessor),
//  2. deletion (upper predecessor),
//  3. insertion (left predecessor).
//
// Both sequences may be empty. Aligning against an empty reference yields
// pure insertions; an empty hypothesis yields pure deletions.
package align

import "strings"

// Op is a single edit operation aligning one reference position to one
// hypothesis position.
type Op uint8

const (
	// OpMatch consumes one reference token and one identical hypothesis token.
	OpMatch Op = iota

	// OpSubstitute consumes one reference token and one differing hypothesis token.
	OpSubstitute

	// OpInsert consumes one hypothesis token with no reference counterpart.
	OpInsert

	// OpDelete consumes one reference token with no hypothesis counterpart.
	OpDelete
)

// String returns the conventional single-letter code for the operation
// (M, S, I, D).
func (o Op) String() string {
	switch o {
	case OpMatch:
		return "M"
	case OpSubstitute:
		return "S"
	case OpInsert:
		return "I"
	case OpDelete:
		return "D"
	}
	return "?"
}

// Result describes one alignment. Total is always Sub + Ins + Del, and the
// script length equals len(ref) + Ins == len(hyp) + Del.
type Result struct {
	// Total is the minimal edit distance between reference and hypothesis.
	Total int

	// Sub, Ins and Del are the per-operation error counts under the
	// substitution > deletion > insertion tie-break.
	Sub, Ins, Del int

	// Script is the edit script from reference to hypothesis, in sequence
	// order.
	Script []Op
}

// Align computes the minimal-cost edit alignment from ref to hyp.
//
// Utterances are short (tens to low hundreds of tokens), so the full
// (len(ref)+1) x (len(hyp)+1) cost table is kept for the backtrace rather
// than using a space-reduced recomputation strategy.
func Align(ref, hyp []string) Result {
	nr, nh := len(ref), len(hyp)

	// d[i][j] = minimal cost to align ref[:i] to hyp[:j].
	d := make([][]int, nr+1)
	for i := range d {
		d[i] = make([]int, nh+1)
		d[i][0] = i
	}
	for j := 0; j <= nh; j++ {
		d[0][j] = j
	}

	for i := 1; i <= nr; i++ {
		for j := 1; j <= nh; j++ {
			if ref[i-1] == hyp[j-1] {
				d[i][j] = d[i-1][j-1]
				continue
			}
			best := d[i-1][j-1] // substitution
			if up := d[i-1][j]; up < best {
				best = up // deletion
			}
			if left := d[i][j-1]; left < best {
				best = left // insertion
			}
			d[i][j] = best + 1
		}
	}

	// Backtrace from the corner. Tie-break: diagonal, then up, then left.
	script := make([]Op, 0, max(nr, nh))
	res := Result{Total: d[nr][nh]}
	i, j := nr, nh
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1] && d[i][j] == d[i-1][j-1]:
			script = append(script, OpMatch)
			i, j = i-1, j-1
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			script = append(script, OpSubstitute)
			res.Sub++
			i, j = i-1, j-1
		case i > 0 && d[i][j] == d[i-1][j]+1:
			script = append(script, OpDelete)
			res.Del++
			i--
		default:
			script = append(script, OpInsert)
			res.Ins++
			j--
		}
	}

	// The script was built corner-to-origin; reverse into sequence order.
	for l, r := 0, len(script)-1; l < r; l, r = l+1, r-1 {
		script[l], script[r] = script[r], script[l]
	}
	res.Script = script
	return res
}

// Words tokenizes text into whitespace-separated word tokens, the word
// granularity of WER scoring.
func Words(text string) []string {
	return strings.Fields(text)
}

// Chars tokenizes text into individual runes, the character granularity of
// CER scoring. Spaces are kept; callers that score space-stripped text
// (e.g. unsegmented Japanese corpora) remove them beforehand.
func Chars(text string) []string {
	runes := []rune(text)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}
