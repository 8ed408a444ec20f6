package align

// Oracle selects the minimum-error hypothesis from an n-best list.
//
// hyps is ordered by decoder rank with index 0 as the primary hypothesis.
// Ties are broken towards the lowest rank, so the decoder's own preference
// wins among equally good candidates. hit reports whether the primary
// hypothesis already achieves the oracle error count.
//
// A single-element list degenerates to the primary's error count with
// hit == true. An empty list returns idx == -1 with zero errors; callers
// are expected to supply at least the primary hypothesis.
func Oracle(ref []string, hyps [][]string) (idx, errs int, hit bool) {
	if len(hyps) == 0 {
		return -1, 0, false
	}
	idx = 0
	errs = Align(ref, hyps[0]).Total
	for n := 1; n < len(hyps); n++ {
		if e := Align(ref, hyps[n]).Total; e < errs {
			idx, errs = n, e
		}
	}
	return idx, errs, idx == 0
}
