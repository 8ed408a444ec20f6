package eval

import "fmt"

// Stage identifies the pipeline stage a failure occurred in.
type Stage string

const (
	StageDecode Stage = "decode"
	StageAlign  Stage = "align"
	StageMerge  Stage = "merge"
	StageWrite  Stage = "write"
)

// StageError reports which pipeline stage failed and, when the failure is
// attributable to a single utterance, which one. A failed corpus pass always
// surfaces one of these rather than silently truncating output.
type StageError struct {
	// Stage is the pipeline stage that failed.
	Stage Stage

	// UttID identifies the utterance involved. Empty for batch- or
	// corpus-level failures.
	UttID string

	// Err is the underlying error.
	Err error
}

// Error formats the stage, utterance, and cause.
func (e *StageError) Error() string {
	if e.UttID == "" {
		return fmt.Sprintf("eval: %s stage failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("eval: %s stage failed for utterance %q: %v", e.Stage, e.UttID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }
