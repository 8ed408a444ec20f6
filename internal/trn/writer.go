// Package trn writes reference and hypothesis transcript files in the trn
// format consumed by corpus-level scoring tools: one line per utterance,
// shaped "<text> (<speaker>-<utterance_id>)".
//
// In a multi-rank evaluation only the designated writer rank performs file
// I/O; a Writer constructed for any other rank turns every call into a
// no-op so concurrent workers never clobber or interleave the same files.
package trn

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriterRank is the rank that owns the transcript files in a multi-rank
// evaluation.
const WriterRank = 0

// streamingSuffix marks an utterance as a single streaming segment by
// appending a synthetic zero-duration frame range to its ID.
const streamingSuffix = "_0000000_0000001"

// Writer appends paired reference/hypothesis transcript lines to ref.trn
// and hyp.trn in a directory. It is not safe for concurrent use; the
// evaluation driver appends utterances strictly in processing order.
type Writer struct {
	refFile *os.File
	hypFile *os.File
	ref     *bufio.Writer
	hyp     *bufio.Writer
	closed  bool
}

// NewWriter opens fresh ref.trn and hyp.trn files under dir, truncating any
// previous pass's output. When rank is not the writer rank no files are
// opened and the returned Writer is a no-op.
func NewWriter(dir string, rank int) (*Writer, error) {
	if rank != WriterRank {
		return &Writer{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("trn: create output dir %q: %w", dir, err)
	}

	refPath := filepath.Join(dir, "ref.trn")
	refFile, err := os.Create(refPath)
	if err != nil {
		return nil, fmt.Errorf("trn: open %q: %w", refPath, err)
	}
	hypPath := filepath.Join(dir, "hyp.trn")
	hypFile, err := os.Create(hypPath)
	if err != nil {
		refFile.Close()
		return nil, fmt.Errorf("trn: open %q: %w", hypPath, err)
	}

	return &Writer{
		refFile: refFile,
		hypFile: hypFile,
		ref:     bufio.NewWriter(refFile),
		hyp:     bufio.NewWriter(hypFile),
	}, nil
}

// Append writes one reference line and one hypothesis line for an
// utterance. Hyphens in the speaker label are normalised to underscores so
// the trailing "(<speaker>-<uttID>)" field stays unambiguous. In streaming
// mode the utterance ID is suffixed with a synthetic frame range.
//
// Append on a non-writer rank is a no-op and returns nil.
func (w *Writer) Append(ref, hyp, speaker, uttID string, streaming bool) error {
	if w.ref == nil {
		return nil
	}
	if w.closed {
		return fmt.Errorf("trn: append after close")
	}

	speaker = strings.ReplaceAll(speaker, "-", "_")
	if streaming {
		uttID += streamingSuffix
	}
	tag := " (" + speaker + "-" + uttID + ")\n"

	if _, err := w.ref.WriteString(ref + tag); err != nil {
		return fmt.Errorf("trn: write ref line for %q: %w", uttID, err)
	}
	if _, err := w.hyp.WriteString(hyp + tag); err != nil {
		return fmt.Errorf("trn: write hyp line for %q: %w", uttID, err)
	}
	return nil
}

// Close flushes and closes both transcript files. Closing a no-op or
// already-closed Writer returns nil.
func (w *Writer) Close() error {
	if w.ref == nil || w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if err := w.ref.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("trn: flush ref.trn: %w", err))
	}
	if err := w.hyp.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("trn: flush hyp.trn: %w", err))
	}
	if err := w.refFile.Close(); err != nil {
		errs = append(errs, fmt.Errorf("trn: close ref.trn: %w", err))
	}
	if err := w.hypFile.Close(); err != nil {
		errs = append(errs, fmt.Errorf("trn: close hyp.trn: %w", err))
	}
	return errors.Join(errs...)
}
