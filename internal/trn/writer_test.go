package trn_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/asrlab/recscore/internal/trn"
)

func TestWriter_AppendAndClose(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := trn.NewWriter(dir, 0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.Append("hello world", "hello word", "spk1", "utt001", false); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append("second line", "second line", "spk-2", "utt002", false); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ref := readFile(t, filepath.Join(dir, "ref.trn"))
	hyp := readFile(t, filepath.Join(dir, "hyp.trn"))

	wantRef := "hello world (spk1-utt001)\nsecond line (spk_2-utt002)\n"
	if ref != wantRef {
		t.Errorf("ref.trn = %q, want %q", ref, wantRef)
	}
	wantHyp := "hello word (spk1-utt001)\nsecond line (spk_2-utt002)\n"
	if hyp != wantHyp {
		t.Errorf("hyp.trn = %q, want %q", hyp, wantHyp)
	}
}

func TestWriter_StreamingSuffix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := trn.NewWriter(dir, 0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Append("a", "a", "spk", "utt001", true); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readFile(t, filepath.Join(dir, "ref.trn"))
	want := "a (spk-utt001_0000000_0000001)\n"
	if got != want {
		t.Errorf("ref.trn = %q, want %q", got, want)
	}
}

func TestWriter_NonWriterRankIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := trn.NewWriter(dir, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Append("a", "b", "spk", "utt", false); err != nil {
		t.Fatalf("Append on non-writer rank: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close on non-writer rank: %v", err)
	}

	for _, name := range []string{"ref.trn", "hyp.trn"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("non-writer rank created %s", name)
		}
	}
}

func TestWriter_TruncatesPreviousPass(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for pass := range 2 {
		w, err := trn.NewWriter(dir, 0)
		if err != nil {
			t.Fatalf("NewWriter pass %d: %v", pass, err)
		}
		if err := w.Append("only line", "only line", "spk", "utt", false); err != nil {
			t.Fatalf("Append pass %d: %v", pass, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close pass %d: %v", pass, err)
		}
	}

	got := readFile(t, filepath.Join(dir, "ref.trn"))
	want := "only line (spk-utt)\n"
	if got != want {
		t.Errorf("ref.trn after two passes = %q, want single line %q", got, want)
	}
}

func TestWriter_AppendAfterClose(t *testing.T) {
	t.Parallel()

	w, err := trn.NewWriter(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Append("a", "b", "spk", "utt", false); err == nil {
		t.Error("Append after Close: got nil error, want error")
	}
	// Double close is harmless.
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", path, err)
	}
	return string(b)
}
