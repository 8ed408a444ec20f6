package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadManifest reads a JSON-lines corpus manifest from path. Each non-empty
// line is one [Utterance] record.
func LoadManifest(path string) ([]Utterance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open manifest %q: %w", path, err)
	}
	defer f.Close()

	utts, err := ReadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("corpus: manifest %q: %w", path, err)
	}
	return utts, nil
}

// ReadManifest decodes JSON-lines utterance records from r. Blank lines are
// skipped. Useful in tests where manifests are built from string literals.
func ReadManifest(r io.Reader) ([]Utterance, error) {
	var utts []Utterance
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var u Utterance
		if err := json.Unmarshal([]byte(text), &u); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if u.ID == "" {
			return nil, fmt.Errorf("line %d: utt_id is required", line)
		}
		utts = append(utts, u)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return utts, nil
}
