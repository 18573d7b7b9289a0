package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// record is one line of a HuggingFace translation dataset export.
type record struct {
	ID          string      `json:"id,omitempty"`
	Translation Translation `json:"translation"`
}

// LoadJSONL reads a translation corpus from a JSON Lines file.
func LoadJSONL(path string) (Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSONL(f)
}

// ReadJSONL parses {"translation": {"<lang>": "<text>", ...}} objects, one per line.
func ReadJSONL(r io.Reader) (Memory, error) {
	var out Memory
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("corpus line %d: %w", line, err)
		}
		if rec.Translation == nil {
			return nil, fmt.Errorf("corpus line %d: missing translation field", line)
		}
		out = append(out, rec.Translation)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return out, nil
}

// WriteJSONL writes translations in the format ReadJSONL accepts.
func WriteJSONL(w io.Writer, translations []Translation) error {
	enc := json.NewEncoder(w)
	for i, tr := range translations {
		if err := enc.Encode(record{ID: fmt.Sprint(i), Translation: tr}); err != nil {
			return fmt.Errorf("failed to write translation %d: %w", i, err)
		}
	}
	return nil
}
