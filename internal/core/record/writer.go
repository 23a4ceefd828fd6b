package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/agenthands/clinigraph/internal/core/model"
)

// Write encodes records as line-delimited JSON.
func Write(w io.Writer, records ...*model.ExtractionRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record %q: %w", rec.DocumentID, err)
		}
	}
	return nil
}

// WriteFile saves records to dir/name.jsonl and returns the path written.
func WriteFile(dir, name string, records ...*model.ExtractionRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(dir, name+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := Write(f, records...); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
