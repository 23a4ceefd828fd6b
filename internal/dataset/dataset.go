package dataset

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/agenthands/clinigraph/internal/config"
	"github.com/agenthands/clinigraph/internal/logger"
)

// NoteField holds the clinical note in each dataset row.
const NoteField = "full_note"

const maxRowSize = 16 * 1024 * 1024

// Loader reads notes from the augmented clinical notes dataset, downloading
// it once into a local cache file.
type Loader struct {
	URL       string
	LocalPath string
	Client    *retryablehttp.Client
}

func NewLoader(cfg config.DatasetConfig) *Loader {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = leveledLogger{}
	return &Loader{
		URL:       cfg.URL,
		LocalPath: cfg.LocalPath,
		Client:    client,
	}
}

// DocumentID names the document built from dataset row index.
func DocumentID(index int) string {
	return fmt.Sprintf("agbonnet_%d", index)
}

// Ensure makes sure the dataset is cached locally and returns its path.
func (l *Loader) Ensure(ctx context.Context) (string, error) {
	if f, err := os.Open(l.LocalPath); err == nil {
		f.Close()
		logger.Debug("Using cached dataset", "path", l.LocalPath)
		return l.LocalPath, nil
	}

	logger.Info("Downloading dataset", "url", l.URL, "path", l.LocalPath)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build dataset request: %w", err)
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download dataset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download dataset: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(l.LocalPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create dataset dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.LocalPath), ".dataset-*")
	if err != nil {
		return "", fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.LocalPath); err != nil {
		return "", fmt.Errorf("failed to store dataset: %w", err)
	}
	return l.LocalPath, nil
}

// Note returns the clinical note of the 0-based row index.
func (l *Loader) Note(ctx context.Context, index int) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("record index must not be negative, got %d", index)
	}
	path, err := l.Ensure(ctx)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxRowSize)
	row := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if row == index {
			note := gjson.Get(line, NoteField)
			if !note.Exists() {
				return "", fmt.Errorf("record %d has no %q field", index, NoteField)
			}
			return note.String(), nil
		}
		row++
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("failed to read dataset: %w", err)
	}
	return "", fmt.Errorf("record %d out of range: dataset has %d records", index, row)
}

// leveledLogger routes retry chatter into the application log.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	logger.Error(msg, keysAndValues...)
}

func (leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug(msg, keysAndValues...)
}

func (leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	logger.Debug(msg, keysAndValues...)
}

func (leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	logger.Warn(msg, keysAndValues...)
}
