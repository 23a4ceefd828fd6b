package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/clinigraph/internal/logger"
)

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(NewConsoleLogger(ConsoleLoggerParams{Output: &buf}))

	logger.Debug("hidden", "k", 1)
	logger.Info("ingested record", "document_id", "doc1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "ingested record")
	assert.Contains(t, out, "document_id=doc1")
}

func TestConsoleLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(NewConsoleLogger(ConsoleLoggerParams{Debug: true, Output: &buf}))

	logger.Debug("duplicate entity", "key", "aspirin")

	assert.Contains(t, buf.String(), "duplicate entity")
}
