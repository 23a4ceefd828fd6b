package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/clinigraph/internal/config"
)

const rows = `{"idx": 0, "full_note": "A 16-year-old girl on olanzapine."}

{"idx": 1, "full_note": "A 56-year-old man with a rib fracture."}
{"idx": 2, "summary": "no note here"}
`

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_, _ = w.Write([]byte(rows))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoader_DownloadsOnce(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	path := filepath.Join(t.TempDir(), "data", "agbonnet.jsonl")
	l := NewLoader(config.DatasetConfig{URL: srv.URL, LocalPath: path})
	ctx := context.Background()

	note, err := l.Note(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "A 16-year-old girl on olanzapine.", note)

	note, err = l.Note(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A 56-year-old man with a rib fracture.", note, "blank lines do not count as records")

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoader_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agbonnet.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	l := NewLoader(config.DatasetConfig{URL: "http://127.0.0.1:0/unused", LocalPath: path})
	ctx := context.Background()

	_, err := l.Note(ctx, 2)
	assert.ErrorContains(t, err, "full_note")

	_, err = l.Note(ctx, 10)
	assert.ErrorContains(t, err, "out of range")

	_, err = l.Note(ctx, -1)
	assert.Error(t, err)
}

func TestLoader_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "agbonnet.jsonl")
	l := NewLoader(config.DatasetConfig{URL: srv.URL, LocalPath: path})

	_, err := l.Ensure(context.Background())
	assert.ErrorContains(t, err, "404")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "agbonnet_42", DocumentID(42))
}
