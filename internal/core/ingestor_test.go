package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/clinigraph/internal/core/model"
	"github.com/agenthands/clinigraph/internal/core/record"
	"github.com/agenthands/clinigraph/internal/store"
)

func medication(text string) model.Extraction {
	return model.Extraction{
		ExtractionClass: "medication",
		ExtractionText:  text,
		AlignmentStatus: model.MatchExact,
		CharInterval:    &model.CharInterval{StartPos: 0, EndPos: len(text)},
	}
}

func symptom(text string) model.Extraction {
	return model.Extraction{ExtractionClass: "symptom", ExtractionText: text}
}

func relationship(a, b string) model.Extraction {
	return model.Extraction{
		ExtractionClass: model.RelationshipClass,
		ExtractionText:  a + " with " + b,
		Attributes: map[string]model.AttributeValue{
			"entity_1": model.StringAttr(a),
			"entity_2": model.StringAttr(b),
		},
		AlignmentStatus: model.MatchFuzzy,
	}
}

func doc(id, text string, exs ...model.Extraction) *model.ExtractionRecord {
	if exs == nil {
		exs = []model.Extraction{}
	}
	return &model.ExtractionRecord{DocumentID: id, Text: text, Extractions: exs}
}

func newIngestor(s store.GraphStore, policy MalformedPolicy) *Ingestor {
	return NewIngestor(s, "langextract", policy)
}

// edgesOfType filters the relationship collection by the type property.
func edgesOfType(s *store.MemoryStore, typ model.EdgeType) []store.Record {
	var out []store.Record
	for _, r := range s.Records(RelationshipCollection) {
		if r.Props["type"] == string(typ) {
			out = append(out, r)
		}
	}
	return out
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, SkipMalformed, p)

	p, err = ParsePolicy("abort")
	require.NoError(t, err)
	assert.Equal(t, AbortOnMalformed, p)

	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}

func TestIngest_SingleRecord(t *testing.T) {
	s := store.NewMemoryStore()
	g := newIngestor(s, SkipMalformed)

	report, err := g.Ingest(context.Background(), []*model.ExtractionRecord{
		doc("d1", "Aspirin for headache.", medication("Aspirin"), symptom("headache")),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 2, report.Entities)
	assert.Equal(t, 2, report.Edges)

	d, ok := s.Get(DocumentCollection, "d1")
	require.True(t, ok)
	assert.Equal(t, "Aspirin for headache.", d.Props["content"])
	assert.Equal(t, "langextract", d.Props["source"])

	aspirin, ok := s.Get(EntityCollection, "aspirin")
	require.True(t, ok)
	assert.Equal(t, "Aspirin", aspirin.Props["extraction_text"])

	edges := edgesOfType(s, model.EdgeExtraction)
	require.Len(t, edges, 2)
	assert.Equal(t, "documents/d1", edges[0].From)
	assert.Equal(t, "entities/aspirin", edges[0].To)
	assert.Equal(t, 1.0, edges[0].Props["confidence"])
	assert.Equal(t, 0.0, edges[1].Props["confidence"])
}

func TestIngest_DocumentUpsertIsIdempotent(t *testing.T) {
	s := store.NewMemoryStore()
	g := newIngestor(s, SkipMalformed)
	ctx := context.Background()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g.Materializer.Now = func() time.Time { return first }
	_, err := g.Ingest(ctx, []*model.ExtractionRecord{doc("d1", "first")})
	require.NoError(t, err)

	second := first.Add(time.Hour)
	g.Materializer.Now = func() time.Time { return second }
	_, err = g.Ingest(ctx, []*model.ExtractionRecord{doc("d1", "second")})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len(DocumentCollection))
	d, _ := s.Get(DocumentCollection, "d1")
	assert.Equal(t, "second", d.Props["content"])
	assert.Equal(t, second, d.Props["analyzed_at"])
}

func TestIngest_KnownClassesMergeAcrossDocuments(t *testing.T) {
	s := store.NewMemoryStore()
	g := newIngestor(s, SkipMalformed)

	_, err := g.Ingest(context.Background(), []*model.ExtractionRecord{
		doc("d1", "Aspirin", medication("Aspirin")),
		doc("d2", "aspirin", medication("aspirin")),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len(EntityCollection))
	edges := edgesOfType(s, model.EdgeExtraction)
	require.Len(t, edges, 2)
	assert.Equal(t, "entities/aspirin", edges[0].To)
	assert.Equal(t, "entities/aspirin", edges[1].To)
}

func TestIngest_OtherClassesNeverMerge(t *testing.T) {
	s := store.NewMemoryStore()
	g := newIngestor(s, SkipMalformed)
	rec := doc("d1", "Patient reports nausea.", symptom("nausea"))

	_, err := g.Ingest(context.Background(), []*model.ExtractionRecord{rec})
	require.NoError(t, err)
	_, err = g.Ingest(context.Background(), []*model.ExtractionRecord{rec})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len(DocumentCollection))
	assert.Equal(t, 2, s.Len(EntityCollection))
	for _, e := range s.Records(EntityCollection) {
		assert.True(t, strings.HasPrefix(e.Key, "symptom_"), e.Key)
	}
}

func TestIngest_RelationshipCountsAcrossDocuments(t *testing.T) {
	s := store.NewMemoryStore()
	g := newIngestor(s, SkipMalformed)

	_, err := g.Ingest(context.Background(), []*model.ExtractionRecord{
		doc("d1", "Drug A with Drug B", relationship("Drug A", "Drug B")),
		doc("d2", "Drug B with Drug A", relationship("Drug B", "Drug A")),
	})
	require.NoError(t, err)

	assoc := edgesOfType(s, model.EdgeAssociated)
	require.Len(t, assoc, 1)
	assert.Equal(t, "drug_a_assoc_drug_b", assoc[0].Key)
	assert.Equal(t, 2, assoc[0].Props[store.CountProperty])
	assert.Equal(t, 0.6, assoc[0].Props["confidence"])
	assert.Equal(t, 0, s.Len(EntityCollection), "relationships create no entity nodes")
}

func TestIngestReader_SkipsMalformedLines(t *testing.T) {
	s := store.NewMemoryStore()
	g := newIngestor(s, SkipMalformed)

	input := strings.Join([]string{
		`{"document_id":"d1","text":"Aspirin","extractions":[{"extraction_class":"medication","extraction_text":"Aspirin"}]}`,
		`not json`,
		``,
		`{"document_id":"d2","text":"x","extractions":[{"extraction_class":"relationship","extraction_text":"x","attributes":{"entity_1":"a"}}]}`,
		`{"document_id":"d3","text":"Warfarin","extractions":[{"extraction_class":"medication","extraction_text":"Warfarin"}]}`,
	}, "\n")

	report, err := g.IngestReader(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 2, report.Failures[0].Line)
	assert.Equal(t, 4, report.Failures[1].Line)
	assert.Equal(t, "d2", report.Failures[1].DocumentID)

	_, ok := s.Get(DocumentCollection, "d2")
	assert.False(t, ok, "rejected records write nothing")
	_, ok = s.Get(DocumentCollection, "d3")
	assert.True(t, ok)
}

func TestIngestReader_AbortStopsTheBatch(t *testing.T) {
	s := store.NewMemoryStore()
	g := newIngestor(s, AbortOnMalformed)

	input := "{\"document_id\":\"d1\",\"text\":\"t\",\"extractions\":[]}\n{broken\n{\"document_id\":\"d3\",\"text\":\"t\",\"extractions\":[]}\n"
	report, err := g.IngestReader(context.Background(), strings.NewReader(input))

	var malformed *record.MalformedRecordError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 2, malformed.Line)
	assert.Equal(t, 1, report.Documents)
	_, ok := s.Get(DocumentCollection, "d3")
	assert.False(t, ok)
}

func TestIngestReader_BlankKnownEntityIsMalformed(t *testing.T) {
	input := strings.Join([]string{
		`{"document_id":"d1","text":"x","extractions":[{"extraction_class":"medication","extraction_text":""}]}`,
		`{"document_id":"d2","text":"Warfarin","extractions":[{"extraction_class":"medication","extraction_text":"Warfarin"}]}`,
	}, "\n")

	t.Run("skip", func(t *testing.T) {
		s := store.NewMemoryStore()
		report, err := newIngestor(s, SkipMalformed).IngestReader(context.Background(), strings.NewReader(input))
		require.NoError(t, err)

		require.Len(t, report.Failures, 1)
		assert.Equal(t, 1, report.Failures[0].Line)
		assert.Equal(t, "d1", report.Failures[0].DocumentID)
		assert.Equal(t, 1, report.Documents)

		_, ok := s.Get(DocumentCollection, "d1")
		assert.False(t, ok, "no orphan document")
		_, ok = s.Get(DocumentCollection, "d2")
		assert.True(t, ok)
	})

	t.Run("abort", func(t *testing.T) {
		s := store.NewMemoryStore()
		_, err := newIngestor(s, AbortOnMalformed).IngestReader(context.Background(), strings.NewReader(input))

		var malformed *record.MalformedRecordError
		require.True(t, errors.As(err, &malformed))
		var sErr *store.StoreUnavailableError
		assert.False(t, errors.As(err, &sErr))
		assert.Equal(t, 1, malformed.Line)
	})

	t.Run("records built in code", func(t *testing.T) {
		s := store.NewMemoryStore()
		report, err := newIngestor(s, SkipMalformed).Ingest(context.Background(), []*model.ExtractionRecord{
			doc("d1", "x", medication("")),
			doc("d2", "Warfarin", medication("Warfarin")),
		})
		require.NoError(t, err)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, 1, report.Documents)
	})
}

func TestIngest_StoreFailureIsFatal(t *testing.T) {
	s := &FailingStore{MemoryStore: store.NewMemoryStore(), FailOn: EntityCollection, Err: errors.New("connection reset")}
	g := newIngestor(s, SkipMalformed)

	report, err := g.Ingest(context.Background(), []*model.ExtractionRecord{
		doc("d1", "Aspirin", medication("Aspirin")),
		doc("d2", "Warfarin", medication("Warfarin")),
	})

	var sErr *store.StoreUnavailableError
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, EntityCollection, sErr.Collection)
	assert.Equal(t, 0, report.Documents)

	_, ok := s.Get(DocumentCollection, "d1")
	assert.True(t, ok, "the document written before the failure stays")
	_, ok = s.Get(DocumentCollection, "d2")
	assert.False(t, ok)
}

func TestIngest_InvalidRecordIsReported(t *testing.T) {
	g := newIngestor(store.NewMemoryStore(), SkipMalformed)

	report, err := g.Ingest(context.Background(), []*model.ExtractionRecord{
		{DocumentID: "d1"},
		doc("d2", "ok"),
	})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Line)
	assert.Equal(t, "d1", report.Failures[0].DocumentID)
	assert.Equal(t, 1, report.Documents)
}

func TestIngestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meds0.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"document_id":"d1","text":"t","extractions":[]}`+"\n"), 0o644))

	g := newIngestor(store.NewMemoryStore(), SkipMalformed)
	report, err := g.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)

	_, err = g.IngestFile(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIngest_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := newIngestor(store.NewMemoryStore(), SkipMalformed)
	_, err := g.Ingest(ctx, []*model.ExtractionRecord{doc("d1", "t")})
	assert.ErrorIs(t, err, context.Canceled)
}
