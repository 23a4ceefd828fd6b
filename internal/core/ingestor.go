package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/clinigraph/internal/config"
	"github.com/agenthands/clinigraph/internal/core/materialize"
	"github.com/agenthands/clinigraph/internal/core/model"
	"github.com/agenthands/clinigraph/internal/core/record"
	"github.com/agenthands/clinigraph/internal/logger"
	"github.com/agenthands/clinigraph/internal/metrics"
	"github.com/agenthands/clinigraph/internal/store"
)

const (
	DocumentCollection     = "documents"
	EntityCollection       = "entities"
	RelationshipCollection = "relationships"
)

// MalformedPolicy decides what happens to the rest of a batch once a record
// is rejected.
type MalformedPolicy int

const (
	SkipMalformed MalformedPolicy = iota
	AbortOnMalformed
)

func ParsePolicy(s string) (MalformedPolicy, error) {
	switch s {
	case "", config.OnMalformedSkip:
		return SkipMalformed, nil
	case config.OnMalformedAbort:
		return AbortOnMalformed, nil
	default:
		return SkipMalformed, fmt.Errorf("unknown malformed-record policy %q", s)
	}
}

// Report summarises one ingestion run.
type Report struct {
	RunID      string                         `json:"run_id"`
	Fragments  []*model.Fragment              `json:"fragments"`
	Failures   []*record.MalformedRecordError `json:"-"`
	Documents  int                            `json:"documents"`
	Entities   int                            `json:"entities"`
	Edges      int                            `json:"edges"`
	Duplicates int                            `json:"duplicates"`
	Skipped    int                            `json:"skipped"`
}

// Ingestor parses, materializes and persists extraction records one at a
// time, in input order.
type Ingestor struct {
	Store        store.GraphStore
	Materializer *materialize.Materializer
	Policy       MalformedPolicy
}

func NewIngestor(s store.GraphStore, source string, policy MalformedPolicy) *Ingestor {
	return &Ingestor{
		Store:        s,
		Materializer: materialize.NewMaterializer(source),
		Policy:       policy,
	}
}

// Setup creates the three collections the graph lives in.
func (g *Ingestor) Setup(ctx context.Context) error {
	collections := []struct {
		name   string
		isEdge bool
	}{
		{DocumentCollection, false},
		{EntityCollection, false},
		{RelationshipCollection, true},
	}
	for _, c := range collections {
		if err := g.Store.EnsureCollection(ctx, c.name, c.isEdge); err != nil {
			metrics.StoreErrors.WithLabelValues("ensure_collection").Inc()
			return err
		}
	}
	return nil
}

// Ingest persists already decoded records. Record numbers in failures are
// 1-based positions in recs.
func (g *Ingestor) Ingest(ctx context.Context, recs []*model.ExtractionRecord) (*Report, error) {
	i := 0
	return g.run(ctx, func() (*model.ExtractionRecord, int, error) {
		if i >= len(recs) {
			return nil, 0, io.EOF
		}
		i++
		rec := recs[i-1]
		if err := record.Validate(rec); err != nil {
			docID := ""
			if rec != nil {
				docID = rec.DocumentID
			}
			return nil, i, &record.MalformedRecordError{Line: i, DocumentID: docID, Err: err}
		}
		return rec, i, nil
	})
}

// IngestReader streams line-delimited records from r.
func (g *Ingestor) IngestReader(ctx context.Context, r io.Reader) (*Report, error) {
	sc := record.NewScanner(r)
	return g.run(ctx, func() (*model.ExtractionRecord, int, error) {
		rec, err := sc.Next()
		return rec, sc.Line(), err
	})
}

func (g *Ingestor) IngestFile(ctx context.Context, path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	report, err := g.IngestReader(ctx, f)
	if err != nil {
		return report, fmt.Errorf("ingest %s: %w", path, err)
	}
	return report, nil
}

type nextFunc func() (*model.ExtractionRecord, int, error)

func (g *Ingestor) run(ctx context.Context, next nextFunc) (*Report, error) {
	start := time.Now()
	defer func() { metrics.IngestDuration.Observe(time.Since(start).Seconds()) }()

	report := &Report{RunID: uuid.New().String(), Fragments: []*model.Fragment{}}
	logger.Info("Ingestion started", "run_id", report.RunID)

	if err := g.Setup(ctx); err != nil {
		return report, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		rec, line, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil {
			err = g.ingestRecord(ctx, report, rec, line)
		}
		if err == nil {
			continue
		}

		var malformed *record.MalformedRecordError
		if !errors.As(err, &malformed) {
			return report, err
		}
		report.Failures = append(report.Failures, malformed)
		report.Skipped++
		metrics.RecordsSkipped.WithLabelValues("malformed").Inc()
		if g.Policy == AbortOnMalformed {
			logger.Error("Aborting ingestion on malformed record", "run_id", report.RunID, "line", malformed.Line, "document_id", malformed.DocumentID, "error", malformed.Err)
			return report, malformed
		}
		logger.Warn("Skipping malformed record", "run_id", report.RunID, "line", malformed.Line, "document_id", malformed.DocumentID, "error", malformed.Err)
	}

	logger.Info("Ingestion finished",
		"run_id", report.RunID,
		"documents", report.Documents,
		"entities", report.Entities,
		"edges", report.Edges,
		"duplicates", report.Duplicates,
		"skipped", report.Skipped,
	)
	return report, nil
}

func (g *Ingestor) ingestRecord(ctx context.Context, report *Report, rec *model.ExtractionRecord, line int) error {
	frag, err := g.Materializer.Build(rec)
	if err != nil {
		return &record.MalformedRecordError{Line: line, DocumentID: rec.DocumentID, Err: err}
	}
	if err := g.Persist(ctx, frag); err != nil {
		return err
	}
	report.add(frag)
	return nil
}

// Persist writes one fragment: the document, then its entities, then its
// edges. The steps are not atomic; a failure part way leaves what was
// already written and a re-run converges because every write is an upsert.
func (g *Ingestor) Persist(ctx context.Context, frag *model.Fragment) error {
	if err := g.Store.UpsertDocument(ctx, DocumentCollection, documentRecord(frag.Document), true); err != nil {
		metrics.StoreErrors.WithLabelValues("upsert_document").Inc()
		return err
	}

	if len(frag.Entities) > 0 {
		entities := make([]store.Record, 0, len(frag.Entities))
		for _, e := range frag.Entities {
			entities = append(entities, entityRecord(e))
		}
		if err := g.Store.BulkUpsertMerge(ctx, EntityCollection, entities, store.MergeReplace); err != nil {
			metrics.StoreErrors.WithLabelValues("bulk_upsert").Inc()
			return err
		}
	}

	var extracted, associated []store.Record
	for _, e := range frag.Edges {
		switch e.Type {
		case model.EdgeExtraction:
			extracted = append(extracted, edgeRecord(e, DocumentCollection, EntityCollection))
		case model.EdgeAssociated:
			associated = append(associated, edgeRecord(e, EntityCollection, EntityCollection))
		}
	}
	if len(extracted) > 0 {
		if err := g.Store.BulkUpsertMerge(ctx, RelationshipCollection, extracted, store.MergeReplace); err != nil {
			metrics.StoreErrors.WithLabelValues("bulk_upsert").Inc()
			return err
		}
	}
	if len(associated) > 0 {
		if err := g.Store.BulkUpsertMerge(ctx, RelationshipCollection, associated, store.MergeIncrementCount); err != nil {
			metrics.StoreErrors.WithLabelValues("bulk_upsert").Inc()
			return err
		}
	}

	metrics.RecordsIngested.Inc()
	metrics.GraphNodesUpserted.WithLabelValues(DocumentCollection).Inc()
	metrics.GraphNodesUpserted.WithLabelValues(EntityCollection).Add(float64(len(frag.Entities)))
	metrics.GraphEdgesUpserted.WithLabelValues(string(model.EdgeExtraction)).Add(float64(len(extracted)))
	metrics.GraphEdgesUpserted.WithLabelValues(string(model.EdgeAssociated)).Add(float64(len(associated)))
	metrics.DuplicateEntities.Add(float64(len(frag.Duplicates)))
	return nil
}

func (r *Report) add(frag *model.Fragment) {
	r.Fragments = append(r.Fragments, frag)
	r.Documents++
	r.Entities += len(frag.Entities)
	r.Edges += len(frag.Edges)
	r.Duplicates += len(frag.Duplicates)
}
