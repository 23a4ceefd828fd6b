package server

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agenthands/clinigraph/internal/config"
	"github.com/agenthands/clinigraph/internal/core"
	"github.com/agenthands/clinigraph/internal/core/record"
	"github.com/agenthands/clinigraph/internal/logger"
	"github.com/agenthands/clinigraph/internal/store"
)

type Server struct {
	Store  store.GraphStore
	Source string
	Policy core.MalformedPolicy

	// Relationship counts assume one ingestion at a time.
	mu sync.Mutex
}

func NewServer(s store.GraphStore, cfg config.IngestConfig) (*Server, error) {
	policy, err := core.ParsePolicy(cfg.OnMalformed)
	if err != nil {
		return nil, err
	}
	return &Server{
		Store:  s,
		Source: cfg.Source,
		Policy: policy,
	}, nil
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/ingest", s.Ingest)
	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type FailureResponse struct {
	Line       int    `json:"line"`
	DocumentID string `json:"document_id,omitempty"`
	Error      string `json:"error"`
}

type IngestResponse struct {
	RunID      string            `json:"run_id"`
	Documents  int               `json:"documents"`
	Entities   int               `json:"entities"`
	Edges      int               `json:"edges"`
	Duplicates int               `json:"duplicates"`
	Skipped    int               `json:"skipped"`
	Failures   []FailureResponse `json:"failures"`
}

// Ingest takes a line-delimited body of extraction records. The
// on_malformed query parameter overrides the configured policy.
func (s *Server) Ingest(c *gin.Context) {
	policy := s.Policy
	if q := c.Query("on_malformed"); q != "" {
		p, err := core.ParsePolicy(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		policy = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ingestor := core.NewIngestor(s.Store, s.Source, policy)
	report, err := ingestor.IngestReader(c.Request.Context(), c.Request.Body)
	resp := newIngestResponse(report)

	var malformed *record.MalformedRecordError
	var unavailable *store.StoreUnavailableError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.As(err, &malformed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "report": resp})
	case errors.As(err, &unavailable):
		logger.Error("Graph store unavailable", "run_id", resp.RunID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph store unavailable", "report": resp})
	default:
		logger.Error("Ingestion failed", "run_id", resp.RunID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed", "report": resp})
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func newIngestResponse(report *core.Report) IngestResponse {
	resp := IngestResponse{Failures: []FailureResponse{}}
	if report == nil {
		return resp
	}
	resp.RunID = report.RunID
	resp.Documents = report.Documents
	resp.Entities = report.Entities
	resp.Edges = report.Edges
	resp.Duplicates = report.Duplicates
	resp.Skipped = report.Skipped
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, FailureResponse{
			Line:       f.Line,
			DocumentID: f.DocumentID,
			Error:      f.Err.Error(),
		})
	}
	return resp
}
