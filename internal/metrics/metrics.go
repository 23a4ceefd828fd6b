package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	RecordsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinigraph_records_ingested_total",
		Help: "Extraction records persisted to the graph store",
	})

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinigraph_records_skipped_total",
			Help: "Extraction records rejected before persistence",
		},
		[]string{"reason"},
	)

	DuplicateEntities = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinigraph_duplicate_entities_total",
		Help: "Entity extractions dropped because their key repeated within a record",
	})

	GraphNodesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinigraph_nodes_upserted_total",
			Help: "Nodes written by ingestion",
		},
		[]string{"collection"},
	)

	GraphEdgesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinigraph_edges_upserted_total",
			Help: "Edges written by ingestion",
		},
		[]string{"edge_type"},
	)

	// Store metrics
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinigraph_store_errors_total",
			Help: "Graph store operations that failed",
		},
		[]string{"op"},
	)

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clinigraph_ingest_duration_seconds",
		Help:    "Wall time of one ingestion run",
		Buckets: prometheus.DefBuckets,
	})

	// Extraction metrics
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinigraph_llm_requests_total",
			Help: "Extraction requests sent to the language model",
		},
		[]string{"profile", "status"},
	)
)
