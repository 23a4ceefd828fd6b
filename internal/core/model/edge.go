package model

type EdgeType string

const (
	// EdgeExtraction links a document to an entity extracted from it.
	EdgeExtraction EdgeType = "extraction"
	// EdgeAssociated links two entities named by a relationship extraction.
	EdgeAssociated EdgeType = "associated"
)

// Edge is either a document->entity or an entity->entity edge. From and To
// hold node keys; which collection they live in follows from Type.
type Edge struct {
	Key             string          `json:"key"`
	Type            EdgeType        `json:"type"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	CharInterval    *CharInterval   `json:"char_interval,omitempty"`
	AlignmentStatus AlignmentStatus `json:"alignment_status,omitempty"`
	Confidence      float64         `json:"confidence"`
}

// Fragment is everything one extraction record contributes to the graph.
type Fragment struct {
	Document DocumentNode `json:"document"`
	Entities []EntityNode `json:"entities"`
	Edges    []Edge       `json:"edges"`
	// Duplicates lists entity keys seen more than once within the record.
	Duplicates []string `json:"duplicates,omitempty"`
}
