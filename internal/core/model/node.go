package model

import "time"

type DocumentNode struct {
	Key        string    `json:"key"`
	Content    string    `json:"content"`
	AnalyzedAt time.Time `json:"analyzed_at"`
	Source     string    `json:"source"`
}

type EntityNode struct {
	Key             string                    `json:"key"`
	ExtractionClass string                    `json:"extraction_class"`
	ExtractionText  string                    `json:"extraction_text"`
	Attributes      map[string]AttributeValue `json:"attributes,omitempty"`
	CharInterval    *CharInterval             `json:"char_interval,omitempty"`
	AlignmentStatus AlignmentStatus           `json:"alignment_status,omitempty"`
}
