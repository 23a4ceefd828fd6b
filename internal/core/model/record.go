package model

// AlignmentStatus describes how well an extraction's text maps onto a literal
// interval of its source document.
type AlignmentStatus string

const (
	MatchExact  AlignmentStatus = "match_exact"
	MatchFuzzy  AlignmentStatus = "match_fuzzy"
	MatchLesser AlignmentStatus = "match_lesser"
)

// RelationshipClass marks extractions that describe an association between
// two other entities rather than an entity of their own.
const RelationshipClass = "relationship"

// CharInterval is a [StartPos, EndPos) offset pair into the source text,
// counted in characters.
type CharInterval struct {
	StartPos int `json:"start_pos"`
	EndPos   int `json:"end_pos"`
}

// Extraction is one labelled span produced by the extraction model.
type Extraction struct {
	ExtractionClass string                    `json:"extraction_class" validate:"required"`
	ExtractionText  string                    `json:"extraction_text"`
	Attributes      map[string]AttributeValue `json:"attributes"`
	CharInterval    *CharInterval             `json:"char_interval"`
	AlignmentStatus AlignmentStatus           `json:"alignment_status"`
}

// IsRelationship reports whether the extraction describes an entity-to-entity
// association.
func (e Extraction) IsRelationship() bool {
	return e.ExtractionClass == RelationshipClass
}

// ExtractionRecord is one source document plus everything extracted from it.
// It is the unit of the line-delimited input format.
type ExtractionRecord struct {
	DocumentID  string       `json:"document_id" validate:"required"`
	Text        string       `json:"text" validate:"required"`
	Extractions []Extraction `json:"extractions" validate:"required,dive"`
}
