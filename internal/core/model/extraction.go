package model

// ExtractedSpan is one span as returned by the extraction model, before it
// is aligned against the source text.
type ExtractedSpan struct {
	ExtractionClass string                    `json:"extraction_class"`
	ExtractionText  string                    `json:"extraction_text"`
	Attributes      map[string]AttributeValue `json:"attributes,omitempty"`
}

// ExtractedSpans is the JSON envelope the extraction prompt asks for.
type ExtractedSpans struct {
	Extractions []ExtractedSpan `json:"extractions"`
}
