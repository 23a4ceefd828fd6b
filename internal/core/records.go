package core

import (
	"github.com/agenthands/clinigraph/internal/core/model"
	"github.com/agenthands/clinigraph/internal/store"
)

func documentRecord(doc model.DocumentNode) store.Record {
	return store.Record{
		Key: doc.Key,
		Props: map[string]any{
			"content":     doc.Content,
			"analyzed_at": doc.AnalyzedAt,
			"source":      doc.Source,
		},
	}
}

func entityRecord(e model.EntityNode) store.Record {
	props := map[string]any{
		"extraction_class": e.ExtractionClass,
		"extraction_text":  e.ExtractionText,
		"attributes":       model.AttributesToMap(e.Attributes),
		"alignment_status": string(e.AlignmentStatus),
	}
	if e.CharInterval != nil {
		props["char_interval"] = *e.CharInterval
	}
	return store.Record{Key: e.Key, Props: props}
}

// edgeRecord addresses the endpoints in the given collections.
func edgeRecord(e model.Edge, fromCollection, toCollection string) store.Record {
	props := map[string]any{
		"type":             string(e.Type),
		"alignment_status": string(e.AlignmentStatus),
		"confidence":       e.Confidence,
	}
	if e.CharInterval != nil {
		props["char_interval"] = *e.CharInterval
	}
	return store.Record{
		Key:   e.Key,
		From:  store.Handle(fromCollection, e.From),
		To:    store.Handle(toCollection, e.To),
		Props: props,
	}
}
