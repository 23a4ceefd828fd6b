package materialize

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/agenthands/clinigraph/internal/core/dedupe"
	"github.com/agenthands/clinigraph/internal/core/model"
	"github.com/agenthands/clinigraph/internal/core/record"
	"github.com/agenthands/clinigraph/internal/logger"
)

// Materializer turns extraction records into graph fragments. It holds no
// state between records; cross-document identity lives in the store.
type Materializer struct {
	Keys   *dedupe.KeyDeriver
	Source string
	Now    func() time.Time
}

func NewMaterializer(source string) *Materializer {
	return &Materializer{
		Keys:   dedupe.NewKeyDeriver(),
		Source: source,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Build derives the document node, entity nodes and edges of one record.
// It fails when a relationship extraction does not name both endpoints.
func (m *Materializer) Build(rec *model.ExtractionRecord) (*model.Fragment, error) {
	frag := &model.Fragment{
		Document: model.DocumentNode{
			Key:        rec.DocumentID,
			Content:    rec.Text,
			AnalyzedAt: m.Now(),
			Source:     m.Source,
		},
		Entities: []model.EntityNode{},
		Edges:    []model.Edge{},
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	for i, ex := range rec.Extractions {
		if ex.IsRelationship() {
			edge, err := AssociationEdge(ex)
			if err != nil {
				return nil, fmt.Errorf("extraction %d: %w", i, err)
			}
			frag.Edges = append(frag.Edges, edge)
			continue
		}

		key, err := m.Keys.EntityKey(ex.ExtractionClass, ex.ExtractionText)
		if err != nil {
			return nil, fmt.Errorf("extraction %d: %w", i, err)
		}
		if !seen.Add(key) {
			logger.Warn("Duplicate entity in record", "document_id", rec.DocumentID, "key", key, "extraction", i)
			frag.Duplicates = append(frag.Duplicates, key)
			continue
		}

		frag.Entities = append(frag.Entities, model.EntityNode{
			Key:             key,
			ExtractionClass: ex.ExtractionClass,
			ExtractionText:  ex.ExtractionText,
			Attributes:      ex.Attributes,
			CharInterval:    ex.CharInterval,
			AlignmentStatus: ex.AlignmentStatus,
		})
		frag.Edges = append(frag.Edges, model.Edge{
			Key:             ExtractionEdgeKey(rec.DocumentID, key),
			Type:            model.EdgeExtraction,
			From:            rec.DocumentID,
			To:              key,
			CharInterval:    ex.CharInterval,
			AlignmentStatus: ex.AlignmentStatus,
			Confidence:      ConfidenceFromAlignment(ex.AlignmentStatus),
		})
	}

	return frag, nil
}

// ExtractionEdgeKey identifies the document->entity edge; re-ingesting the
// same pair overwrites it.
func ExtractionEdgeKey(documentKey, entityKey string) string {
	return documentKey + "__" + entityKey
}

// AssociationEdge builds the entity->entity edge of a relationship
// extraction. The key is order independent; From and To keep the order the
// extraction named them in.
func AssociationEdge(ex model.Extraction) (model.Edge, error) {
	a, b, err := record.RelationshipEndpoints(ex)
	if err != nil {
		return model.Edge{}, err
	}
	from, to := dedupe.Normalize(a), dedupe.Normalize(b)
	return model.Edge{
		Key:             dedupe.RelationshipKey(from, to),
		Type:            model.EdgeAssociated,
		From:            from,
		To:              to,
		CharInterval:    ex.CharInterval,
		AlignmentStatus: ex.AlignmentStatus,
		Confidence:      ConfidenceFromAlignment(ex.AlignmentStatus),
	}, nil
}
