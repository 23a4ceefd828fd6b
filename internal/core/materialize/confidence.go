package materialize

import "github.com/agenthands/clinigraph/internal/core/model"

// ConfidenceFromAlignment scores how much an extraction can be trusted from
// how well its text aligned with the source.
func ConfidenceFromAlignment(status model.AlignmentStatus) float64 {
	switch status {
	case model.MatchExact:
		return 1.0
	case model.MatchFuzzy:
		return 0.6
	case model.MatchLesser:
		return 0.3
	default:
		return 0.0
	}
}
