package dedupe

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// RelationshipSeparator joins the two endpoints of an association key.
// Endpoints go through Normalize first, so "Drug A" and "Drug B" give
// "drug_a_assoc_drug_b"; spaces become underscores, they are not removed.
const RelationshipSeparator = "_assoc_"

// ErrBlankText is returned for a known-class entity with blank text, which
// has nothing to merge on.
var ErrBlankText = errors.New("known-class extraction has blank text")

const (
	suffixAlphabet = "0123456789"
	suffixLength   = 6
)

// KnownClasses are deduplicated across documents by their normalised text.
var KnownClasses = mapset.NewThreadUnsafeSet("medication", "diagnosis", "condition", "treatment")

// SuffixFunc returns a random suffix for keys of classes outside KnownClasses.
type SuffixFunc func() (string, error)

// NumericSuffix draws a random decimal suffix. Collisions are possible and
// tolerated.
func NumericSuffix() (string, error) {
	return gonanoid.Generate(suffixAlphabet, suffixLength)
}

// Normalize lower-cases text and replaces each space with an underscore.
func Normalize(text string) string {
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}

// IsKnownClass reports whether entities of class share one node per
// normalised text across all documents.
func IsKnownClass(class string) bool {
	return KnownClasses.Contains(class)
}

// KeyDeriver derives entity keys.
type KeyDeriver struct {
	Suffix SuffixFunc
}

func NewKeyDeriver() *KeyDeriver {
	return &KeyDeriver{Suffix: NumericSuffix}
}

// EntityKey returns the normalised text for known classes and
// class + "_" + random suffix for everything else.
//
// Non-known classes are never merged, not even when the same note is
// ingested twice; each ingestion mints new nodes for them.
func (d *KeyDeriver) EntityKey(class, text string) (string, error) {
	if IsKnownClass(class) {
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("%w: class %q", ErrBlankText, class)
		}
		return Normalize(text), nil
	}

	suffix := d.Suffix
	if suffix == nil {
		suffix = NumericSuffix
	}
	s, err := suffix()
	if err != nil {
		return "", fmt.Errorf("failed to generate key suffix: %w", err)
	}
	return class + "_" + s, nil
}

// RelationshipKey returns the order-independent key of the association
// between two already normalised endpoints.
func RelationshipKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + RelationshipSeparator + pair[1]
}
