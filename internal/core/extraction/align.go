package extraction

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agenthands/clinigraph/internal/core/model"
)

// minFuzzyBytes keeps bitap from matching very short spans anywhere.
const minFuzzyBytes = 4

// Align locates span in source and grades how well it was found. Offsets are
// rune positions. Spans that cannot be placed get no interval and an empty
// status.
func Align(source, span string) (*model.CharInterval, model.AlignmentStatus) {
	span = strings.TrimSpace(span)
	if span == "" || source == "" {
		return nil, ""
	}

	if idx := strings.Index(source, span); idx >= 0 {
		return interval(source, idx, len(span)), model.MatchExact
	}

	// strings.ToLower maps rune for rune, so rune offsets found in the
	// lowered text are offsets in source even where byte lengths differ.
	lowerSource := strings.ToLower(source)
	lowerSpan := strings.ToLower(span)
	if idx := strings.Index(lowerSource, lowerSpan); idx >= 0 {
		return interval(lowerSource, idx, len(lowerSpan)), model.MatchFuzzy
	}

	dmp := diffmatchpatch.New()
	if len(lowerSpan) >= minFuzzyBytes && len(lowerSpan) <= dmp.MatchMaxBits {
		// Position is irrelevant; only the error rate should decide.
		dmp.MatchThreshold = 0.25
		dmp.MatchDistance = 100 * len(lowerSource)
		if idx := dmp.MatchMain(lowerSource, lowerSpan, 0); idx >= 0 {
			n := len(lowerSpan)
			if idx+n > len(lowerSource) {
				n = len(lowerSource) - idx
			}
			return interval(lowerSource, idx, n), model.MatchFuzzy
		}
	}

	if idx, n := longestTokenRun(lowerSource, strings.Fields(lowerSpan)); idx >= 0 {
		return interval(lowerSource, idx, n), model.MatchLesser
	}
	return nil, ""
}

// longestTokenRun finds the longest run of consecutive tokens that occurs
// verbatim in source, shorter than the full span. Single tokens must be at
// least three bytes long.
func longestTokenRun(source string, tokens []string) (int, int) {
	for k := len(tokens) - 1; k >= 1; k-- {
		for start := 0; start+k <= len(tokens); start++ {
			phrase := strings.Join(tokens[start:start+k], " ")
			if k == 1 && len(phrase) < 3 {
				continue
			}
			if idx := strings.Index(source, phrase); idx >= 0 {
				return idx, len(phrase)
			}
		}
	}
	return -1, 0
}

func interval(s string, byteStart, byteLen int) *model.CharInterval {
	start := utf8.RuneCountInString(s[:byteStart])
	return &model.CharInterval{
		StartPos: start,
		EndPos:   start + utf8.RuneCountInString(s[byteStart:byteStart+byteLen]),
	}
}
