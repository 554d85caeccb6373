package models

import "strings"

// Severity is the grading severity attached to one error_analysis entry.
type Severity string

const (
	SeverityMinor Severity = "minor"
	SeverityMajor Severity = "major"
)

// Classify implements the taxonomy's classification rule:
//
//  1. If severity is minor, or the text hits an Enhancement keyword, the
//     category is Enhancement regardless of what else matches; scan
//     Enhancement subtypes and fall back to "style" if none hit.
//  2. Otherwise scan Systematic, then Isolated, then Other subtypes in that
//     fixed order; the first keyword match wins.
//  3. If nothing matches at all, the result is (Other, "unclassified").
//
// keyPoint and explanation are concatenated and lower-cased before scanning,
// matching the source's "keypoint + explanation" scan target.
func Classify(keyPoint, explanation string, severity Severity) (Category, string) {
	text := strings.ToLower(keyPoint + " " + explanation)

	if severity == SeverityMinor || anyKeywordHit(text, CategoryEnhancement) {
		for _, s := range subtypesFor(CategoryEnhancement) {
			if keywordHit(text, s) {
				return CategoryEnhancement, s.Name
			}
		}
		return CategoryEnhancement, "style"
	}

	for _, cat := range []Category{CategorySystematic, CategoryIsolated, CategoryOther} {
		for _, s := range subtypesFor(cat) {
			if keywordHit(text, s) {
				return cat, s.Name
			}
		}
	}

	return CategoryOther, "unclassified"
}

func anyKeywordHit(text string, cat Category) bool {
	for _, s := range subtypesFor(cat) {
		if keywordHit(text, s) {
			return true
		}
	}
	return false
}

// CategoryFor resolves a subtype name back to its owning category.
func CategoryFor(subtypeName string) (Category, bool) {
	s, ok := SubtypeByName(subtypeName)
	if !ok {
		return "", false
	}
	return s.Category, true
}
