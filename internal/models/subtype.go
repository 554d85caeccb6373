package models

import "strings"

// Subtype describes one entry in the open-ended error-subtype set: a name,
// a human display name, the category it belongs to, the keyword list
// Classify scans against, and example phrases.
type Subtype struct {
	Name        string
	DisplayName string
	Category    Category
	Keywords    []string
	Examples    []string
}

// subtypeTable is seeded once at package init and never mutated; it mirrors
// the taxonomy's keyword groupings one-for-one.
var subtypeTable = []Subtype{
	{
		Name: "verb_conjugation", DisplayName: "Verb Conjugation", Category: CategorySystematic,
		Keywords: []string{"conjugation", "verb form", "third person singular", "subject-verb agreement", "-s ending", "-ed ending"},
		Examples: []string{"he go -> he goes", "she walk -> she walks"},
	},
	{
		Name: "tense", DisplayName: "Tense", Category: CategorySystematic,
		Keywords: []string{"tense", "past tense", "present tense", "future tense", "perfect tense", "progressive", "yesterday", "tomorrow"},
		Examples: []string{"I go yesterday -> I went yesterday"},
	},
	{
		Name: "voice", DisplayName: "Voice", Category: CategorySystematic,
		Keywords: []string{"passive voice", "active voice", "was done", "were made", "by the"},
		Examples: []string{"the cake made by her -> the cake was made by her"},
	},
	{
		Name: "agreement", DisplayName: "Agreement", Category: CategorySystematic,
		Keywords: []string{"agreement", "plural", "singular", "number mismatch", "countable", "uncountable"},
		Examples: []string{"three apple -> three apples"},
	},
	{
		Name: "vocabulary", DisplayName: "Vocabulary", Category: CategoryIsolated,
		Keywords: []string{"word choice", "vocabulary", "wrong word", "synonym", "meaning"},
		Examples: []string{"big rain -> heavy rain"},
	},
	{
		Name: "collocation", DisplayName: "Collocation", Category: CategoryIsolated,
		Keywords: []string{"collocation", "go together", "natural pairing", "common phrase"},
		Examples: []string{"make a photo -> take a photo"},
	},
	{
		Name: "preposition", DisplayName: "Preposition", Category: CategoryIsolated,
		Keywords: []string{"preposition", "in/on/at", "wrong preposition"},
		Examples: []string{"arrive to the airport -> arrive at the airport"},
	},
	{
		Name: "spelling", DisplayName: "Spelling", Category: CategoryIsolated,
		Keywords: []string{"spelling", "typo", "misspelled", "spelled incorrectly"},
		Examples: []string{"recieve -> receive"},
	},
	{
		Name: "naturalness", DisplayName: "Naturalness", Category: CategoryEnhancement,
		Keywords: []string{"naturalness", "unnatural", "sounds awkward", "not how a native speaker", "more natural"},
		Examples: []string{"I am agree -> I agree"},
	},
	{
		Name: "style", DisplayName: "Style", Category: CategoryEnhancement,
		Keywords: []string{"style", "awkward", "wordy", "could be more concise", "phrasing"},
		Examples: []string{"due to the fact that -> because"},
	},
	{
		Name: "omission", DisplayName: "Omission", Category: CategoryOther,
		Keywords: []string{"missing", "omitted", "left out", "dropped"},
		Examples: []string{"I going -> I am going"},
	},
	{
		Name: "misunderstanding", DisplayName: "Misunderstanding", Category: CategoryOther,
		Keywords: []string{"misunderstood", "misread", "wrong meaning", "misinterpreted"},
		Examples: []string{},
	},
}

func subtypesFor(cat Category) []Subtype {
	var out []Subtype
	for _, s := range subtypeTable {
		if s.Category == cat {
			out = append(out, s)
		}
	}
	return out
}

// SubtypeByName looks up a seeded subtype by its name.
func SubtypeByName(name string) (Subtype, bool) {
	for _, s := range subtypeTable {
		if s.Name == name {
			return s, true
		}
	}
	return Subtype{}, false
}

// keywordHit reports whether text (already lower-cased by the caller)
// contains any of the subtype's keywords.
func keywordHit(text string, s Subtype) bool {
	for _, kw := range s.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

var adviceTable = map[Category]string{
	CategorySystematic:  "This is a recurring grammar pattern. Drill the rule explicitly rather than memorizing this one sentence.",
	CategoryIsolated:    "This is a one-off word-level slip. A quick flashcard review of the specific word or phrase should fix it.",
	CategoryEnhancement: "Your answer was understandable but not how a native speaker would phrase it. Study the suggested rewording.",
	CategoryOther:       "Review the correction and make sure you understood what the sentence was asking for.",
}

// AdviceFor returns learning advice for a category/subtype pair. The
// category-level advice covers every subtype in that category; subtype is
// accepted for forward compatibility with more granular advice but is
// currently unused, matching the source's category-level advice table.
func AdviceFor(cat Category, subtype string) string {
	if advice, ok := adviceTable[cat]; ok {
		return advice
	}
	return adviceTable[CategoryOther]
}
