package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySystematicTense(t *testing.T) {
	cat, subtype := Classify("動詞時態錯誤", "the past tense should have been used here", SeverityMajor)
	assert.Equal(t, CategorySystematic, cat)
	assert.Equal(t, "tense", subtype)
}

func TestClassifyMinorSeverityForcesEnhancement(t *testing.T) {
	cat, subtype := Classify("awkward tense usage", "technically correct but about tense", SeverityMinor)
	assert.Equal(t, CategoryEnhancement, cat)
	assert.Equal(t, "style", subtype)
}

func TestClassifyNaturalnessKeywordForcesEnhancement(t *testing.T) {
	cat, subtype := Classify("phrasing", "this sounds awkward even though every word is correct", SeverityMajor)
	assert.Equal(t, CategoryEnhancement, cat)
	assert.Equal(t, "naturalness", subtype)
}

func TestClassifyIsolatedPreposition(t *testing.T) {
	cat, subtype := Classify("wrong preposition", "arrive to vs arrive at", SeverityMajor)
	assert.Equal(t, CategoryIsolated, cat)
	assert.Equal(t, "preposition", subtype)
}

func TestClassifyFallsBackToUnclassified(t *testing.T) {
	cat, subtype := Classify("nothing recognizable here", "truly nothing", SeverityMajor)
	assert.Equal(t, CategoryOther, cat)
	assert.Equal(t, "unclassified", subtype)
}

func TestCategoryForResolvesSubtype(t *testing.T) {
	cat, ok := CategoryFor("spelling")
	assert.True(t, ok)
	assert.Equal(t, CategoryIsolated, cat)
}

func TestCategoryForUnknownSubtype(t *testing.T) {
	_, ok := CategoryFor("no-such-subtype")
	assert.False(t, ok)
}

func TestCategoryDisplayOrderIsFixed(t *testing.T) {
	order := CategoryDisplayOrder()
	assert.Equal(t, []Category{CategorySystematic, CategoryIsolated, CategoryEnhancement, CategoryOther}, order)
}
