package watchlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratio(a, b string) float64 {
	return Similarity(strings.Split(a, ""), strings.Split(b, ""))
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, ratio("abc1234", "abc1234"), 1e-9)
	// six of seven characters align: 2*6/14
	assert.InDelta(t, 12.0/14.0, ratio("abc1234", "abc1z34"), 1e-9)
	assert.InDelta(t, 0.0, ratio("abc", "xyz"), 1e-9)
}

func TestExactMatch(t *testing.T) {
	t.Parallel()

	m := New([]string{"ABC1234", "xyz987"}, 0.85)
	got := m.Match("abc1234")
	assert.True(t, got.Found())
	assert.False(t, got.Fuzzy())
	assert.Equal(t, "abc1234", got.Entry)
	assert.Nil(t, got.FuzzyScore)

	got = m.Match(" XYZ987 ")
	assert.Equal(t, "xyz987", got.Entry)
}

func TestFuzzyMatch(t *testing.T) {
	t.Parallel()

	m := New([]string{"zzz0000", "abc1234"}, 0.85)
	got := m.Match("ABC1Z34")
	require.True(t, got.Found())
	require.True(t, got.Fuzzy())
	assert.Equal(t, "abc1234", got.Entry)
	assert.InDelta(t, 12.0/14.0, *got.FuzzyScore, 1e-9)
}

func TestFuzzyBelowThreshold(t *testing.T) {
	t.Parallel()

	m := New([]string{"abc1234"}, 0.9)
	assert.False(t, m.Match("abc1z34").Found())
}

func TestFuzzyDisabled(t *testing.T) {
	t.Parallel()

	m := New([]string{"abc1234"}, 0)
	assert.False(t, m.Match("abc1z34").Found())
	assert.True(t, m.Match("abc1234").Found())
}

func TestBestFuzzyEntryWins(t *testing.T) {
	t.Parallel()

	m := New([]string{"abc1299", "abc1235"}, 0.7)
	got := m.Match("abc1234")
	require.True(t, got.Found())
	assert.Equal(t, "abc1235", got.Entry)
}

func TestEmptyInputs(t *testing.T) {
	t.Parallel()

	var nilMatcher *Matcher
	assert.False(t, nilMatcher.Match("abc").Found())
	assert.False(t, New(nil, 0.85).Match("abc").Found())
	assert.False(t, New([]string{"abc"}, 0.85).Match("  ").Found())
}

func TestNewNormalisesEntries(t *testing.T) {
	t.Parallel()

	m := New([]string{" ABC ", "abc", "", "Def"}, 0.85)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"abc", "def"}, m.entries)
}
