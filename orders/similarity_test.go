package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Full Cream-Milk (500ml)!! ", "full creammilk 500ml"},
		{"A\t\tB\nC", "a b c"},
		{"xyz-unrelated-999", "xyzunrelated999"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.input), "CleanText(%q)", tt.input)
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 100.0, Ratio("abc", "abc"))
	assert.Equal(t, 75.0, Ratio("abcd", "abce"))
	assert.Equal(t, 0.0, Ratio("", "abc"))
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
	assert.Equal(t, 75.0, Ratio("café", "cafe"))
	assert.Equal(t, 75.0, Ratio("abcd", "acbd"))
}

func TestTokenSortRatio(t *testing.T) {
	assert.Equal(t, 100.0, TokenSortRatio("milk full cream", "full cream milk"))

	score := TokenSortRatio(CleanText("full cream milk 500 ml"), CleanText("Full Cream Milk 500ml"))
	assert.InDelta(t, 88.37, score, 0.01)

	assert.Less(t, TokenSortRatio(CleanText("xyz-unrelated-999"), CleanText("Full Cream Milk 500ml")), 80.0)
}

func TestTokenSetRatio(t *testing.T) {
	assert.Equal(t, 100.0, TokenSetRatio("aavin depot", "aavin depot 1"))
	assert.Equal(t, 0.0, TokenSetRatio("", "x"))
	assert.Less(t, TokenSetRatio("retail shop", "hospital supply"), 50.0)
}

func TestNameScore(t *testing.T) {
	assert.Equal(t, 100.0, NameScore("Aavin Depot", "AAVIN DEPOT 1"))
	assert.Greater(t, NameScore("Retail Shop 23", "Retail Shop 24"), 70.0)
}
