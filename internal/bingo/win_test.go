package bingo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fixedCard is a valid card with predictable values.
var fixedCard = Card{
	{1, 16, 31, 46, 61},
	{2, 17, 32, 47, 62},
	{3, 18, Free, 48, 63},
	{4, 19, 34, 49, 64},
	{5, 20, 35, 50, 65},
}

func marks(nums ...int) map[int]bool {
	m := make(map[int]bool, len(nums))
	for _, n := range nums {
		m[n] = true
	}
	return m
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		selected map[int]bool
		want     Pattern
		ok       bool
	}{
		{"empty", marks(), PatternNone, false},
		{"first row", marks(1, 16, 31, 46, 61), PatternRow, true},
		{"middle row uses free cell", marks(3, 18, 48, 63), PatternRow, true},
		{"middle row missing one", marks(3, 18, 48), PatternNone, false},
		{"first column", marks(1, 2, 3, 4, 5), PatternColumn, true},
		{"center column uses free cell", marks(31, 32, 34, 35), PatternColumn, true},
		{"main diagonal", marks(1, 17, 49, 65), PatternDiagonal, true},
		{"anti diagonal", marks(61, 47, 19, 5), PatternDiagonal, true},
		{"four corners only", marks(1, 61, 5, 65), PatternCorners, true},
		{"three corners", marks(1, 61, 5), PatternNone, false},
		{"numbers not on card", marks(70, 71, 72, 73, 74), PatternNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Evaluate(fixedCard, tt.selected)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, CheckWin(fixedCard, tt.selected))
		})
	}
}

func TestCheckWin_RowMissingCorner(t *testing.T) {
	// top row and corners are the only candidates, and 65 is never marked
	assert.False(t, CheckWin(fixedCard, marks(1, 16, 31, 46, 5)))
	assert.False(t, CheckWin(fixedCard, marks(1, 61, 5)))
	assert.True(t, CheckWin(fixedCard, marks(1, 61, 5, 65)))
}

func TestCheckWin_DoesNotMutate(t *testing.T) {
	selected := marks(1, 16, 31, 46, 61)
	card := fixedCard

	assert.True(t, CheckWin(card, selected))
	assert.True(t, CheckWin(card, selected))
	assert.Len(t, selected, 5)
	assert.False(t, selected[Free])
	assert.Equal(t, fixedCard, card)
}
