package bingo

import (
	"math/rand/v2"
)

const (
	// Size is the width and height of a card.
	Size = 5
	// Free is the wildcard value placed in the center cell.
	Free = 0
	// MaxNumber is the highest number that can be drawn.
	MaxNumber = 75
	// ColumnSpan is how many numbers each column draws from.
	ColumnSpan = 15

	center = Size / 2
)

// Card is a 5x5 bingo grid stored row-major. Card[2][2] is always Free.
type Card [Size][Size]int

// ColumnRange returns the inclusive number range of column c.
func ColumnRange(c int) (lo, hi int) {
	return ColumnSpan*c + 1, ColumnSpan*c + ColumnSpan
}

// GenerateCard builds a card from rng. A nil rng uses the global source.
//
// Columns are generated independently (B 1-15, I 16-30, N 31-45, G 46-60, O 61-75),
// each one shuffled, with the N column getting four numbers around the Free cell.
// The column-major result is transposed into rows.
func GenerateCard(rng *rand.Rand) Card {
	perm := rand.Perm
	if rng != nil {
		perm = rng.Perm
	}

	var columns [Size][Size]int
	for c := 0; c < Size; c++ {
		lo, _ := ColumnRange(c)
		need := Size
		if c == center {
			need = Size - 1
		}

		picks := perm(ColumnSpan)[:need]
		column := make([]int, 0, Size)
		for _, p := range picks {
			column = append(column, lo+p)
		}
		if c == center {
			column = append(column[:center], append([]int{Free}, column[center:]...)...)
		}
		copy(columns[c][:], column)
	}

	var card Card
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			card[r][c] = columns[c][r]
		}
	}
	return card
}

// Contains reports whether n is printed on the card. Free is never reported.
func (c Card) Contains(n int) bool {
	if n == Free {
		return false
	}
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			if c[r][col] == n {
				return true
			}
		}
	}
	return false
}

// Flatten returns the 25 cells row by row.
func (c Card) Flatten() []int {
	out := make([]int, 0, Size*Size)
	for r := 0; r < Size; r++ {
		out = append(out, c[r][:]...)
	}
	return out
}

// CardFromCells rebuilds a card from Flatten output.
func CardFromCells(cells []int) (Card, bool) {
	var card Card
	if len(cells) != Size*Size {
		return card, false
	}
	for i, v := range cells {
		card[i/Size][i%Size] = v
	}
	return card, true
}
