package bingo

// Pattern names the line that completed a win.
type Pattern string

const (
	PatternNone     Pattern = ""
	PatternRow      Pattern = "row"
	PatternColumn   Pattern = "column"
	PatternDiagonal Pattern = "diagonal"
	PatternCorners  Pattern = "corners"
)

// CheckWin reports whether selected completes any winning pattern on card.
// The Free cell counts as marked. Neither argument is modified.
func CheckWin(card Card, selected map[int]bool) bool {
	_, ok := Evaluate(card, selected)
	return ok
}

// Evaluate is CheckWin that also names the first pattern found.
// Rows are checked first, then columns, diagonals and the four corners.
func Evaluate(card Card, selected map[int]bool) (Pattern, bool) {
	marked := func(r, c int) bool {
		v := card[r][c]
		return v == Free || selected[v]
	}

	for i := 0; i < Size; i++ {
		row, col := true, true
		for j := 0; j < Size; j++ {
			if !marked(i, j) {
				row = false
			}
			if !marked(j, i) {
				col = false
			}
		}
		if row {
			return PatternRow, true
		}
		if col {
			return PatternColumn, true
		}
	}

	diag1, diag2 := true, true
	for i := 0; i < Size; i++ {
		if !marked(i, i) {
			diag1 = false
		}
		if !marked(i, Size-1-i) {
			diag2 = false
		}
	}
	if diag1 || diag2 {
		return PatternDiagonal, true
	}

	last := Size - 1
	if marked(0, 0) && marked(0, last) && marked(last, 0) && marked(last, last) {
		return PatternCorners, true
	}
	return PatternNone, false
}
