package engine

// winningLines are the 8 fixed triples that decide a game
var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// WinningLines returns a copy of the winning triples in detection order
func WinningLines() [][3]int {
	lines := make([][3]int, len(winningLines))
	copy(lines, winningLines[:])
	return lines
}

// FindWinner scans the winning triples in order and returns the first one held
// entirely by a single mark
func FindWinner(b Board) (Mark, []int, bool) {
	for _, line := range winningLines {
		m := b[line[0]]
		if m.Valid() && b[line[1]] == m && b[line[2]] == m {
			return m, []int{line[0], line[1], line[2]}, true
		}
	}
	return Empty, nil, false
}

// IsFull reports whether every cell holds a mark
func IsFull(b Board) bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

// CountMarks counts the cells held by a mark
func CountMarks(b Board, m Mark) int {
	count := 0
	for _, cell := range b {
		if cell == m {
			count++
		}
	}
	return count
}

// Render draws the board as three text rows, using '.' for empty cells
func Render(b Board) []string {
	rows := make([]string, 0, RowLength)
	for r := 0; r < RowLength; r++ {
		row := make([]byte, 0, RowLength)
		for c := 0; c < RowLength; c++ {
			cell := b[r*RowLength+c]
			if cell == Empty {
				row = append(row, '.')
				continue
			}
			row = append(row, cell[0])
		}
		rows = append(rows, string(row))
	}
	return rows
}
