// Package gamerules holds the pure Gomoku board rules. Boards are flat
// byte slices of size*size cells indexed y*size+x, cell values 0 (empty),
// 1 (player one) or 2 (player two). Nothing here touches shared state;
// callers pass a board snapshot they hold the match lock over.
package gamerules

import "strconv"

// Cell values.
const (
	Empty   uint8 = 0
	Player1 uint8 = 1
	Player2 uint8 = 2
)

// IsLegalMove reports whether (x,y) is on the board and unoccupied.
func IsLegalMove(board []uint8, size uint8, x, y uint8) bool {
	if x >= size || y >= size {
		return false
	}
	return board[int(y)*int(size)+int(x)] == Empty
}

// CheckWin reports whether the stone just placed at (x,y) completes a run
// of five or more for player. Runs longer than five ("overlines") win as
// well; that matches the client's rule set.
func CheckWin(board []uint8, size uint8, x, y uint8, player uint8) bool {
	dirs := [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}
	n := int(size)

	for _, d := range dirs {
		count := 1

		for i := 1; i < 5; i++ {
			nx := int(x) + d[0]*i
			ny := int(y) + d[1]*i
			if nx < 0 || nx >= n || ny < 0 || ny >= n {
				break
			}
			if board[ny*n+nx] != player {
				break
			}
			count++
		}

		for i := 1; i < 5; i++ {
			nx := int(x) - d[0]*i
			ny := int(y) - d[1]*i
			if nx < 0 || nx >= n || ny < 0 || ny >= n {
				break
			}
			if board[ny*n+nx] != player {
				break
			}
			count++
		}

		if count >= 5 {
			return true
		}
	}
	return false
}

// CheckDraw reports whether the board is full. Only called after a move
// failed to win.
func CheckDraw(board []uint8) bool {
	for _, c := range board {
		if c == Empty {
			return false
		}
	}
	return true
}

// BoardString renders the board for logs and replay display.
func BoardString(board []uint8, size uint8) string {
	n := int(size)
	out := "   "
	for x := 0; x < n; x++ {
		if x < 10 {
			out += " "
		}
		out += strconv.Itoa(x) + " "
	}
	out += "\n"

	for y := 0; y < n; y++ {
		if y < 10 {
			out += " "
		}
		out += strconv.Itoa(y) + " "
		for x := 0; x < n; x++ {
			switch board[y*n+x] {
			case Player1:
				out += " X "
			case Player2:
				out += " O "
			default:
				out += " . "
			}
		}
		out += "\n"
	}
	return out
}
