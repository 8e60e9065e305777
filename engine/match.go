package engine

import (
	"sync"
	"time"

	"gomoku-server/gamerules"
)

// Match is the live state of one game. The board buffer is owned by the
// match and sized once at creation; all field access happens under mu.
// A terminated match stays briefly reachable through stale pointers, so
// every operation re-checks the flag after locking.
type Match struct {
	mu sync.Mutex

	ID          uint32
	Player1ID   uint32
	Player2ID   uint32
	BoardSize   uint8
	Board       []uint8
	CurrentTurn uint32
	MoveCount   uint32

	// Clocks. TimeLimit 0 means untimed and leaves the rest inert.
	TimeLimit       uint16
	Player1TimeLeft uint16
	Player2TimeLeft uint16
	LastMoveAt      time.Time

	DrawOffered   bool
	DrawOfferedBy uint32

	terminated bool
}

func newMatch(id, player1ID, player2ID uint32, boardSize uint8, timeLimit uint16, now time.Time) *Match {
	return &Match{
		ID:              id,
		Player1ID:       player1ID,
		Player2ID:       player2ID,
		BoardSize:       boardSize,
		Board:           make([]uint8, int(boardSize)*int(boardSize)),
		CurrentTurn:     player1ID,
		TimeLimit:       timeLimit,
		Player1TimeLeft: timeLimit,
		Player2TimeLeft: timeLimit,
		LastMoveAt:      now,
	}
}

func (m *Match) isParticipant(playerID uint32) bool {
	return playerID == m.Player1ID || playerID == m.Player2ID
}

func (m *Match) opponent(playerID uint32) uint32 {
	if playerID == m.Player1ID {
		return m.Player2ID
	}
	return m.Player1ID
}

func (m *Match) mark(playerID uint32) uint8 {
	if playerID == m.Player1ID {
		return gamerules.Player1
	}
	return gamerules.Player2
}

// timedOut reports whether the player on turn has exhausted their clock.
func (m *Match) timedOut(now time.Time) bool {
	if m.TimeLimit == 0 {
		return false
	}
	elapsed := int(now.Sub(m.LastMoveAt) / time.Second)
	if m.CurrentTurn == m.Player1ID {
		return int(m.Player1TimeLeft)-elapsed <= 0
	}
	return int(m.Player2TimeLeft)-elapsed <= 0
}

// chargeClock deducts the elapsed thinking time from the player on turn,
// floored at zero, and restarts the clock.
func (m *Match) chargeClock(now time.Time) {
	if m.TimeLimit == 0 {
		return
	}
	elapsed := int(now.Sub(m.LastMoveAt) / time.Second)
	if m.CurrentTurn == m.Player1ID {
		m.Player1TimeLeft = floorSub(m.Player1TimeLeft, elapsed)
	} else {
		m.Player2TimeLeft = floorSub(m.Player2TimeLeft, elapsed)
	}
	m.LastMoveAt = now
}

// remaining returns a player's clock as of now. The non-turn player's
// clock is frozen; the turn player's is charged for time since the last
// move without mutating anything.
func (m *Match) remaining(playerID uint32, now time.Time) uint16 {
	if m.TimeLimit == 0 {
		return 0
	}
	left := m.Player1TimeLeft
	if playerID == m.Player2ID {
		left = m.Player2TimeLeft
	}
	if m.CurrentTurn != playerID {
		return left
	}
	return floorSub(left, int(now.Sub(m.LastMoveAt)/time.Second))
}

func floorSub(left uint16, elapsed int) uint16 {
	if elapsed >= int(left) {
		return 0
	}
	return left - uint16(elapsed)
}
