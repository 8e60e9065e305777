package types

// User is a registered player account. Presence flags are runtime-only
// and never persisted across restarts.
type User struct {
	ID           uint32
	Username     string
	Email        string
	PasswordHash string
	Elo          uint16
	Wins         uint16
	Losses       uint16
	Draws        uint16
	Online       bool
	InGame       bool
}

// Challenge is a pending invitation from one player to another.
type Challenge struct {
	ID           uint32
	ChallengerID uint32
	ChallengedID uint32
	BoardSize    uint8
	TimeLimit    uint16
	Pending      bool
}

// PendingRematch is a post-game offer to play again, keyed by the
// finished game it follows.
type PendingRematch struct {
	LastGameID  uint32
	RequesterID uint32
	OpponentID  uint32
}

// MoveLog is one recorded move of a finished or running game.
// Timestamp is seconds since the game started.
type MoveLog struct {
	MoveNumber uint32
	PlayerID   uint32
	X          uint8
	Y          uint8
	Timestamp  uint32
}

// GameRecord is the durable summary of a game. It outlives the in-memory
// match state and is the unit served by log and history queries.
type GameRecord struct {
	GameID      uint32
	Player1ID   uint32
	Player2ID   uint32
	Player1Name string
	Player2Name string
	BoardSize   uint8
	WinnerID    uint32
	Result      uint8
	Moves       []MoveLog
	StartTime   int64
	Duration    uint32
	EloChange   int16
}

// Game result codes stored in records.
const (
	ResultPlayer1Win uint8 = 0
	ResultPlayer2Win uint8 = 1
	ResultDraw       uint8 = 2
	ResultInProgress uint8 = 255
)

// Game over reasons sent on the wire.
const (
	ReasonFiveInARow  uint8 = 0
	ReasonResignation uint8 = 1
	ReasonTimeout     uint8 = 2
	ReasonDraw        uint8 = 3
)
