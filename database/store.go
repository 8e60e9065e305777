// Package database is the persistence gateway: the only component that
// owns durable player and game records. The core talks to it through the
// Store interface and never touches the storage format.
package database

import (
	"errors"
	"math"

	"gomoku-server/types"
)

var (
	// ErrUserExists is returned by CreateUser for a taken username.
	ErrUserExists = errors.New("username already exists")
	// ErrAuthFailure is returned for a bad username or password.
	ErrAuthFailure = errors.New("invalid username or password")
	// ErrNotFound is returned when a user or game id is unknown.
	ErrNotFound = errors.New("record not found")
)

// DefaultHistoryLimit caps history queries when the caller passes 0.
const DefaultHistoryLimit = 20

// Store is the persistence contract consumed by the session registry and
// the match engine.
type Store interface {
	CreateUser(username, email, password string) (uint32, error)
	Authenticate(username, password string) (types.User, error)
	GetUser(id uint32) (types.User, error)
	SetOnline(id uint32, online bool) error
	SetInGame(id uint32, inGame bool) error
	OnlineUsers() ([]types.User, error)

	CreateChallenge(challengerID, challengedID uint32, boardSize uint8, timeLimit uint16) (uint32, error)
	GetChallenge(challengeID uint32) (types.Challenge, error)
	RemoveChallenge(challengeID uint32) error

	CreateGame(player1ID, player2ID uint32, boardSize uint8) (uint32, error)
	LogMove(gameID, playerID, moveNumber uint32, x, y uint8) error
	UpdateGameResult(gameID, winnerID uint32, result uint8) error
	GetGameRecord(gameID uint32) (types.GameRecord, error)
	UserGameHistory(userID uint32, limit int) ([]types.GameRecord, error)

	UpdateEloRating(winnerID, loserID uint32) (int16, error)
	UpdateDrawStats(player1ID, player2ID uint32) error
}

// eloDelta computes the winner's rating gain with K=32 and the standard
// logistic expected score. The result is truncated toward zero; the loser
// loses exactly the same amount, so updates are zero-sum.
func eloDelta(winnerElo, loserElo int) int16 {
	const k = 32
	expected := 1.0 / (1.0 + math.Pow(10.0, float64(loserElo-winnerElo)/400.0))
	return int16(k * (1.0 - expected))
}
