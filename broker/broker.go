// Package broker manages the short-lived offers that precede a match:
// direct challenges and post-game rematch requests. Each offer has
// exactly one outcome; acting on a consumed or unknown id fails. Pending
// challenges have no expiry and survive until acted on or the server
// restarts.
package broker

import (
	"errors"
	"sync"

	"gomoku-server/database"
	"gomoku-server/types"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrRematchNotFound   = errors.New("rematch request not found")
	ErrBoardSize         = errors.New("board size must be between 10 and 19")
)

// Board size bounds accepted for a challenge.
const (
	MinBoardSize = 10
	MaxBoardSize = 19
)

// Broker issues challenges through the persistence gateway and keeps
// rematch offers locally; a rematch that is accepted turns into a regular
// challenge anyway.
type Broker struct {
	// mu guards the rematch map and serializes challenge consumption so
	// each offer has exactly one outcome.
	mu        sync.Mutex
	rematches map[uint32]types.PendingRematch
	store     database.Store
}

func New(store database.Store) *Broker {
	return &Broker{
		rematches: make(map[uint32]types.PendingRematch),
		store:     store,
	}
}

// CreateChallenge validates the board size and records a pending
// challenge, returning its id.
func (b *Broker) CreateChallenge(challengerID, challengedID uint32, boardSize uint8, timeLimit uint16) (uint32, error) {
	if boardSize < MinBoardSize || boardSize > MaxBoardSize {
		return 0, ErrBoardSize
	}
	return b.store.CreateChallenge(challengerID, challengedID, boardSize, timeLimit)
}

// AcceptChallenge consumes the challenge and returns it so the caller can
// start the match.
func (b *Broker) AcceptChallenge(challengeID uint32) (types.Challenge, error) {
	return b.consumeChallenge(challengeID)
}

// DeclineChallenge consumes the challenge and returns it so the caller
// can notify the challenger.
func (b *Broker) DeclineChallenge(challengeID uint32) (types.Challenge, error) {
	return b.consumeChallenge(challengeID)
}

// consumeChallenge looks up and removes a challenge as one step. The
// broker is the only consumer, so holding its lock across both store
// calls keeps racing accepts from each seeing the challenge as pending.
func (b *Broker) consumeChallenge(challengeID uint32) (types.Challenge, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, err := b.store.GetChallenge(challengeID)
	if err != nil {
		return types.Challenge{}, ErrChallengeNotFound
	}
	if err := b.store.RemoveChallenge(challengeID); err != nil {
		return types.Challenge{}, err
	}
	return ch, nil
}

// RequestRematch registers a rematch offer keyed by the finished game.
// A repeat request for the same game overwrites the earlier one.
func (b *Broker) RequestRematch(lastGameID, requesterID, opponentID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rematches[lastGameID] = types.PendingRematch{
		LastGameID:  lastGameID,
		RequesterID: requesterID,
		OpponentID:  opponentID,
	}
}

// AcceptRematch consumes a pending rematch. The caller synthesizes a
// fresh challenge from the prior game's settings; note the original time
// control is dropped on that path and the new game is untimed.
func (b *Broker) AcceptRematch(lastGameID uint32) (types.PendingRematch, error) {
	return b.consumeRematch(lastGameID)
}

// DeclineRematch consumes a pending rematch and returns it so the caller
// can notify the requester.
func (b *Broker) DeclineRematch(lastGameID uint32) (types.PendingRematch, error) {
	return b.consumeRematch(lastGameID)
}

func (b *Broker) consumeRematch(lastGameID uint32) (types.PendingRematch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.rematches[lastGameID]
	if !ok {
		return types.PendingRematch{}, ErrRematchNotFound
	}
	delete(b.rematches, lastGameID)
	return req, nil
}
