// Package engine owns the active-match set and drives every match from
// first move to terminal outcome. All mutation happens under a per-match
// lock; the registry map has its own lock taken only for insert, remove
// and lookup. Network sends never happen under either lock. Lock order
// everywhere: match lock first, then whatever the notifier takes.
package engine

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"gomoku-server/database"
	"gomoku-server/gamerules"
	"gomoku-server/protocol"
	"gomoku-server/types"
)

var (
	ErrMatchNotFound  = errors.New("game not found")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrIllegalMove    = errors.New("invalid move - cell occupied or out of bounds")
	ErrNotParticipant = errors.New("not a participant of this game")
	ErrDrawPending    = errors.New("draw already offered")
	ErrNoDrawOffer    = errors.New("no draw offer to accept")
)

// Notifier delivers an encoded message to a player if they are connected.
// Implemented by the session registry.
type Notifier interface {
	Send(userID uint32, msgType uint16, payload []byte)
}

// Engine coordinates all active matches.
type Engine struct {
	mu      sync.RWMutex
	matches map[uint32]*Match
	byUser  map[uint32]uint32

	store  database.Store
	notify Notifier
	log    *zap.SugaredLogger
	now    func() time.Time
}

func New(store database.Store, notify Notifier, log *zap.SugaredLogger) *Engine {
	return &Engine{
		matches: make(map[uint32]*Match),
		byUser:  make(map[uint32]uint32),
		store:   store,
		notify:  notify,
		log:     log,
		now:     time.Now,
	}
}

// send is one deferred notification, flushed after locks are released.
type send struct {
	userID  uint32
	msgType uint16
	payload []byte
}

func (e *Engine) flush(out []send) {
	for _, s := range out {
		e.notify.Send(s.userID, s.msgType, s.payload)
	}
}

// StartMatch creates a match from an accepted challenge, registers it and
// announces the game start to both players. Player one moves first.
func (e *Engine) StartMatch(player1ID, player2ID uint32, boardSize uint8, timeLimit uint16) (uint32, error) {
	gameID, err := e.store.CreateGame(player1ID, player2ID, boardSize)
	if err != nil {
		return 0, err
	}

	m := newMatch(gameID, player1ID, player2ID, boardSize, timeLimit, e.now())

	e.mu.Lock()
	e.matches[gameID] = m
	e.byUser[player1ID] = gameID
	e.byUser[player2ID] = gameID
	e.mu.Unlock()

	p1, _ := e.store.GetUser(player1ID)
	p2, _ := e.store.GetUser(player2ID)

	start := protocol.GameStart{
		GameID:      gameID,
		Player1ID:   player1ID,
		Player2ID:   player2ID,
		Player1Name: p1.Username,
		Player2Name: p2.Username,
		BoardSize:   boardSize,
		CurrentTurn: player1ID,
		TimeLimit:   timeLimit,
		Player1Time: timeLimit,
		Player2Time: timeLimit,
	}.Encode()
	e.notify.Send(player1ID, protocol.MsgGameStart, start)
	e.notify.Send(player2ID, protocol.MsgGameStart, start)

	e.log.Infow("game started",
		"game", gameID, "player1", p1.Username, "player2", p2.Username,
		"board", boardSize, "time_limit", timeLimit)
	return gameID, nil
}

func (e *Engine) lookup(gameID uint32) (*Match, error) {
	e.mu.RLock()
	m, ok := e.matches[gameID]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// ActiveGame returns the game the player is currently in, if any.
func (e *Engine) ActiveGame(playerID uint32) (uint32, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.byUser[playerID]
	return id, ok
}

// ApplyMove validates and applies one stone placement. On success both
// players are told the new state; a winning or board-filling move
// terminates the match instead.
func (e *Engine) ApplyMove(gameID, playerID uint32, x, y uint8) error {
	m, err := e.lookup(gameID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		return ErrMatchNotFound
	}
	if m.CurrentTurn != playerID {
		m.mu.Unlock()
		return ErrNotYourTurn
	}

	// A mover whose clock already ran out loses on time, the move is
	// not applied.
	if m.timedOut(e.now()) {
		out := e.terminateLocked(m, m.opponent(playerID), types.ReasonTimeout)
		m.mu.Unlock()
		e.flush(out)
		return nil
	}

	if !gamerules.IsLegalMove(m.Board, m.BoardSize, x, y) {
		m.mu.Unlock()
		return ErrIllegalMove
	}

	m.chargeClock(e.now())

	mark := m.mark(playerID)
	m.Board[int(y)*int(m.BoardSize)+int(x)] = mark
	m.MoveCount++
	m.DrawOffered = false
	m.DrawOfferedBy = 0

	if err := e.store.LogMove(gameID, playerID, m.MoveCount, x, y); err != nil {
		e.log.Warnw("move not logged", "game", gameID, "err", err)
	}

	if gamerules.CheckWin(m.Board, m.BoardSize, x, y, mark) {
		out := e.terminateLocked(m, playerID, types.ReasonFiveInARow)
		m.mu.Unlock()
		e.flush(out)
		return nil
	}

	if gamerules.CheckDraw(m.Board) {
		out := e.terminateDrawLocked(m)
		m.mu.Unlock()
		e.flush(out)
		return nil
	}

	m.CurrentTurn = m.opponent(playerID)
	m.LastMoveAt = e.now()

	now := e.now()
	resp := protocol.MoveResponse{
		Success:     1,
		X:           x,
		Y:           y,
		Player:      mark,
		NextTurn:    m.CurrentTurn,
		Player1Time: m.remaining(m.Player1ID, now),
		Player2Time: m.remaining(m.Player2ID, now),
		MoveNumber:  m.MoveCount,
	}.Encode()
	player1, player2 := m.Player1ID, m.Player2ID
	m.mu.Unlock()

	e.notify.Send(player1, protocol.MsgMoveResponse, resp)
	e.notify.Send(player2, protocol.MsgOpponentMove, resp)
	return nil
}

// Resign ends the match with the opponent as winner.
func (e *Engine) Resign(gameID, playerID uint32) error {
	m, err := e.lookup(gameID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		return ErrMatchNotFound
	}
	if !m.isParticipant(playerID) {
		m.mu.Unlock()
		return ErrNotParticipant
	}
	out := e.terminateLocked(m, m.opponent(playerID), types.ReasonResignation)
	m.mu.Unlock()
	e.flush(out)
	return nil
}

// ForfeitActive resigns whatever match the player is in. Used for the
// disconnect path; a player with no active match is a no-op.
func (e *Engine) ForfeitActive(playerID uint32) {
	if gameID, ok := e.ActiveGame(playerID); ok {
		if err := e.Resign(gameID, playerID); err != nil && !errors.Is(err, ErrMatchNotFound) {
			e.log.Warnw("forfeit failed", "game", gameID, "player", playerID, "err", err)
		}
	}
}

// OfferDraw marks a pending draw offer and notifies the opponent. Only
// one offer may be pending per match.
func (e *Engine) OfferDraw(gameID, playerID uint32) error {
	m, err := e.lookup(gameID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		return ErrMatchNotFound
	}
	if !m.isParticipant(playerID) {
		m.mu.Unlock()
		return ErrNotParticipant
	}
	if m.DrawOffered {
		m.mu.Unlock()
		return ErrDrawPending
	}
	m.DrawOffered = true
	m.DrawOfferedBy = playerID
	opponent := m.opponent(playerID)
	m.mu.Unlock()

	e.notify.Send(opponent, protocol.MsgDrawReceived, protocol.DrawRequest{GameID: gameID}.Encode())
	return nil
}

// AcceptDraw ends the match as agreed draw. The offerer cannot accept
// their own offer.
func (e *Engine) AcceptDraw(gameID, playerID uint32) error {
	m, err := e.lookup(gameID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		return ErrMatchNotFound
	}
	if !m.isParticipant(playerID) {
		m.mu.Unlock()
		return ErrNotParticipant
	}
	if !m.DrawOffered || m.DrawOfferedBy == playerID {
		m.mu.Unlock()
		return ErrNoDrawOffer
	}
	out := e.terminateDrawLocked(m)
	m.mu.Unlock()
	e.flush(out)
	return nil
}

// DeclineDraw clears the pending offer and tells the offerer.
func (e *Engine) DeclineDraw(gameID, playerID uint32) error {
	m, err := e.lookup(gameID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		return ErrMatchNotFound
	}
	if !m.isParticipant(playerID) {
		m.mu.Unlock()
		return ErrNotParticipant
	}
	if !m.DrawOffered {
		m.mu.Unlock()
		return ErrNoDrawOffer
	}
	offerer := m.DrawOfferedBy
	m.DrawOffered = false
	m.DrawOfferedBy = 0
	m.mu.Unlock()

	e.notify.Send(offerer, protocol.MsgDeclineDraw, protocol.DrawRequest{GameID: gameID}.Encode())
	return nil
}

// SweepTimeouts terminates every timed match whose player on turn has run
// out of clock. The monitor calls this once a second. Racing against a
// client-driven termination is safe: whoever takes the match lock first
// wins and the loser sees the terminated flag.
func (e *Engine) SweepTimeouts() {
	e.mu.RLock()
	snapshot := make([]*Match, 0, len(e.matches))
	for _, m := range e.matches {
		snapshot = append(snapshot, m)
	}
	e.mu.RUnlock()

	for _, m := range snapshot {
		m.mu.Lock()
		if m.terminated || m.TimeLimit == 0 || !m.timedOut(e.now()) {
			m.mu.Unlock()
			continue
		}
		loser := m.CurrentTurn
		out := e.terminateLocked(m, m.opponent(loser), types.ReasonTimeout)
		m.mu.Unlock()
		e.flush(out)
	}
}

// terminateLocked finishes a decisive match: result and Elo go to the
// store, the match leaves the active set, and a GameOver notice for both
// players is returned for sending after unlock. Caller holds m.mu.
func (e *Engine) terminateLocked(m *Match, winnerID uint32, reason uint8) []send {
	m.terminated = true

	result := types.ResultPlayer1Win
	if winnerID == m.Player2ID {
		result = types.ResultPlayer2Win
	}
	if err := e.store.UpdateGameResult(m.ID, winnerID, result); err != nil {
		e.log.Errorw("game result not recorded", "game", m.ID, "err", err)
	}
	delta, err := e.store.UpdateEloRating(winnerID, m.opponent(winnerID))
	if err != nil {
		e.log.Errorw("elo not updated", "game", m.ID, "err", err)
	}

	e.removeLocked(m)

	winner, _ := e.store.GetUser(winnerID)
	over := protocol.GameOver{
		GameID:     m.ID,
		WinnerID:   winnerID,
		WinnerName: winner.Username,
		EloChange:  delta,
		Reason:     reason,
		TotalMoves: m.MoveCount,
	}.Encode()

	e.log.Infow("game over",
		"game", m.ID, "winner", winner.Username, "reason", reason, "moves", m.MoveCount)
	e.log.Debugw("final board", "game", m.ID,
		"board", "\n"+gamerules.BoardString(m.Board, m.BoardSize))
	return []send{
		{m.Player1ID, protocol.MsgGameOver, over},
		{m.Player2ID, protocol.MsgGameOver, over},
	}
}

// terminateDrawLocked finishes a drawn match, by agreement or full board.
// No rating change, both draw counters increment. Caller holds m.mu.
func (e *Engine) terminateDrawLocked(m *Match) []send {
	m.terminated = true

	if err := e.store.UpdateGameResult(m.ID, 0, types.ResultDraw); err != nil {
		e.log.Errorw("game result not recorded", "game", m.ID, "err", err)
	}
	if err := e.store.UpdateDrawStats(m.Player1ID, m.Player2ID); err != nil {
		e.log.Errorw("draw stats not updated", "game", m.ID, "err", err)
	}

	e.removeLocked(m)

	over := protocol.GameOver{
		GameID:     m.ID,
		WinnerID:   0,
		WinnerName: "DRAW",
		Reason:     types.ReasonDraw,
		TotalMoves: m.MoveCount,
	}.Encode()

	e.log.Infow("game drawn", "game", m.ID, "moves", m.MoveCount)
	e.log.Debugw("final board", "game", m.ID,
		"board", "\n"+gamerules.BoardString(m.Board, m.BoardSize))
	return []send{
		{m.Player1ID, protocol.MsgGameOver, over},
		{m.Player2ID, protocol.MsgGameOver, over},
	}
}

// removeLocked drops the match from the active set. Safe to call while
// holding m.mu because lookups never wait on a match lock while holding
// the registry lock.
func (e *Engine) removeLocked(m *Match) {
	e.mu.Lock()
	delete(e.matches, m.ID)
	if e.byUser[m.Player1ID] == m.ID {
		delete(e.byUser, m.Player1ID)
	}
	if e.byUser[m.Player2ID] == m.ID {
		delete(e.byUser, m.Player2ID)
	}
	e.mu.Unlock()
}
