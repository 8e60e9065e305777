package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gomoku-server/database"
	"gomoku-server/gamerules"
	"gomoku-server/protocol"
	"gomoku-server/types"
)

// recorder collects every notification the engine emits, keyed by player.
type recorder struct {
	mu    sync.Mutex
	sends map[uint32][]recorded
}

type recorded struct {
	msgType uint16
	payload []byte
}

func newRecorder() *recorder {
	return &recorder{sends: make(map[uint32][]recorded)}
}

func (r *recorder) Send(userID uint32, msgType uint16, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends[userID] = append(r.sends[userID], recorded{msgType, payload})
}

func (r *recorder) last(userID uint32, msgType uint16) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.sends[userID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].msgType == msgType {
			return msgs[i].payload, true
		}
	}
	return nil, false
}

func (r *recorder) count(userID uint32, msgType uint16) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.sends[userID] {
		if m.msgType == msgType {
			n++
		}
	}
	return n
}

type fixture struct {
	eng   *Engine
	store *database.Memory
	rec   *recorder
	alice uint32
	bob   uint32
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := database.NewMemory()
	alice, err := store.CreateUser("alice", "alice@lan", "pw")
	require.NoError(t, err)
	bob, err := store.CreateUser("bob", "bob@lan", "pw")
	require.NoError(t, err)

	rec := newRecorder()
	eng := New(store, rec, zap.NewNop().Sugar())

	f := &fixture{eng: eng, store: store, rec: rec, alice: alice, bob: bob,
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	eng.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) start(t *testing.T, boardSize uint8, timeLimit uint16) uint32 {
	t.Helper()
	gameID, err := f.eng.StartMatch(f.alice, f.bob, boardSize, timeLimit)
	require.NoError(t, err)
	return gameID
}

func TestStartMatchAnnouncesBothPlayers(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 300)

	for _, id := range []uint32{f.alice, f.bob} {
		payload, ok := f.rec.last(id, protocol.MsgGameStart)
		require.True(t, ok)
		start, err := protocol.DecodeGameStart(payload)
		require.NoError(t, err)
		assert.Equal(t, gameID, start.GameID)
		assert.Equal(t, f.alice, start.CurrentTurn)
		assert.Equal(t, "alice", start.Player1Name)
		assert.Equal(t, "bob", start.Player2Name)
		assert.Equal(t, uint16(300), start.Player1Time)
	}

	active, ok := f.eng.ActiveGame(f.alice)
	assert.True(t, ok)
	assert.Equal(t, gameID, active)
}

func TestApplyMoveAlternatesTurns(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 0)

	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 7, 7))

	// Mover gets a MoveResponse, opponent an OpponentMove with the same body.
	p1, ok := f.rec.last(f.alice, protocol.MsgMoveResponse)
	require.True(t, ok)
	p2, ok := f.rec.last(f.bob, protocol.MsgOpponentMove)
	require.True(t, ok)
	assert.Equal(t, p1, p2)

	resp, err := protocol.DecodeMoveResponse(p1)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), resp.Success)
	assert.Equal(t, gamerules.Player1, resp.Player)
	assert.Equal(t, f.bob, resp.NextTurn)
	assert.Equal(t, uint32(1), resp.MoveNumber)

	// Same player twice is rejected and changes nothing.
	err = f.eng.ApplyMove(gameID, f.alice, 8, 8)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Equal(t, 1, f.rec.count(f.alice, protocol.MsgMoveResponse))

	require.NoError(t, f.eng.ApplyMove(gameID, f.bob, 8, 8))
}

func TestApplyMoveRejectsIllegal(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 0)

	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 7, 7))
	require.NoError(t, f.eng.ApplyMove(gameID, f.bob, 0, 0))

	// Occupied cell.
	assert.ErrorIs(t, f.eng.ApplyMove(gameID, f.alice, 7, 7), ErrIllegalMove)
	// Out of bounds.
	assert.ErrorIs(t, f.eng.ApplyMove(gameID, f.alice, 15, 3), ErrIllegalMove)
	// Unknown game.
	assert.ErrorIs(t, f.eng.ApplyMove(999, f.alice, 1, 1), ErrMatchNotFound)
}

func TestFiveInARowWins(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 0)

	// Alice builds a horizontal row on y=7, Bob parks on y=0.
	for i := 0; i < 4; i++ {
		require.NoError(t, f.eng.ApplyMove(gameID, f.alice, uint8(3+i), 7))
		require.NoError(t, f.eng.ApplyMove(gameID, f.bob, uint8(i), 0))
	}
	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 7, 7))

	for _, id := range []uint32{f.alice, f.bob} {
		payload, ok := f.rec.last(id, protocol.MsgGameOver)
		require.True(t, ok)
		over, err := protocol.DecodeGameOver(payload)
		require.NoError(t, err)
		assert.Equal(t, f.alice, over.WinnerID)
		assert.Equal(t, "alice", over.WinnerName)
		assert.Equal(t, types.ReasonFiveInARow, over.Reason)
		assert.Equal(t, uint32(9), over.TotalMoves)
		assert.Equal(t, int16(16), over.EloChange)
	}

	winner, _ := f.store.GetUser(f.alice)
	loser, _ := f.store.GetUser(f.bob)
	assert.Equal(t, uint16(1016), winner.Elo)
	assert.Equal(t, uint16(984), loser.Elo)

	// The match is gone; further moves bounce.
	_, ok := f.eng.ActiveGame(f.alice)
	assert.False(t, ok)
	assert.ErrorIs(t, f.eng.ApplyMove(gameID, f.bob, 9, 9), ErrMatchNotFound)
}

func TestResign(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 0)

	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 7, 7))
	require.NoError(t, f.eng.Resign(gameID, f.alice))

	payload, ok := f.rec.last(f.bob, protocol.MsgGameOver)
	require.True(t, ok)
	over, err := protocol.DecodeGameOver(payload)
	require.NoError(t, err)
	assert.Equal(t, f.bob, over.WinnerID)
	assert.Equal(t, types.ReasonResignation, over.Reason)

	assert.ErrorIs(t, f.eng.Resign(gameID, f.bob), ErrMatchNotFound)
}

func TestResignRejectsOutsider(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 0)
	carol, err := f.store.CreateUser("carol", "carol@lan", "pw")
	require.NoError(t, err)

	assert.ErrorIs(t, f.eng.Resign(gameID, carol), ErrNotParticipant)
}

func TestForfeitActive(t *testing.T) {
	f := newFixture(t)
	f.start(t, 15, 0)

	f.eng.ForfeitActive(f.alice)

	payload, ok := f.rec.last(f.bob, protocol.MsgGameOver)
	require.True(t, ok)
	over, err := protocol.DecodeGameOver(payload)
	require.NoError(t, err)
	assert.Equal(t, f.bob, over.WinnerID)

	// No active match: silently a no-op.
	f.eng.ForfeitActive(f.alice)
}

func TestDrawOfferLifecycle(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 0)

	require.NoError(t, f.eng.OfferDraw(gameID, f.alice))
	_, ok := f.rec.last(f.bob, protocol.MsgDrawReceived)
	assert.True(t, ok)

	// Only one offer at a time, and the offerer cannot accept it.
	assert.ErrorIs(t, f.eng.OfferDraw(gameID, f.bob), ErrDrawPending)
	assert.ErrorIs(t, f.eng.AcceptDraw(gameID, f.alice), ErrNoDrawOffer)

	require.NoError(t, f.eng.DeclineDraw(gameID, f.bob))
	_, ok = f.rec.last(f.alice, protocol.MsgDeclineDraw)
	assert.True(t, ok)

	// Declined offer is spent.
	assert.ErrorIs(t, f.eng.AcceptDraw(gameID, f.bob), ErrNoDrawOffer)
	assert.ErrorIs(t, f.eng.DeclineDraw(gameID, f.bob), ErrNoDrawOffer)
}

func TestDrawAccepted(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 0)

	require.NoError(t, f.eng.OfferDraw(gameID, f.alice))
	require.NoError(t, f.eng.AcceptDraw(gameID, f.bob))

	payload, ok := f.rec.last(f.alice, protocol.MsgGameOver)
	require.True(t, ok)
	over, err := protocol.DecodeGameOver(payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), over.WinnerID)
	assert.Equal(t, "DRAW", over.WinnerName)
	assert.Equal(t, types.ReasonDraw, over.Reason)

	a, _ := f.store.GetUser(f.alice)
	b, _ := f.store.GetUser(f.bob)
	assert.Equal(t, uint16(1), a.Draws)
	assert.Equal(t, uint16(1), b.Draws)
	assert.Equal(t, uint16(1000), a.Elo)
	assert.Equal(t, uint16(1000), b.Elo)
}

func TestMoveClearsDrawOffer(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 0)

	require.NoError(t, f.eng.OfferDraw(gameID, f.bob))
	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 7, 7))

	assert.ErrorIs(t, f.eng.AcceptDraw(gameID, f.alice), ErrNoDrawOffer)
}

func TestTimeoutSweep(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 60)

	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 7, 7))

	// Bob thinks for 61 seconds; the sweep flags him.
	f.clock = f.clock.Add(61 * time.Second)
	f.eng.SweepTimeouts()

	payload, ok := f.rec.last(f.alice, protocol.MsgGameOver)
	require.True(t, ok)
	over, err := protocol.DecodeGameOver(payload)
	require.NoError(t, err)
	assert.Equal(t, f.alice, over.WinnerID)
	assert.Equal(t, types.ReasonTimeout, over.Reason)

	_, active := f.eng.ActiveGame(f.bob)
	assert.False(t, active)
}

func TestUntimedMatchNeverSweeps(t *testing.T) {
	f := newFixture(t)
	f.start(t, 15, 0)

	f.clock = f.clock.Add(24 * time.Hour)
	f.eng.SweepTimeouts()

	_, active := f.eng.ActiveGame(f.alice)
	assert.True(t, active)
}

func TestMoveAfterDeadlineLosesOnTime(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 30)

	f.clock = f.clock.Add(31 * time.Second)
	// The move is not applied; alice loses on time instead.
	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 7, 7))

	payload, ok := f.rec.last(f.bob, protocol.MsgGameOver)
	require.True(t, ok)
	over, err := protocol.DecodeGameOver(payload)
	require.NoError(t, err)
	assert.Equal(t, f.bob, over.WinnerID)
	assert.Equal(t, types.ReasonTimeout, over.Reason)
	assert.Equal(t, uint32(0), over.TotalMoves)
}

func TestClockChargesThinkingTime(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 300)

	f.clock = f.clock.Add(10 * time.Second)
	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 7, 7))

	payload, ok := f.rec.last(f.alice, protocol.MsgMoveResponse)
	require.True(t, ok)
	resp, err := protocol.DecodeMoveResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(290), resp.Player1Time)
	assert.Equal(t, uint16(300), resp.Player2Time)
}

func TestConcurrentSameTurnMoves(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 0)

	// Two racing moves by the player on turn: exactly one lands.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.eng.ApplyMove(gameID, f.alice, uint8(3+i), 7)
		}(i)
	}
	wg.Wait()

	ok, notTurn := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrNotYourTurn)
			notTurn++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, notTurn)
	assert.Equal(t, 1, f.rec.count(f.alice, protocol.MsgMoveResponse))
}

func TestTerminationRaceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	gameID := f.start(t, 15, 1)

	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 7, 7))
	f.clock = f.clock.Add(2 * time.Second)

	// Sweep and resignation race over the same match.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.eng.SweepTimeouts()
	}()
	go func() {
		defer wg.Done()
		_ = f.eng.Resign(gameID, f.bob)
	}()
	wg.Wait()

	// Exactly one termination reached each player.
	assert.Equal(t, 1, f.rec.count(f.alice, protocol.MsgGameOver))
	assert.Equal(t, 1, f.rec.count(f.bob, protocol.MsgGameOver))

	// Ratings moved exactly once.
	a, _ := f.store.GetUser(f.alice)
	b, _ := f.store.GetUser(f.bob)
	assert.Equal(t, uint16(1016), a.Elo)
	assert.Equal(t, uint16(984), b.Elo)
}

func TestGameOverLogsFinalBoard(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.DebugLevel)
	f.eng.log = zap.New(core).Sugar()

	gameID := f.start(t, 15, 0)
	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 7, 7))
	require.NoError(t, f.eng.Resign(gameID, f.bob))

	entries := logs.FilterMessage("final board").All()
	require.Len(t, entries, 1)
	board, _ := entries[0].ContextMap()["board"].(string)
	assert.Contains(t, board, " X ")
}

func TestFullBoardDraw(t *testing.T) {
	f := newFixture(t)
	// The smallest board the engine can host keeps the fill loop short.
	gameID := f.start(t, 10, 0)

	m, err := f.eng.lookup(gameID)
	require.NoError(t, err)

	// Pre-fill every cell but (0,0) with the opponent's stones. Win
	// detection only scans lines through the placed stone, so the final
	// placement cannot win and the full board reads as a draw.
	m.mu.Lock()
	for i := range m.Board {
		m.Board[i] = gamerules.Player2
	}
	m.Board[0] = gamerules.Empty
	m.mu.Unlock()

	require.NoError(t, f.eng.ApplyMove(gameID, f.alice, 0, 0))

	payload, ok := f.rec.last(f.bob, protocol.MsgGameOver)
	require.True(t, ok)
	over, err := protocol.DecodeGameOver(payload)
	require.NoError(t, err)
	assert.Equal(t, types.ReasonDraw, over.Reason)
	assert.Equal(t, "DRAW", over.WinnerName)
}
