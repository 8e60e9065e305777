package database

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gomoku-server/types"
)

// Memory is an in-process Store. It backs tests and deployments without a
// database; nothing survives a restart.
type Memory struct {
	mu              sync.Mutex
	users           map[uint32]*types.User
	byName          map[string]uint32
	games           map[uint32]*types.GameRecord
	challenges      map[uint32]types.Challenge
	nextUserID      uint32
	nextGameID      uint32
	nextChallengeID uint32
}

func NewMemory() *Memory {
	return &Memory{
		users:           make(map[uint32]*types.User),
		byName:          make(map[string]uint32),
		games:           make(map[uint32]*types.GameRecord),
		challenges:      make(map[uint32]types.Challenge),
		nextUserID:      1,
		nextGameID:      1,
		nextChallengeID: 1,
	}
}

func (m *Memory) CreateChallenge(challengerID, challengedID uint32, boardSize uint8, timeLimit uint16) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := types.Challenge{
		ID:           m.nextChallengeID,
		ChallengerID: challengerID,
		ChallengedID: challengedID,
		BoardSize:    boardSize,
		TimeLimit:    timeLimit,
		Pending:      true,
	}
	m.nextChallengeID++
	m.challenges[ch.ID] = ch
	return ch.ID, nil
}

func (m *Memory) GetChallenge(challengeID uint32) (types.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[challengeID]
	if !ok {
		return types.Challenge{}, ErrNotFound
	}
	return ch, nil
}

func (m *Memory) RemoveChallenge(challengeID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, challengeID)
	return nil
}

func (m *Memory) CreateUser(username, email, password string) (uint32, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[username]; ok {
		return 0, ErrUserExists
	}

	u := &types.User{
		ID:           m.nextUserID,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Elo:          1000,
	}
	m.nextUserID++
	m.users[u.ID] = u
	m.byName[username] = u.ID
	return u.ID, nil
}

func (m *Memory) Authenticate(username, password string) (types.User, error) {
	m.mu.Lock()
	id, ok := m.byName[username]
	if !ok {
		m.mu.Unlock()
		return types.User{}, ErrAuthFailure
	}
	u := *m.users[id]
	m.mu.Unlock()

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return types.User{}, ErrAuthFailure
	}
	return u, nil
}

func (m *Memory) GetUser(id uint32) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return *u, nil
}

func (m *Memory) SetOnline(id uint32, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Online = online
	if !online {
		u.InGame = false
	}
	return nil
}

func (m *Memory) SetInGame(id uint32, inGame bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.InGame = inGame
	return nil
}

func (m *Memory) OnlineUsers() ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var online []types.User
	for _, u := range m.users {
		if u.Online {
			online = append(online, *u)
		}
	}
	sort.Slice(online, func(i, j int) bool { return online[i].ID < online[j].ID })
	return online, nil
}

func (m *Memory) CreateGame(player1ID, player2ID uint32, boardSize uint8) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &types.GameRecord{
		GameID:    m.nextGameID,
		Player1ID: player1ID,
		Player2ID: player2ID,
		BoardSize: boardSize,
		Result:    types.ResultInProgress,
		StartTime: time.Now().Unix(),
	}
	m.nextGameID++
	if u, ok := m.users[player1ID]; ok {
		rec.Player1Name = u.Username
		u.InGame = true
	}
	if u, ok := m.users[player2ID]; ok {
		rec.Player2Name = u.Username
		u.InGame = true
	}
	m.games[rec.GameID] = rec
	return rec.GameID, nil
}

func (m *Memory) LogMove(gameID, playerID, moveNumber uint32, x, y uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.games[gameID]
	if !ok {
		return ErrNotFound
	}
	rec.Moves = append(rec.Moves, types.MoveLog{
		MoveNumber: moveNumber,
		PlayerID:   playerID,
		X:          x,
		Y:          y,
		Timestamp:  uint32(time.Now().Unix() - rec.StartTime),
	})
	return nil
}

func (m *Memory) UpdateGameResult(gameID, winnerID uint32, result uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.games[gameID]
	if !ok {
		return ErrNotFound
	}
	rec.WinnerID = winnerID
	rec.Result = result
	rec.Duration = uint32(time.Now().Unix() - rec.StartTime)
	if u, ok := m.users[rec.Player1ID]; ok {
		u.InGame = false
	}
	if u, ok := m.users[rec.Player2ID]; ok {
		u.InGame = false
	}
	return nil
}

func (m *Memory) GetGameRecord(gameID uint32) (types.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.games[gameID]
	if !ok {
		return types.GameRecord{}, ErrNotFound
	}
	out := *rec
	out.Moves = append([]types.MoveLog(nil), rec.Moves...)
	return out, nil
}

func (m *Memory) UserGameHistory(userID uint32, limit int) ([]types.GameRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var history []types.GameRecord
	for _, rec := range m.games {
		if rec.Result == types.ResultInProgress {
			continue
		}
		if rec.Player1ID != userID && rec.Player2ID != userID {
			continue
		}
		history = append(history, *rec)
	}

	sort.Slice(history, func(i, j int) bool {
		if history[i].StartTime != history[j].StartTime {
			return history[i].StartTime > history[j].StartTime
		}
		return history[i].GameID > history[j].GameID
	})
	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (m *Memory) UpdateEloRating(winnerID, loserID uint32) (int16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	winner, ok := m.users[winnerID]
	if !ok {
		return 0, ErrNotFound
	}
	loser, ok := m.users[loserID]
	if !ok {
		return 0, ErrNotFound
	}

	delta := eloDelta(int(winner.Elo), int(loser.Elo))
	winner.Elo = uint16(int(winner.Elo) + int(delta))
	// A rating below the delta floors at zero instead of wrapping the
	// unsigned field.
	if int(loser.Elo) > int(delta) {
		loser.Elo = uint16(int(loser.Elo) - int(delta))
	} else {
		loser.Elo = 0
	}
	winner.Wins++
	loser.Losses++

	// Record the change on the winner's most recent finished game so
	// history entries can report it from either side.
	var latest *types.GameRecord
	for _, rec := range m.games {
		if rec.Result == types.ResultInProgress {
			continue
		}
		if rec.Player1ID != winnerID && rec.Player2ID != winnerID {
			continue
		}
		if latest == nil || rec.StartTime > latest.StartTime ||
			(rec.StartTime == latest.StartTime && rec.GameID > latest.GameID) {
			latest = rec
		}
	}
	if latest != nil && latest.EloChange == 0 {
		latest.EloChange = delta
	}

	return delta, nil
}

func (m *Memory) UpdateDrawStats(player1ID, player2ID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[player1ID]; ok {
		u.Draws++
	}
	if u, ok := m.users[player2ID]; ok {
		u.Draws++
	}
	return nil
}
