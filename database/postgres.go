package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"gomoku-server/types"
)

// Postgres is the durable Store. Presence flags live in the players table
// so a LAN operator can inspect them, but they are reset at startup since
// no one is connected to a freshly started server.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec("UPDATE players SET online = false, in_game = false"); err != nil {
		return nil, fmt.Errorf("reset presence: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) CreateUser(username, email, password string) (uint32, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	var exists bool
	err = p.db.QueryRow("SELECT EXISTS(SELECT 1 FROM players WHERE name = $1)", username).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrUserExists
	}

	var id uint32
	err = p.db.QueryRow(
		"INSERT INTO players (name, email, password_hash, elo) VALUES ($1, $2, $3, 1000) RETURNING id",
		username, email, string(hash),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Postgres) Authenticate(username, password string) (types.User, error) {
	var u types.User
	err := p.db.QueryRow(
		"SELECT id, name, email, password_hash, elo, wins, losses, draws FROM players WHERE name = $1",
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Elo, &u.Wins, &u.Losses, &u.Draws)
	if err == sql.ErrNoRows {
		return types.User{}, ErrAuthFailure
	}
	if err != nil {
		return types.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return types.User{}, ErrAuthFailure
	}
	return u, nil
}

func (p *Postgres) GetUser(id uint32) (types.User, error) {
	var u types.User
	err := p.db.QueryRow(
		"SELECT id, name, email, elo, wins, losses, draws, online, in_game FROM players WHERE id = $1",
		id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Elo, &u.Wins, &u.Losses, &u.Draws, &u.Online, &u.InGame)
	if err == sql.ErrNoRows {
		return types.User{}, ErrNotFound
	}
	if err != nil {
		return types.User{}, err
	}
	return u, nil
}

func (p *Postgres) SetOnline(id uint32, online bool) error {
	if online {
		_, err := p.db.Exec("UPDATE players SET online = true WHERE id = $1", id)
		return err
	}
	_, err := p.db.Exec("UPDATE players SET online = false, in_game = false WHERE id = $1", id)
	return err
}

func (p *Postgres) SetInGame(id uint32, inGame bool) error {
	_, err := p.db.Exec("UPDATE players SET in_game = $1 WHERE id = $2", inGame, id)
	return err
}

func (p *Postgres) OnlineUsers() ([]types.User, error) {
	rows, err := p.db.Query(
		"SELECT id, name, elo, wins, losses, draws, in_game FROM players WHERE online = true ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var online []types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Elo, &u.Wins, &u.Losses, &u.Draws, &u.InGame); err != nil {
			return nil, err
		}
		u.Online = true
		online = append(online, u)
	}
	return online, rows.Err()
}

func (p *Postgres) CreateChallenge(challengerID, challengedID uint32, boardSize uint8, timeLimit uint16) (uint32, error) {
	var id uint32
	err := p.db.QueryRow(
		"INSERT INTO challenges (challenger_id, challenged_id, board_size, time_limit) VALUES ($1, $2, $3, $4) RETURNING id",
		challengerID, challengedID, boardSize, timeLimit,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Postgres) GetChallenge(challengeID uint32) (types.Challenge, error) {
	var ch types.Challenge
	err := p.db.QueryRow(
		"SELECT id, challenger_id, challenged_id, board_size, time_limit FROM challenges WHERE id = $1",
		challengeID,
	).Scan(&ch.ID, &ch.ChallengerID, &ch.ChallengedID, &ch.BoardSize, &ch.TimeLimit)
	if err == sql.ErrNoRows {
		return types.Challenge{}, ErrNotFound
	}
	if err != nil {
		return types.Challenge{}, err
	}
	ch.Pending = true
	return ch, nil
}

func (p *Postgres) RemoveChallenge(challengeID uint32) error {
	_, err := p.db.Exec("DELETE FROM challenges WHERE id = $1", challengeID)
	return err
}

func (p *Postgres) CreateGame(player1ID, player2ID uint32, boardSize uint8) (uint32, error) {
	var id uint32
	err := p.db.QueryRow(
		"INSERT INTO games (player1_id, player2_id, board_size, result, start_time) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		player1ID, player2ID, boardSize, types.ResultInProgress, time.Now().Unix(),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	if err := p.SetInGame(player1ID, true); err != nil {
		return 0, err
	}
	if err := p.SetInGame(player2ID, true); err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Postgres) LogMove(gameID, playerID, moveNumber uint32, x, y uint8) error {
	_, err := p.db.Exec(
		"INSERT INTO moves (game_id, move_number, player_id, x, y, played_at) VALUES ($1, $2, $3, $4, $5, $6)",
		gameID, moveNumber, playerID, x, y, time.Now().Unix())
	return err
}

func (p *Postgres) UpdateGameResult(gameID, winnerID uint32, result uint8) error {
	res, err := p.db.Exec(
		"UPDATE games SET winner_id = $1, result = $2, duration = $3 - start_time WHERE id = $4",
		winnerID, result, time.Now().Unix(), gameID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = p.db.Exec(
		"UPDATE players SET in_game = false WHERE id IN (SELECT player1_id FROM games WHERE id = $1 UNION SELECT player2_id FROM games WHERE id = $1)",
		gameID)
	return err
}

func (p *Postgres) GetGameRecord(gameID uint32) (types.GameRecord, error) {
	var rec types.GameRecord
	err := p.db.QueryRow(`
		SELECT g.id, g.player1_id, g.player2_id, p1.name, p2.name,
		       g.board_size, g.winner_id, g.result, g.start_time, COALESCE(g.duration, 0), COALESCE(g.elo_change, 0)
		FROM games g
		JOIN players p1 ON p1.id = g.player1_id
		JOIN players p2 ON p2.id = g.player2_id
		WHERE g.id = $1`, gameID,
	).Scan(&rec.GameID, &rec.Player1ID, &rec.Player2ID, &rec.Player1Name, &rec.Player2Name,
		&rec.BoardSize, &rec.WinnerID, &rec.Result, &rec.StartTime, &rec.Duration, &rec.EloChange)
	if err == sql.ErrNoRows {
		return types.GameRecord{}, ErrNotFound
	}
	if err != nil {
		return types.GameRecord{}, err
	}

	rows, err := p.db.Query(
		"SELECT move_number, player_id, x, y, played_at FROM moves WHERE game_id = $1 ORDER BY move_number",
		gameID)
	if err != nil {
		return types.GameRecord{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var m types.MoveLog
		var playedAt int64
		if err := rows.Scan(&m.MoveNumber, &m.PlayerID, &m.X, &m.Y, &playedAt); err != nil {
			return types.GameRecord{}, err
		}
		m.Timestamp = uint32(playedAt - rec.StartTime)
		rec.Moves = append(rec.Moves, m)
	}
	return rec, rows.Err()
}

func (p *Postgres) UserGameHistory(userID uint32, limit int) ([]types.GameRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := p.db.Query(`
		SELECT g.id, g.player1_id, g.player2_id, p1.name, p2.name,
		       g.board_size, g.winner_id, g.result, g.start_time, COALESCE(g.duration, 0), COALESCE(g.elo_change, 0)
		FROM games g
		JOIN players p1 ON p1.id = g.player1_id
		JOIN players p2 ON p2.id = g.player2_id
		WHERE g.result <> $1 AND (g.player1_id = $2 OR g.player2_id = $2)
		ORDER BY g.start_time DESC
		LIMIT $3`, types.ResultInProgress, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []types.GameRecord
	for rows.Next() {
		var rec types.GameRecord
		if err := rows.Scan(&rec.GameID, &rec.Player1ID, &rec.Player2ID, &rec.Player1Name, &rec.Player2Name,
			&rec.BoardSize, &rec.WinnerID, &rec.Result, &rec.StartTime, &rec.Duration, &rec.EloChange); err != nil {
			return nil, err
		}
		history = append(history, rec)
	}
	return history, rows.Err()
}

func (p *Postgres) UpdateEloRating(winnerID, loserID uint32) (int16, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var winnerElo, loserElo int
	if err := tx.QueryRow("SELECT elo FROM players WHERE id = $1 FOR UPDATE", winnerID).Scan(&winnerElo); err != nil {
		return 0, err
	}
	if err := tx.QueryRow("SELECT elo FROM players WHERE id = $1 FOR UPDATE", loserID).Scan(&loserElo); err != nil {
		return 0, err
	}

	delta := eloDelta(winnerElo, loserElo)
	if _, err := tx.Exec("UPDATE players SET elo = elo + $1, wins = wins + 1 WHERE id = $2", delta, winnerID); err != nil {
		return 0, err
	}
	// GREATEST floors a rating below the delta at zero.
	if _, err := tx.Exec("UPDATE players SET elo = GREATEST(elo - $1, 0), losses = losses + 1 WHERE id = $2", delta, loserID); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`
		UPDATE games SET elo_change = $1
		WHERE id = (SELECT id FROM games
		            WHERE result <> $2 AND (player1_id = $3 OR player2_id = $3)
		            ORDER BY start_time DESC LIMIT 1)`,
		delta, types.ResultInProgress, winnerID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return delta, nil
}

func (p *Postgres) UpdateDrawStats(player1ID, player2ID uint32) error {
	_, err := p.db.Exec("UPDATE players SET draws = draws + 1 WHERE id = $1 OR id = $2", player1ID, player2ID)
	return err
}
