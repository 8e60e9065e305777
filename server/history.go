package server

import (
	"errors"

	"gomoku-server/database"
	"gomoku-server/protocol"
	"gomoku-server/session"
	"gomoku-server/types"
)

func (s *Server) handleGetGameLog(c *client, sess *session.Session, payload []byte) error {
	gameID, err := protocol.DecodeU32(payload)
	if err != nil {
		return err
	}

	rec, err := s.store.GetGameRecord(gameID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.sendError(c, "Game not found")
			return nil
		}
		s.log.Errorw("game log lookup failed", "game", gameID, "err", err)
		s.sendError(c, "failed to load game log")
		return nil
	}

	head := protocol.GameLogHeader{
		GameID:      rec.GameID,
		Player1ID:   rec.Player1ID,
		Player2ID:   rec.Player2ID,
		Player1Name: rec.Player1Name,
		Player2Name: rec.Player2Name,
		BoardSize:   rec.BoardSize,
		WinnerID:    rec.WinnerID,
		Result:      rec.Result,
		TotalMoves:  uint32(len(rec.Moves)),
		Duration:    rec.Duration,
		Timestamp:   uint64(rec.StartTime),
	}.Encode()

	records := make([][]byte, 0, len(rec.Moves))
	for _, mv := range rec.Moves {
		records = append(records, protocol.MoveLogEntry{
			MoveNumber: mv.MoveNumber,
			PlayerID:   mv.PlayerID,
			X:          mv.X,
			Y:          mv.Y,
			Timestamp:  mv.Timestamp,
		}.Encode())
	}

	return c.sendStream(protocol.MsgGameLogResponse, sess.UserID, head, records)
}

func (s *Server) handleGetGameHistory(c *client, sess *session.Session) error {
	recs, err := s.store.UserGameHistory(sess.UserID, database.DefaultHistoryLimit)
	if err != nil {
		s.log.Errorw("history lookup failed", "user", sess.UserID, "err", err)
		s.sendError(c, "failed to load game history")
		return nil
	}

	records := make([][]byte, 0, len(recs))
	for _, rec := range recs {
		records = append(records, historyEntry(rec, sess.UserID).Encode())
	}

	return c.sendStream(protocol.MsgGameHistoryResponse, sess.UserID, protocol.EncodeU32(uint32(len(records))), records)
}

// historyEntry reorients a stored record to the requesting player: the
// opponent fields name the other side, the result becomes win/loss/draw
// from the requester's seat, and a loss shows the rating change as
// negative.
func historyEntry(rec types.GameRecord, userID uint32) protocol.GameHistoryEntry {
	e := protocol.GameHistoryEntry{
		GameID:    rec.GameID,
		Timestamp: uint64(rec.StartTime),
	}

	if rec.Player1ID == userID {
		e.OpponentID = rec.Player2ID
		e.OpponentName = rec.Player2Name
	} else {
		e.OpponentID = rec.Player1ID
		e.OpponentName = rec.Player1Name
	}

	switch {
	case rec.Result == types.ResultDraw:
		e.Result = 2
	case rec.WinnerID == userID:
		e.Result = 0
		e.EloChange = rec.EloChange
	default:
		e.Result = 1
		e.EloChange = -rec.EloChange
	}
	return e
}
