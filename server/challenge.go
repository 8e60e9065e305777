package server

import (
	"errors"

	"gomoku-server/broker"
	"gomoku-server/protocol"
	"gomoku-server/session"
)

func (s *Server) handleSendChallenge(c *client, sess *session.Session, payload []byte) error {
	req, err := protocol.DecodeChallengeRequest(payload)
	if err != nil {
		return err
	}

	challengeID, err := s.brk.CreateChallenge(sess.UserID, req.TargetUserID, req.BoardSize, req.TimeLimit)
	if err != nil {
		if errors.Is(err, broker.ErrBoardSize) {
			s.sendError(c, err.Error())
			return nil
		}
		s.log.Errorw("challenge not created", "challenger", sess.Username, "err", err)
		s.sendError(c, "failed to create challenge")
		return nil
	}

	s.reg.Send(req.TargetUserID, protocol.MsgChallengeReceived, protocol.ChallengeNotice{
		ChallengeID:    challengeID,
		ChallengerID:   sess.UserID,
		ChallengerName: sess.Username,
		BoardSize:      req.BoardSize,
		TimeLimit:      req.TimeLimit,
	}.Encode())
	s.log.Infow("challenge sent", "challenger", sess.Username, "target", req.TargetUserID)

	return c.Send(protocol.MsgChallengeResponse, sess.UserID, protocol.EncodeU32(challengeID))
}

func (s *Server) handleAcceptChallenge(c *client, sess *session.Session, payload []byte) error {
	challengeID, err := protocol.DecodeU32(payload)
	if err != nil {
		return err
	}

	ch, err := s.brk.AcceptChallenge(challengeID)
	if err != nil {
		s.sendError(c, "Challenge not found or expired")
		return nil
	}

	if _, err := s.eng.StartMatch(ch.ChallengerID, sess.UserID, ch.BoardSize, ch.TimeLimit); err != nil {
		s.log.Errorw("match not started", "challenge", challengeID, "err", err)
		s.sendError(c, "failed to start game")
	}
	return nil
}

func (s *Server) handleDeclineChallenge(c *client, sess *session.Session, payload []byte) error {
	challengeID, err := protocol.DecodeU32(payload)
	if err != nil {
		return err
	}

	ch, err := s.brk.DeclineChallenge(challengeID)
	if err != nil {
		// Already consumed or never existed; nothing to notify.
		return nil
	}

	s.reg.Send(ch.ChallengerID, protocol.MsgChallengeDeclined, protocol.ChallengeDeclined{
		ChallengeID:  challengeID,
		DeclinerID:   sess.UserID,
		DeclinerName: sess.Username,
	}.Encode())
	s.log.Infow("challenge declined", "decliner", sess.Username, "challenge", challengeID)
	return nil
}

func (s *Server) handleRequestRematch(c *client, sess *session.Session, payload []byte) error {
	req, err := protocol.DecodeRematchRequest(payload)
	if err != nil {
		return err
	}

	s.brk.RequestRematch(req.LastGameID, sess.UserID, req.OpponentID)

	// The receiver sees the requester as their opponent.
	s.reg.Send(req.OpponentID, protocol.MsgRematchReceived, protocol.RematchRequest{
		LastGameID: req.LastGameID,
		OpponentID: sess.UserID,
	}.Encode())
	s.log.Infow("rematch requested", "requester", sess.Username, "last_game", req.LastGameID)
	return nil
}

// handleAcceptRematch synthesizes a fresh challenge from the finished
// game and accepts it on the spot. The new game reuses the old board
// size but is untimed regardless of the original time control.
func (s *Server) handleAcceptRematch(c *client, sess *session.Session, payload []byte) error {
	lastGameID, err := protocol.DecodeU32(payload)
	if err != nil {
		return err
	}

	req, err := s.brk.AcceptRematch(lastGameID)
	if err != nil {
		s.sendError(c, "Rematch request not found")
		return nil
	}

	prev, err := s.store.GetGameRecord(req.LastGameID)
	if err != nil {
		s.sendError(c, "Game not found")
		return nil
	}

	challengeID, err := s.brk.CreateChallenge(req.RequesterID, sess.UserID, prev.BoardSize, 0)
	if err != nil {
		s.sendError(c, "failed to create challenge")
		return nil
	}
	ch, err := s.brk.AcceptChallenge(challengeID)
	if err != nil {
		s.sendError(c, "Challenge not found or expired")
		return nil
	}

	if _, err := s.eng.StartMatch(ch.ChallengerID, sess.UserID, ch.BoardSize, ch.TimeLimit); err != nil {
		s.log.Errorw("rematch not started", "last_game", lastGameID, "err", err)
		s.sendError(c, "failed to start game")
	}
	return nil
}

func (s *Server) handleDeclineRematch(c *client, sess *session.Session, payload []byte) error {
	lastGameID, err := protocol.DecodeU32(payload)
	if err != nil {
		return err
	}

	req, err := s.brk.DeclineRematch(lastGameID)
	if err != nil {
		return nil
	}

	s.reg.Send(req.RequesterID, protocol.MsgRematchDeclined, protocol.EncodeU32(lastGameID))
	s.log.Infow("rematch declined", "decliner", sess.Username, "last_game", lastGameID)
	return nil
}
