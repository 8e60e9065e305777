package server

import (
	"gomoku-server/protocol"
	"gomoku-server/session"
)

func (s *Server) handleMakeMove(c *client, sess *session.Session, payload []byte) error {
	req, err := protocol.DecodeMoveRequest(payload)
	if err != nil {
		return err
	}

	if err := s.eng.ApplyMove(req.GameID, sess.UserID, req.X, req.Y); err != nil {
		s.sendError(c, err.Error())
	}
	return nil
}

func (s *Server) handleResign(c *client, sess *session.Session, payload []byte) error {
	req, err := protocol.DecodeResignRequest(payload)
	if err != nil {
		return err
	}

	if err := s.eng.Resign(req.GameID, sess.UserID); err != nil {
		s.sendError(c, err.Error())
	}
	return nil
}

// handleDraw covers offer, accept and decline; the payload shape is the
// same for all three, only the engine call differs.
func (s *Server) handleDraw(c *client, sess *session.Session, payload []byte, apply func(gameID, playerID uint32) error) error {
	req, err := protocol.DecodeDrawRequest(payload)
	if err != nil {
		return err
	}

	if err := apply(req.GameID, sess.UserID); err != nil {
		s.sendError(c, err.Error())
	}
	return nil
}
