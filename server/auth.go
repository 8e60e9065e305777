package server

import (
	"errors"

	"gomoku-server/database"
	"gomoku-server/protocol"
	"gomoku-server/session"
)

func (s *Server) handleRegister(c *client, payload []byte) error {
	req, err := protocol.DecodeRegisterRequest(payload)
	if err != nil {
		return err
	}

	resp := protocol.LoginResponse{}
	if _, err := s.store.CreateUser(req.Username, req.Email, req.Password); err != nil {
		if !errors.Is(err, database.ErrUserExists) {
			s.log.Errorw("register failed", "user", req.Username, "err", err)
		}
		resp.Message = "Username already exists"
	} else {
		resp.Success = 1
		resp.Message = "Registration successful! Please login."
	}
	return c.Send(protocol.MsgRegisterResponse, 0, resp.Encode())
}

func (s *Server) handleLogin(c *client, payload []byte) error {
	req, err := protocol.DecodeLoginRequest(payload)
	if err != nil {
		return err
	}

	user, sess, err := s.reg.Login(c, req.Username, req.Password)
	if err != nil {
		resp := protocol.LoginResponse{Message: "Invalid username or password"}
		return c.Send(protocol.MsgLoginResponse, 0, resp.Encode())
	}

	resp := protocol.LoginResponse{
		Success:   1,
		UserID:    user.ID,
		SessionID: sess.Token,
		Elo:       user.Elo,
		Wins:      user.Wins,
		Losses:    user.Losses,
		Draws:     user.Draws,
		Message:   "Login successful!",
	}
	return c.Send(protocol.MsgLoginResponse, 0, resp.Encode())
}

// handleLogout releases the session but keeps the connection around so
// the client can log in again. Leaving a running match counts as a
// resignation, the same as dropping the connection.
func (s *Server) handleLogout(c *client) {
	if sess, ok := s.reg.Lookup(c); ok {
		s.eng.ForfeitActive(sess.UserID)
	}
	s.reg.Release(c)
}

func (s *Server) handleListOnline(c *client, sess *session.Session) error {
	users, err := s.reg.Online(sess.UserID)
	if err != nil {
		s.sendError(c, "failed to list players")
		return nil
	}

	records := make([][]byte, 0, len(users))
	for _, u := range users {
		info := protocol.PlayerInfo{
			UserID:   u.ID,
			Username: u.Username,
			Elo:      u.Elo,
			Wins:     u.Wins,
			Losses:   u.Losses,
			Draws:    u.Draws,
			IsOnline: 1,
		}
		if u.InGame {
			info.InGame = 1
		}
		records = append(records, info.Encode())
	}
	return c.sendStream(protocol.MsgOnlinePlayersList, sess.UserID,
		protocol.EncodeU32(uint32(len(records))), records)
}
