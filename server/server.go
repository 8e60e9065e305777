// Package server accepts TCP connections and runs one worker goroutine
// per client: read a frame, dispatch it, answer. Malformed frames close
// the connection; everything else is answered in place, with a generic
// error message for recoverable failures.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"gomoku-server/broker"
	"gomoku-server/database"
	"gomoku-server/engine"
	"gomoku-server/protocol"
	"gomoku-server/session"
)

// client is the sending half of one connection. The write mutex keeps
// frames from interleaving when the engine broadcasts concurrently with
// a handler reply.
type client struct {
	conn net.Conn
	wmu  sync.Mutex
}

func (c *client) Send(msgType uint16, userID uint32, payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return protocol.WriteMessage(c.conn, msgType, userID, 0, payload)
}

// sendStream writes one framed message followed by raw fixed-size
// records in a single Write, so list responses stay contiguous on the
// wire the way the client reads them.
func (c *client) sendStream(msgType uint16, userID uint32, head []byte, records [][]byte) error {
	h := protocol.Header{Type: msgType, Length: uint32(len(head)), UserID: userID}
	buf := make([]byte, 0, protocol.HeaderSize+len(head)+len(records)*64)
	buf = append(buf, h.Encode()...)
	buf = append(buf, head...)
	for _, r := range records {
		buf = append(buf, r...)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.conn.Write(buf)
	return err
}

func (c *client) Close() error { return c.conn.Close() }

// Server owns the listener and the per-connection workers.
type Server struct {
	log   *zap.SugaredLogger
	store database.Store
	reg   *session.Registry
	eng   *engine.Engine
	brk   *broker.Broker

	mu    sync.Mutex
	conns map[*client]struct{}
	wg    sync.WaitGroup
}

func New(store database.Store, reg *session.Registry, eng *engine.Engine, brk *broker.Broker, log *zap.SugaredLogger) *Server {
	return &Server{
		log:   log,
		store: store,
		reg:   reg,
		eng:   eng,
		brk:   brk,
		conns: make(map[*client]struct{}),
	}
}

// Listen serves until ctx is cancelled, then closes the listener and all
// live connections and joins every worker before returning.
func (s *Server) Listen(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	s.log.Infow("server listening", "port", port)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.log.Warnw("accept failed", "err", err)
			continue
		}

		c := &client{conn: conn}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(c)
		}()
	}

	s.wg.Wait()
	return nil
}

func (s *Server) serve(c *client) {
	s.log.Infow("client connected", "remote", c.conn.RemoteAddr())
	defer s.disconnect(c)

	for {
		h, payload, err := protocol.ReadMessage(c.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Infow("closing connection", "remote", c.conn.RemoteAddr(), "err", err)
			}
			return
		}
		if err := s.dispatch(c, h, payload); err != nil {
			// A handler error means the frame itself was malformed;
			// recoverable faults were already answered in place.
			s.log.Infow("protocol fault", "remote", c.conn.RemoteAddr(), "type", h.Type, "err", err)
			return
		}
	}
}

// disconnect settles a departing connection: an active match becomes a
// resignation, then the session is released. Match lock before session
// lock, same order as every delivery path.
func (s *Server) disconnect(c *client) {
	if sess, ok := s.reg.Lookup(c); ok {
		s.eng.ForfeitActive(sess.UserID)
	}
	s.reg.Release(c)

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	_ = c.Close()
	s.log.Infow("client disconnected", "remote", c.conn.RemoteAddr())
}

// dispatch routes one frame. Returned errors are connection-fatal.
func (s *Server) dispatch(c *client, h protocol.Header, payload []byte) error {
	switch h.Type {
	case protocol.MsgRegister:
		return s.handleRegister(c, payload)
	case protocol.MsgLogin:
		return s.handleLogin(c, payload)
	case protocol.MsgLogout:
		s.handleLogout(c)
		return nil
	}

	sess, ok := s.reg.Lookup(c)
	if !ok {
		s.sendError(c, "not logged in")
		return nil
	}

	switch h.Type {
	case protocol.MsgGetOnlinePlayers:
		return s.handleListOnline(c, sess)
	case protocol.MsgSendChallenge:
		return s.handleSendChallenge(c, sess, payload)
	case protocol.MsgAcceptChallenge:
		return s.handleAcceptChallenge(c, sess, payload)
	case protocol.MsgDeclineChallenge:
		return s.handleDeclineChallenge(c, sess, payload)
	case protocol.MsgMakeMove:
		return s.handleMakeMove(c, sess, payload)
	case protocol.MsgResign:
		return s.handleResign(c, sess, payload)
	case protocol.MsgOfferDraw:
		return s.handleDraw(c, sess, payload, s.eng.OfferDraw)
	case protocol.MsgAcceptDraw:
		return s.handleDraw(c, sess, payload, s.eng.AcceptDraw)
	case protocol.MsgDeclineDraw:
		return s.handleDraw(c, sess, payload, s.eng.DeclineDraw)
	case protocol.MsgRequestRematch:
		return s.handleRequestRematch(c, sess, payload)
	case protocol.MsgAcceptRematch:
		return s.handleAcceptRematch(c, sess, payload)
	case protocol.MsgDeclineRematch:
		return s.handleDeclineRematch(c, sess, payload)
	case protocol.MsgGetGameLog:
		return s.handleGetGameLog(c, sess, payload)
	case protocol.MsgGetGameHistory:
		return s.handleGetGameHistory(c, sess)
	default:
		s.log.Warnw("unknown message type", "type", h.Type)
		s.sendError(c, "unknown message type")
		return nil
	}
}

func (s *Server) sendError(c *client, msg string) {
	if err := c.Send(protocol.MsgError, 0, protocol.EncodeError(msg)); err != nil {
		s.log.Warnw("error reply not sent", "err", err)
	}
}
