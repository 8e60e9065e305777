// Package session binds live connections to authenticated players. The
// registry is the only owner of the connection<->identity map; everything
// it does takes one lock for the duration of the bookkeeping and releases
// it before any network send.
package session

import (
	"sync"

	"go.uber.org/zap"

	"gomoku-server/database"
	"gomoku-server/types"
)

// Peer is the sending half of a client connection.
type Peer interface {
	Send(msgType uint16, userID uint32, payload []byte) error
	Close() error
}

// Session ties one connection to one logged-in player.
type Session struct {
	UserID   uint32
	Username string
	Token    uint32
	peer     Peer
}

// Registry tracks who is connected as whom.
type Registry struct {
	mu     sync.Mutex
	byUser map[uint32]*Session
	byPeer map[Peer]*Session
	next   uint32

	store database.Store
	log   *zap.SugaredLogger
}

func NewRegistry(store database.Store, log *zap.SugaredLogger) *Registry {
	return &Registry{
		byUser: make(map[uint32]*Session),
		byPeer: make(map[Peer]*Session),
		next:   1000,
		store:  store,
		log:    log,
	}
}

// Login authenticates and binds the connection. A second login for the
// same account evicts the earlier session: its connection is closed and
// the account follows the new one.
func (r *Registry) Login(peer Peer, username, password string) (types.User, *Session, error) {
	user, err := r.store.Authenticate(username, password)
	if err != nil {
		return types.User{}, nil, err
	}

	r.mu.Lock()
	var evicted Peer
	if old, ok := r.byUser[user.ID]; ok {
		evicted = old.peer
		delete(r.byPeer, old.peer)
	}
	r.next++
	sess := &Session{UserID: user.ID, Username: user.Username, Token: r.next, peer: peer}
	r.byUser[user.ID] = sess
	r.byPeer[peer] = sess
	r.mu.Unlock()

	if evicted != nil {
		r.log.Infow("session evicted by new login", "user", username)
		_ = evicted.Close()
	}

	if err := r.store.SetOnline(user.ID, true); err != nil {
		r.log.Warnw("online flag not set", "user", username, "err", err)
	}
	r.log.Infow("user logged in", "user", username, "id", user.ID)
	return user, sess, nil
}

// Lookup returns the session bound to the connection, if any.
func (r *Registry) Lookup(peer Peer) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byPeer[peer]
	return sess, ok
}

// Release unbinds the connection and marks the player offline. It does
// not touch match state; the caller settles any active match first.
func (r *Registry) Release(peer Peer) {
	r.mu.Lock()
	sess, ok := r.byPeer[peer]
	if ok {
		delete(r.byPeer, peer)
		if cur, live := r.byUser[sess.UserID]; live && cur == sess {
			delete(r.byUser, sess.UserID)
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := r.store.SetOnline(sess.UserID, false); err != nil {
		r.log.Warnw("offline flag not set", "user", sess.Username, "err", err)
	}
	r.log.Infow("user logged out", "user", sess.Username)
}

// Send delivers a message to a player's live connection, silently
// dropping it if the player is offline. Satisfies engine.Notifier.
func (r *Registry) Send(userID uint32, msgType uint16, payload []byte) {
	r.mu.Lock()
	sess, ok := r.byUser[userID]
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := sess.peer.Send(msgType, userID, payload); err != nil {
		r.log.Warnw("send failed", "user", sess.Username, "type", msgType, "err", err)
	}
}

// Online lists presence summaries for everyone online except the asker.
func (r *Registry) Online(excluding uint32) ([]types.User, error) {
	users, err := r.store.OnlineUsers()
	if err != nil {
		return nil, err
	}
	out := users[:0]
	for _, u := range users {
		if u.ID != excluding {
			out = append(out, u)
		}
	}
	return out, nil
}
