// Package protocol implements the fixed-layout binary wire protocol shared
// with the terminal client. Every message is a 14-byte little-endian header
// followed by exactly Length bytes of a type-specific packed payload. The
// byte layout must stay bit-exact across client and server builds.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Message types.
const (
	// Authentication
	MsgRegister         uint16 = 1
	MsgRegisterResponse uint16 = 2
	MsgLogin            uint16 = 3
	MsgLoginResponse    uint16 = 4
	MsgLogout           uint16 = 5

	// Player list
	MsgGetOnlinePlayers  uint16 = 10
	MsgOnlinePlayersList uint16 = 11

	// Challenge lifecycle
	MsgSendChallenge     uint16 = 20
	MsgChallengeReceived uint16 = 21
	MsgAcceptChallenge   uint16 = 22
	MsgDeclineChallenge  uint16 = 23
	MsgChallengeResponse uint16 = 24
	MsgChallengeDeclined uint16 = 25

	// Game play
	MsgGameStart    uint16 = 30
	MsgMakeMove     uint16 = 31
	MsgMoveResponse uint16 = 32
	MsgOpponentMove uint16 = 33
	MsgGameOver     uint16 = 34

	// Resignation / draw
	MsgResign       uint16 = 40
	MsgOfferDraw    uint16 = 41
	MsgDrawReceived uint16 = 42
	MsgAcceptDraw   uint16 = 43
	MsgDeclineDraw  uint16 = 44
	MsgDrawResult   uint16 = 45

	// Rematch
	MsgRequestRematch  uint16 = 50
	MsgRematchReceived uint16 = 51
	MsgAcceptRematch   uint16 = 52
	MsgDeclineRematch  uint16 = 53
	MsgRematchDeclined uint16 = 54

	// Game logs & history
	MsgGetGameLog          uint16 = 60
	MsgGameLogResponse     uint16 = 61
	MsgGetGameHistory      uint16 = 62
	MsgGameHistoryResponse uint16 = 63
	MsgReplayGame          uint16 = 64
	MsgReplayData          uint16 = 65

	// Time management
	MsgTimeUpdate uint16 = 70
	MsgTimeOut    uint16 = 71

	MsgError uint16 = 99
)

// HeaderSize is the packed size of the message header.
const HeaderSize = 14

// MaxPayload bounds a single frame. Anything larger is a protocol fault
// and the connection carrying it gets closed.
const MaxPayload = 1 << 20

var (
	ErrShortPayload  = errors.New("protocol: payload shorter than message layout")
	ErrFrameTooLarge = errors.New("protocol: frame exceeds max payload")
)

// Header precedes every message on the wire.
type Header struct {
	Type      uint16
	Length    uint32
	UserID    uint32
	SessionID uint32
}

// Encode packs the header into its 14-byte wire form.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(b[0:], h.Type)
	binary.LittleEndian.PutUint32(b[2:], h.Length)
	binary.LittleEndian.PutUint32(b[6:], h.UserID)
	binary.LittleEndian.PutUint32(b[10:], h.SessionID)
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Type:      binary.LittleEndian.Uint16(b[0:]),
		Length:    binary.LittleEndian.Uint32(b[2:]),
		UserID:    binary.LittleEndian.Uint32(b[6:]),
		SessionID: binary.LittleEndian.Uint32(b[10:]),
	}
}

// ReadMessage reads one full frame: the header and exactly Length payload
// bytes. An oversized Length is reported without consuming the payload.
func ReadMessage(r io.Reader) (Header, []byte, error) {
	hb := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hb); err != nil {
		return Header{}, nil, err
	}
	h := decodeHeader(hb)
	if h.Length > MaxPayload {
		return h, nil, ErrFrameTooLarge
	}
	if h.Length == 0 {
		return h, nil, nil
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return h, nil, fmt.Errorf("protocol: truncated payload: %w", err)
	}
	return h, payload, nil
}

// WriteMessage frames and writes one message in a single Write call so
// concurrent senders on the same connection never interleave frames.
func WriteMessage(w io.Writer, msgType uint16, userID, sessionID uint32, payload []byte) error {
	h := Header{Type: msgType, Length: uint32(len(payload)), UserID: userID, SessionID: sessionID}
	frame := append(h.Encode(), payload...)
	_, err := w.Write(frame)
	return err
}

// EncodeError builds the generic error payload: a NUL-terminated string.
func EncodeError(msg string) []byte {
	return append([]byte(msg), 0)
}

// DecodeError reads a NUL-terminated error string.
func DecodeError(b []byte) string {
	return cstr(b)
}

// putString copies s into dst NUL-padded, truncating to leave room for
// the terminator like the client's fixed char arrays expect.
func putString(dst []byte, s string) {
	n := len(s)
	if n > len(dst)-1 {
		n = len(dst) - 1
	}
	copy(dst, s[:n])
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
