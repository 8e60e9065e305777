package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	payload := MoveRequest{GameID: 7, X: 3, Y: 11}.Encode()
	require.NoError(t, WriteMessage(&buf, MsgMakeMove, 42, 1001, payload))

	h, got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgMakeMove, h.Type)
	assert.Equal(t, uint32(42), h.UserID)
	assert.Equal(t, uint32(1001), h.SessionID)
	assert.Equal(t, uint32(len(payload)), h.Length)

	req, err := DecodeMoveRequest(got)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), req.GameID)
	assert.Equal(t, uint8(3), req.X)
	assert.Equal(t, uint8(11), req.Y)
}

func TestReadMessageEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, MsgGetGameHistory, 5, 0, nil))

	h, payload, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgGetGameHistory, h.Type)
	assert.Nil(t, payload)
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	h := Header{Type: MsgLogin, Length: 96}
	frame := append(h.Encode(), make([]byte, 10)...)

	_, _, err := ReadMessage(bytes.NewReader(frame))
	assert.Error(t, err)
}

func TestReadMessageOversizedFrame(t *testing.T) {
	h := Header{Type: MsgLogin, Length: MaxPayload + 1}
	_, _, err := ReadMessage(bytes.NewReader(h.Encode()))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecodeShortPayload(t *testing.T) {
	_, err := DecodeLoginRequest(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortPayload)

	_, err = DecodeMoveRequest(nil)
	assert.ErrorIs(t, err, ErrShortPayload)
}

// The client reads these as packed C structs, so the byte layout is pinned.
func TestPackedLayouts(t *testing.T) {
	login := LoginRequest{Username: "alice", Password: "secret"}.Encode()
	require.Len(t, login, LoginRequestSize)
	assert.Equal(t, byte('a'), login[0])
	assert.Equal(t, byte(0), login[5])
	assert.Equal(t, byte('s'), login[32])

	start := GameStart{
		GameID:      3,
		Player1ID:   1,
		Player2ID:   2,
		Player1Name: "alice",
		Player2Name: "bob",
		BoardSize:   15,
		CurrentTurn: 1,
		TimeLimit:   300,
		Player1Time: 300,
		Player2Time: 300,
	}.Encode()
	require.Len(t, start, GameStartSize)
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(start[0:]))
	assert.Equal(t, uint8(15), start[76])
	assert.Equal(t, uint16(300), binary.LittleEndian.Uint16(start[81:]))

	over := GameOver{GameID: 3, WinnerID: 1, WinnerName: "alice", EloChange: -16, Reason: 1, TotalMoves: 9}.Encode()
	require.Len(t, over, GameOverSize)
	decoded, err := DecodeGameOver(over)
	require.NoError(t, err)
	assert.Equal(t, int16(-16), decoded.EloChange)
	assert.Equal(t, uint8(1), decoded.Reason)
}

func TestLoginResponseRoundtrip(t *testing.T) {
	in := LoginResponse{
		Success:   1,
		UserID:    12,
		SessionID: 1003,
		Elo:       1016,
		Wins:      3,
		Losses:    1,
		Draws:     2,
		Message:   "Login successful",
	}
	out, err := DecodeLoginResponse(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStringFieldTruncation(t *testing.T) {
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'x'
	}
	b := LoginRequest{Username: string(long), Password: "p"}.Encode()
	// 31 chars plus terminator fit the 32-byte field.
	assert.Equal(t, byte('x'), b[30])
	assert.Equal(t, byte(0), b[31])

	req, err := DecodeLoginRequest(b)
	require.NoError(t, err)
	assert.Len(t, req.Username, 31)
}

func TestErrorPayload(t *testing.T) {
	b := EncodeError("not your turn")
	assert.Equal(t, byte(0), b[len(b)-1])
	assert.Equal(t, "not your turn", DecodeError(b))
}
