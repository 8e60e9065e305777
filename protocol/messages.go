package protocol

import "encoding/binary"

// Packed payload sizes. Fixed-width name fields are NUL-padded byte arrays
// (32 for usernames, 64 for email/password), matching the client structs.
const (
	LoginRequestSize      = 96
	RegisterRequestSize   = 160
	LoginResponseSize     = 145
	ChallengeRequestSize  = 7
	ChallengeNoticeSize   = 43
	ChallengeDeclinedSize = 40
	GameStartSize         = 87
	MoveRequestSize       = 6
	MoveResponseSize      = 16
	GameOverSize          = 47
	PlayerInfoSize        = 46
	DrawRequestSize       = 4
	RematchRequestSize    = 8
	MoveLogEntrySize      = 14
	GameLogHeaderSize     = 98
	GameHistoryEntrySize  = 51
	TimeUpdateSize        = 8
	ResignRequestSize     = 4
)

// LoginRequest: username[32], password[64].
type LoginRequest struct {
	Username string
	Password string
}

func (m LoginRequest) Encode() []byte {
	b := make([]byte, LoginRequestSize)
	putString(b[0:32], m.Username)
	putString(b[32:96], m.Password)
	return b
}

func DecodeLoginRequest(b []byte) (LoginRequest, error) {
	if len(b) < LoginRequestSize {
		return LoginRequest{}, ErrShortPayload
	}
	return LoginRequest{Username: cstr(b[0:32]), Password: cstr(b[32:96])}, nil
}

// RegisterRequest: username[32], email[64], password[64].
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

func (m RegisterRequest) Encode() []byte {
	b := make([]byte, RegisterRequestSize)
	putString(b[0:32], m.Username)
	putString(b[32:96], m.Email)
	putString(b[96:160], m.Password)
	return b
}

func DecodeRegisterRequest(b []byte) (RegisterRequest, error) {
	if len(b) < RegisterRequestSize {
		return RegisterRequest{}, ErrShortPayload
	}
	return RegisterRequest{
		Username: cstr(b[0:32]),
		Email:    cstr(b[32:96]),
		Password: cstr(b[96:160]),
	}, nil
}

// LoginResponse doubles as the register response; only Success and Message
// are meaningful there.
type LoginResponse struct {
	Success   uint8
	UserID    uint32
	SessionID uint32
	Elo       uint16
	Wins      uint16
	Losses    uint16
	Draws     uint16
	Message   string
}

func (m LoginResponse) Encode() []byte {
	b := make([]byte, LoginResponseSize)
	b[0] = m.Success
	binary.LittleEndian.PutUint32(b[1:], m.UserID)
	binary.LittleEndian.PutUint32(b[5:], m.SessionID)
	binary.LittleEndian.PutUint16(b[9:], m.Elo)
	binary.LittleEndian.PutUint16(b[11:], m.Wins)
	binary.LittleEndian.PutUint16(b[13:], m.Losses)
	binary.LittleEndian.PutUint16(b[15:], m.Draws)
	putString(b[17:145], m.Message)
	return b
}

func DecodeLoginResponse(b []byte) (LoginResponse, error) {
	if len(b) < LoginResponseSize {
		return LoginResponse{}, ErrShortPayload
	}
	return LoginResponse{
		Success:   b[0],
		UserID:    binary.LittleEndian.Uint32(b[1:]),
		SessionID: binary.LittleEndian.Uint32(b[5:]),
		Elo:       binary.LittleEndian.Uint16(b[9:]),
		Wins:      binary.LittleEndian.Uint16(b[11:]),
		Losses:    binary.LittleEndian.Uint16(b[13:]),
		Draws:     binary.LittleEndian.Uint16(b[15:]),
		Message:   cstr(b[17:145]),
	}, nil
}

// ChallengeRequest: targetUserId u32, boardSize u8, timeLimit u16.
type ChallengeRequest struct {
	TargetUserID uint32
	BoardSize    uint8
	TimeLimit    uint16
}

func (m ChallengeRequest) Encode() []byte {
	b := make([]byte, ChallengeRequestSize)
	binary.LittleEndian.PutUint32(b[0:], m.TargetUserID)
	b[4] = m.BoardSize
	binary.LittleEndian.PutUint16(b[5:], m.TimeLimit)
	return b
}

func DecodeChallengeRequest(b []byte) (ChallengeRequest, error) {
	if len(b) < ChallengeRequestSize {
		return ChallengeRequest{}, ErrShortPayload
	}
	return ChallengeRequest{
		TargetUserID: binary.LittleEndian.Uint32(b[0:]),
		BoardSize:    b[4],
		TimeLimit:    binary.LittleEndian.Uint16(b[5:]),
	}, nil
}

// ChallengeNotice is delivered to the challenged player.
type ChallengeNotice struct {
	ChallengeID    uint32
	ChallengerID   uint32
	ChallengerName string
	BoardSize      uint8
	TimeLimit      uint16
}

func (m ChallengeNotice) Encode() []byte {
	b := make([]byte, ChallengeNoticeSize)
	binary.LittleEndian.PutUint32(b[0:], m.ChallengeID)
	binary.LittleEndian.PutUint32(b[4:], m.ChallengerID)
	putString(b[8:40], m.ChallengerName)
	b[40] = m.BoardSize
	binary.LittleEndian.PutUint16(b[41:], m.TimeLimit)
	return b
}

func DecodeChallengeNotice(b []byte) (ChallengeNotice, error) {
	if len(b) < ChallengeNoticeSize {
		return ChallengeNotice{}, ErrShortPayload
	}
	return ChallengeNotice{
		ChallengeID:    binary.LittleEndian.Uint32(b[0:]),
		ChallengerID:   binary.LittleEndian.Uint32(b[4:]),
		ChallengerName: cstr(b[8:40]),
		BoardSize:      b[40],
		TimeLimit:      binary.LittleEndian.Uint16(b[41:]),
	}, nil
}

// ChallengeDeclined notifies the challenger.
type ChallengeDeclined struct {
	ChallengeID  uint32
	DeclinerID   uint32
	DeclinerName string
}

func (m ChallengeDeclined) Encode() []byte {
	b := make([]byte, ChallengeDeclinedSize)
	binary.LittleEndian.PutUint32(b[0:], m.ChallengeID)
	binary.LittleEndian.PutUint32(b[4:], m.DeclinerID)
	putString(b[8:40], m.DeclinerName)
	return b
}

// GameStart is broadcast to both participants when a match begins.
type GameStart struct {
	GameID      uint32
	Player1ID   uint32
	Player2ID   uint32
	Player1Name string
	Player2Name string
	BoardSize   uint8
	CurrentTurn uint32
	TimeLimit   uint16
	Player1Time uint16
	Player2Time uint16
}

func (m GameStart) Encode() []byte {
	b := make([]byte, GameStartSize)
	binary.LittleEndian.PutUint32(b[0:], m.GameID)
	binary.LittleEndian.PutUint32(b[4:], m.Player1ID)
	binary.LittleEndian.PutUint32(b[8:], m.Player2ID)
	putString(b[12:44], m.Player1Name)
	putString(b[44:76], m.Player2Name)
	b[76] = m.BoardSize
	binary.LittleEndian.PutUint32(b[77:], m.CurrentTurn)
	binary.LittleEndian.PutUint16(b[81:], m.TimeLimit)
	binary.LittleEndian.PutUint16(b[83:], m.Player1Time)
	binary.LittleEndian.PutUint16(b[85:], m.Player2Time)
	return b
}

func DecodeGameStart(b []byte) (GameStart, error) {
	if len(b) < GameStartSize {
		return GameStart{}, ErrShortPayload
	}
	return GameStart{
		GameID:      binary.LittleEndian.Uint32(b[0:]),
		Player1ID:   binary.LittleEndian.Uint32(b[4:]),
		Player2ID:   binary.LittleEndian.Uint32(b[8:]),
		Player1Name: cstr(b[12:44]),
		Player2Name: cstr(b[44:76]),
		BoardSize:   b[76],
		CurrentTurn: binary.LittleEndian.Uint32(b[77:]),
		TimeLimit:   binary.LittleEndian.Uint16(b[81:]),
		Player1Time: binary.LittleEndian.Uint16(b[83:]),
		Player2Time: binary.LittleEndian.Uint16(b[85:]),
	}, nil
}

// MoveRequest: gameId u32, x u8, y u8.
type MoveRequest struct {
	GameID uint32
	X      uint8
	Y      uint8
}

func (m MoveRequest) Encode() []byte {
	b := make([]byte, MoveRequestSize)
	binary.LittleEndian.PutUint32(b[0:], m.GameID)
	b[4] = m.X
	b[5] = m.Y
	return b
}

func DecodeMoveRequest(b []byte) (MoveRequest, error) {
	if len(b) < MoveRequestSize {
		return MoveRequest{}, ErrShortPayload
	}
	return MoveRequest{
		GameID: binary.LittleEndian.Uint32(b[0:]),
		X:      b[4],
		Y:      b[5],
	}, nil
}

// MoveResponse carries an applied move and both clocks to both players.
type MoveResponse struct {
	Success     uint8
	X           uint8
	Y           uint8
	Player      uint8
	NextTurn    uint32
	Player1Time uint16
	Player2Time uint16
	MoveNumber  uint32
}

func (m MoveResponse) Encode() []byte {
	b := make([]byte, MoveResponseSize)
	b[0] = m.Success
	b[1] = m.X
	b[2] = m.Y
	b[3] = m.Player
	binary.LittleEndian.PutUint32(b[4:], m.NextTurn)
	binary.LittleEndian.PutUint16(b[8:], m.Player1Time)
	binary.LittleEndian.PutUint16(b[10:], m.Player2Time)
	binary.LittleEndian.PutUint32(b[12:], m.MoveNumber)
	return b
}

func DecodeMoveResponse(b []byte) (MoveResponse, error) {
	if len(b) < MoveResponseSize {
		return MoveResponse{}, ErrShortPayload
	}
	return MoveResponse{
		Success:     b[0],
		X:           b[1],
		Y:           b[2],
		Player:      b[3],
		NextTurn:    binary.LittleEndian.Uint32(b[4:]),
		Player1Time: binary.LittleEndian.Uint16(b[8:]),
		Player2Time: binary.LittleEndian.Uint16(b[10:]),
		MoveNumber:  binary.LittleEndian.Uint32(b[12:]),
	}, nil
}

// GameOver terminates a match for both players. WinnerID 0 means draw.
type GameOver struct {
	GameID     uint32
	WinnerID   uint32
	WinnerName string
	EloChange  int16
	Reason     uint8
	TotalMoves uint32
}

func (m GameOver) Encode() []byte {
	b := make([]byte, GameOverSize)
	binary.LittleEndian.PutUint32(b[0:], m.GameID)
	binary.LittleEndian.PutUint32(b[4:], m.WinnerID)
	putString(b[8:40], m.WinnerName)
	binary.LittleEndian.PutUint16(b[40:], uint16(m.EloChange))
	b[42] = m.Reason
	binary.LittleEndian.PutUint32(b[43:], m.TotalMoves)
	return b
}

func DecodeGameOver(b []byte) (GameOver, error) {
	if len(b) < GameOverSize {
		return GameOver{}, ErrShortPayload
	}
	return GameOver{
		GameID:     binary.LittleEndian.Uint32(b[0:]),
		WinnerID:   binary.LittleEndian.Uint32(b[4:]),
		WinnerName: cstr(b[8:40]),
		EloChange:  int16(binary.LittleEndian.Uint16(b[40:])),
		Reason:     b[42],
		TotalMoves: binary.LittleEndian.Uint32(b[43:]),
	}, nil
}

// PlayerInfo is one record of the online-player list stream.
type PlayerInfo struct {
	UserID   uint32
	Username string
	Elo      uint16
	Wins     uint16
	Losses   uint16
	Draws    uint16
	IsOnline uint8
	InGame   uint8
}

func (m PlayerInfo) Encode() []byte {
	b := make([]byte, PlayerInfoSize)
	binary.LittleEndian.PutUint32(b[0:], m.UserID)
	putString(b[4:36], m.Username)
	binary.LittleEndian.PutUint16(b[36:], m.Elo)
	binary.LittleEndian.PutUint16(b[38:], m.Wins)
	binary.LittleEndian.PutUint16(b[40:], m.Losses)
	binary.LittleEndian.PutUint16(b[42:], m.Draws)
	b[44] = m.IsOnline
	b[45] = m.InGame
	return b
}

func DecodePlayerInfo(b []byte) (PlayerInfo, error) {
	if len(b) < PlayerInfoSize {
		return PlayerInfo{}, ErrShortPayload
	}
	return PlayerInfo{
		UserID:   binary.LittleEndian.Uint32(b[0:]),
		Username: cstr(b[4:36]),
		Elo:      binary.LittleEndian.Uint16(b[36:]),
		Wins:     binary.LittleEndian.Uint16(b[38:]),
		Losses:   binary.LittleEndian.Uint16(b[40:]),
		Draws:    binary.LittleEndian.Uint16(b[42:]),
		IsOnline: b[44],
		InGame:   b[45],
	}, nil
}

// DrawRequest covers offer, accept and decline: just the game id.
type DrawRequest struct {
	GameID uint32
}

func (m DrawRequest) Encode() []byte {
	b := make([]byte, DrawRequestSize)
	binary.LittleEndian.PutUint32(b[0:], m.GameID)
	return b
}

func DecodeDrawRequest(b []byte) (DrawRequest, error) {
	if len(b) < DrawRequestSize {
		return DrawRequest{}, ErrShortPayload
	}
	return DrawRequest{GameID: binary.LittleEndian.Uint32(b[0:])}, nil
}

// ResignRequest: just the game id.
type ResignRequest struct {
	GameID uint32
}

func DecodeResignRequest(b []byte) (ResignRequest, error) {
	if len(b) < ResignRequestSize {
		return ResignRequest{}, ErrShortPayload
	}
	return ResignRequest{GameID: binary.LittleEndian.Uint32(b[0:])}, nil
}

// RematchRequest: lastGameId u32, opponentId u32.
type RematchRequest struct {
	LastGameID uint32
	OpponentID uint32
}

func (m RematchRequest) Encode() []byte {
	b := make([]byte, RematchRequestSize)
	binary.LittleEndian.PutUint32(b[0:], m.LastGameID)
	binary.LittleEndian.PutUint32(b[4:], m.OpponentID)
	return b
}

func DecodeRematchRequest(b []byte) (RematchRequest, error) {
	if len(b) < RematchRequestSize {
		return RematchRequest{}, ErrShortPayload
	}
	return RematchRequest{
		LastGameID: binary.LittleEndian.Uint32(b[0:]),
		OpponentID: binary.LittleEndian.Uint32(b[4:]),
	}, nil
}

// MoveLogEntry is one record of the game-log stream.
type MoveLogEntry struct {
	MoveNumber uint32
	PlayerID   uint32
	X          uint8
	Y          uint8
	Timestamp  uint32
}

func (m MoveLogEntry) Encode() []byte {
	b := make([]byte, MoveLogEntrySize)
	binary.LittleEndian.PutUint32(b[0:], m.MoveNumber)
	binary.LittleEndian.PutUint32(b[4:], m.PlayerID)
	b[8] = m.X
	b[9] = m.Y
	binary.LittleEndian.PutUint32(b[10:], m.Timestamp)
	return b
}

// GameLogHeader precedes the MoveLogEntry stream of a replay.
type GameLogHeader struct {
	GameID      uint32
	Player1ID   uint32
	Player2ID   uint32
	Player1Name string
	Player2Name string
	BoardSize   uint8
	WinnerID    uint32
	Result      uint8
	TotalMoves  uint32
	Duration    uint32
	Timestamp   uint64
}

func (m GameLogHeader) Encode() []byte {
	b := make([]byte, GameLogHeaderSize)
	binary.LittleEndian.PutUint32(b[0:], m.GameID)
	binary.LittleEndian.PutUint32(b[4:], m.Player1ID)
	binary.LittleEndian.PutUint32(b[8:], m.Player2ID)
	putString(b[12:44], m.Player1Name)
	putString(b[44:76], m.Player2Name)
	b[76] = m.BoardSize
	binary.LittleEndian.PutUint32(b[77:], m.WinnerID)
	b[81] = m.Result
	binary.LittleEndian.PutUint32(b[82:], m.TotalMoves)
	binary.LittleEndian.PutUint32(b[86:], m.Duration)
	binary.LittleEndian.PutUint64(b[90:], m.Timestamp)
	return b
}

// GameHistoryEntry is one record of the history stream, oriented from the
// requesting player's point of view.
type GameHistoryEntry struct {
	GameID       uint32
	OpponentID   uint32
	OpponentName string
	Result       uint8
	EloChange    int16
	Timestamp    uint64
}

func (m GameHistoryEntry) Encode() []byte {
	b := make([]byte, GameHistoryEntrySize)
	binary.LittleEndian.PutUint32(b[0:], m.GameID)
	binary.LittleEndian.PutUint32(b[4:], m.OpponentID)
	putString(b[8:40], m.OpponentName)
	b[40] = m.Result
	binary.LittleEndian.PutUint16(b[41:], uint16(m.EloChange))
	binary.LittleEndian.PutUint64(b[43:], m.Timestamp)
	return b
}

// TimeUpdate reports both clocks mid-game.
type TimeUpdate struct {
	GameID      uint32
	Player1Time uint16
	Player2Time uint16
}

func (m TimeUpdate) Encode() []byte {
	b := make([]byte, TimeUpdateSize)
	binary.LittleEndian.PutUint32(b[0:], m.GameID)
	binary.LittleEndian.PutUint16(b[4:], m.Player1Time)
	binary.LittleEndian.PutUint16(b[6:], m.Player2Time)
	return b
}

// DecodeU32 reads the bare u32 payload used by challenge/rematch accept
// and decline and the log query.
func DecodeU32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrShortPayload
	}
	return binary.LittleEndian.Uint32(b), nil
}

// EncodeU32 frames a bare u32: a challenge id confirmation or the count
// that precedes a record stream.
func EncodeU32(n uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, n)
	return b
}
