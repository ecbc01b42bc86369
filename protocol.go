package main

import "encoding/json"

// Client -> Server message types
const (
	MsgRegister        = "register"
	MsgResume          = "resume"
	MsgCreateRoom      = "createRoom"
	MsgJoinRoom        = "joinRoom"
	MsgLeaveRoom       = "leaveRoom"
	MsgGetRoomList     = "getRoomList"
	MsgGetRoomInfo     = "getRoomInfo"
	MsgStartCountdown  = "startCountdown"
	MsgCancelCountdown = "cancelCountdown"
	MsgInput           = "input"
	MsgChat            = "chatMessage"
)

// Server -> Client message types
const (
	MsgRegistered         = "registered"
	MsgRoomCreated        = "roomCreated"
	MsgRoomJoined         = "roomJoined"
	MsgRoomLeft           = "roomLeft"
	MsgRoomList           = "roomList"
	MsgRoomInfo           = "roomInfo"
	MsgPlayerJoined       = "playerJoined"
	MsgPlayerLeft         = "playerLeft"
	MsgHostChanged        = "hostChanged"
	MsgCountdownStart     = "countdownStart"
	MsgCountdownUpdate    = "countdownUpdate"
	MsgCountdownCancelled = "countdownCancelled"
	MsgGameStart          = "gameStart"
	MsgGameEnd            = "gameEnd"
	MsgGameState          = "gameState"
	MsgHookActivated      = "hookActivated"
	MsgHookMiss           = "hookMiss"
	MsgHookHit            = "hookHit"
	MsgPlayerKilled       = "playerKilled"
	MsgDeath              = "death"
	MsgRespawn            = "respawn"
	MsgServerShutdown     = "serverShutdown"
	MsgError              = "error"
)

// Rejection reasons carried by error messages
const (
	ErrNotRegistered     = "not_registered"
	ErrAlreadyRegistered = "already_registered"
	ErrAlreadyConnected  = "already_connected"
	ErrInvalidMessage    = "invalid_message"
	ErrInvalidToken      = "invalid_token"
	ErrRoomNotFound      = "room_not_found"
	ErrRoomFull          = "room_full"
	ErrGameInProgress    = "game_in_progress"
	ErrNotEnoughPlayers  = "not_enough_players"
	ErrNotHost           = "not_host"
	ErrNotInRoom         = "not_in_room"
	ErrAlreadyInRoom     = "already_in_room"
	ErrWrongPassword     = "wrong_password"
	ErrTooManyRooms      = "too_many_rooms"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages - json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// RegisterMsg asks for a player identity
type RegisterMsg struct {
	Name string `json:"name"`
}

// ResumeMsg reclaims a previous identity after a reconnect
type ResumeMsg struct {
	Token string `json:"token"`
}

// RegisteredMsg confirms a player identity
type RegisteredMsg struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Token    string `json:"token"`
}

// CreateRoomMsg creates a room; the creator becomes host and auto-joins
type CreateRoomMsg struct {
	RoomName string `json:"roomName"`
	Password string `json:"password,omitempty"`
}

// JoinRoomMsg joins an existing room
type JoinRoomMsg struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
}

// GetRoomInfoMsg requests a single room's info
type GetRoomInfoMsg struct {
	RoomID string `json:"roomId"`
}

// InputMsg carries one input snapshot with its sequence number
type InputMsg struct {
	Up        bool    `json:"up"`
	Down      bool    `json:"down"`
	Left      bool    `json:"left"`
	Right     bool    `json:"right"`
	Hook      bool    `json:"hook"`
	HookAngle float64 `json:"hookAngle"`
	Sequence  uint32  `json:"sequence"`
}

// ChatMsg relays a chat line (room-scoped, or global when not in a room)
type ChatMsg struct {
	PlayerID   string `json:"playerId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	Message    string `json:"message"`
	Global     bool   `json:"global,omitempty"`
}

// HookState is the wire form of a player's hook
type HookState struct {
	Active   bool    `json:"active" msgpack:"a"`
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Cooldown float64 `json:"cooldown" msgpack:"cd"`
}

// PlayerState is the full player state (join/lobby/gameStart payloads)
type PlayerState struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	VX     float64   `json:"vx"`
	VY     float64   `json:"vy"`
	HP     int       `json:"hp"`
	MaxHP  int       `json:"maxHp"`
	Dead   bool      `json:"isDead"`
	Color  string    `json:"color"`
	Kills  int       `json:"kills"`
	Deaths int       `json:"deaths"`
	Hook   HookState `json:"hook"`
}

// PlayerSyncState is the compact per-tick state, msgpack-encoded
type PlayerSyncState struct {
	ID   string    `msgpack:"id"`
	X    float64   `msgpack:"x"`
	Y    float64   `msgpack:"y"`
	HP   int       `msgpack:"hp"`
	Dead bool      `msgpack:"d"`
	Hook HookState `msgpack:"h"`
}

// GameStateMsg is the periodic full-state snapshot, sent as a binary
// msgpack frame rather than JSON
type GameStateMsg struct {
	Timestamp int64             `msgpack:"ts"` // unix millis
	Players   []PlayerSyncState `msgpack:"p"`
}

// PlayerJoinedMsg announces a new room member to the others
type PlayerJoinedMsg struct {
	Player PlayerState `json:"player"`
}

// PlayerLeftMsg announces a member leaving
type PlayerLeftMsg struct {
	PlayerID string `json:"playerId"`
}

// HostChangedMsg announces host reassignment after the host left
type HostChangedMsg struct {
	HostID string `json:"hostId"`
}

// CountdownStartMsg carries the countdown duration in millis
type CountdownStartMsg struct {
	Duration int64 `json:"duration"`
}

// CountdownUpdateMsg carries the remaining countdown in millis
type CountdownUpdateMsg struct {
	Remaining int64 `json:"remaining"`
}

// ArenaInfo carries the arena dimensions
type ArenaInfo struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// GameStartMsg carries the reset member list and arena dimensions
type GameStartMsg struct {
	Players []PlayerState `json:"players"`
	Arena   ArenaInfo     `json:"arena"`
}

// LeaderboardEntry is one row of the end-of-match ranking
type LeaderboardEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
	HooksHit int    `json:"hooksHit"`
	Score    int    `json:"score"`
}

// GameEndMsg carries the winner (nil for no winner) and the leaderboard
type GameEndMsg struct {
	Winner      *PlayerState       `json:"winner"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// HookActivatedMsg announces a hook being fired
type HookActivatedMsg struct {
	PlayerID string  `json:"playerId"`
	Angle    float64 `json:"angle"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// HookMissMsg announces a hook retracting without a target
type HookMissMsg struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// HookHitMsg announces a hook connecting. Damage is zero when the hook
// first locks its target and non-zero on contact resolution.
type HookHitMsg struct {
	Shooter string  `json:"shooter"`
	Target  string  `json:"target"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Damage  int     `json:"damage,omitempty"`
}

// PlayerKilledMsg announces a kill to the whole room
type PlayerKilledMsg struct {
	Killer string `json:"killer"`
	Victim string `json:"victim"`
}

// DeathMsg is sent to the victim only, with the respawn delay in millis
type DeathMsg struct {
	RespawnIn int64 `json:"respawnIn"`
}

// RespawnMsg announces a player coming back to life
type RespawnMsg struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	HP       int     `json:"hp"`
}

// RoomInfo summarizes a room for listings and join confirmations
type RoomInfo struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	HostID      string        `json:"hostId"`
	State       string        `json:"state"`
	PlayerCount int           `json:"playerCount"`
	MaxPlayers  int           `json:"maxPlayers"`
	Private     bool          `json:"private,omitempty"`
	Players     []PlayerState `json:"players,omitempty"`
}

// RoomJoinedMsg confirms a join to the joining player
type RoomJoinedMsg struct {
	Room   RoomInfo    `json:"room"`
	Player PlayerState `json:"player"`
}

// ErrorMsg reports a rejected request or malformed message
type ErrorMsg struct {
	Error string `json:"error"`
}
