package main

import (
	"encoding/binary"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 120 // input arrives at tick-ish rates

	maxRoomNameLen = 30
	maxChatLen     = 200
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string

	playerID   string
	playerName string

	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		// Binary input frames: 8 bytes [0x01, flags, seq:4, angle:2]
		if msgType == websocket.BinaryMessage && len(message) == 8 && message[0] == 0x01 {
			c.handleBinaryInput(message)
		} else {
			c.handleMessage(message)
		}
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 0xFF prefix marks a binary frame (msgpack game state)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.sendError(ErrInvalidMessage)
		return
	}

	switch env.T {
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgResume:
		c.handleResume(env.D)
	case MsgCreateRoom:
		c.handleCreateRoom(env.D)
	case MsgJoinRoom:
		c.handleJoinRoom(env.D)
	case MsgLeaveRoom:
		c.handleLeaveRoom()
	case MsgGetRoomList:
		c.handleGetRoomList()
	case MsgGetRoomInfo:
		c.handleGetRoomInfo(env.D)
	case MsgStartCountdown:
		c.handleStartCountdown()
	case MsgCancelCountdown:
		c.handleCancelCountdown()
	case MsgInput:
		c.handleInput(env.D)
	case MsgChat:
		c.handleChat(env.D)
	default:
		log.Printf("unknown message type %q from %s", env.T, c.remoteAddr)
		c.sendError(ErrInvalidMessage)
	}
}

// handleBinaryInput decodes the compact 8-byte input frame:
// [0x01, flags, sequence uint32 BE, angle int16 BE milliradians]
func (c *Client) handleBinaryInput(msg []byte) {
	if c.playerID == "" {
		return
	}
	room := c.hub.rooms.GetPlayerRoom(c.playerID)
	if room == nil {
		return
	}

	flags := msg[1]
	seq := binary.BigEndian.Uint32(msg[2:6])
	angle := float64(int16(binary.BigEndian.Uint16(msg[6:8]))) / 1000.0

	room.HandleInput(c.playerID, InputMsg{
		Up:        flags&0x01 != 0,
		Down:      flags&0x02 != 0,
		Left:      flags&0x04 != 0,
		Right:     flags&0x08 != 0,
		Hook:      flags&0x10 != 0,
		HookAngle: angle,
		Sequence:  seq,
	})
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.playerID != "" {
		c.sendError(ErrAlreadyRegistered)
		return
	}
	var msg RegisterMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(ErrInvalidMessage)
			return
		}
	}

	playerID, name, token, err := c.hub.auth.RegisterGuest(msg.Name)
	if err != nil {
		c.sendError(ErrInvalidMessage)
		return
	}
	if !c.hub.BindPlayer(playerID, c) {
		c.sendError(ErrAlreadyConnected)
		return
	}

	c.playerID = playerID
	c.playerName = name
	c.SendJSON(Envelope{T: MsgRegistered, Data: RegisteredMsg{
		PlayerID: playerID,
		Name:     name,
		Token:    token,
	}})
	log.Printf("player registered: %s (%s)", name, playerID)
}

func (c *Client) handleResume(data json.RawMessage) {
	if c.playerID != "" {
		c.sendError(ErrAlreadyRegistered)
		return
	}
	var msg ResumeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrInvalidMessage)
		return
	}

	playerID, name, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.sendError(ErrInvalidToken)
		return
	}
	if !c.hub.BindPlayer(playerID, c) {
		c.sendError(ErrAlreadyConnected)
		return
	}

	c.playerID = playerID
	c.playerName = name
	c.SendJSON(Envelope{T: MsgRegistered, Data: RegisteredMsg{
		PlayerID: playerID,
		Name:     name,
		Token:    msg.Token,
	}})
	log.Printf("player resumed: %s (%s)", name, playerID)
}

func (c *Client) handleCreateRoom(data json.RawMessage) {
	if c.playerID == "" {
		c.sendError(ErrNotRegistered)
		return
	}
	var msg CreateRoomMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(ErrInvalidMessage)
			return
		}
	}

	if c.hub.rooms.GetPlayerRoom(c.playerID) != nil {
		c.sendError(ErrAlreadyInRoom)
		return
	}

	name := msg.RoomName
	if name == "" {
		name = c.playerName + "'s Room"
	}
	if len(name) > maxRoomNameLen {
		name = name[:maxRoomNameLen]
	}

	room, reason := c.hub.rooms.CreateRoom(c.playerID, name, msg.Password, DefaultRoomConfig())
	if reason != "" {
		c.sendError(reason)
		return
	}

	// Creator joins their own room immediately
	state, reason := c.hub.rooms.JoinRoom(room.ID, c.playerID, c.playerName, msg.Password, c)
	if reason != "" {
		c.sendError(reason)
		return
	}

	c.SendJSON(Envelope{T: MsgRoomCreated, Data: RoomJoinedMsg{
		Room:   room.Info(true),
		Player: state,
	}})
}

func (c *Client) handleJoinRoom(data json.RawMessage) {
	if c.playerID == "" {
		c.sendError(ErrNotRegistered)
		return
	}
	var msg JoinRoomMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
		c.sendError(ErrInvalidMessage)
		return
	}

	state, reason := c.hub.rooms.JoinRoom(msg.RoomID, c.playerID, c.playerName, msg.Password, c)
	if reason != "" {
		c.sendError(reason)
		return
	}

	room := c.hub.rooms.GetRoom(msg.RoomID)
	if room == nil {
		c.sendError(ErrRoomNotFound)
		return
	}
	c.SendJSON(Envelope{T: MsgRoomJoined, Data: RoomJoinedMsg{
		Room:   room.Info(true),
		Player: state,
	}})
}

func (c *Client) handleLeaveRoom() {
	if c.playerID == "" {
		c.sendError(ErrNotRegistered)
		return
	}
	if !c.hub.rooms.LeaveRoom(c.playerID) {
		c.sendError(ErrNotInRoom)
		return
	}
	c.SendJSON(Envelope{T: MsgRoomLeft})
}

func (c *Client) handleGetRoomList() {
	c.SendJSON(Envelope{T: MsgRoomList, Data: map[string]interface{}{
		"rooms": c.hub.rooms.RoomList(),
	}})
}

func (c *Client) handleGetRoomInfo(data json.RawMessage) {
	var msg GetRoomInfoMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrInvalidMessage)
		return
	}
	room := c.hub.rooms.GetRoom(msg.RoomID)
	if room == nil {
		c.sendError(ErrRoomNotFound)
		return
	}
	c.SendJSON(Envelope{T: MsgRoomInfo, Data: room.Info(true)})
}

func (c *Client) handleStartCountdown() {
	if c.playerID == "" {
		c.sendError(ErrNotRegistered)
		return
	}
	room := c.hub.rooms.GetPlayerRoom(c.playerID)
	if room == nil {
		c.sendError(ErrNotInRoom)
		return
	}
	if reason := room.StartCountdown(c.playerID); reason != "" {
		c.sendError(reason)
	}
}

func (c *Client) handleCancelCountdown() {
	if c.playerID == "" {
		c.sendError(ErrNotRegistered)
		return
	}
	room := c.hub.rooms.GetPlayerRoom(c.playerID)
	if room == nil {
		c.sendError(ErrNotInRoom)
		return
	}
	if reason := room.CancelCountdown(c.playerID); reason != "" {
		c.sendError(reason)
	}
}

func (c *Client) handleInput(data json.RawMessage) {
	if c.playerID == "" {
		return
	}
	var msg InputMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.hub.rooms.GetPlayerRoom(c.playerID)
	if room == nil {
		return
	}
	room.HandleInput(c.playerID, msg)
}

func (c *Client) handleChat(data json.RawMessage) {
	if c.playerID == "" {
		c.sendError(ErrNotRegistered)
		return
	}
	var msg ChatMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.Message == "" {
		c.sendError(ErrInvalidMessage)
		return
	}
	if len(msg.Message) > maxChatLen {
		msg.Message = msg.Message[:maxChatLen]
	}

	out := Envelope{T: MsgChat, Data: ChatMsg{
		PlayerID:   c.playerID,
		PlayerName: c.playerName,
		Message:    msg.Message,
	}}

	if room := c.hub.rooms.GetPlayerRoom(c.playerID); room != nil {
		room.Relay(out)
		return
	}

	// Not in a room: lobby-wide chat
	chat := out.Data.(ChatMsg)
	chat.Global = true
	out.Data = chat
	c.hub.BroadcastGlobal(out, c.playerID)
}

func (c *Client) sendError(reason string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Error: reason}})
}
