package main

import "sync"

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub is the connection registry: it tracks live connections and the
// bidirectional connection <-> player-id mapping, so nothing ever scans
// all sockets to find a player.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	players map[string]*Client // playerID -> connection

	// Connection limiting (accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	rooms *RoomManager
	auth  *Auth
}

// NewHub creates a Hub over the given room directory
func NewHub(rooms *RoomManager, auth *Auth) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		players: make(map[string]*Client),
		ipConns: make(map[string]int),
		rooms:   rooms,
		auth:    auth,
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Register adds a connection to the registry
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// Unregister drops a connection and, if it carried a player identity,
// removes the player from their room.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	playerID := c.playerID
	if playerID != "" && h.players[playerID] == c {
		delete(h.players, playerID)
	}
	h.mu.Unlock()

	if playerID != "" {
		h.rooms.LeaveRoom(playerID)
	}
}

// BindPlayer associates a player identity with a connection. Fails when
// the identity is already live on another connection.
func (h *Hub) BindPlayer(playerID string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.players[playerID]; ok && existing != c {
		return false
	}
	h.players[playerID] = c
	return true
}

// GetPlayerClient returns the connection for an online player
func (h *Hub) GetPlayerClient(playerID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.players[playerID]
}

// BroadcastGlobal fans a message out to every registered player except
// the sender. Used for lobby-wide chat.
func (h *Hub) BroadcastGlobal(msg Envelope, excludeID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, client := range h.players {
		if id == excludeID {
			continue
		}
		client.SendJSON(msg)
	}
}

// ClientCount returns the number of open connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PlayerCount returns the number of registered player identities
func (h *Hub) PlayerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.players)
}
