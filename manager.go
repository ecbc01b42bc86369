package main

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxRooms        = 100
	cleanupInterval = 60 * time.Second
	finishedRoomTTL = 5 * time.Minute

	roomPassBcryptCost = 10
)

// RoomManager is the room directory: id -> Room plus playerID -> roomID.
// The two maps are kept consistent under one lock.
type RoomManager struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	playerRooms map[string]string

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRoomManager creates an empty directory. Call Run to start cleanup.
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:       make(map[string]*Room),
		playerRooms: make(map[string]string),
		stop:        make(chan struct{}),
	}
}

// Run periodically removes empty and stale rooms until Shutdown
func (rm *RoomManager) Run() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stop:
			return
		case <-ticker.C:
			rm.cleanup()
		}
	}
}

// CreateRoom creates and starts a new room with the given host. An empty
// password makes the room public. Returns nil and a reason on rejection.
func (rm *RoomManager) CreateRoom(hostID, name, password string, config RoomConfig) (*Room, string) {
	var passHash string
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), roomPassBcryptCost)
		if err != nil {
			return nil, ErrInvalidMessage
		}
		passHash = string(hash)
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.rooms) >= maxRooms {
		return nil, ErrTooManyRooms
	}

	room := NewRoom(uuid.New().String(), name, hostID, passHash, config)
	rm.rooms[room.ID] = room
	go room.Run()

	log.Printf("[RoomManager] room created: %s (%q) by %s", room.ID, name, hostID)
	return room, ""
}

// GetRoom returns a room by id
func (rm *RoomManager) GetRoom(roomID string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[roomID]
}

// GetPlayerRoom returns the room a player currently occupies
func (rm *RoomManager) GetPlayerRoom(playerID string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	roomID, ok := rm.playerRooms[playerID]
	if !ok {
		return nil
	}
	return rm.rooms[roomID]
}

// JoinRoom adds a player to a room, enforcing the one-room-per-player
// invariant and the room's password. Returns the joined player state or a
// rejection reason.
func (rm *RoomManager) JoinRoom(roomID, playerID, name, password string, client Broadcaster) (PlayerState, string) {
	rm.mu.RLock()
	room := rm.rooms[roomID]
	rm.mu.RUnlock()

	if room == nil {
		return PlayerState{}, ErrRoomNotFound
	}
	// bcrypt is slow, keep it outside the directory lock
	if !room.CheckPassword(password) {
		return PlayerState{}, ErrWrongPassword
	}

	// Membership check and directory write stay under one lock acquisition
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, inRoom := rm.playerRooms[playerID]; inRoom {
		return PlayerState{}, ErrAlreadyInRoom
	}

	state, reason := room.AddPlayer(playerID, name, client)
	if reason != "" {
		return PlayerState{}, reason
	}
	rm.playerRooms[playerID] = roomID
	return state, ""
}

// LeaveRoom removes a player from whatever room they occupy. Empty rooms
// are stopped and removed immediately.
func (rm *RoomManager) LeaveRoom(playerID string) bool {
	rm.mu.Lock()
	roomID, ok := rm.playerRooms[playerID]
	if !ok {
		rm.mu.Unlock()
		return false
	}
	delete(rm.playerRooms, playerID)
	room := rm.rooms[roomID]
	rm.mu.Unlock()

	if room == nil {
		return false
	}

	_, empty := room.RemovePlayer(playerID)
	if empty {
		room.Stop()
		rm.mu.Lock()
		delete(rm.rooms, roomID)
		rm.mu.Unlock()
		log.Printf("[RoomManager] room %s removed (empty)", roomID)
	}
	return true
}

// RoomList returns joinable rooms (lobby or countdown) for the menu
func (rm *RoomManager) RoomList() []RoomInfo {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	rm.mu.RUnlock()

	list := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		switch room.State() {
		case RoomLobby, RoomCountdown:
			list = append(list, room.Info(false))
		}
	}
	return list
}

// RoomCount returns the number of active rooms
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// PlayerCount returns the number of players currently in rooms
func (rm *RoomManager) PlayerCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.playerRooms)
}

// cleanup removes empty lobby rooms and finished rooms past their TTL
func (rm *RoomManager) cleanup() {
	now := time.Now()

	rm.mu.RLock()
	candidates := make([]*Room, 0)
	for _, room := range rm.rooms {
		if room.CleanupEligible(now, finishedRoomTTL) {
			candidates = append(candidates, room)
		}
	}
	rm.mu.RUnlock()

	for _, room := range candidates {
		rm.deleteRoom(room)
	}
	if len(candidates) > 0 {
		log.Printf("[RoomManager] cleaned up %d rooms", len(candidates))
	}
}

// deleteRoom stops a room and removes it and its members from the maps
func (rm *RoomManager) deleteRoom(room *Room) {
	room.Stop()

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, playerID := range room.PlayerIDs() {
		delete(rm.playerRooms, playerID)
	}
	delete(rm.rooms, room.ID)
}

// Shutdown stops cleanup, notifies every member and tears down all rooms
func (rm *RoomManager) Shutdown() {
	rm.stopOnce.Do(func() { close(rm.stop) })

	rm.mu.Lock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	rm.rooms = make(map[string]*Room)
	rm.playerRooms = make(map[string]string)
	rm.mu.Unlock()

	for _, room := range rooms {
		room.NotifyShutdown("server is shutting down")
		room.Stop()
	}

	log.Println("[RoomManager] shutdown complete")
}
