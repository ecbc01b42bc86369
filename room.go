package main

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	TickRate     = 60 // physics ticks per second
	SyncRate     = 20 // state broadcasts per second
	TickDuration = time.Second / TickRate
	SyncDuration = time.Second / SyncRate

	DefaultMaxPlayers   = 10
	DefaultMinPlayers   = 2
	DefaultGameDuration = 5 * time.Minute
	DefaultCountdown    = 5 * time.Second
)

// RoomState is the room lifecycle state
type RoomState string

const (
	RoomLobby     RoomState = "lobby"
	RoomCountdown RoomState = "countdown"
	RoomPlaying   RoomState = "playing"
	RoomFinished  RoomState = "finished"
)

// Broadcaster is the outbound side of a player's connection. Sends must
// never block the tick; implementations drop on a full buffer.
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// RoomConfig holds per-room match settings
type RoomConfig struct {
	MaxPlayers        int
	MinPlayers        int
	GameDuration      time.Duration
	CountdownDuration time.Duration
}

// DefaultRoomConfig returns the standard match settings
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		MaxPlayers:        DefaultMaxPlayers,
		MinPlayers:        DefaultMinPlayers,
		GameDuration:      DefaultGameDuration,
		CountdownDuration: DefaultCountdown,
	}
}

// Room owns one match: its members, lifecycle state and the tick loop.
// All mutation goes through r.mu, so the message path and the timers
// never interleave destructively.
type Room struct {
	mu     sync.Mutex
	ID     string
	Name   string
	hostID string

	config   RoomConfig
	passHash string // bcrypt, empty for public rooms

	state   RoomState
	players map[string]*Player
	clients map[string]Broadcaster

	gameStartTime    time.Time
	gameEndTime      time.Time
	countdownStart   time.Time
	lastCountdownSec int64
	finishedAt       time.Time
	lastTick         time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRoom creates a room in the lobby state. Call Run to start its loop.
func NewRoom(id, name, hostID, passHash string, config RoomConfig) *Room {
	return &Room{
		ID:       id,
		Name:     name,
		hostID:   hostID,
		config:   config,
		passHash: passHash,
		state:    RoomLobby,
		players:  make(map[string]*Player),
		clients:  make(map[string]Broadcaster),
		lastTick: time.Now(),
		stop:     make(chan struct{}),
	}
}

// Run drives the physics ticker and the state-sync ticker. Both fire in
// one goroutine, so ticks and sync broadcasts are serialized per room
// while separate rooms run fully in parallel.
func (r *Room) Run() {
	tick := time.NewTicker(TickDuration)
	syncTick := time.NewTicker(SyncDuration)
	defer tick.Stop()
	defer syncTick.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-tick.C:
			r.update()
		case <-syncTick.C:
			r.broadcastSyncState()
		}
	}
}

// Stop terminates the room's loop
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// CheckPassword verifies a join attempt against the room password
func (r *Room) CheckPassword(password string) bool {
	if r.passHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(r.passHash), []byte(password)) == nil
}

// AddPlayer adds a member in the lobby. Returns the new player's state or
// a rejection reason.
func (r *Room) AddPlayer(playerID, name string, client Broadcaster) (PlayerState, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= r.config.MaxPlayers {
		return PlayerState{}, ErrRoomFull
	}
	if r.state != RoomLobby {
		return PlayerState{}, ErrGameInProgress
	}
	if _, ok := r.players[playerID]; ok {
		return PlayerState{}, ErrAlreadyInRoom
	}

	p := NewPlayer(playerID, name)
	r.players[playerID] = p
	r.clients[playerID] = client

	state := p.ToState()
	r.broadcastExcept(playerID, Envelope{T: MsgPlayerJoined, Data: PlayerJoinedMsg{Player: state}})
	return state, ""
}

// RemovePlayer drops a member, reassigns the host if needed, and
// re-evaluates the win condition. Returns whether the room is now empty.
func (r *Room) RemovePlayer(playerID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return false, len(r.players) == 0
	}
	delete(r.players, playerID)
	delete(r.clients, playerID)

	// Hooks locked on the leaver retract immediately
	for _, q := range r.players {
		if q.Hook.Active && q.Hook.TargetID == playerID {
			q.ResetHook()
		}
	}

	r.broadcast(Envelope{T: MsgPlayerLeft, Data: PlayerLeftMsg{PlayerID: playerID}})

	if r.hostID == playerID && len(r.players) > 0 {
		for id := range r.players {
			r.hostID = id
			break
		}
		r.broadcast(Envelope{T: MsgHostChanged, Data: HostChangedMsg{HostID: r.hostID}})
	}

	if r.state == RoomPlaying && len(r.players) <= 1 {
		var winner *Player
		for _, q := range r.players {
			winner = q
		}
		r.endGameLocked(winner)
	}

	return true, len(r.players) == 0
}

// StartCountdown begins the pre-match countdown. Host only.
func (r *Room) StartCountdown(requesterID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostID != requesterID {
		return ErrNotHost
	}
	if r.state != RoomLobby {
		return ErrGameInProgress
	}
	if len(r.players) < r.config.MinPlayers {
		return ErrNotEnoughPlayers
	}

	r.state = RoomCountdown
	r.countdownStart = time.Now()
	r.lastCountdownSec = int64(r.config.CountdownDuration / time.Second)

	r.broadcast(Envelope{T: MsgCountdownStart, Data: CountdownStartMsg{
		Duration: r.config.CountdownDuration.Milliseconds(),
	}})
	return ""
}

// CancelCountdown aborts the countdown, returning to the lobby. Host only.
func (r *Room) CancelCountdown(requesterID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostID != requesterID {
		return ErrNotHost
	}
	if r.state != RoomCountdown {
		return ErrGameInProgress
	}

	r.state = RoomLobby
	r.countdownStart = time.Time{}
	r.broadcast(Envelope{T: MsgCountdownCancelled})
	return ""
}

// HandleInput applies one input snapshot from the message path. Stale
// sequence numbers are dropped without a reply; an accepted hook intent
// fires the hook immediately.
func (r *Room) HandleInput(playerID string, msg InputMsg) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return
	}

	in := Input{
		Up:        msg.Up,
		Down:      msg.Down,
		Left:      msg.Left,
		Right:     msg.Right,
		Hook:      msg.Hook,
		HookAngle: msg.HookAngle,
	}
	if !p.ProcessInput(in, msg.Sequence) {
		return
	}

	if p.Input.Hook {
		if p.ActivateHook(p.Input.HookAngle) {
			r.broadcast(Envelope{T: MsgHookActivated, Data: HookActivatedMsg{
				PlayerID: playerID,
				Angle:    p.Input.HookAngle,
				X:        p.Hook.X,
				Y:        p.Hook.Y,
			}})
		}
		p.ResetHookInput()
	}
}

// update runs one tick of the room simulation
func (r *Room) update() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	deltaTime := now.Sub(r.lastTick).Seconds()
	r.lastTick = now

	if r.state == RoomCountdown {
		r.updateCountdown(now)
		return
	}
	if r.state != RoomPlaying {
		return
	}

	// Match over by time
	if !now.Before(r.gameEndTime) {
		leaderboard := r.leaderboardLocked()
		var winner *Player
		if len(leaderboard) > 0 {
			winner = r.players[leaderboard[0].ID]
		}
		r.endGameLocked(winner)
		return
	}

	// Movement + cooldowns, remembering pre-move positions
	type position struct{ x, y float64 }
	oldPositions := make(map[string]position, len(r.players))
	for _, p := range r.players {
		oldPositions[p.ID] = position{p.X, p.Y}
		p.UpdatePosition(deltaTime)
		p.UpdateCooldowns(deltaTime)
	}

	// Anti-cheat: revert impossible displacement, keep playing
	for _, p := range r.players {
		prev := oldPositions[p.ID]
		if kind, ok := ValidatePosition(p.X, p.Y, prev.x, prev.y, PlayerSpeed, deltaTime); !ok {
			log.Printf("[Anti-Cheat] player %s (%s): %s", p.Name, p.ID, kind)
			p.X = prev.x
			p.Y = prev.y
		}
	}

	// Hook flight. Travel keeps accumulating even after a lock, so a hook
	// that runs out of range or leaves the arena retracts mid-pull too.
	for _, p := range r.players {
		if !p.Hook.Active {
			continue
		}
		if p.UpdateHook(deltaTime) {
			r.broadcast(Envelope{T: MsgHookMiss, Data: HookMissMsg{
				PlayerID: p.ID,
				X:        p.Hook.X,
				Y:        p.Hook.Y,
			}})
		}
	}

	// Hook targeting: first live opponent overlapped becomes the locked
	// target for the rest of the hook's life
	for _, p := range r.players {
		if !p.Hook.Active || p.Hook.TargetID != "" {
			continue
		}
		for _, target := range r.players {
			if target.ID == p.ID || target.Dead {
				continue
			}
			if CheckCircleCollision(p.Hook.X, p.Hook.Y, HookRadius, target.X, target.Y, target.Radius) {
				p.Hook.TargetID = target.ID
				p.HooksHit++
				r.broadcast(Envelope{T: MsgHookHit, Data: HookHitMsg{
					Shooter: p.ID,
					Target:  target.ID,
					X:       p.Hook.X,
					Y:       p.Hook.Y,
				}})
				break
			}
		}
	}

	// Hook pulling and contact damage. Kill credit comes from the death
	// report of TakeDamage, the only place deaths are counted.
	for _, p := range r.players {
		if !p.Hook.Active || p.Hook.TargetID == "" {
			continue
		}
		target, ok := r.players[p.Hook.TargetID]
		if !ok || target.Dead {
			p.ResetHook()
			continue
		}
		hit, died := p.PullTarget(target, deltaTime)
		if !hit {
			continue
		}
		r.broadcast(Envelope{T: MsgHookHit, Data: HookHitMsg{
			Shooter: p.ID,
			Target:  target.ID,
			X:       target.X,
			Y:       target.Y,
			Damage:  HookDamage,
		}})
		if died {
			p.Kills++
			r.broadcast(Envelope{T: MsgPlayerKilled, Data: PlayerKilledMsg{
				Killer: p.ID,
				Victim: target.ID,
			}})
			r.sendTo(target.ID, Envelope{T: MsgDeath, Data: DeathMsg{
				RespawnIn: RespawnDelay.Milliseconds(),
			}})
		}
	}

	// Body collisions between living players
	living := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		if !p.Dead {
			living = append(living, p)
		}
	}
	for i := 0; i < len(living); i++ {
		for j := i + 1; j < len(living); j++ {
			a, b := living[i], living[j]
			if CheckCircleCollision(a.X, a.Y, a.Radius, b.X, b.Y, b.Radius) {
				ResolvePlayerCollision(a, b)
			}
		}
	}

	// Respawns
	for _, p := range r.players {
		if p.MaybeRespawn(now) {
			r.broadcast(Envelope{T: MsgRespawn, Data: RespawnMsg{
				PlayerID: p.ID,
				X:        p.X,
				Y:        p.Y,
				HP:       p.HP,
			}})
		}
	}
}

// updateCountdown broadcasts remaining time on whole-second boundaries and
// starts the match once the countdown has elapsed. Lock held by caller.
func (r *Room) updateCountdown(now time.Time) {
	elapsed := now.Sub(r.countdownStart)
	remaining := r.config.CountdownDuration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	sec := int64(remaining / time.Second)
	if remaining > 0 && sec != r.lastCountdownSec {
		r.lastCountdownSec = sec
		r.broadcast(Envelope{T: MsgCountdownUpdate, Data: CountdownUpdateMsg{
			Remaining: remaining.Milliseconds(),
		}})
	}

	if elapsed >= r.config.CountdownDuration {
		// Members may have left during the countdown
		if len(r.players) < r.config.MinPlayers {
			r.state = RoomLobby
			r.countdownStart = time.Time{}
			r.broadcast(Envelope{T: MsgCountdownCancelled})
			return
		}
		r.startGameLocked(now)
	}
}

// startGameLocked resets every member and enters the playing state
func (r *Room) startGameLocked(now time.Time) {
	r.state = RoomPlaying
	r.gameStartTime = now
	r.gameEndTime = now.Add(r.config.GameDuration)

	for _, p := range r.players {
		p.ResetForMatch()
	}

	r.broadcast(Envelope{T: MsgGameStart, Data: GameStartMsg{
		Players: r.playerStatesLocked(),
		Arena:   ArenaInfo{Width: ArenaWidth, Height: ArenaHeight},
	}})

	log.Printf("[Room %s] game started with %d players", r.ID, len(r.players))
}

// endGameLocked finalizes the match and broadcasts the result
func (r *Room) endGameLocked(winner *Player) {
	r.state = RoomFinished
	r.finishedAt = time.Now()

	var winnerState *PlayerState
	if winner != nil {
		s := winner.ToState()
		winnerState = &s
	}

	r.broadcast(Envelope{T: MsgGameEnd, Data: GameEndMsg{
		Winner:      winnerState,
		Leaderboard: r.leaderboardLocked(),
	}})

	name := "none"
	if winner != nil {
		name = winner.Name
	}
	log.Printf("[Room %s] game ended, winner: %s", r.ID, name)
}

// leaderboardLocked ranks members by descending score
func (r *Room) leaderboardLocked() []LeaderboardEntry {
	leaderboard := make([]LeaderboardEntry, 0, len(r.players))
	for _, p := range r.players {
		leaderboard = append(leaderboard, LeaderboardEntry{
			ID:       p.ID,
			Name:     p.Name,
			Kills:    p.Kills,
			Deaths:   p.Deaths,
			HooksHit: p.HooksHit,
			Score:    p.Score(),
		})
	}
	sort.SliceStable(leaderboard, func(i, j int) bool {
		return leaderboard[i].Score > leaderboard[j].Score
	})
	return leaderboard
}

// broadcastSyncState emits a compact msgpack snapshot to every member.
// Runs on its own timer, only while playing.
func (r *Room) broadcastSyncState() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != RoomPlaying {
		return
	}

	state := GameStateMsg{
		Timestamp: time.Now().UnixMilli(),
		Players:   make([]PlayerSyncState, 0, len(r.players)),
	}
	for _, p := range r.players {
		state.Players = append(state.Players, p.ToSyncState())
	}

	data, err := msgpack.Marshal(state)
	if err != nil {
		return
	}
	for _, client := range r.clients {
		client.SendBinary(data)
	}
}

// broadcast sends a message to every member. Lock held by caller.
func (r *Room) broadcast(msg Envelope) {
	for _, client := range r.clients {
		client.SendJSON(msg)
	}
}

// broadcastExcept sends to every member but one. Lock held by caller.
func (r *Room) broadcastExcept(playerID string, msg Envelope) {
	for id, client := range r.clients {
		if id == playerID {
			continue
		}
		client.SendJSON(msg)
	}
}

// sendTo sends to one member. Lock held by caller.
func (r *Room) sendTo(playerID string, msg Envelope) {
	if client, ok := r.clients[playerID]; ok {
		client.SendJSON(msg)
	}
}

// NotifyShutdown tells members the server is going away
func (r *Room) NotifyShutdown(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast(Envelope{T: MsgServerShutdown, Data: map[string]string{"reason": reason}})
}

// Relay broadcasts an already-built message, used by the chat path
func (r *Room) Relay(msg Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast(msg)
}

// State returns the current lifecycle state
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HostID returns the current host
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// PlayerCount returns the number of members
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// PlayerIDs returns the member ids
func (r *Room) PlayerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	return ids
}

// CleanupEligible reports whether the directory may remove this room:
// an empty lobby, or a finished match older than ttl.
func (r *Room) CleanupEligible(now time.Time, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RoomLobby && len(r.players) == 0 {
		return true
	}
	if r.state == RoomFinished && now.Sub(r.finishedAt) > ttl {
		return true
	}
	return false
}

// Info summarizes the room for listings and join confirmations
func (r *Room) Info(includePlayers bool) RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := RoomInfo{
		ID:          r.ID,
		Name:        r.Name,
		HostID:      r.hostID,
		State:       string(r.state),
		PlayerCount: len(r.players),
		MaxPlayers:  r.config.MaxPlayers,
		Private:     r.passHash != "",
	}
	if includePlayers {
		info.Players = r.playerStatesLocked()
	}
	return info
}

func (r *Room) playerStatesLocked() []PlayerState {
	states := make([]PlayerState, 0, len(r.players))
	for _, p := range r.players {
		states = append(states, p.ToState())
	}
	return states
}
