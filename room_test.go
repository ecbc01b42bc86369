package main

import (
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/bcrypt"
)

// fakeClient records everything a room sends to one member
type fakeClient struct {
	mu     sync.Mutex
	msgs   []Envelope
	binary [][]byte
}

func (f *fakeClient) SendJSON(msg interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if env, ok := msg.(Envelope); ok {
		f.msgs = append(f.msgs, env)
	}
}

func (f *fakeClient) SendBinary(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.binary = append(f.binary, data)
}

func (f *fakeClient) count(msgType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m.T == msgType {
			n++
		}
	}
	return n
}

func (f *fakeClient) has(msgType string) bool {
	return f.count(msgType) > 0
}

func (f *fakeClient) last(msgType string) (Envelope, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].T == msgType {
			return f.msgs[i], true
		}
	}
	return Envelope{}, false
}

func testRoom(config RoomConfig) *Room {
	return NewRoom("room1", "Test Room", "p1", "", config)
}

// tick runs one simulation step with a controlled delta time
func tick(r *Room, dt time.Duration) {
	r.mu.Lock()
	r.lastTick = time.Now().Add(-dt)
	r.mu.Unlock()
	r.update()
}

func TestRoomAddPlayer(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	c1 := &fakeClient{}
	c2 := &fakeClient{}

	if _, reason := r.AddPlayer("p1", "Host", c1); reason != "" {
		t.Fatalf("unexpected rejection: %s", reason)
	}
	if _, reason := r.AddPlayer("p2", "Guest", c2); reason != "" {
		t.Fatalf("unexpected rejection: %s", reason)
	}

	if r.PlayerCount() != 2 {
		t.Errorf("expected 2 players, got %d", r.PlayerCount())
	}
	// The existing member hears about the join, the joiner does not
	if !c1.has(MsgPlayerJoined) {
		t.Error("expected playerJoined broadcast to existing member")
	}
	if c2.has(MsgPlayerJoined) {
		t.Error("joiner should not receive its own playerJoined")
	}
}

func TestRoomAddPlayerRejections(t *testing.T) {
	config := DefaultRoomConfig()
	config.MaxPlayers = 2
	r := testRoom(config)

	r.AddPlayer("p1", "A", &fakeClient{})
	if _, reason := r.AddPlayer("p1", "A", &fakeClient{}); reason != ErrAlreadyInRoom {
		t.Errorf("expected %s, got %s", ErrAlreadyInRoom, reason)
	}

	r.AddPlayer("p2", "B", &fakeClient{})
	if _, reason := r.AddPlayer("p3", "C", &fakeClient{}); reason != ErrRoomFull {
		t.Errorf("expected %s, got %s", ErrRoomFull, reason)
	}

	r.mu.Lock()
	r.state = RoomPlaying
	delete(r.players, "p2")
	delete(r.clients, "p2")
	r.mu.Unlock()
	if _, reason := r.AddPlayer("p4", "D", &fakeClient{}); reason != ErrGameInProgress {
		t.Errorf("expected %s, got %s", ErrGameInProgress, reason)
	}
}

func TestStartCountdownGuards(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	c1 := &fakeClient{}
	r.AddPlayer("p1", "Host", c1)

	if reason := r.StartCountdown("p1"); reason != ErrNotEnoughPlayers {
		t.Errorf("expected %s, got %s", ErrNotEnoughPlayers, reason)
	}

	r.AddPlayer("p2", "Guest", &fakeClient{})
	if reason := r.StartCountdown("p2"); reason != ErrNotHost {
		t.Errorf("expected %s, got %s", ErrNotHost, reason)
	}

	if reason := r.StartCountdown("p1"); reason != "" {
		t.Fatalf("unexpected rejection: %s", reason)
	}
	if r.State() != RoomCountdown {
		t.Errorf("expected countdown state, got %s", r.State())
	}
	if !c1.has(MsgCountdownStart) {
		t.Error("expected countdownStart broadcast")
	}

	// Starting again while counting down is rejected
	if reason := r.StartCountdown("p1"); reason != ErrGameInProgress {
		t.Errorf("expected %s, got %s", ErrGameInProgress, reason)
	}
}

func TestCancelCountdown(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	c1 := &fakeClient{}
	r.AddPlayer("p1", "Host", c1)
	r.AddPlayer("p2", "Guest", &fakeClient{})
	r.StartCountdown("p1")

	if reason := r.CancelCountdown("p2"); reason != ErrNotHost {
		t.Errorf("expected %s, got %s", ErrNotHost, reason)
	}
	if reason := r.CancelCountdown("p1"); reason != "" {
		t.Fatalf("unexpected rejection: %s", reason)
	}
	if r.State() != RoomLobby {
		t.Errorf("expected lobby state, got %s", r.State())
	}
	if !c1.has(MsgCountdownCancelled) {
		t.Error("expected countdownCancelled broadcast")
	}
}

func TestCountdownToPlaying(t *testing.T) {
	config := DefaultRoomConfig()
	config.CountdownDuration = 30 * time.Millisecond
	r := testRoom(config)
	c1 := &fakeClient{}
	r.AddPlayer("p1", "Host", c1)
	r.AddPlayer("p2", "Guest", &fakeClient{})

	// Wound the host before the match; the start must reset everyone
	r.mu.Lock()
	r.players["p1"].HP = 10
	r.players["p1"].Kills = 7
	r.mu.Unlock()

	r.StartCountdown("p1")
	time.Sleep(40 * time.Millisecond)
	tick(r, TickDuration)

	if r.State() != RoomPlaying {
		t.Fatalf("expected playing state, got %s", r.State())
	}
	if !c1.has(MsgGameStart) {
		t.Error("expected gameStart broadcast")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.HP != p.MaxHP {
			t.Errorf("player %s not at full HP after start", p.ID)
		}
		if p.Kills != 0 || p.Deaths != 0 || p.HooksHit != 0 {
			t.Errorf("player %s stats not reset", p.ID)
		}
	}
}

func TestCountdownAbortsBelowMinimum(t *testing.T) {
	config := DefaultRoomConfig()
	config.CountdownDuration = 30 * time.Millisecond
	r := testRoom(config)
	c1 := &fakeClient{}
	r.AddPlayer("p1", "Host", c1)
	r.AddPlayer("p2", "Guest", &fakeClient{})

	r.StartCountdown("p1")
	r.RemovePlayer("p2")

	time.Sleep(40 * time.Millisecond)
	tick(r, TickDuration)

	if r.State() != RoomLobby {
		t.Fatalf("expected countdown aborted back to lobby, got %s", r.State())
	}
	if !c1.has(MsgCountdownCancelled) {
		t.Error("expected countdownCancelled broadcast")
	}
	if c1.has(MsgGameStart) {
		t.Error("match must not start below the member minimum")
	}
}

func TestHookLockPullAndKill(t *testing.T) {
	config := DefaultRoomConfig()
	r := testRoom(config)
	c1 := &fakeClient{}
	c2 := &fakeClient{}
	r.AddPlayer("p1", "Shooter", c1)
	r.AddPlayer("p2", "Victim", c2)

	r.mu.Lock()
	r.state = RoomPlaying
	r.gameEndTime = time.Now().Add(time.Hour)
	shooter := r.players["p1"]
	victim := r.players["p2"]
	shooter.X, shooter.Y = 100, 400
	victim.X, victim.Y = 250, 400
	victim.HP = HookDamage // one hit kills
	r.mu.Unlock()

	// Fire straight right at the victim
	r.HandleInput("p1", InputMsg{Hook: true, HookAngle: 0, Sequence: 1})
	if !c1.has(MsgHookActivated) {
		t.Fatal("expected hookActivated broadcast")
	}

	for i := 0; i < 120; i++ {
		tick(r, TickDuration)
		if c1.has(MsgPlayerKilled) {
			break
		}
	}

	// Lock, then contact damage: two hookHit events total
	if got := c1.count(MsgHookHit); got != 2 {
		t.Errorf("expected 2 hookHit events (lock + contact), got %d", got)
	}
	if !c1.has(MsgPlayerKilled) {
		t.Fatal("expected playerKilled broadcast")
	}
	if !c2.has(MsgDeath) {
		t.Error("expected death notice to the victim only")
	}
	if c1.count(MsgDeath) != 0 {
		t.Error("death notice leaked to the killer")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if shooter.Kills != 1 {
		t.Errorf("expected 1 kill, got %d", shooter.Kills)
	}
	if shooter.HooksHit != 1 {
		t.Errorf("expected 1 hook hit, got %d", shooter.HooksHit)
	}
	if victim.Deaths != 1 {
		t.Errorf("expected 1 death, got %d", victim.Deaths)
	}
	if !victim.Dead {
		t.Error("expected victim dead")
	}
	if shooter.Hook.Active {
		t.Error("expected hook retracted after contact")
	}
}

func TestHookMissMidPull(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	c1 := &fakeClient{}
	r.AddPlayer("p1", "Shooter", c1)
	r.AddPlayer("p2", "Victim", &fakeClient{})

	r.mu.Lock()
	r.state = RoomPlaying
	r.gameEndTime = time.Now().Add(time.Hour)
	shooter := r.players["p1"]
	victim := r.players["p2"]
	shooter.X, shooter.Y = 100, 400
	// Lock lands just inside max range, so the travel budget runs out
	// long before the pull can drag the victim into contact
	victim.X, victim.Y = 100+HookRange+PlayerRadius+HookRadius-10, 400
	r.mu.Unlock()

	r.HandleInput("p1", InputMsg{Hook: true, HookAngle: 0, Sequence: 1})

	for i := 0; i < 120 && !c1.has(MsgHookMiss); i++ {
		tick(r, TickDuration)
	}

	if !c1.has(MsgHookMiss) {
		t.Fatal("expected the locked hook to miss once travel exceeded range")
	}
	if got := c1.count(MsgHookHit); got != 1 {
		t.Errorf("expected only the lock hookHit, got %d", got)
	}
	if env, ok := c1.last(MsgHookHit); ok {
		if hit := env.Data.(HookHitMsg); hit.Damage != 0 {
			t.Errorf("lock event should carry no damage, got %d", hit.Damage)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if victim.HP != PlayerMaxHP {
		t.Errorf("victim took damage without contact: HP %d", victim.HP)
	}
	if shooter.Hook.Active {
		t.Error("expected hook retracted")
	}
	if shooter.Hook.Cooldown == 0 {
		t.Error("expected miss to start the cooldown")
	}
}

func TestHookMissBroadcast(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	c1 := &fakeClient{}
	r.AddPlayer("p1", "Shooter", c1)
	r.AddPlayer("p2", "Far", &fakeClient{})

	r.mu.Lock()
	r.state = RoomPlaying
	r.gameEndTime = time.Now().Add(time.Hour)
	r.players["p1"].X, r.players["p1"].Y = 100, 100
	r.players["p2"].X, r.players["p2"].Y = 1100, 700 // out of hook range
	r.mu.Unlock()

	r.HandleInput("p1", InputMsg{Hook: true, HookAngle: 0, Sequence: 1})

	for i := 0; i < 120 && !c1.has(MsgHookMiss); i++ {
		tick(r, TickDuration)
	}
	if !c1.has(MsgHookMiss) {
		t.Error("expected hookMiss broadcast")
	}
	if c1.has(MsgHookHit) {
		t.Error("miss should not produce a hookHit")
	}
}

func TestRemovePlayerRetractsHooksAndReassignsHost(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	c2 := &fakeClient{}
	r.AddPlayer("p1", "Host", &fakeClient{})
	r.AddPlayer("p2", "Guest", c2)

	r.mu.Lock()
	r.players["p2"].Hook.Active = true
	r.players["p2"].Hook.TargetID = "p1"
	r.mu.Unlock()

	removed, empty := r.RemovePlayer("p1")
	if !removed || empty {
		t.Fatalf("removed=%v empty=%v", removed, empty)
	}

	if r.HostID() != "p2" {
		t.Errorf("expected host reassigned to p2, got %s", r.HostID())
	}
	if !c2.has(MsgHostChanged) {
		t.Error("expected hostChanged broadcast")
	}
	if !c2.has(MsgPlayerLeft) {
		t.Error("expected playerLeft broadcast")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.players["p2"].Hook.Active {
		t.Error("expected hook locked on the leaver to retract")
	}
}

func TestLeaveDuringPlayingEndsGame(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	c2 := &fakeClient{}
	r.AddPlayer("p1", "Host", &fakeClient{})
	r.AddPlayer("p2", "Guest", c2)

	r.mu.Lock()
	r.state = RoomPlaying
	r.gameEndTime = time.Now().Add(time.Hour)
	r.mu.Unlock()

	r.RemovePlayer("p1")

	if r.State() != RoomFinished {
		t.Fatalf("expected finished state, got %s", r.State())
	}
	env, ok := c2.last(MsgGameEnd)
	if !ok {
		t.Fatal("expected gameEnd broadcast")
	}
	end, ok := env.Data.(GameEndMsg)
	if !ok {
		t.Fatalf("unexpected gameEnd payload type %T", env.Data)
	}
	if end.Winner == nil || end.Winner.ID != "p2" {
		t.Error("expected the remaining player to win")
	}
}

func TestMatchTimeoutPicksTopScorer(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	c1 := &fakeClient{}
	r.AddPlayer("p1", "A", c1)
	r.AddPlayer("p2", "B", &fakeClient{})

	r.mu.Lock()
	r.state = RoomPlaying
	r.gameEndTime = time.Now().Add(-time.Second)
	r.players["p2"].Kills = 3
	r.mu.Unlock()

	tick(r, TickDuration)

	if r.State() != RoomFinished {
		t.Fatalf("expected finished state, got %s", r.State())
	}
	env, ok := c1.last(MsgGameEnd)
	if !ok {
		t.Fatal("expected gameEnd broadcast")
	}
	end := env.Data.(GameEndMsg)
	if end.Winner == nil || end.Winner.ID != "p2" {
		t.Error("expected the top scorer to win")
	}
	if len(end.Leaderboard) != 2 {
		t.Fatalf("expected 2 leaderboard entries, got %d", len(end.Leaderboard))
	}
	if end.Leaderboard[0].ID != "p2" {
		t.Error("expected leaderboard sorted by descending score")
	}
}

func TestRespawnBroadcast(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	c1 := &fakeClient{}
	r.AddPlayer("p1", "A", c1)
	r.AddPlayer("p2", "B", &fakeClient{})

	r.mu.Lock()
	r.state = RoomPlaying
	r.gameEndTime = time.Now().Add(time.Hour)
	p := r.players["p1"]
	p.Dead = true
	p.HP = 0
	p.RespawnAt = time.Now().Add(-time.Millisecond)
	r.mu.Unlock()

	tick(r, TickDuration)

	if !c1.has(MsgRespawn) {
		t.Error("expected respawn broadcast")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Dead || p.HP != p.MaxHP {
		t.Error("expected player revived at full HP")
	}
}

func TestInputIgnoredForUnknownPlayer(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	r.AddPlayer("p1", "A", &fakeClient{})
	// Must not panic or mutate anything
	r.HandleInput("ghost", InputMsg{Up: true, Sequence: 1})
}

func TestBroadcastSyncState(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	c1 := &fakeClient{}
	r.AddPlayer("p1", "A", c1)
	r.AddPlayer("p2", "B", &fakeClient{})

	// Nothing goes out before the match starts
	r.broadcastSyncState()
	if len(c1.binary) != 0 {
		t.Fatal("no sync frames expected in the lobby")
	}

	r.mu.Lock()
	r.state = RoomPlaying
	r.gameEndTime = time.Now().Add(time.Hour)
	r.mu.Unlock()

	r.broadcastSyncState()
	if len(c1.binary) != 1 {
		t.Fatalf("expected 1 sync frame, got %d", len(c1.binary))
	}

	var state GameStateMsg
	if err := msgpack.Unmarshal(c1.binary[0], &state); err != nil {
		t.Fatalf("sync frame does not decode: %v", err)
	}
	if len(state.Players) != 2 {
		t.Errorf("expected 2 players in sync frame, got %d", len(state.Players))
	}
	if state.Timestamp == 0 {
		t.Error("expected a timestamp")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRoom("room1", "Private", "p1", string(hash), DefaultRoomConfig())

	if r.CheckPassword("wrong") {
		t.Error("wrong password accepted")
	}
	if !r.CheckPassword("secret") {
		t.Error("correct password rejected")
	}

	open := testRoom(DefaultRoomConfig())
	if !open.CheckPassword("") || !open.CheckPassword("anything") {
		t.Error("public room should accept any password")
	}
}

func TestRoomInfo(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
	r := NewRoom("room1", "Private", "p1", string(hash), DefaultRoomConfig())
	r.AddPlayer("p1", "Host", &fakeClient{})

	info := r.Info(false)
	if !info.Private {
		t.Error("expected private flag")
	}
	if info.PlayerCount != 1 {
		t.Errorf("expected 1 player, got %d", info.PlayerCount)
	}
	if info.Players != nil {
		t.Error("player list should be omitted without includePlayers")
	}

	full := r.Info(true)
	if len(full.Players) != 1 {
		t.Errorf("expected player list with 1 entry, got %d", len(full.Players))
	}
}

func TestCleanupEligible(t *testing.T) {
	r := testRoom(DefaultRoomConfig())
	now := time.Now()

	if !r.CleanupEligible(now, finishedRoomTTL) {
		t.Error("empty lobby should be eligible")
	}

	r.AddPlayer("p1", "A", &fakeClient{})
	if r.CleanupEligible(now, finishedRoomTTL) {
		t.Error("occupied lobby should not be eligible")
	}

	r.mu.Lock()
	r.state = RoomFinished
	r.finishedAt = now.Add(-finishedRoomTTL - time.Second)
	r.mu.Unlock()
	if !r.CleanupEligible(now, finishedRoomTTL) {
		t.Error("stale finished room should be eligible")
	}

	r.mu.Lock()
	r.finishedAt = now
	r.mu.Unlock()
	if r.CleanupEligible(now, finishedRoomTTL) {
		t.Error("fresh finished room should not be eligible")
	}
}
