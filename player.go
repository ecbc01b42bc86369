package main

import (
	"math"
	"math/rand"
	"time"
)

const (
	ArenaWidth  = 1200.0
	ArenaHeight = 800.0

	PlayerRadius = 20.0
	PlayerSpeed  = 200.0 // units/s
	PlayerMaxHP  = 100

	RespawnDelay = 3 * time.Second

	HookSpeed     = 600.0 // units/s
	HookRange     = 400.0
	HookRadius    = 8.0
	HookCooldown  = 2.0 // seconds
	HookDamage    = 30
	HookPullSpeed = 400.0 // units/s
)

// playerColors is the palette cycled through for player identification
var playerColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F",
	"#BB8FCE", "#85C1E9", "#F8B500", "#00CED1",
}

// Hook is a player's hook projectile. At most one per player; embedded
// rather than a free entity because its lifetime is bound to its owner.
type Hook struct {
	Active   bool
	X, Y     float64
	VX, VY   float64
	Traveled float64
	TargetID string  // locked target, "" while in flight
	Cooldown float64 // seconds remaining
}

// Input is the latest input snapshot received from the client
type Input struct {
	Up        bool
	Down      bool
	Left      bool
	Right     bool
	Hook      bool
	HookAngle float64 // radians
}

// Player represents a combatant in a room
type Player struct {
	ID    string
	Name  string
	Color string

	X, Y   float64
	VX, VY float64
	Radius float64

	HP        int
	MaxHP     int
	Dead      bool
	RespawnAt time.Time

	Hook  Hook
	Input Input

	// LastSeq is the last accepted input sequence number; input with a
	// sequence at or below it is stale and silently dropped
	LastSeq uint32

	Kills    int
	Deaths   int
	HooksHit int
}

// NewPlayer creates a player at a random valid arena position
func NewPlayer(id, name string) *Player {
	p := &Player{
		ID:     id,
		Name:   name,
		Radius: PlayerRadius,
		HP:     PlayerMaxHP,
		MaxHP:  PlayerMaxHP,
	}
	p.Color = playerColors[rand.Intn(len(playerColors))]
	p.X, p.Y = randomArenaPosition(p.Radius)
	return p
}

// randomArenaPosition uses the shared math/rand source, which is safe to
// call from every room's tick goroutine at once.
func randomArenaPosition(radius float64) (float64, float64) {
	x := radius + rand.Float64()*(ArenaWidth-2*radius)
	y := radius + rand.Float64()*(ArenaHeight-2*radius)
	return x, y
}

// ProcessInput replaces the stored input snapshot if the sequence number is
// newer than anything seen before. Stale or replayed input is a no-op.
func (p *Player) ProcessInput(in Input, sequence uint32) bool {
	if sequence <= p.LastSeq {
		return false
	}
	p.LastSeq = sequence

	p.Input.Up = in.Up
	p.Input.Down = in.Down
	p.Input.Left = in.Left
	p.Input.Right = in.Right
	if in.Hook {
		p.Input.Hook = true
		p.Input.HookAngle = in.HookAngle
	}
	return true
}

// ResetHookInput clears the one-shot hook intent after it has been handled
func (p *Player) ResetHookInput() {
	p.Input.Hook = false
}

// UpdatePosition integrates movement for one tick. Dead players are frozen.
func (p *Player) UpdatePosition(deltaTime float64) {
	if p.Dead {
		return
	}

	p.VX = 0
	p.VY = 0

	if p.Input.Up {
		p.VY -= PlayerSpeed
	}
	if p.Input.Down {
		p.VY += PlayerSpeed
	}
	if p.Input.Left {
		p.VX -= PlayerSpeed
	}
	if p.Input.Right {
		p.VX += PlayerSpeed
	}

	// Diagonal movement must not be faster than single-axis movement
	if p.VX != 0 && p.VY != 0 {
		factor := 1 / math.Sqrt2
		p.VX *= factor
		p.VY *= factor
	}

	p.X += p.VX * deltaTime
	p.Y += p.VY * deltaTime

	p.ClampToArena()
}

// ClampToArena keeps the player fully inside the arena bounds
func (p *Player) ClampToArena() {
	p.X = Clamp(p.X, p.Radius, ArenaWidth-p.Radius)
	p.Y = Clamp(p.Y, p.Radius, ArenaHeight-p.Radius)
}

// UpdateCooldowns ticks the hook cooldown toward zero
func (p *Player) UpdateCooldowns(deltaTime float64) {
	if p.Hook.Cooldown > 0 {
		p.Hook.Cooldown -= deltaTime
		if p.Hook.Cooldown < 0 {
			p.Hook.Cooldown = 0
		}
	}
}

// ActivateHook fires the hook at the given angle. Fails without side
// effects if the player is dead, the hook is on cooldown, or already out.
func (p *Player) ActivateHook(angle float64) bool {
	if p.Dead || p.Hook.Cooldown > 0 || p.Hook.Active {
		return false
	}

	p.Hook.Active = true
	p.Hook.X = p.X
	p.Hook.Y = p.Y
	p.Hook.VX = math.Cos(angle) * HookSpeed
	p.Hook.VY = math.Sin(angle) * HookSpeed
	p.Hook.TargetID = ""
	p.Hook.Traveled = 0
	return true
}

// UpdateHook advances an in-flight hook. Returns true if the hook missed
// this tick (exceeded range or left the arena) and was deactivated.
func (p *Player) UpdateHook(deltaTime float64) bool {
	if !p.Hook.Active {
		return false
	}

	dx := p.Hook.VX * deltaTime
	dy := p.Hook.VY * deltaTime
	p.Hook.X += dx
	p.Hook.Y += dy
	p.Hook.Traveled += math.Sqrt(dx*dx + dy*dy)

	if p.Hook.Traveled >= HookRange {
		p.ResetHook()
		return true
	}

	if p.Hook.X < 0 || p.Hook.X > ArenaWidth || p.Hook.Y < 0 || p.Hook.Y > ArenaHeight {
		p.ResetHook()
		return true
	}

	return false
}

// ResetHook deactivates the hook and starts its cooldown
func (p *Player) ResetHook() {
	p.Hook.Active = false
	p.Hook.TargetID = ""
	p.Hook.Cooldown = HookCooldown
}

// PullTarget drags the locked target toward the player. On contact it
// applies hook damage and retracts the hook. Returns whether contact
// resolved this tick and whether the target died from it.
func (p *Player) PullTarget(target *Player, deltaTime float64) (hit, died bool) {
	if target == nil {
		return false, false
	}

	dx := p.X - target.X
	dy := p.Y - target.Y
	dist := math.Sqrt(dx*dx + dy*dy)

	if dist < p.Radius+target.Radius {
		died = target.TakeDamage(HookDamage)
		p.ResetHook()
		return true, died
	}

	moveX := (dx / dist) * HookPullSpeed * deltaTime
	moveY := (dy / dist) * HookPullSpeed * deltaTime
	target.X += moveX
	target.Y += moveY
	target.ClampToArena()

	// Hook head tracks the target while pulling
	p.Hook.X = target.X
	p.Hook.Y = target.Y

	return false, false
}

// TakeDamage reduces HP, flooring at zero. Crossing zero triggers exactly
// one death transition: the death counter and respawn timestamp are set
// here and nowhere else. Returns true if the player died from this hit.
func (p *Player) TakeDamage(amount int) bool {
	if p.Dead {
		return false
	}

	p.HP -= amount
	if p.HP <= 0 {
		p.HP = 0
		p.Dead = true
		p.Deaths++
		p.RespawnAt = time.Now().Add(RespawnDelay)
		return true
	}
	return false
}

// MaybeRespawn revives a dead player once its respawn time has elapsed.
// Returns true if the player respawned this call.
func (p *Player) MaybeRespawn(now time.Time) bool {
	if !p.Dead || now.Before(p.RespawnAt) {
		return false
	}
	p.Respawn()
	return true
}

// Respawn teleports the player to a fresh position at full health
func (p *Player) Respawn() {
	p.X, p.Y = randomArenaPosition(p.Radius)
	p.VX = 0
	p.VY = 0
	p.HP = p.MaxHP
	p.Dead = false
	p.RespawnAt = time.Time{}
	p.Hook.Cooldown = 0
}

// ResetForMatch clears stats and respawns the player for a fresh match
func (p *Player) ResetForMatch() {
	p.Respawn()
	p.Kills = 0
	p.Deaths = 0
	p.HooksHit = 0
	p.Hook = Hook{}
	p.Input = Input{}
}

// Score derives the leaderboard score from match stats
func (p *Player) Score() int {
	return p.Kills*10 - p.Deaths*5 + p.HooksHit*2
}

// ToState converts to the full protocol state (lobby/join/gameStart)
func (p *Player) ToState() PlayerState {
	return PlayerState{
		ID:     p.ID,
		Name:   p.Name,
		X:      p.X,
		Y:      p.Y,
		VX:     p.VX,
		VY:     p.VY,
		HP:     p.HP,
		MaxHP:  p.MaxHP,
		Dead:   p.Dead,
		Color:  p.Color,
		Kills:  p.Kills,
		Deaths: p.Deaths,
		Hook: HookState{
			Active:   p.Hook.Active,
			X:        p.Hook.X,
			Y:        p.Hook.Y,
			Cooldown: p.Hook.Cooldown,
		},
	}
}

// ToSyncState converts to the compact per-tick sync state
func (p *Player) ToSyncState() PlayerSyncState {
	return PlayerSyncState{
		ID:   p.ID,
		X:    p.X,
		Y:    p.Y,
		HP:   p.HP,
		Dead: p.Dead,
		Hook: HookState{
			Active:   p.Hook.Active,
			X:        p.Hook.X,
			Y:        p.Hook.Y,
			Cooldown: p.Hook.Cooldown,
		},
	}
}
