package main

const (
	// MaxSpeedMultiplier is the slack factor on the physically possible
	// displacement before a move is flagged. Tunable, advisory only.
	MaxSpeedMultiplier = 1.5
	// MaxPositionSlack is how far outside the arena a position may sit
	// before it is flagged.
	MaxPositionSlack = 50.0
)

// Violation kinds reported by ValidatePosition
const (
	ViolationSpeedHack   = "speed_hack"
	ViolationOutOfBounds = "out_of_bounds"
)

// ValidatePosition checks that a player's displacement since the last tick
// is physically possible and that the new position is near the arena.
// Returns ("", true) when the move is legitimate, or a violation kind and
// false when it should be reverted. Corrective only, never disconnects.
func ValidatePosition(x, y, oldX, oldY, speed, deltaTime float64) (string, bool) {
	dist := Distance(oldX, oldY, x, y)

	maxDist := speed * MaxSpeedMultiplier * deltaTime
	if dist > maxDist {
		return ViolationSpeedHack, false
	}

	if x < -MaxPositionSlack || x > ArenaWidth+MaxPositionSlack ||
		y < -MaxPositionSlack || y > ArenaHeight+MaxPositionSlack {
		return ViolationOutOfBounds, false
	}

	return "", true
}
