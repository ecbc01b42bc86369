package main

// CheckCircleCollision checks if two circles overlap
func CheckCircleCollision(x1, y1, r1, x2, y2, r2 float64) bool {
	dx := x2 - x1
	dy := y2 - y1
	dist2 := dx*dx + dy*dy
	radSum := r1 + r2
	return dist2 < radSum*radSum
}

// ResolvePlayerCollision pushes two overlapping players apart by half the
// overlap each along the separating axis, then clamps both into the arena.
func ResolvePlayerCollision(p1, p2 *Player) {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	dist := Distance(p1.X, p1.Y, p2.X, p2.Y)
	if dist == 0 {
		return
	}

	minDist := p1.Radius + p2.Radius
	overlap := minDist - dist

	nx := dx / dist
	ny := dy / dist

	separation := overlap / 2
	p1.X -= nx * separation
	p1.Y -= ny * separation
	p2.X += nx * separation
	p2.Y += ny * separation

	p1.ClampToArena()
	p2.ClampToArena()
}
