package main

import "testing"

func TestValidatePositionAcceptsNormalMovement(t *testing.T) {
	dt := 1.0 / 60.0
	// A full-speed step stays under the 1.5x tolerance
	if kind, ok := ValidatePosition(100+PlayerSpeed*dt, 100, 100, 100, PlayerSpeed, dt); !ok {
		t.Errorf("normal movement flagged as %s", kind)
	}
	if kind, ok := ValidatePosition(100, 100, 100, 100, PlayerSpeed, dt); !ok {
		t.Errorf("standing still flagged as %s", kind)
	}
}

func TestValidatePositionFlagsSpeedHack(t *testing.T) {
	dt := 1.0 / 60.0
	// Far beyond speed * multiplier * dt + slack
	kind, ok := ValidatePosition(100+PlayerSpeed*dt*10+MaxPositionSlack, 100, 100, 100, PlayerSpeed, dt)
	if ok {
		t.Fatal("expected speed violation")
	}
	if kind != ViolationSpeedHack {
		t.Errorf("expected %s, got %s", ViolationSpeedHack, kind)
	}
}

func TestValidatePositionFlagsOutOfBounds(t *testing.T) {
	dt := 1.0 / 60.0
	cases := []struct{ x, y float64 }{
		{-MaxPositionSlack - 1, 400},
		{ArenaWidth + MaxPositionSlack + 1, 400},
		{600, -MaxPositionSlack - 1},
		{600, ArenaHeight + MaxPositionSlack + 1},
	}
	for _, c := range cases {
		kind, ok := ValidatePosition(c.x, c.y, c.x, c.y, PlayerSpeed, dt)
		if ok {
			t.Errorf("position (%f, %f) not flagged", c.x, c.y)
			continue
		}
		if kind != ViolationOutOfBounds {
			t.Errorf("position (%f, %f): expected %s, got %s", c.x, c.y, ViolationOutOfBounds, kind)
		}
	}
}

func TestValidatePositionSlackNearEdge(t *testing.T) {
	dt := 1.0 / 60.0
	// A stationary position slightly outside the arena but inside the
	// slack band is tolerated
	if kind, ok := ValidatePosition(-MaxPositionSlack+1, 400, -MaxPositionSlack+1, 400, PlayerSpeed, dt); !ok {
		t.Errorf("position inside slack band flagged as %s", kind)
	}
}
