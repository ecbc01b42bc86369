package main

import "testing"

func TestHubConnectionLimits(t *testing.T) {
	h := NewHub(NewRoomManager(), NewAuth())

	for i := 0; i < maxConnsPerIP; i++ {
		if !h.CanAccept("1.2.3.4") {
			t.Fatalf("connection %d rejected", i)
		}
		h.TrackConnect("1.2.3.4")
	}
	if h.CanAccept("1.2.3.4") {
		t.Error("expected per-IP limit to reject")
	}
	if !h.CanAccept("5.6.7.8") {
		t.Error("other IPs should still be accepted")
	}

	h.TrackDisconnect("1.2.3.4")
	if !h.CanAccept("1.2.3.4") {
		t.Error("expected a slot after disconnect")
	}
}

func TestHubBindPlayer(t *testing.T) {
	h := NewHub(NewRoomManager(), NewAuth())
	c1 := &Client{playerID: "p1"}
	c2 := &Client{}

	if !h.BindPlayer("p1", c1) {
		t.Fatal("first bind should succeed")
	}
	if h.BindPlayer("p1", c2) {
		t.Error("identity live on another connection must not rebind")
	}
	// Rebinding the same connection is idempotent
	if !h.BindPlayer("p1", c1) {
		t.Error("rebinding the same connection should succeed")
	}
	if h.GetPlayerClient("p1") != c1 {
		t.Error("expected lookup to return the bound connection")
	}
}

func TestHubUnregisterReleasesIdentity(t *testing.T) {
	rm := NewRoomManager()
	h := NewHub(rm, NewAuth())

	room, _ := rm.CreateRoom("p1", "Test", "", DefaultRoomConfig())

	c := &Client{hub: h, playerID: "p1"}
	h.Register(c)
	h.BindPlayer("p1", c)
	rm.JoinRoom(room.ID, "p1", "Host", "", &fakeClient{})

	h.Unregister(c)

	if h.GetPlayerClient("p1") != nil {
		t.Error("expected identity released")
	}
	if rm.GetPlayerRoom("p1") != nil {
		t.Error("expected player removed from their room")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", h.ClientCount())
	}
}
