package session

import "testing"

func TestTransitions(t *testing.T) {
	s := New("c1", "u1", "alice", false)
	if s.State != StateAuthenticated {
		t.Fatalf("new session state = %s", s.State)
	}

	joined := s.Join("123456")
	if joined.State != StateInRoom || !joined.InRoom("123456") {
		t.Fatalf("join failed: %+v", joined)
	}
	if s.InRoom("123456") {
		t.Fatal("join must not mutate the previous value")
	}

	two := joined.Join("654321")
	if got := two.Rooms(); len(got) != 2 || got[0] != "123456" || got[1] != "654321" {
		t.Fatalf("unexpected rooms: %v", got)
	}

	one := two.Leave("123456")
	if one.State != StateInRoom || one.InRoom("123456") {
		t.Fatalf("leave one room: %+v", one)
	}
	none := one.Leave("654321")
	if none.State != StateAuthenticated {
		t.Fatalf("leaving last room should return to authenticated, got %s", none.State)
	}

	closed := two.Close()
	if !closed.IsClosed() || closed.State.String() != "disconnected" {
		t.Fatalf("close failed: %s", closed.State)
	}
	if closed.Join("777777").InRoom("777777") {
		t.Fatal("closed session must not join rooms")
	}
}
