package service

import (
	"context"
	"errors"
	"testing"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
)

func TestCreateRoomValidation(t *testing.T) {
	s := NewRoomService(newTestDB(t))
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateRoomInput
	}{
		{"missing name", CreateRoomInput{Name: "  "}},
		{"capacity too high", CreateRoomInput{Name: "x", Capacity: 41}},
		{"capacity negative", CreateRoomInput{Name: "x", Capacity: -1}},
		{"private short pin", CreateRoomInput{Name: "x", IsPrivate: true, Pin: "123"}},
	}
	for _, tc := range cases {
		if _, err := s.Create(ctx, "u1", "alice", tc.in); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("%s: expected InvalidArgument, got %v", tc.name, err)
		}
	}
}

func TestCreateRoom(t *testing.T) {
	s := NewRoomService(newTestDB(t))
	ctx := context.Background()

	room, err := s.Create(ctx, "u1", "alice", CreateRoomInput{Name: " Calculus ", Description: "weekly"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n := len(room.RoomID); n < 6 || n > 8 {
		t.Fatalf("room code length %d out of range", n)
	}
	for _, ch := range room.RoomID {
		if ch < '0' || ch > '9' {
			t.Fatalf("room code %q is not numeric", room.RoomID)
		}
	}
	if room.Name != "Calculus" || room.Capacity != 40 || room.CreatedBy != "u1" {
		t.Fatalf("unexpected room: %+v", room)
	}

	got, err := s.Get(ctx, room.RoomID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Members) != 1 || got.Members[0].UserID != "u1" {
		t.Fatalf("creator should be the first member: %+v", got.Members)
	}
}

func TestJoinRoom(t *testing.T) {
	s := NewRoomService(newTestDB(t))
	ctx := context.Background()

	private, err := s.Create(ctx, "owner", "owner", CreateRoomInput{Name: "secret", IsPrivate: true, Pin: "4321", Capacity: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if private.Pin == nil || *private.Pin == "4321" {
		t.Fatal("pin must be stored hashed")
	}

	if _, err := s.Join(ctx, "000", "u1", "bob", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown room: expected NotFound, got %v", err)
	}
	if _, err := s.Join(ctx, private.RoomID, "u1", "bob", ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("missing pin: expected Forbidden, got %v", err)
	}
	if _, err := s.Join(ctx, private.RoomID, "u1", "bob", "0000"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("wrong pin: expected Forbidden, got %v", err)
	}
	if _, err := s.Join(ctx, private.RoomID, "u1", "bob", "4321"); err != nil {
		t.Fatalf("correct pin: %v", err)
	}

	// 정원 2명: owner + u1
	if _, err := s.Join(ctx, private.RoomID, "u2", "carol", "4321"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("full room: expected Forbidden, got %v", err)
	}
	// 기존 멤버는 PIN 없이 재입장
	if _, err := s.Join(ctx, private.RoomID, "u1", "bob", ""); err != nil {
		t.Fatalf("member rejoin: %v", err)
	}
}

func TestMineAndLeave(t *testing.T) {
	s := NewRoomService(newTestDB(t))
	ctx := context.Background()

	r1, _ := s.Create(ctx, "u1", "alice", CreateRoomInput{Name: "one"})
	r2, _ := s.Create(ctx, "u2", "bob", CreateRoomInput{Name: "two"})
	if _, err := s.Join(ctx, r2.RoomID, "u1", "alice", ""); err != nil {
		t.Fatalf("join: %v", err)
	}

	rooms, err := s.Mine(ctx, "u1")
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}

	if _, err := s.Leave(ctx, r1.RoomID, "u1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	rooms, _ = s.Mine(ctx, "u1")
	if len(rooms) != 1 || rooms[0].RoomID != r2.RoomID {
		t.Fatalf("expected only room two, got %+v", rooms)
	}

	if _, err := s.Leave(ctx, "missing", "u1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("leave unknown: expected NotFound, got %v", err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get unknown: expected NotFound, got %v", err)
	}
}
