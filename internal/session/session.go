package session

import (
	"sort"
	"time"
)

// State 실시간 연결 상태
type State int

const (
	StateConnecting    State = iota // 업그레이드 전
	StateAuthenticated              // 신원 확인 완료, 입장한 방 없음
	StateInRoom                     // 하나 이상의 방에 입장
	StateDisconnected               // 연결 종료 (종단 상태)
)

// String 상태를 문자열로 반환
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateInRoom:
		return "in_room"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session 연결 하나의 상태. 값 타입이며 전이 메서드는 새 값을 반환한다
type Session struct {
	ConnID      string
	UserID      string
	Username    string
	Guest       bool
	State       State
	ConnectedAt time.Time

	rooms map[string]struct{}
}

// New 인증된 세션 생성
func New(connID, userID, username string, guest bool) Session {
	return Session{
		ConnID:      connID,
		UserID:      userID,
		Username:    username,
		Guest:       guest,
		State:       StateAuthenticated,
		ConnectedAt: time.Now(),
	}
}

// Join 방 입장
func (s Session) Join(roomCode string) Session {
	if s.State == StateDisconnected {
		return s
	}
	rooms := s.copyRooms()
	rooms[roomCode] = struct{}{}
	s.rooms = rooms
	s.State = StateInRoom
	return s
}

// Leave 방 퇴장. 남은 방이 없으면 Authenticated로 복귀
func (s Session) Leave(roomCode string) Session {
	if _, ok := s.rooms[roomCode]; !ok {
		return s
	}
	rooms := s.copyRooms()
	delete(rooms, roomCode)
	s.rooms = rooms
	if len(rooms) == 0 && s.State == StateInRoom {
		s.State = StateAuthenticated
	}
	return s
}

// Close 종단 상태로 전이
func (s Session) Close() Session {
	s.State = StateDisconnected
	return s
}

// InRoom 방 입장 여부
func (s Session) InRoom(roomCode string) bool {
	_, ok := s.rooms[roomCode]
	return ok
}

// Rooms 입장한 방 목록 (정렬됨)
func (s Session) Rooms() []string {
	out := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// IsClosed 세션 종료 여부 확인
func (s Session) IsClosed() bool {
	return s.State == StateDisconnected
}

// Duration 연결 유지 시간
func (s Session) Duration() time.Duration {
	return time.Since(s.ConnectedAt)
}

func (s Session) copyRooms() map[string]struct{} {
	rooms := make(map[string]struct{}, len(s.rooms)+1)
	for code := range s.rooms {
		rooms[code] = struct{}{}
	}
	return rooms
}
