package gateway

import "github.com/thirumagalmeena/Virtual-Study-Room/internal/model"

// TargetKind 전송 대상 종류
type TargetKind int

const (
	ToRoom       TargetKind = iota // 방 전체
	ToRoomExcept                   // 보낸 연결 제외
	ToConn                         // 단일 연결
)

func (k TargetKind) String() string {
	switch k {
	case ToRoom:
		return "room"
	case ToRoomExcept:
		return "room_except"
	case ToConn:
		return "conn"
	default:
		return "unknown"
	}
}

// Target 전송 대상
type Target struct {
	Kind   TargetKind
	Room   string
	ConnID string // ToRoomExcept: 제외할 연결, ToConn: 받을 연결
}

// Room 방 전체 대상
func Room(code string) Target {
	return Target{Kind: ToRoom, Room: code}
}

// RoomExcept 보낸 연결을 제외한 방 대상
func RoomExcept(code, connID string) Target {
	return Target{Kind: ToRoomExcept, Room: code, ConnID: connID}
}

// Conn 단일 연결 대상
func Conn(connID string) Target {
	return Target{Kind: ToConn, ConnID: connID}
}

// Effect 핸들러가 기술하는 부수 효과. 실행은 런타임이 담당
type Effect interface {
	effect()
}

// Emit 이벤트 전송
type Emit struct {
	Target  Target
	Event   string
	Payload interface{}
}

// Persist 메시지 저장 후 receive_message 전송 (저장 실패해도 전송)
type Persist struct {
	Message model.ChatMessage
	Target  Target
}

// SchedulePurge 유예 시간 후 오프라인 참가자 제거 예약
type SchedulePurge struct {
	Room   string
	UserID string
}

// CancelPurge 예약된 제거 취소
type CancelPurge struct {
	Room   string
	UserID string
}

// SyncPresence 방 멤버 스냅샷을 외부 미러에 반영
type SyncPresence struct {
	Room string
}

// Evict 같은 사용자의 새 연결에 밀려난 연결을 방에서 뺀다
type Evict struct {
	Room   string
	ConnID string
}

func (Emit) effect()          {}
func (Persist) effect()       {}
func (SchedulePurge) effect() {}
func (CancelPurge) effect()   {}
func (SyncPresence) effect()  {}
func (Evict) effect()         {}
