package model

// MessageKind 메시지 종류
type MessageKind string

const (
	MessageKindUser   MessageKind = "user"
	MessageKindSystem MessageKind = "system"
)

func (k MessageKind) String() string {
	return string(k)
}

// 시스템 메시지 작성자
const (
	SystemAuthor = "System"
	SystemUserID = "system"
)

// 방 설정 제한
const (
	RoomCodeMinLen     = 6
	RoomCodeMaxLen     = 8
	RoomMinCapacity    = 1
	RoomMaxCapacity    = 40
	RoomMinPinLen      = 4
	MaxMessageLength   = 2000
	MinSearchTermRunes = 2
	MaxUsernameLength  = 50
)

// ValidRoomCode 6~8자리 숫자인지 확인
func ValidRoomCode(code string) bool {
	if len(code) < RoomCodeMinLen || len(code) > RoomCodeMaxLen {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
