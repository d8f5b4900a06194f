package model

import (
	"time"
)

// Room 스터디룸
type Room struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	RoomID      string    `gorm:"type:varchar(8);uniqueIndex;not null" json:"roomId"` // 6~8자리 숫자 코드
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:text;default:''" json:"description"`
	IsPrivate   bool      `gorm:"default:false" json:"isPrivate"`
	Pin         *string   `gorm:"type:varchar(100)" json:"-"` // bcrypt 해시, 응답에 포함하지 않음
	Capacity    int       `gorm:"default:40;not null" json:"capacity"`
	CreatedBy   string    `gorm:"type:varchar(64);not null" json:"createdBy"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// Relations
	Members []RoomMember `gorm:"foreignKey:RoomID;references:RoomID" json:"members,omitempty"`
}

func (Room) TableName() string {
	return "rooms"
}

// RoomMember 스터디룸 멤버 (영속 멤버십, 실시간 접속 여부와 무관)
type RoomMember struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	RoomID   string    `gorm:"type:varchar(8);not null;uniqueIndex:idx_room_member" json:"roomId"`
	UserID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_room_member" json:"userId"`
	Username string    `gorm:"type:varchar(100)" json:"username"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (RoomMember) TableName() string {
	return "room_members"
}

// ChatMessage 채팅 메시지 (작성자 삭제 외에는 변경 불가)
type ChatMessage struct {
	ID        string      `gorm:"primaryKey;type:varchar(26)" json:"id"` // ULID
	RoomCode  string      `gorm:"type:varchar(8);not null;index:idx_room_created,priority:1" json:"roomCode"`
	Author    string      `gorm:"type:varchar(100);not null" json:"author"`
	UserID    string      `gorm:"type:varchar(64);not null" json:"userId"`
	Text      string      `gorm:"type:text;not null" json:"text"`
	Kind      MessageKind `gorm:"type:varchar(10);not null;default:'user'" json:"type"`
	CreatedAt time.Time   `gorm:"not null;index:idx_room_created,priority:2" json:"createdAt"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// IsSystem 시스템 메시지 여부
func (m ChatMessage) IsSystem() bool {
	return m.Kind == MessageKindSystem
}
