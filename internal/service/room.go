package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/model"
)

const roomCodeAttempts = 12

// CreateRoomInput 방 생성 입력
type CreateRoomInput struct {
	Name        string
	Description string
	IsPrivate   bool
	Pin         string
	Capacity    int // 0이면 기본값
}

// RoomService 방 생성/입장/조회 (REST 협력자)
type RoomService struct {
	db *gorm.DB
}

// NewRoomService RoomService 생성
func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{db: db}
}

// Create 고유 코드로 방 생성, 생성자를 첫 멤버로 등록
func (s *RoomService) Create(ctx context.Context, userID, username string, in CreateRoomInput) (*model.Room, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.InvalidArgument("room name is required")
	}

	capacity := in.Capacity
	if capacity == 0 {
		capacity = model.RoomMaxCapacity
	}
	if capacity < model.RoomMinCapacity || capacity > model.RoomMaxCapacity {
		return nil, apperr.InvalidArgument("capacity must be a number between 1 and 40")
	}

	if in.IsPrivate && len(in.Pin) < model.RoomMinPinLen {
		return nil, apperr.InvalidArgument("private rooms require a PIN of at least 4 characters")
	}

	var hashedPin *string
	if in.IsPrivate {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.Transient("failed to hash pin", err)
		}
		h := string(hash)
		hashedPin = &h
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	room := &model.Room{
		RoomID:      code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsPrivate:   in.IsPrivate,
		Pin:         hashedPin,
		Capacity:    capacity,
		CreatedBy:   userID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		return tx.Create(&model.RoomMember{RoomID: code, UserID: userID, Username: username}).Error
	})
	if err != nil {
		return nil, apperr.Transient("failed to create room", err)
	}

	return room, nil
}

// uniqueCode 6~8자리 숫자 코드 생성 (중복 시 재시도)
func (s *RoomService) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code := randomDigits(model.RoomCodeMinLen + rand.IntN(model.RoomCodeMaxLen-model.RoomCodeMinLen+1))

		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Room{}).Where("room_id = ?", code).Count(&count).Error; err != nil {
			return "", apperr.Transient("failed to check room code", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", apperr.Transient("could not generate unique room id, try again", nil)
}

func randomDigits(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// Join 방 입장. 기존 멤버는 검사 없이 통과, 비공개 방은 PIN 확인, 정원 초과 거부
func (s *RoomService) Join(ctx context.Context, roomID, userID, username, pin string) (*model.Room, error) {
	room, err := s.find(ctx, roomID)
	if err != nil {
		return nil, err
	}

	member, err := s.isMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return room, nil
	}

	if room.IsPrivate {
		if pin == "" {
			return nil, apperr.Forbidden("PIN required to join this private room")
		}
		hash := ""
		if room.Pin != nil {
			hash = *room.Pin
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) != nil {
			return nil, apperr.Forbidden("invalid PIN")
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.RoomMember{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
		return nil, apperr.Transient("failed to count members", err)
	}
	if int(count) >= room.Capacity {
		return nil, apperr.Forbidden("room is full")
	}

	if err := s.db.WithContext(ctx).Create(&model.RoomMember{RoomID: roomID, UserID: userID, Username: username}).Error; err != nil {
		return nil, apperr.Transient("failed to join room", err)
	}
	return room, nil
}

// Get 방 상세 조회 (멤버 포함)
func (s *RoomService) Get(ctx context.Context, roomID string) (*model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Where("room_id = ?", roomID).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("room not found")
	}
	if err != nil {
		return nil, apperr.Transient("failed to get room", err)
	}
	return &room, nil
}

// Mine 사용자가 멤버인 방 목록
func (s *RoomService) Mine(ctx context.Context, userID string) ([]model.Room, error) {
	rooms := []model.Room{}
	err := s.db.WithContext(ctx).
		Where("room_id IN (?)", s.db.Model(&model.RoomMember{}).Select("room_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, apperr.Transient("failed to get rooms", err)
	}
	return rooms, nil
}

// Leave 영속 멤버십 해제
func (s *RoomService) Leave(ctx context.Context, roomID, userID string) (*model.Room, error) {
	room, err := s.find(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&model.RoomMember{}).Error; err != nil {
		return nil, apperr.Transient("failed to leave room", err)
	}
	return room, nil
}

func (s *RoomService) find(ctx context.Context, roomID string) (*model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("room not found")
	}
	if err != nil {
		return nil, apperr.Transient("failed to get room", err)
	}
	return &room, nil
}

func (s *RoomService) isMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Transient("failed to check membership", err)
	}
	return count > 0, nil
}
