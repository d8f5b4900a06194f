package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/model"
)

const (
	// MaxPageLimit 한 번에 조회 가능한 최대 메시지 수
	MaxPageLimit       = 500
	defaultSearchLimit = 50
)

// Page 페이지 조회 결과 (오래된 순)
type Page struct {
	Messages []model.ChatMessage `json:"messages"`
	HasMore  bool                `json:"hasMore"`
}

// MessageStore 방별 채팅 메시지 저장소
type MessageStore struct {
	db           *gorm.DB
	maxMessages  int
	defaultLimit int

	// append 직렬화 + 방별 마지막 타임스탬프
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewMessageStore 생성자
func NewMessageStore(db *gorm.DB, maxMessages, defaultLimit int) *MessageStore {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &MessageStore{
		db:           db,
		maxMessages:  maxMessages,
		defaultLimit: defaultLimit,
		last:         make(map[string]time.Time),
		now:          time.Now,
	}
}

// Append ID와 방별 단조 증가 타임스탬프를 부여해 저장. 저장 후 보관 개수 초과분 정리
func (s *MessageStore) Append(ctx context.Context, msg model.ChatMessage) (model.ChatMessage, error) {
	if msg.Kind == "" {
		msg.Kind = model.MessageKindUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC().Truncate(time.Microsecond)
	prev, err := s.lastTimestamp(ctx, msg.RoomCode)
	if err != nil {
		return msg, apperr.Transient("failed to save message", err)
	}
	if !ts.After(prev) {
		ts = prev.Add(time.Microsecond)
	}

	msg.ID = ulid.Make().String()
	msg.CreatedAt = ts

	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return msg, apperr.Transient("failed to save message", err)
	}
	s.last[msg.RoomCode] = ts

	if s.maxMessages > 0 {
		if deleted, err := s.Rotate(ctx, msg.RoomCode, s.maxMessages); err != nil {
			log.Printf("[MessageStore] Rotation failed for room %s: %v", msg.RoomCode, err)
		} else if deleted > 0 {
			log.Printf("[MessageStore] Rotated %d old messages in room %s", deleted, msg.RoomCode)
		}
	}

	return msg, nil
}

// lastTimestamp 캐시에 없으면 DB에서 방의 최신 타임스탬프 조회
func (s *MessageStore) lastTimestamp(ctx context.Context, roomCode string) (time.Time, error) {
	if ts, ok := s.last[roomCode]; ok {
		return ts, nil
	}

	var latest model.ChatMessage
	err := s.db.WithContext(ctx).
		Select("created_at").
		Where("room_code = ?", roomCode).
		Order("created_at DESC").
		Take(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	ts := latest.CreatedAt.UTC()
	s.last[roomCode] = ts
	return ts, nil
}

// Rotate 방의 메시지가 max개를 넘으면 가장 오래된 초과분 삭제
func (s *MessageStore) Rotate(ctx context.Context, roomCode string, max int) (int64, error) {
	if max <= 0 {
		return 0, nil
	}

	count, err := s.Count(ctx, roomCode)
	if err != nil {
		return 0, err
	}
	excess := int(count) - max
	if excess <= 0 {
		return 0, nil
	}

	var ids []string
	err = s.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("room_code = ?", roomCode).
		Order("created_at ASC, id ASC").
		Limit(excess).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, apperr.Transient("failed to select old messages", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.ChatMessage{})
	if result.Error != nil {
		return 0, apperr.Transient("failed to delete old messages", result.Error)
	}
	return result.RowsAffected, nil
}

// Page before 이전의 최근 메시지를 오래된 순으로 반환.
// hasMore는 가져온 개수가 limit과 같으면 true (근사치)
func (s *MessageStore) Page(ctx context.Context, roomCode string, limit int, before *time.Time) (Page, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	query := s.db.WithContext(ctx).Where("room_code = ?", roomCode)
	if before != nil {
		query = query.Where("created_at < ?", before.UTC())
	}

	var messages []model.ChatMessage
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return Page{}, apperr.Transient("failed to get messages", err)
	}

	// 역순으로 정렬하여 시간순으로
	ordered := make([]model.ChatMessage, len(messages))
	for i, m := range messages {
		ordered[len(messages)-1-i] = m
	}

	return Page{Messages: ordered, HasMore: len(messages) == limit}, nil
}

// Count 방의 메시지 수
func (s *MessageStore) Count(ctx context.Context, roomCode string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("room_code = ?", roomCode).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Transient("failed to count messages", err)
	}
	return count, nil
}

// Delete 작성자 본인만 삭제 가능. 시스템 메시지는 누구도 삭제 불가
func (s *MessageStore) Delete(ctx context.Context, messageID, requesterID string) error {
	var msg model.ChatMessage
	err := s.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("message not found")
	}
	if err != nil {
		return apperr.Transient("failed to get message", err)
	}

	if msg.IsSystem() {
		return apperr.Forbidden("cannot delete system messages")
	}
	if msg.UserID != requesterID {
		return apperr.Forbidden("not authorized to delete this message")
	}

	if err := s.db.WithContext(ctx).Delete(&msg).Error; err != nil {
		return apperr.Transient("failed to delete message", err)
	}
	return nil
}

// Search 사용자 메시지 본문 부분 일치 검색 (대소문자 무시, 최신순)
func (s *MessageStore) Search(ctx context.Context, roomCode, term string, limit int) ([]model.ChatMessage, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < model.MinSearchTermRunes {
		return nil, apperr.InvalidArgument("search term must be at least 2 characters")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

	messages := []model.ChatMessage{}
	err := s.db.WithContext(ctx).
		Where("room_code = ? AND kind = ?", roomCode, model.MessageKindUser).
		Where(`LOWER(text) LIKE ? ESCAPE '\'`, pattern).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, apperr.Transient("failed to search messages", err)
	}
	return messages, nil
}

// escapeLike LIKE 메타문자 이스케이프
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
