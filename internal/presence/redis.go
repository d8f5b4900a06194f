package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UpdatesChannel 방 멤버 변경 이벤트 채널
const UpdatesChannel = "presence_updates"

// RoomSnapshot Redis에 저장되는 방 멤버 스냅샷
type RoomSnapshot struct {
	RoomCode  string        `json:"roomCode"`
	Members   []Participant `json:"members"`
	ServerID  string        `json:"serverId"` // 멀티 서버 확장 대비
	UpdatedAt int64         `json:"updatedAt"`
}

// Mirror 레지스트리 상태를 Redis에 복제 (다른 프로세스의 조회용, 권한 원본 아님)
type Mirror struct {
	client   *redis.Client
	ttl      time.Duration
	serverID string
}

// NewMirror 생성자
func NewMirror(client *redis.Client, ttl time.Duration, serverID string) *Mirror {
	return &Mirror{client: client, ttl: ttl, serverID: serverID}
}

// Key 생성 유틸
func (m *Mirror) roomKey(roomCode string) string {
	return fmt.Sprintf("presence:room:%s", roomCode)
}

// SyncRoom 스냅샷 저장 (빈 방이면 삭제) 후 변경 이벤트 발행
func (m *Mirror) SyncRoom(ctx context.Context, roomCode string, members []Participant) error {
	snap := RoomSnapshot{
		RoomCode:  roomCode,
		Members:   members,
		ServerID:  m.serverID,
		UpdatedAt: time.Now().Unix(),
	}
	if snap.Members == nil {
		snap.Members = []Participant{}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	if len(members) == 0 {
		if err := m.client.Del(ctx, m.roomKey(roomCode)).Err(); err != nil {
			return err
		}
	} else if err := m.client.Set(ctx, m.roomKey(roomCode), data, m.ttl).Err(); err != nil {
		return err
	}

	return m.client.Publish(ctx, UpdatesChannel, data).Err()
}

// RoomMembers 저장된 스냅샷 조회. 없으면 빈 목록
func (m *Mirror) RoomMembers(ctx context.Context, roomCode string) ([]Participant, error) {
	val, err := m.client.Get(ctx, m.roomKey(roomCode)).Result()
	if err == redis.Nil {
		return []Participant{}, nil
	}
	if err != nil {
		return nil, err
	}

	var snap RoomSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, err
	}
	if snap.Members == nil {
		snap.Members = []Participant{}
	}
	return snap.Members, nil
}

// Subscribe 변경 이벤트 구독
func (m *Mirror) Subscribe(ctx context.Context) *redis.PubSub {
	return m.client.Subscribe(ctx, UpdatesChannel)
}

// Watch 다른 서버가 발행한 스냅샷마다 fn 호출. ctx 취소 시 반환
func (m *Mirror) Watch(ctx context.Context, fn func(RoomSnapshot)) error {
	sub := m.Subscribe(ctx)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var snap RoomSnapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				continue
			}
			if snap.ServerID == m.serverID {
				continue
			}
			fn(snap)
		}
	}
}
