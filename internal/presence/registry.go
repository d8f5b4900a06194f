package presence

import (
	"log"
	"sort"
	"sync"
	"time"
)

// Status 필드 이름 (클라이언트가 쓰는 이름과 동일)
const (
	FieldVideo       = "hasVideo"
	FieldAudio       = "hasAudio"
	FieldScreenShare = "isScreenSharing"
)

// Participant 한 방에서의 사용자 접속 상태
type Participant struct {
	UserID          string `json:"userId"`
	Username        string `json:"username"`
	Online          bool   `json:"online"`
	HasVideo        bool   `json:"hasVideo"`
	HasAudio        bool   `json:"hasAudio"`
	IsScreenSharing bool   `json:"isScreenSharing"`

	ConnectionID   string    `json:"-"`
	JoinedAt       time.Time `json:"-"`
	DisconnectedAt time.Time `json:"-"`
}

// JoinResult Join 결과
type JoinResult struct {
	Members      []Participant
	Reconnected  bool   // 기존 항목이 갱신된 경우
	ReplacedConn string // 밀려난 기존 접속 연결 (없으면 빈 문자열)
}

// Affected 연결 끊김으로 상태가 바뀐 (방, 참가자)
type Affected struct {
	Room        string
	Participant Participant
}

type room struct {
	members []*Participant
}

func (r *room) find(userID string) (int, *Participant) {
	for i, p := range r.members {
		if p.UserID == userID {
			return i, p
		}
	}
	return -1, nil
}

func (r *room) snapshot() []Participant {
	out := make([]Participant, len(r.members))
	for i, p := range r.members {
		out[i] = *p
	}
	return out
}

// Registry 방별 실시간 참가자 목록 (현재 접속자의 단일 출처)
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*room
	gracePeriod time.Duration
	now         func() time.Time
}

// NewRegistry 생성자
func NewRegistry(gracePeriod time.Duration) *Registry {
	return &Registry{
		rooms:       make(map[string]*room),
		gracePeriod: gracePeriod,
		now:         time.Now,
	}
}

// GracePeriod 연결 끊김 후 유지 시간
func (r *Registry) GracePeriod() time.Duration {
	return r.gracePeriod
}

// Join 참가자 추가 또는 재접속 처리 후 전체 멤버 반환
func (r *Registry) Join(roomCode string, p Participant) JoinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomCode]
	if !ok {
		rm = &room{}
		r.rooms[roomCode] = rm
	}

	reconnected := false
	replaced := ""
	if _, existing := rm.find(p.UserID); existing != nil {
		// 같은 사용자의 새 연결이 항목을 가져감
		if existing.Online && existing.ConnectionID != "" && existing.ConnectionID != p.ConnectionID {
			replaced = existing.ConnectionID
		}
		// 플래그는 유지하고 연결 정보만 갱신
		existing.Online = true
		existing.ConnectionID = p.ConnectionID
		existing.DisconnectedAt = time.Time{}
		if p.Username != "" {
			existing.Username = p.Username
		}
		reconnected = true
	} else {
		rm.members = append(rm.members, &Participant{
			UserID:       p.UserID,
			Username:     p.Username,
			Online:       true,
			HasVideo:     false,
			HasAudio:     true,
			ConnectionID: p.ConnectionID,
			JoinedAt:     r.now(),
		})
	}

	return JoinResult{Members: rm.snapshot(), Reconnected: reconnected, ReplacedConn: replaced}
}

// SetStatus hasVideo/hasAudio/isScreenSharing 중 하나 변경
func (r *Registry) SetStatus(roomCode, userID, field string, value bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomCode]
	if !ok {
		return false
	}
	_, p := rm.find(userID)
	if p == nil {
		return false
	}

	switch field {
	case FieldVideo:
		p.HasVideo = value
	case FieldAudio:
		p.HasAudio = value
	case FieldScreenShare:
		p.IsScreenSharing = value
	default:
		return false
	}
	return true
}

// Leave 참가자를 완전히 제거. 방이 비면 방도 제거
func (r *Registry) Leave(roomCode, userID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(roomCode, userID)
}

// MarkDisconnected 해당 연결을 쓰던 모든 항목을 오프라인으로 표시 (항목은 유지)
func (r *Registry) MarkDisconnected(connID string) []Affected {
	if connID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var affected []Affected
	now := r.now()
	for code, rm := range r.rooms {
		for _, p := range rm.members {
			if p.ConnectionID != connID {
				continue
			}
			p.Online = false
			p.ConnectionID = ""
			p.DisconnectedAt = now
			affected = append(affected, Affected{Room: code, Participant: *p})
		}
	}

	sort.Slice(affected, func(i, j int) bool { return affected[i].Room < affected[j].Room })
	return affected
}

// PurgeStale 유예 시간이 지난 오프라인 참가자 제거
func (r *Registry) PurgeStale(roomCode, userID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomCode]
	if !ok {
		return Participant{}, false
	}
	_, p := rm.find(userID)
	if p == nil || p.Online {
		return Participant{}, false
	}
	if r.now().Sub(p.DisconnectedAt) < r.gracePeriod {
		return Participant{}, false
	}

	return r.removeLocked(roomCode, userID)
}

func (r *Registry) removeLocked(roomCode, userID string) (Participant, bool) {
	rm, ok := r.rooms[roomCode]
	if !ok {
		return Participant{}, false
	}
	idx, p := rm.find(userID)
	if p == nil {
		return Participant{}, false
	}

	removed := *p
	rm.members = append(rm.members[:idx], rm.members[idx+1:]...)
	if len(rm.members) == 0 {
		delete(r.rooms, roomCode)
		log.Printf("[Registry] Room %s is empty, dropped", roomCode)
	}
	return removed, true
}

// ListRoom 멤버 스냅샷. 없는 방은 빈 목록
func (r *Registry) ListRoom(roomCode string) []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomCode]
	if !ok {
		return []Participant{}
	}
	return rm.snapshot()
}

// Member 특정 참가자 조회
func (r *Registry) Member(roomCode, userID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomCode]
	if !ok {
		return Participant{}, false
	}
	_, p := rm.find(userID)
	if p == nil {
		return Participant{}, false
	}
	return *p, true
}

// ConnectionFor 온라인 참가자의 현재 연결 ID
func (r *Registry) ConnectionFor(roomCode, userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomCode]
	if !ok {
		return "", false
	}
	_, p := rm.find(userID)
	if p == nil || !p.Online || p.ConnectionID == "" {
		return "", false
	}
	return p.ConnectionID, true
}

// ConnectionsIn 방의 모든 활성 연결 ID
func (r *Registry) ConnectionsIn(roomCode string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomCode]
	if !ok {
		return nil
	}
	conns := make([]string, 0, len(rm.members))
	for _, p := range rm.members {
		if p.Online && p.ConnectionID != "" {
			conns = append(conns, p.ConnectionID)
		}
	}
	return conns
}

// Rooms 현재 등록된 방 코드 목록
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// RoomCount 현재 방 개수
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
