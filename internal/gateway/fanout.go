package gateway

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/presence"
)

// Sender 연결 하나의 송신 큐. Deliver는 블로킹하지 않으며 큐가 가득 차면 false
type Sender interface {
	Deliver(frame []byte) bool
}

// Fanout 방 단위 전송. 수신자는 전송 시점의 레지스트리 활성 연결로 결정된다
type Fanout struct {
	registry *presence.Registry

	mu    sync.RWMutex
	conns map[string]Sender
}

// NewFanout 생성자
func NewFanout(registry *presence.Registry) *Fanout {
	return &Fanout{
		registry: registry,
		conns:    make(map[string]Sender),
	}
}

// Register 연결 등록
func (f *Fanout) Register(connID string, sender Sender) {
	f.mu.Lock()
	f.conns[connID] = sender
	f.mu.Unlock()
}

// Unregister 연결 해제
func (f *Fanout) Unregister(connID string) {
	f.mu.Lock()
	delete(f.conns, connID)
	f.mu.Unlock()
}

// ConnectionCount 등록된 연결 수
func (f *Fanout) ConnectionCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.conns)
}

// Encode 프레임 직렬화
func Encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: payload})
}

// ToRoom 방의 모든 연결에 전송. 전달된 수 반환
func (f *Fanout) ToRoom(room, event string, payload interface{}) int {
	return f.ToRoomExcept(room, event, payload, "")
}

// ToRoomExcept 보낸 연결을 제외하고 방에 전송
func (f *Fanout) ToRoomExcept(room, event string, payload interface{}, exceptConnID string) int {
	recipients := f.registry.ConnectionsIn(room)
	if len(recipients) == 0 {
		return 0
	}

	frame, err := Encode(event, payload)
	if err != nil {
		log.Printf("[Fanout] Failed to encode %s for room %s: %v", event, room, err)
		return 0
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	delivered := 0
	for _, connID := range recipients {
		if connID == exceptConnID {
			continue
		}
		sender, ok := f.conns[connID]
		if !ok {
			continue
		}
		if !sender.Deliver(frame) {
			log.Printf("[Room %s] Send buffer full, dropping %s for %s", room, event, connID)
			continue
		}
		delivered++
	}
	return delivered
}

// ToConnection 단일 연결에 전송. 연결이 없거나 큐가 가득 차면 false (로그만 남김)
func (f *Fanout) ToConnection(connID, event string, payload interface{}) bool {
	f.mu.RLock()
	sender, ok := f.conns[connID]
	f.mu.RUnlock()
	if !ok {
		log.Printf("[Fanout] %s dropped: connection %s not found", event, connID)
		return false
	}

	frame, err := Encode(event, payload)
	if err != nil {
		log.Printf("[Fanout] Failed to encode %s for %s: %v", event, connID, err)
		return false
	}
	if !sender.Deliver(frame) {
		log.Printf("[Fanout] Send buffer full, dropping %s for %s", event, connID)
		return false
	}
	return true
}

// Emit Target에 따라 전송
func (f *Fanout) Emit(target Target, event string, payload interface{}) {
	switch target.Kind {
	case ToRoom:
		f.ToRoom(target.Room, event, payload)
	case ToRoomExcept:
		f.ToRoomExcept(target.Room, event, payload, target.ConnID)
	case ToConn:
		f.ToConnection(target.ConnID, event, payload)
	}
}
