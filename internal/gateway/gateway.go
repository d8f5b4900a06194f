package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/model"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/presence"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/session"
)

// MessageAppender 메시지 저장소
type MessageAppender interface {
	Append(ctx context.Context, msg model.ChatMessage) (model.ChatMessage, error)
}

// PresenceSyncer 방 멤버 스냅샷 미러 (Redis)
type PresenceSyncer interface {
	SyncRoom(ctx context.Context, roomCode string, members []presence.Participant) error
}

// Options 런타임 설정
type Options struct {
	PersistTimeout time.Duration
	InboxSize      int
	SyncQueueSize  int
}

type inboundKind int

const (
	inboundConnect inboundKind = iota
	inboundFrame
	inboundDisconnect
	inboundPurge
)

type inbound struct {
	kind    inboundKind
	connID  string
	session session.Session
	sender  Sender
	event   string
	data    json.RawMessage
	room    string
	userID  string
}

type purgeKey struct {
	room   string
	userID string
}

// Gateway 실시간 세션 게이트웨이.
// 하나의 루프 고루틴이 이벤트를 하나씩 끝까지 처리하고, 저장과 미러 동기화만 루프 밖에서 실행된다
type Gateway struct {
	registry *presence.Registry
	fanout   *Fanout
	store    MessageAppender
	mirror   PresenceSyncer

	persistTimeout time.Duration

	inbox     chan inbound
	syncQueue chan string
	done      chan struct{}
	stopOnce  sync.Once
	persistWG sync.WaitGroup

	// 루프 고루틴 전용
	sessions map[string]session.Session
	timers   map[purgeKey]*time.Timer
}

// New 생성자. mirror는 nil 가능
func New(registry *presence.Registry, store MessageAppender, mirror PresenceSyncer, opts Options) *Gateway {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 3 * time.Second
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 1024
	}
	if opts.SyncQueueSize <= 0 {
		opts.SyncQueueSize = 256
	}

	return &Gateway{
		registry:       registry,
		fanout:         NewFanout(registry),
		store:          store,
		mirror:         mirror,
		persistTimeout: opts.PersistTimeout,
		inbox:          make(chan inbound, opts.InboxSize),
		syncQueue:      make(chan string, opts.SyncQueueSize),
		done:           make(chan struct{}),
		sessions:       make(map[string]session.Session),
		timers:         make(map[purgeKey]*time.Timer),
	}
}

// Registry 레지스트리 (REST 조회용)
func (g *Gateway) Registry() *presence.Registry {
	return g.registry
}

// Fanout 전송 계층
func (g *Gateway) Fanout() *Fanout {
	return g.fanout
}

// Connect 인증된 연결 등록
func (g *Gateway) Connect(s session.Session, sender Sender) {
	g.post(inbound{kind: inboundConnect, connID: s.ConnID, session: s, sender: sender})
}

// HandleFrame 수신 프레임을 파싱해 루프에 전달
func (g *Gateway) HandleFrame(connID string, raw []byte) error {
	frame, err := DecodeFrame(raw)
	if err != nil {
		return err
	}
	g.post(inbound{kind: inboundFrame, connID: connID, event: frame.Event, data: frame.Data})
	return nil
}

// Disconnect 전송 계층 끊김 통지
func (g *Gateway) Disconnect(connID string) {
	g.post(inbound{kind: inboundDisconnect, connID: connID})
}

func (g *Gateway) post(ev inbound) {
	select {
	case g.inbox <- ev:
	case <-g.done:
	}
}

// Run 이벤트 루프. ctx 종료 시 반환
func (g *Gateway) Run(ctx context.Context) {
	log.Println("[Gateway] Event loop started")

	if g.mirror != nil {
		go g.syncLoop()
	}

	defer func() {
		g.stopOnce.Do(func() { close(g.done) })
		for key, t := range g.timers {
			t.Stop()
			delete(g.timers, key)
		}
		g.persistWG.Wait()
		log.Println("[Gateway] Event loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-g.inbox:
			g.handle(ev)
		}
	}
}

func (g *Gateway) handle(ev inbound) {
	switch ev.kind {
	case inboundConnect:
		g.sessions[ev.connID] = ev.session
		g.fanout.Register(ev.connID, ev.sender)
		log.Printf("[Gateway] %s connected as %s (%s)", ev.connID, ev.session.Username, ev.session.UserID)

	case inboundFrame:
		s, ok := g.sessions[ev.connID]
		if !ok {
			log.Printf("[Gateway] Frame %s from unknown connection %s dropped", ev.event, ev.connID)
			return
		}
		next, effects, err := Dispatch(g.registry, s, ev.event, ev.data)
		if err != nil {
			logHandlerError(ev.event, s, err)
			return
		}
		g.sessions[ev.connID] = next
		g.apply(effects)

	case inboundDisconnect:
		s, ok := g.sessions[ev.connID]
		if !ok {
			return
		}
		delete(g.sessions, ev.connID)
		g.fanout.Unregister(ev.connID)

		closed, effects := HandleDisconnect(g.registry, s)
		g.apply(effects)
		log.Printf("[Gateway] %s disconnected after %s", ev.connID, closed.Duration().Round(time.Second))

	case inboundPurge:
		delete(g.timers, purgeKey{room: ev.room, userID: ev.userID})
		g.apply(HandlePurge(g.registry, ev.room, ev.userID))
	}
}

func logHandlerError(event string, s session.Session, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument), errors.Is(err, apperr.ErrForbidden):
		log.Printf("[Gateway] ⚠️ %s from %s dropped: %s", event, s.UserID, apperr.MessageOf(err))
	default:
		log.Printf("[Gateway] ❌ %s from %s failed: %v", event, s.UserID, err)
	}
}

func (g *Gateway) apply(effects []Effect) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case Emit:
			g.fanout.Emit(e.Target, e.Event, e.Payload)
		case Persist:
			g.persist(e)
		case SchedulePurge:
			g.schedulePurge(e.Room, e.UserID)
		case CancelPurge:
			g.cancelPurge(e.Room, e.UserID)
		case SyncPresence:
			g.syncPresence(e.Room)
		case Evict:
			g.evict(e.Room, e.ConnID)
		}
	}
}

// evict 밀려난 연결은 그 방으로 더 이상 보내지 못한다 (수신도 새 연결로 넘어감)
func (g *Gateway) evict(room, connID string) {
	s, ok := g.sessions[connID]
	if !ok || !s.InRoom(room) {
		return
	}
	g.sessions[connID] = s.Leave(room)
	log.Printf("[Gateway] %s replaced in room %s by a newer connection of %s", connID, room, s.UserID)
}

// persist 루프 밖에서 저장 후 결과와 무관하게 전송
func (g *Gateway) persist(p Persist) {
	g.persistWG.Add(1)
	go func() {
		defer g.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), g.persistTimeout)
		defer cancel()

		msg := p.Message
		stored, err := g.appendWithTimeout(ctx, msg)
		if err != nil {
			log.Printf("[Gateway] ⚠️ Message for room %s not persisted, broadcasting anyway: %v", msg.RoomCode, err)
			if msg.CreatedAt.IsZero() {
				msg.CreatedAt = time.Now().UTC()
			}
			stored = msg
		}

		g.fanout.Emit(p.Target, EventReceiveMessage, stored)
	}()
}

type appendResult struct {
	msg model.ChatMessage
	err error
}

// appendWithTimeout ctx를 무시하는 저장소도 제한 시간 안에 포기
func (g *Gateway) appendWithTimeout(ctx context.Context, msg model.ChatMessage) (model.ChatMessage, error) {
	ch := make(chan appendResult, 1)
	go func() {
		stored, err := g.store.Append(ctx, msg)
		ch <- appendResult{stored, err}
	}()
	return awaitAppend(ctx, msg, ch)
}

// awaitAppend 시간 초과와 동시에 끝난 저장 결과는 버리지 않는다
func awaitAppend(ctx context.Context, msg model.ChatMessage, ch <-chan appendResult) (model.ChatMessage, error) {
	select {
	case r := <-ch:
		return r.msg, r.err
	case <-ctx.Done():
		select {
		case r := <-ch:
			return r.msg, r.err
		default:
		}
		return msg, apperr.Transient("persist timed out", ctx.Err())
	}
}

func (g *Gateway) schedulePurge(room, userID string) {
	key := purgeKey{room: room, userID: userID}
	if t, ok := g.timers[key]; ok {
		t.Stop()
	}
	g.timers[key] = time.AfterFunc(g.registry.GracePeriod(), func() {
		g.post(inbound{kind: inboundPurge, room: room, userID: userID})
	})
}

func (g *Gateway) cancelPurge(room, userID string) {
	key := purgeKey{room: room, userID: userID}
	if t, ok := g.timers[key]; ok {
		t.Stop()
		delete(g.timers, key)
	}
}

func (g *Gateway) syncPresence(room string) {
	if g.mirror == nil {
		return
	}
	select {
	case g.syncQueue <- room:
	default:
		log.Printf("[Gateway] Presence sync queue full, skipping room %s", room)
	}
}

// syncLoop 미러 동기화를 순서대로 처리. 항상 최신 스냅샷을 보낸다
func (g *Gateway) syncLoop() {
	for {
		select {
		case <-g.done:
			return
		case room := <-g.syncQueue:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := g.mirror.SyncRoom(ctx, room, g.registry.ListRoom(room)); err != nil {
				log.Printf("[Redis] Presence sync failed for room %s: %v", room, err)
			}
			cancel()
		}
	}
}
