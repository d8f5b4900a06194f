package handler

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/auth"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/config"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/gateway"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/session"
)

const (
	localConnID    = "connId"
	localIdentity  = "identity"
	wsPingInterval = 30 * time.Second
)

// RealtimeWSHandler 스터디룸 실시간 WebSocket 핸들러
type RealtimeWSHandler struct {
	gateway    *gateway.Gateway
	jwtManager *auth.JWTManager
	cfg        config.WebSocketConfig
}

// NewRealtimeWSHandler RealtimeWSHandler 생성
func NewRealtimeWSHandler(gw *gateway.Gateway, jwtManager *auth.JWTManager, cfg config.WebSocketConfig) *RealtimeWSHandler {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &RealtimeWSHandler{gateway: gw, jwtManager: jwtManager, cfg: cfg}
}

// Upgrade 업그레이드 전 인증. 토큰이 잘못되면 401로 거부
func (h *RealtimeWSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	connID := uuid.NewString()
	identity, err := h.jwtManager.Identify(c, connID)
	if err != nil {
		log.Printf("[WS] upgrade rejected from %s: %v", c.IP(), err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": apperr.MessageOf(err),
		})
	}

	c.Locals(localConnID, connID)
	c.Locals(localIdentity, identity)
	return c.Next()
}

// Config websocket.New 설정
func (h *RealtimeWSHandler) Config() websocket.Config {
	return websocket.Config{
		ReadBufferSize:  h.cfg.ReadBufferSize,
		WriteBufferSize: h.cfg.WriteBufferSize,
	}
}

// wsClient 연결별 송신 큐
type wsClient struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

// Deliver 블로킹 없이 큐에 적재
func (w *wsClient) Deliver(frame []byte) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.send <- frame:
		return true
	default:
		return false
	}
}

func (w *wsClient) close() {
	w.once.Do(func() { close(w.done) })
}

// HandleWebSocket 연결 수명 관리. 읽기 루프는 여기서, 쓰기는 writePump에서
func (h *RealtimeWSHandler) HandleWebSocket(c *websocket.Conn) {
	connID, ok1 := c.Locals(localConnID).(string)
	identity, ok2 := c.Locals(localIdentity).(auth.Identity)
	if !ok1 || !ok2 {
		if err := c.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","data":{"message":"invalid session"}}`)); err != nil {
			log.Printf("[WS] failed to send session error: %v", err)
		}
		c.Close()
		return
	}

	client := &wsClient{
		send: make(chan []byte, h.cfg.SendBufferSize),
		done: make(chan struct{}),
	}
	sess := session.New(connID, identity.UserID, identity.Username, identity.Guest)
	h.gateway.Connect(sess, client)
	log.Printf("[WS] connected: conn=%s user=%s guest=%v", connID, identity.UserID, identity.Guest)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writePump(c, client, connID)
	}()

	defer func() {
		h.gateway.Disconnect(connID)
		client.close()
		wg.Wait()
		c.Close()
		log.Printf("[WS] disconnected: conn=%s user=%s (%s)", connID, identity.UserID, sess.Duration().Round(time.Second))
	}()

	for {
		messageType, msg, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WS] read error: conn=%s: %v", connID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := h.gateway.HandleFrame(connID, msg); err != nil {
			log.Printf("[WS] dropped frame from conn=%s: %v", connID, err)
		}
	}
}

// writePump 송신 큐를 소켓에 기록하고 주기적으로 ping 전송
func (h *RealtimeWSHandler) writePump(c *websocket.Conn, client *wsClient, connID string) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return

		case frame := <-client.send:
			if err := c.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				log.Printf("[WS] failed to set write deadline: conn=%s: %v", connID, err)
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("[WS] write failed: conn=%s: %v", connID, err)
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				c.Close()
				return
			}
		}
	}
}
