package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/auth"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/cache"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/config"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/database"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/presence"
)

const testSecret = "server-test-secret"

type testServer struct {
	addr  string
	cfg   *config.Config
	redis *miniredis.Miniredis
}

func testConfig(t *testing.T, redisAddr string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:         ":0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		WebSocket: config.WebSocketConfig{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			SendBufferSize:  64,
			WriteTimeout:    5 * time.Second,
			InboxSize:       256,
		},
		CORS: config.CORSConfig{
			AllowOrigins: "*",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		},
		Auth: config.AuthConfig{
			JWTSecret:         testSecret,
			AccessTokenExpiry: time.Hour,
			Issuer:            "test",
		},
		Database: config.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "studyroom.db"),
		},
		Redis: config.RedisConfig{
			Addr:        redisAddr,
			PresenceTTL: time.Minute,
		},
		Room: config.RoomConfig{
			GracePeriod:    time.Minute,
			MaxMessages:    500,
			PersistTimeout: 2 * time.Second,
			HistoryLimit:   100,
		},
	}
}

func startServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr())

	db, err := database.Connect(cfg.Database)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rc, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		t.Fatalf("redis: %v", err)
	}

	srv := New(cfg, db, rc)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		rc.Close()
		database.Close(db)
	})

	return &testServer{addr: ln.Addr().String(), cfg: cfg, redis: mr}
}

func (s *testServer) token(t *testing.T, userID, name string) string {
	t.Helper()
	m := auth.NewJWTManager(testSecret, time.Hour, "test")
	token, err := m.GenerateAccessToken(userID, name, "")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return token
}

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type wsPeer struct {
	conn *websocket.Conn
}

func (s *testServer) dial(t *testing.T, query string) *wsPeer {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+s.addr+"/ws?"+query, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsPeer{conn: conn}
}

func (p *wsPeer) send(t *testing.T, event string, data interface{}) {
	t.Helper()
	body, _ := json.Marshal(data)
	if err := p.conn.WriteJSON(wsFrame{Event: event, Data: body}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// expect 조건에 맞는 이벤트가 올 때까지 읽기 (다른 이벤트는 건너뜀)
func (p *wsPeer) expect(t *testing.T, event string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	defer p.conn.SetReadDeadline(time.Time{})
	for {
		var f wsFrame
		if err := p.conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if f.Event == event && (match == nil || match(f.Data)) {
			return f.Data
		}
	}
}

func memberCount(n int) func(json.RawMessage) bool {
	return func(data json.RawMessage) bool {
		var members []presence.Participant
		json.Unmarshal(data, &members)
		return len(members) == n
	}
}

func TestUpgradeRejectsBadToken(t *testing.T) {
	s := startServer(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+s.addr+"/ws?token=garbage", nil)
	if err == nil {
		t.Fatal("expected upgrade to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestRealtimeRoundTrip(t *testing.T) {
	s := startServer(t)
	room := map[string]string{"roomCode": "123456"}

	alice := s.dial(t, "token="+s.token(t, "u1", "alice"))
	alice.send(t, "join_room", room)
	alice.expect(t, "room_members", memberCount(1))

	guest := s.dial(t, "username=Bob")
	guest.send(t, "join_room", room)
	guest.expect(t, "room_members", memberCount(2))
	alice.expect(t, "receive_message", func(d json.RawMessage) bool {
		return strings.Contains(string(d), "Bob joined the room")
	})

	guest.send(t, "send_message", map[string]string{"roomCode": "123456", "text": "  hi all  "})
	alice.expect(t, "receive_message", func(d json.RawMessage) bool {
		var msg struct {
			Author string `json:"author"`
			Text   string `json:"text"`
		}
		json.Unmarshal(d, &msg)
		return msg.Author == "Bob" && msg.Text == "hi all"
	})

	alice.send(t, "ping", map[string]string{})
	alice.expect(t, "pong", nil)

	// 미러 동기화는 비동기
	deadline := time.Now().Add(2 * time.Second)
	for !s.redis.Exists("presence:room:123456") {
		if time.Now().After(deadline) {
			t.Fatal("presence snapshot was not mirrored to redis")
		}
		time.Sleep(20 * time.Millisecond)
	}

	req, _ := http.NewRequest(http.MethodGet, "http://"+s.addr+"/api/messages/room/123456", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(t, "u1", "alice"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "hi all") {
		t.Fatalf("history should include the chat message: %d %s", resp.StatusCode, body)
	}

	guest.conn.Close()
	alice.expect(t, "user-left", func(d json.RawMessage) bool {
		return strings.Contains(string(d), `"username":"Bob"`)
	})
}

func TestHealthEndpoint(t *testing.T) {
	s := startServer(t)

	resp, err := http.Get("http://" + s.addr + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status string `json:"status"`
		} `json:"checks"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body.Status != "healthy" || body.Checks["redis"].Status != "healthy" {
		t.Fatalf("unexpected health: %d %+v", resp.StatusCode, body)
	}
}
