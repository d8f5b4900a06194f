package server

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/auth"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/cache"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/config"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/gateway"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/handler"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/presence"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/service"
)

// Server Fiber 서버 래퍼
type Server struct {
	app        *fiber.App
	cfg        *config.Config
	gateway    *gateway.Gateway
	jwtManager *auth.JWTManager

	roomHandler     *handler.RoomHandler
	messageHandler  *handler.MessageHandler
	healthHandler   *handler.HealthHandler
	realtimeHandler *handler.RealtimeWSHandler

	mirror *presence.Mirror // nil이면 미러 비활성
}

// New 새 서버 인스턴스 생성. redis는 nil 가능
func New(cfg *config.Config, db *gorm.DB, redis *cache.RedisClient) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Virtual Study Room",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.Issuer)

	registry := presence.NewRegistry(cfg.Room.GracePeriod)
	store := service.NewMessageStore(db, cfg.Room.MaxMessages, cfg.Room.HistoryLimit)
	rooms := service.NewRoomService(db)

	// Redis presence 미러 (선택적)
	var (
		mirror *presence.Mirror
		syncer gateway.PresenceSyncer
		reader handler.PresenceReader
		pinger handler.RedisPinger
	)
	if redis != nil {
		mirror = presence.NewMirror(redis.Client(), cfg.Redis.PresenceTTL, serverID())
		syncer, reader, pinger = mirror, mirror, redis
		log.Printf("✅ Presence mirror enabled (redis %s)", cfg.Redis.Addr)
	} else {
		log.Println("ℹ️ Redis not configured (presence stays process-local)")
	}

	gw := gateway.New(registry, store, syncer, gateway.Options{
		PersistTimeout: cfg.Room.PersistTimeout,
		InboxSize:      cfg.WebSocket.InboxSize,
	})

	return &Server{
		app:             app,
		cfg:             cfg,
		gateway:         gw,
		jwtManager:      jwtManager,
		roomHandler:     handler.NewRoomHandler(rooms, registry, reader),
		messageHandler:  handler.NewMessageHandler(store),
		healthHandler:   handler.NewHealthHandler(db, pinger, registry),
		realtimeHandler: handler.NewRealtimeWSHandler(gw, jwtManager, cfg.WebSocket),
		mirror:          mirror,
	}
}

// App fiber 앱 (테스트용)
func (s *Server) App() *fiber.App {
	return s.app
}

// Gateway 실시간 게이트웨이
func (s *Server) Gateway() *gateway.Gateway {
	return s.gateway
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: s.cfg.CORS.AllowOrigins != "*",
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Rate Limiter (방 생성/입장 PIN 대입 방지)
	roomLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	requireAuth := auth.AuthMiddleware(s.jwtManager)

	// Room 라우트 그룹 (인증 필요)
	roomGroup := s.app.Group("/api/rooms", requireAuth)
	roomGroup.Post("/create", roomLimiter, s.roomHandler.Create)
	roomGroup.Post("/join", roomLimiter, s.roomHandler.Join)
	roomGroup.Post("/leave", s.roomHandler.Leave)
	roomGroup.Get("/my", s.roomHandler.Mine)
	roomGroup.Get("/:roomId", s.roomHandler.Get)
	roomGroup.Get("/:roomId/presence", s.roomHandler.Presence)

	// Message 라우트 그룹 (인증 필요)
	messageGroup := s.app.Group("/api/messages", requireAuth)
	messageGroup.Get("/room/:roomCode", s.messageHandler.GetHistory)
	messageGroup.Get("/room/:roomCode/count", s.messageHandler.GetCount)
	messageGroup.Get("/room/:roomCode/search", s.messageHandler.Search)
	messageGroup.Delete("/:messageId", s.messageHandler.Delete)

	// WebSocket 실시간 엔드포인트 (게스트 허용)
	s.app.Get("/ws", s.realtimeHandler.Upgrade,
		websocket.New(s.realtimeHandler.HandleWebSocket, s.realtimeHandler.Config()))
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	done := s.runGateway(ctx)
	defer func() {
		cancel()
		<-done
	}()

	log.Printf("🚀 Virtual Study Room starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Serve 주어진 리스너로 서비스 (테스트용). ctx 취소 시 종료
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	done := s.runGateway(ctx)
	go func() {
		<-ctx.Done()
		s.app.ShutdownWithTimeout(5 * time.Second)
	}()
	err := s.app.Listener(ln)
	<-done
	return err
}

func (s *Server) runGateway(ctx context.Context) <-chan struct{} {
	if s.mirror != nil {
		go func() {
			err := s.mirror.Watch(ctx, func(snap presence.RoomSnapshot) {
				log.Printf("[Presence] room %s updated by %s (%d members)", snap.RoomCode, snap.ServerID, len(snap.Members))
			})
			if err != nil {
				log.Printf("[Presence] watch stopped: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.gateway.Run(ctx)
		log.Println("[Gateway] stopped")
	}()
	return done
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}

// serverID 미러 스냅샷의 프로세스 식별자
func serverID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "studyroom"
	}
	return host + "-" + uuid.NewString()[:8]
}
