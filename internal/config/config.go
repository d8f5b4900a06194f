package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change-this-secret-in-production"

// Config 애플리케이션 전체 설정
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Room      RoomConfig
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WebSocketConfig WebSocket 관련 설정
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int // 연결별 송신 큐 크기
	WriteTimeout    time.Duration
	InboxSize       int // 게이트웨이 이벤트 큐 크기
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// AuthConfig 인증 설정
type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// DatabaseConfig 데이터베이스 설정
type DatabaseConfig struct {
	Driver     string // postgres | sqlite
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	TimeZone   string
	SQLitePath string
}

// RedisConfig Redis 설정 (Addr가 비어 있으면 비활성화)
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PresenceTTL time.Duration
}

// Enabled Redis 사용 여부
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// RoomConfig 실시간 룸 동작 설정
type RoomConfig struct {
	GracePeriod    time.Duration // 연결 끊김 후 멤버 유지 시간
	MaxMessages    int           // 방별 메시지 보관 개수
	PersistTimeout time.Duration // 메시지 저장 대기 한도
	HistoryLimit   int           // 기본 페이지 크기
}

// Load 환경 변수(.env 포함)와 선택적 설정 파일에서 설정 로드
func Load(configFile string) (*Config, error) {
	// .env 파일 로드 (없어도 에러 무시)
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	// 필수 환경 변수 검증
	jwtSecret := v.GetString("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("required environment variable JWT_SECRET is not set")
	}
	if jwtSecret == defaultJWTSecret {
		return nil, errors.New("JWT_SECRET must be changed from the default value")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getString(v, "PORT", ":5000"),
			ReadTimeout:  getDuration(v, "READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration(v, "WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration(v, "IDLE_TIMEOUT", 120*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getInt(v, "WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize: getInt(v, "WS_WRITE_BUFFER_SIZE", 4096),
			SendBufferSize:  getInt(v, "WS_SEND_BUFFER_SIZE", 64),
			WriteTimeout:    getDuration(v, "WS_WRITE_TIMEOUT", 5*time.Second),
			InboxSize:       getInt(v, "WS_INBOX_SIZE", 1024),
		},
		CORS: CORSConfig{
			AllowOrigins: getString(v, "CORS_ALLOW_ORIGINS", "http://localhost:5173"),
			AllowHeaders: getString(v, "CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept, Authorization"),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getDuration(v, "ACCESS_TOKEN_EXPIRY", 5*time.Hour),
			Issuer:            getString(v, "JWT_ISSUER", "studyroom-api"),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getString(v, "DB_DRIVER", "postgres")),
			Host:       getString(v, "DB_HOST", "localhost"),
			Port:       getString(v, "DB_PORT", "5432"),
			User:       getString(v, "DB_USER", "postgres"),
			Password:   getString(v, "DB_PASSWORD", ""),
			Name:       getString(v, "DB_NAME", "studyroom"),
			SSLMode:    getString(v, "DB_SSLMODE", "disable"),
			TimeZone:   getString(v, "DB_TIMEZONE", "UTC"),
			SQLitePath: getString(v, "DB_SQLITE_PATH", "studyroom.db"),
		},
		Redis: RedisConfig{
			Addr:        getString(v, "REDIS_ADDR", ""),
			Password:    getString(v, "REDIS_PASSWORD", ""),
			DB:          getInt(v, "REDIS_DB", 0),
			PresenceTTL: getDuration(v, "REDIS_PRESENCE_TTL", 10*time.Minute),
		},
		Room: RoomConfig{
			GracePeriod:    getDuration(v, "ROOM_GRACE_PERIOD", 45*time.Second),
			MaxMessages:    getInt(v, "ROOM_MAX_MESSAGES", 500),
			PersistTimeout: getDuration(v, "ROOM_PERSIST_TIMEOUT", 3*time.Second),
			HistoryLimit:   getInt(v, "ROOM_HISTORY_LIMIT", 100),
		},
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	return cfg, nil
}

// getString 문자열 설정 조회 (기본값 지원)
func getString(v *viper.Viper, key, defaultValue string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 설정 조회
func getInt(v *viper.Viper, key string, defaultValue int) int {
	if value := v.GetString(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getDuration 시간 설정 조회
func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if value := v.GetString(key); value != "" {
		// 숫자만 있으면 초로 간주
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
