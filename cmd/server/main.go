package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/auth"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/cache"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/config"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/database"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/server"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "studyroom",
	Short: "Virtual Study Room realtime backend",
	Long: `Virtual Study Room backend: room membership, chat history,
WebRTC signaling relay and whiteboard replication over a single websocket.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Println("✅ Migration complete")
		return nil
	},
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Mint a development access token with the configured secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")
		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.Issuer)
		token, err := jwtManager.GenerateAccessToken(userID, username, email)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env and .env are always read)")

	issueTokenCmd.Flags().String("user-id", "", "user id claim")
	issueTokenCmd.Flags().String("username", "", "username claim")
	issueTokenCmd.Flags().String("email", "", "email claim")
	issueTokenCmd.MarkFlagRequired("user-id")
	issueTokenCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(serveCmd, migrateCmd, issueTokenCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// 설정 로드
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// 데이터베이스 연결
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer database.Close(db)

	if err := database.Ping(db); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Printf("✅ Database connected successfully (%s)", cfg.Database.Driver)

	if err := database.Migrate(db); err != nil {
		return err
	}

	// Redis 연결 (선택적, 실패 시 로컬 presence로 동작)
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled() {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Printf("⚠️ Redis connection failed: %v (presence mirror disabled)", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// 서버 생성 및 설정
	srv := server.New(cfg, db, redisClient)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	return srv.Start()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}
