package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/duochat/internal/cipher"
	"github.com/duochat/internal/config"
	"github.com/duochat/internal/handler"
	"github.com/duochat/internal/logger"
	"github.com/duochat/internal/middleware"
	"github.com/duochat/internal/repository"
	"github.com/duochat/internal/service"
	"github.com/duochat/internal/startup"
	"github.com/duochat/internal/ws"
	"github.com/duochat/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	runMigrations(cfg.Database.URL)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	userRepo := repository.NewUserRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)

	// A restarted gateway has no live connections; stale "online" rows from
	// the previous run would never flip back otherwise.
	resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := userRepo.ResetStatuses(resetCtx); err != nil {
		logger.Errorf("reset statuses: %v", err)
	}
	resetCancel()

	contentCipher := cipher.New(cfg.CipherOffset)
	authSvc := service.NewAuthService(userRepo)
	msgSvc := service.NewMessageService(userRepo, convRepo, msgRepo, contentCipher)

	var bus ws.Bus
	if cfg.RedisURL != "" {
		rdb := startup.ConnectRedisWithRetry(cfg.RedisURL, 60*time.Second)
		defer rdb.Close()
		bus = ws.NewRedisBus(rdb, "")
		logger.Info("redis event bus connected")
	}

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(userRepo, msgSvc, cfg.MaxWSConnections, bus)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	authH := handler.NewAuthHandler(authSvc, []byte(cfg.JWTSecret), cfg.TokenTTL, cfg.SecureCookie)
	userH := handler.NewUserHandler(userRepo, hub)
	msgH := handler.NewMessageHandler(msgSvc, hub)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Skip compression for WebSocket upgrades: the compressing ResponseWriter
	// does not implement http.Hijacker and the upgrade would fail with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })

	r.Post("/api/signup", authH.Signup)
	r.Post("/api/login", authH.Login)
	r.Post("/api/logout", authH.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth([]byte(cfg.JWTSecret)))
		r.Get("/api/auth/user", userH.GetProfile)
		r.Get("/api/users", userH.GetUsers)
		r.Get("/api/users/search", userH.SearchUsers)
		r.Get("/api/users/{id}", userH.GetUser)
		r.Patch("/api/users/profile", userH.UpdateProfile)
		r.Get("/api/conversations", msgH.GetConversations)
		r.Get("/api/messages/{conversationId}", msgH.GetMessages)
		r.Post("/api/messages/{conversationId}/read", msgH.MarkRead)
		r.Post("/api/messages", msgH.CreateMessage)
		r.Delete("/api/messages", msgH.DeleteMessages)
		r.Get("/ws", wsH.ServeWS)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(databaseURL string) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		logger.Errorf("open db for migrations: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrations.Up(db); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "duochat"
		password = "duochat_secret"
		database = "duochat"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
