package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/oksasatya/vidtube-api/config"
	"github.com/oksasatya/vidtube-api/internal/container"
	pginfra "github.com/oksasatya/vidtube-api/internal/infrastructure/postgres"
	"github.com/oksasatya/vidtube-api/internal/interface/middleware"
	"github.com/oksasatya/vidtube-api/internal/router"
	"github.com/oksasatya/vidtube-api/pkg/helpers"
	"github.com/oksasatya/vidtube-api/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()
	container.SetConfig(cfg)
	container.SetLogger(logger)

	switch cfg.StoreDriver {
	case "postgres":
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := runMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		container.SetPGPool(pool)
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		log.Fatalf("unknown store driver %q", cfg.StoreDriver)
	}

	// Redis backs rate limiting; the limiter fails open when it is unreachable
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()
	container.SetRedis(rdb)

	if cfg.UploadDriver == "gcs" {
		gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			log.Fatalf("failed to init GCS client: %v", err)
		}
		defer func() { _ = gcsClient.Close() }()
		container.SetGCS(gcsClient)
	}

	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			log.Fatalf("failed to init elasticsearch client: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := helpers.PingES(pingCtx, es); err != nil {
			helpers.LogError(logger, "elasticsearch unreachable, user search disabled", err, nil)
		} else {
			container.SetES(es)
		}
		cancel()
	}

	if cfg.MailSendEnabled && cfg.RabbitMQURL != "" {
		q, err := helpers.NewRabbitQueue(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			helpers.LogError(logger, "rabbitmq unavailable, emails disabled", err, nil)
		} else {
			defer q.Close()
			container.SetMailQueue(q)
		}
	}

	container.SetJWT(helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL))

	if err := os.MkdirAll(cfg.UploadTmpDir, 0o755); err != nil {
		log.Fatalf("failed to create upload staging dir: %v", err)
	}

	// Gin engine and global middleware
	r := gin.New()
	r.MaxMultipartMemory = cfg.UploadMaxBytes
	r.Use(gin.Recovery())
	r.Use(middleware.RealIP())
	r.Use(middleware.RequestIDMiddleware())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}
	if cfg.UploadDriver == "local" {
		if err := os.MkdirAll(cfg.LocalUploadDir, 0o755); err != nil {
			log.Fatalf("failed to create upload dir: %v", err)
		}
		r.Static("/static", cfg.LocalUploadDir)
	}

	reg := router.NewRegistry(r, logger)
	if err := router.InitModules(ctx, reg); err != nil {
		log.Fatalf("failed to init modules: %v", err)
	}
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		helpers.LogInfo(logger, "server starting", logrus.Fields{"port": cfg.Port, "store": cfg.StoreDriver, "uploads": cfg.UploadDriver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}

func runMigrations(dsn string, migrationsDir string, logger *logrus.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "postgres", driver)
	if err != nil {
		return err
	}
	logger.Info("running migrations...")
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run")
		return nil
	}
	return err
}
