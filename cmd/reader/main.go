package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/UjjwalSharma01/reader/internal/app"
	"github.com/UjjwalSharma01/reader/internal/config"
	"github.com/UjjwalSharma01/reader/internal/ratelimit"
	"github.com/UjjwalSharma01/reader/internal/server"
	"github.com/UjjwalSharma01/reader/internal/util"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()
	path := *configPath
	if path == "" {
		path = os.Getenv("READER_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		DataDir:        cfg.DataDir,
		TempDir:        cfg.TempDir,
		RedisAddr:      cfg.RedisAddr,
		RedisPassword:  cfg.RedisPassword,
		MinioEndpoint:  cfg.MinioEndpoint,
		MinioAccessKey: cfg.MinioAccessKey,
		MinioSecretKey: cfg.MinioSecretKey,
		MinioBucket:    cfg.MinioBucket,
		MinioUseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.UploadRateLimit > 0 {
		if cfg.RedisAddr != "" {
			limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "reader:uploads", cfg.UploadRateLimit, time.Minute)
		} else {
			limiter, err = ratelimit.NewFixedWindowLimiter(cfg.UploadRateLimit, time.Minute)
		}
		if err != nil {
			log.Fatalf("failed to init upload limiter: %v", err)
		}
	}

	httpServer := server.New(server.Config{
		App:               appCore,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		UploadLimiter:     limiter,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("reader server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
