package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/brightsend/mailform/internal/api"
	"github.com/brightsend/mailform/internal/assets"
	"github.com/brightsend/mailform/internal/auth"
	"github.com/brightsend/mailform/internal/config"
	"github.com/brightsend/mailform/internal/form"
	"github.com/brightsend/mailform/internal/mailer"
	"github.com/brightsend/mailform/internal/pkg/logger"
	"github.com/brightsend/mailform/internal/ratelimit"
	"github.com/brightsend/mailform/internal/render"
	"github.com/brightsend/mailform/internal/store"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("config load failed", "error", err.Error())
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.RedactPII != nil {
		logger.SetRedactPII(*cfg.Log.RedactPII)
	}

	ctx := context.Background()

	st, err := store.Open(cfg.Database)
	if err != nil {
		logger.Error("database open failed", "error", err.Error())
		os.Exit(1)
	}
	defer st.Close()

	authSvc, err := auth.NewService(st, cfg.Auth.Pepper)
	if err != nil {
		logger.Error("auth setup failed", "error", err.Error())
		os.Exit(1)
	}

	mirror, err := assets.NewS3Mirror(ctx, cfg.Assets)
	if err != nil {
		logger.Error("s3 mirror setup failed", "error", err.Error())
		os.Exit(1)
	}
	assetStore, err := assets.NewStore(cfg.Assets, mirror)
	if err != nil {
		logger.Error("asset store setup failed", "error", err.Error())
		os.Exit(1)
	}

	transport, err := buildTransport(ctx, cfg)
	if err != nil {
		logger.Error("mail transport setup failed", "error", err.Error())
		os.Exit(1)
	}

	engine := render.NewEngine(cfg.Render.EscapeHTML)
	dispatcher := mailer.NewDispatcher(engine, transport, assetBase(cfg), cfg.Mail.DefaultSender)
	forms := form.NewService(st, dispatcher)

	limiter := buildLimiter(cfg)

	handlers := api.NewHandlers(st, assetStore, dispatcher, forms)
	server := api.NewServer(handlers, authSvc, limiter, cfg.Assets.RoutePrefix)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	go func() {
		logger.Info("server listening", "addr", addr, "transport", cfg.Mail.Transport)
		if err := server.ListenAndServe(addr); err != nil {
			logger.Error("server stopped", "error", err.Error())
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err.Error())
	}
}

// buildTransport selects SMTP or SES from config.
func buildTransport(ctx context.Context, cfg *config.Config) (mailer.Transport, error) {
	switch cfg.Mail.Transport {
	case "ses":
		return mailer.NewSESTransport(ctx, cfg.SES)
	case "smtp", "":
		return mailer.NewSMTPTransport(cfg.SMTP)
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Mail.Transport)
	}
}

// buildLimiter picks the Redis window when an address is configured so
// multiple instances share counters, else the in-memory window.
func buildLimiter(cfg *config.Config) ratelimit.Limiter {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logger.Info("rate limiter using redis", "addr", cfg.Redis.Addr)
		return ratelimit.NewRedisLimiter(client, cfg.RateLimit.Max, cfg.RateLimit.Window())
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window(), cfg.RateLimit.MaxKeys)
}

// assetBase is the public URL prefix templates see in the attachments
// map: the CDN domain when mirroring is on, the local route otherwise.
func assetBase(cfg *config.Config) string {
	if cfg.Assets.CDNDomain != "" {
		return "https://" + cfg.Assets.CDNDomain
	}
	return cfg.Assets.RoutePrefix
}
