package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"booksphere/internal/util"
	"booksphere/pkg/notify"
	"booksphere/pkg/payment"
	"booksphere/pkg/store"
	"booksphere/services/portal/internal/app"
	"booksphere/services/portal/internal/config"
	"booksphere/services/portal/internal/server"
)

func main() {
	if err := run(context.Background(), config.ConfigPath); err != nil {
		log.Fatalf("portal: %v", err)
	}
}

// run wires the portal and serves until ctx ends or a signal arrives.
// Deferred cleanup always runs because failures are returned, not fatal.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("parse session TTL: %w", err)
	}

	logger := util.InitLogger(cfg.LogLevel, cfg.LogFormat)

	dataStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer dataStore.Close()

	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	sessions, err := openSessions(cfg, redisClient, sessionTTL)
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.MailEnabled() {
		smtp, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.MailHost,
			Port:     cfg.MailPort,
			Username: cfg.MailUser,
			Password: cfg.MailPass,
			To:       cfg.MailTo,
		})
		if err != nil {
			return fmt.Errorf("init mail: %w", err)
		}
		notifier = smtp
	} else {
		logger.Info("mail credentials not set, feedback notifications disabled")
	}

	var payments payment.Gateway
	gateway, err := payment.NewMidtransGateway(cfg.MidtransServerKey, cfg.MidtransProduction)
	switch {
	case err == nil:
		payments = gateway
	case errors.Is(err, payment.ErrNotConfigured):
		logger.Info("midtrans server key not set, payments run in demo mode")
	default:
		return fmt.Errorf("init payments: %w", err)
	}

	appCore, err := app.New(app.Config{
		Store:         dataStore,
		Sessions:      sessions,
		Notifier:      notifier,
		Payments:      payments,
		PremiumPrice:  cfg.PremiumPrice,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	if _, err := appCore.EnsureAdmin(cfg.AdminEmail, cfg.AdminName, cfg.AdminInitKey); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}
	httpServer, err := server.New(server.Config{
		App:                        appCore,
		Redis:                      redisClient,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		TrustedProxies:             trusted,
		SessionTTL:                 sessionTTL,
		CookieSecure:               cfg.CookieSecure,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("portal listening", "addr", addr, "database", cfg.DatabaseDriver, "sessions", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		return err
	}
	slog.Info("portal stopped")
	return nil
}

func openStore(cfg config.FileConfig) (store.Store, error) {
	if cfg.DatabaseDriver == "memory" {
		return store.NewMemoryStore(), nil
	}
	db, err := store.NewGormStore(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func openSessions(cfg config.FileConfig, client *redis.Client, ttl time.Duration) (store.SessionStore, error) {
	if cfg.SessionStore == config.SessionRedis {
		return store.NewRedisSessionStore(client, "", ttl), nil
	}
	var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
	if client != nil {
		revoker = store.NewRedisTokenRevoker(client, "")
	}
	sessions, err := store.NewJWTSessionStore(cfg.SecretKey, ttl, revoker, store.JWTOptions{})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
