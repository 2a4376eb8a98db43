package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	guardian "github.com/shaj13/go-guardian/auth"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/PratikDhanave/invite-rsvp-service/internal/admin"
	"github.com/PratikDhanave/invite-rsvp-service/internal/audit"
	"github.com/PratikDhanave/invite-rsvp-service/internal/auth"
	"github.com/PratikDhanave/invite-rsvp-service/internal/channel"
	"github.com/PratikDhanave/invite-rsvp-service/internal/config"
	"github.com/PratikDhanave/invite-rsvp-service/internal/directory"
	"github.com/PratikDhanave/invite-rsvp-service/internal/httpserver"
	"github.com/PratikDhanave/invite-rsvp-service/internal/identity"
	"github.com/PratikDhanave/invite-rsvp-service/internal/ledger"
	applogger "github.com/PratikDhanave/invite-rsvp-service/internal/logger"
	"github.com/PratikDhanave/invite-rsvp-service/internal/ratelimit"
	"github.com/PratikDhanave/invite-rsvp-service/internal/rsvp"
	"github.com/PratikDhanave/invite-rsvp-service/internal/store"
	"github.com/PratikDhanave/invite-rsvp-service/internal/token"
	"github.com/PratikDhanave/invite-rsvp-service/internal/whatsapp"
)

// main boots the service: config → logger → store → schema/seed →
// services → HTTP server.
func main() {
	fs := pflag.NewFlagSet("api", pflag.ExitOnError)
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.InsecureDevSecret {
		logger.Warn("using the built-in development token secret; links are forgeable")
	}
	if cfg.App.Env != config.EnvDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer st.Close()

	events, guests := cfg.Seed.Models()
	if len(events) > 0 {
		if err := st.SeedEvents(ctx, events, guests); err != nil {
			logger.Fatal("seed events", zap.Error(err))
		}
		logger.Info("seeded events", zap.Int("events", len(events)), zap.Int("guests", len(guests)))
	}

	codec, err := token.NewCodec([]byte(cfg.Token.Secret))
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}

	// Redis is optional: without it, or when it is unreachable, the gate
	// allows every request.
	var gate ratelimit.Gate = ratelimit.Unlimited{}
	if cfg.Redis.Addr != "" {
		rdb, err := ratelimit.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			gate = ratelimit.NewRedisGate(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)
		}
	}

	var messenger directory.Messenger
	if cfg.WhatsApp.Enabled {
		wa, err := whatsapp.NewService(ctx, whatsapp.Config{
			DataDir:            cfg.WhatsApp.DataDir,
			DefaultCountryCode: cfg.WhatsApp.DefaultCountryCode,
		}, logger)
		if err != nil {
			logger.Fatal("whatsapp", zap.Error(err))
		}
		go func() {
			if err := wa.Connect(ctx); err != nil {
				logger.Error("whatsapp connect failed", zap.Error(err))
			}
		}()
		defer wa.Disconnect()
		messenger = wa
	}

	apiKeys, err := config.ParseAPIKeys(cfg.HostAuth.APIKeys)
	if err != nil {
		logger.Fatal("host api keys", zap.Error(err))
	}
	hostAuth := auth.HostConfig{CookieName: cfg.HostAuth.CookieName}
	if cfg.HostAuth.JWTSecret != "" {
		hostAuth.Sessions = auth.NewJWTVerifier(cfg.HostAuth.JWTSecret, cfg.HostAuth.Issuer)
	}
	if len(apiKeys) > 0 {
		hostAuth.APIKeys = auth.StaticKeys(apiKeys)
	}

	var adminAuth guardian.Authenticator
	if cfg.Admin.Username != "" && cfg.Admin.Password != "" {
		adminAuth = auth.NewAdminAuthenticator(ctx, auth.AdminCredentials{
			Username: cfg.Admin.Username,
			Password: cfg.Admin.Password,
		})
	} else {
		logger.Warn("admin credentials not configured, /admin routes disabled")
	}

	trail := audit.NewTrail(st)
	l := ledger.NewService(st, trail, logger)
	query := admin.NewQuery(st)
	tracker := channel.NewTracker(st)
	dir := directory.NewService(directory.Deps{
		Store:     st,
		Ledger:    l,
		Query:     query,
		Tracker:   tracker,
		Codec:     codec,
		Messenger: messenger,
		BaseURL:   cfg.App.BaseURL,
		LinkTTL:   cfg.Token.DefaultTTL,
		Logger:    logger,
	})

	router := httpserver.NewRouter(httpserver.Deps{
		Store:     st,
		ByToken:   rsvp.NewService(identity.NewTokenResolver(codec, st), l, tracker, gate, st, logger),
		ByInvite:  rsvp.NewService(identity.NewInviteResolver(st), l, tracker, gate, st, logger),
		Query:     query,
		Trail:     trail,
		Directory: dir,
		Admin:     adminAuth,
		HostAuth:  hostAuth,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server started", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.Store.Driver == "memory" {
		logger.Warn("using the in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil
	}

	db, err := store.NewPostgresStore(ctx, cfg.DB.URL)
	if err != nil {
		return nil, err
	}
	// Ensure required tables/indexes exist so `docker compose up --build` is enough.
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
