package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-portal/internal/activity"
	"github.com/p-n-ai/pai-portal/internal/catalog"
	"github.com/p-n-ai/pai-portal/internal/content"
	"github.com/p-n-ai/pai-portal/internal/hub"
	"github.com/p-n-ai/pai-portal/internal/learning"
	"github.com/p-n-ai/pai-portal/internal/platform/cache"
	"github.com/p-n-ai/pai-portal/internal/platform/config"
	"github.com/p-n-ai/pai-portal/internal/platform/database"
	"github.com/p-n-ai/pai-portal/internal/prefs"
	"github.com/p-n-ai/pai-portal/internal/session"
	"github.com/p-n-ai/pai-portal/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go app.timer.Run(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage.Mode, "auth", cfg.Auth.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from LEARN_LOG_LEVEL and LEARN_LOG_FORMAT.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// app is the wired portal with the resources it must release.
type app struct {
	handler http.Handler
	timer   *learning.StudyTimer
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires stores, services and the HTTP router from cfg. On error every
// resource opened so far is released.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	var (
		store  learning.Store
		events activity.Logger = activity.NopLogger{}
		checks []web.HealthCheck
	)
	if cfg.UsePostgres() {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		ps, err := learning.NewPostgresStore(ctx, db.Pool, cat.Modules(), learning.SeedStats)
		if err != nil {
			return nil, fmt.Errorf("creating progress store: %w", err)
		}
		store = ps
		events = activity.NewPostgresLogger(db.Pool)
		checks = append(checks, web.HealthCheck{Name: "database", Check: db.HealthCheck})
	} else {
		store = learning.NewMemoryStore(cat.Modules(), learning.SeedStats)
	}

	var (
		sessionStore session.Store = session.NewMemoryStore()
		loaderOpts   []content.LoaderOption
	)
	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = c.Close() })

		rs, err := session.NewRedisStore(c, cfg.Auth.SessionTTL)
		if err != nil {
			return nil, err
		}
		sessionStore = rs
		checks = append(checks, web.HealthCheck{Name: "cache", Check: c.HealthCheck})
		loaderOpts = append(loaderOpts, content.WithCache(c, cfg.Content.CacheTTL))
	}

	var verifier session.Verifier = session.OpenVerifier{}
	if cfg.Auth.Mode == "bcrypt" {
		v, err := session.LoadCredentials(cfg.Auth.CredentialsFile)
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	client, err := content.NewClient(cfg.Content.URL, content.WithHTTPClient(&http.Client{Timeout: cfg.Content.Timeout}))
	if err != nil {
		return nil, err
	}
	loader, err := content.NewLoader(client, loaderOpts...)
	if err != nil {
		return nil, err
	}

	kv, err := prefs.OpenSQLite(ctx, cfg.Prefs.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = kv.Close() })
	prefService := prefs.NewService(kv)
	current, err := prefService.Get(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("preferences loaded", "theme", current.Theme, "font_size", current.FontSize)

	a.timer = learning.NewStudyTimer(cfg.Study.Tick)

	srv, err := web.NewServer(web.Deps{
		Sessions:     session.NewProvider(sessionStore, verifier),
		Learning:     store,
		Catalog:      cat,
		Content:      loader,
		Prefs:        prefService,
		Timer:        a.timer,
		Hub:          hub.New(),
		Activity:     events,
		Checks:       checks,
		StartupDelay: cfg.StartupDelay,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, srv.Close)
	a.handler = srv.Router()

	return a, nil
}

func loadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.Embedded()
	}
	return catalog.LoadDir(dir)
}
