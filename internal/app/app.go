package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/simp-lee/ginx"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/board/internal/config"
	"github.com/simp-lee/board/internal/domain"
	"github.com/simp-lee/board/internal/middleware"
	"github.com/simp-lee/board/internal/module/post"
	"github.com/simp-lee/board/internal/pkg"
	"github.com/simp-lee/board/web"
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine   *gin.Engine
	db       *gorm.DB
	logger   *logger.Logger
	cfg      *config.Config
	limiters ginx.RateLimitStore
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging, the database, the post module, middleware, template
// rendering and routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	success := false

	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	db, err := config.SetupDatabase(&cfg.Database, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	defer func() {
		if success {
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", slog.Any("error", err))
		}
	}()

	// Release deployments migrate out of band.
	if cfg.Server.Mode == gin.DebugMode {
		if err := db.AutoMigrate(&domain.Post{}); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("auto migration completed")
	}

	postModule, err := newPostModule(cfg, db, log.Logger)
	if err != nil {
		return nil, err
	}

	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	engine.Use(
		middleware.Recovery(log.Logger),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: false,
		}),
		middleware.Logger(log.Logger),
		middleware.Metrics(),
	)
	if corsConfig, ok := resolveCORSConfig(cfg.Server.Mode, cfg.Server.CORS); ok {
		engine.Use(cors.New(corsConfig))
	} else {
		log.Info("cors disabled: no allow_origins configured in release mode")
	}
	guards, limiters := requestGuards(cfg.Server)
	if guards != nil {
		engine.Use(guards)
	}
	defer func() {
		if !success && limiters != nil {
			_ = limiters.Close()
		}
	}()

	var fsys fs.FS
	if cfg.Server.Mode == gin.DebugMode {
		fsys, err = resolveDebugWebFS()
		if err != nil {
			return nil, fmt.Errorf("resolve debug template fs: %w", err)
		}
	} else {
		fsys = web.EmbeddedFS
	}

	renderer, err := NewTemplateRenderer(fsys, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("setup template renderer: %w", err)
	}
	engine.HTMLRender = renderer

	csrfSecret := cfg.Server.CSRFSecret
	if isPlaceholderCSRFSecret(csrfSecret) {
		if cfg.Server.Mode == gin.ReleaseMode {
			return nil, errors.New("csrf_secret must be a non-placeholder value in release mode")
		}

		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("generate csrf secret: %w", err)
		}
		csrfSecret = hex.EncodeToString(b)
		log.Warn("no csrf_secret configured, using random secret in non-release mode (will change on restart)")
	}

	if err := RegisterRoutes(engine, &RouteDeps{
		Modules:    []Module{postModule},
		DB:         db,
		Mode:       cfg.Server.Mode,
		CSRFSecret: csrfSecret,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	success = true
	return &App{
		engine:   engine,
		db:       db,
		logger:   log,
		cfg:      cfg,
		limiters: limiters,
	}, nil
}

// newPostModule wires repository, service and handlers of the board.
func newPostModule(cfg *config.Config, db *gorm.DB, log *slog.Logger) (*post.PostModule, error) {
	loc, err := cfg.Board.Location()
	if err != nil {
		return nil, fmt.Errorf("load board timezone: %w", err)
	}
	if cfg.Board.ViewMarkerSecret == "" {
		log.Warn("no board.view_marker_secret configured, view markers are unsigned")
	}

	svc := post.NewPostService(post.NewPostRepository(db), post.Options{
		PageSize:     cfg.Board.PageSize,
		MaxPageSize:  cfg.Board.MaxPageSize,
		WindowSize:   cfg.Board.WindowSize,
		MarkerSecret: cfg.Board.ViewMarkerSecret,
		Location:     loc,
		Logger:       log,
	})

	pageSize := cfg.Board.PageSize
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}
	secure := cfg.Server.Mode == gin.ReleaseMode
	return post.NewModule(
		post.NewPostHandler(svc, pageSize, secure),
		post.NewPostPageHandler(svc, pageSize, secure),
	), nil
}

func isPlaceholderCSRFSecret(secret string) bool {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return true
	}

	switch strings.ToLower(trimmed) {
	case "change-me-to-a-random-secret", "change-me-in-env":
		return true
	default:
		return false
	}
}

// resolveCORSConfig builds the CORS policy. Without an allowlist, debug mode
// allows every origin and release mode reports false so no CORS headers are
// sent at all.
func resolveCORSConfig(mode string, c config.CORSConfig) (cors.Config, bool) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Length", "Content-Type",
		"X-CSRF-Token", "X-Request-ID",
		"HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger",
	}
	corsConfig.ExposeHeaders = []string{
		"X-Request-ID", "HX-Trigger", "HX-Redirect",
		"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Timeout",
	}
	corsConfig.MaxAge = 12 * time.Hour

	if len(c.AllowMethods) > 0 {
		corsConfig.AllowMethods = c.AllowMethods
	}
	if len(c.AllowHeaders) > 0 {
		corsConfig.AllowHeaders = c.AllowHeaders
	}
	if d := parseOptionalDuration(c.MaxAge); d > 0 {
		corsConfig.MaxAge = d
	}

	switch {
	case len(c.AllowOrigins) > 0:
		corsConfig.AllowOrigins = c.AllowOrigins
		corsConfig.AllowCredentials = c.AllowCredentials
	case mode == gin.ReleaseMode:
		return cors.Config{}, false
	default:
		corsConfig.AllowAllOrigins = true
	}
	return corsConfig, true
}

// requestGuards chains the per-client rate limit and the request deadline
// configured for the server. Both answer in the pkg.Response envelope. It
// returns a nil handler when neither is enabled; the store is nil unless rate
// limiting is on.
func requestGuards(s config.ServerConfig) (gin.HandlerFunc, ginx.RateLimitStore) {
	chain := ginx.NewChain().WithErrorFormat(pkg.MiddlewareError)
	guarded := false

	var store ginx.RateLimitStore
	if rl := s.RateLimit; rl.Enabled {
		store = ginx.NewMemoryLimiterStore(parseOptionalDuration(rl.IdleTTL))
		chain.Use(ginx.RateLimit(rl.RPS, rl.Burst, ginx.WithIP(), ginx.WithStore(store)))
		guarded = true
	}
	if d := parseOptionalDuration(s.Timeout); d > 0 {
		chain.Use(ginx.Timeout(ginx.WithTimeout(d)))
		guarded = true
	}

	if !guarded {
		return nil, nil
	}
	return chain.Build(), store
}

// parseOptionalDuration returns zero for an empty or malformed value.
// Config.Validate has already rejected malformed durations.
func parseOptionalDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

func resolveDebugWebFS() (fs.FS, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		webDir := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "web"))
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	exePath, err := os.Executable()
	if err == nil {
		webDir := filepath.Join(filepath.Dir(exePath), "web")
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	return nil, errors.New("debug web directory not found")
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// It performs graceful shutdown with a 5-second timeout and closes the database
// connection.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine)

	// Listen for SIGINT / SIGTERM.
	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		if a.logger != nil {
			a.logger.Info("server started", slog.String("addr", addr))
		} else {
			slog.Info("server started", slog.String("addr", addr))
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		if a.logger != nil {
			a.logger.Info("shutdown signal received")
		} else {
			slog.Info("shutdown signal received")
		}
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		// Graceful shutdown with 5-second deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			if a.logger != nil {
				a.logger.Error("server shutdown error", slog.Any("error", err))
			} else {
				slog.Error("server shutdown error", slog.Any("error", err))
			}
		}
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				if a.logger != nil {
					a.logger.Error("database close error", slog.Any("error", err))
				} else {
					slog.Error("database close error", slog.Any("error", err))
				}
			} else {
				if a.logger != nil {
					a.logger.Info("database connection closed")
				} else {
					slog.Info("database connection closed")
				}
			}
		}
	}

	if a.limiters != nil {
		_ = a.limiters.Close()
	}

	if a.logger != nil {
		a.logger.Info("server stopped")
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	} else {
		slog.Info("server stopped")
	}

	if runErr != nil {
		return runErr
	}

	return nil
}
