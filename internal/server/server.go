// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/rugsentry/rugsentry/internal/chain"
	"github.com/rugsentry/rugsentry/internal/chat"
	"github.com/rugsentry/rugsentry/internal/config"
	"github.com/rugsentry/rugsentry/internal/health"
	"github.com/rugsentry/rugsentry/internal/insider"
	"github.com/rugsentry/rugsentry/internal/logging"
	"github.com/rugsentry/rugsentry/internal/metrics"
	"github.com/rugsentry/rugsentry/internal/monitor"
	"github.com/rugsentry/rugsentry/internal/ratelimit"
	"github.com/rugsentry/rugsentry/internal/realtime"
	"github.com/rugsentry/rugsentry/internal/scoring"
	"github.com/rugsentry/rugsentry/internal/security"
	"github.com/rugsentry/rugsentry/internal/tombstone"
	"github.com/rugsentry/rugsentry/internal/traces"
	"github.com/rugsentry/rugsentry/internal/validation"
	"github.com/rugsentry/rugsentry/internal/warning"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	warnings     *warning.Service
	chat         *chat.Service
	tombstones   *tombstone.Service
	tips         *insider.Service
	hub          *realtime.Hub
	provider     *chain.EVMProvider
	scheduler    *monitor.Scheduler
	rateLimiter  *ratelimit.Limiter
	checks       *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run
	tracesStop   func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithProvider sets a custom chain provider (for testing)
func WithProvider(p *chain.EVMProvider) Option {
	return func(s *Server) {
		s.provider = p
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set provider/logger)
	for _, opt := range opts {
		opt(s)
	}

	var (
		warningStore   warning.Store
		chatStore      chat.Store
		tombstoneStore tombstone.Store
		tipStore       insider.Store
	)

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		warningStore = warning.NewPostgresStore(db)
		chatStore = chat.NewPostgresStore(db)
		tombstoneStore = tombstone.NewPostgresStore(db)
		tipStore = insider.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		warningStore = warning.NewMemoryStore()
		chatStore = chat.NewMemoryStore()
		tombstoneStore = tombstone.NewMemoryStore()
		tipStore = insider.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Realtime hub for WebSocket streaming
	s.hub = realtime.NewHub(s.logger)

	// Warning signs with risk scoring and live broadcast
	scorer := scoring.NewScorer(scoring.NewLocalModel())
	s.warnings = warning.NewService(warningStore, scorer, s.logger).
		WithPublisher(realtime.NewWarningPublisher(s.hub))

	// Community chat with automated moderation
	s.chat = chat.NewService(chatStore, s.logger).
		WithBroadcaster(realtime.NewChatPublisher(s.hub))

	// Chat frames arriving over WebSocket go through the same scan-and-store
	// pipeline as the REST endpoint; the hub never broadcasts them directly.
	s.hub.OnChat(func(ctx context.Context, in realtime.InboundChat) {
		if _, err := s.chat.Post(ctx, in.RoomID, in.UserID, in.Content); err != nil {
			s.logger.Warn("websocket chat message rejected",
				"room_id", in.RoomID,
				"error", err,
			)
		}
	})

	// Rug-pull tombstones and insider tips
	s.tombstones = tombstone.NewService(tombstoneStore, s.logger)
	s.tips = insider.NewService(tipStore, s.logger)

	// Chain provider + monitoring scheduler (only when RPC endpoints are
	// configured; without them warnings are still served, just not re-scored
	// from on-chain evidence)
	if s.provider == nil && len(cfg.RPCURLs()) > 0 {
		p, err := chain.NewEVMProvider(chain.Config{
			RPCURLs:     cfg.RPCURLs(),
			CallTimeout: cfg.ProviderTimeout,
		}, s.logger)
		if err != nil {
			s.logger.Warn("failed to create chain provider, monitoring disabled", "error", err)
		} else {
			s.provider = p
		}
	}
	// Subsystem health checks
	s.checks = health.NewRegistry()
	if s.db != nil {
		s.checks.Register("database", func(ctx context.Context) health.Status {
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.checks.Register("database", func(ctx context.Context) health.Status {
			return health.Status{Name: "database", Healthy: true, Detail: "in-memory"}
		})
	}

	if s.provider != nil {
		monitorCfg := monitor.DefaultConfig()
		monitorCfg.Interval = cfg.MonitorInterval
		s.scheduler = monitor.NewScheduler(s.warnings, s.provider, monitorCfg, s.logger)
		s.logger.Info("on-chain monitoring enabled",
			"networks", len(cfg.RPCURLs()),
			"interval", monitorCfg.Interval,
		)
		s.checks.Register("monitoring", func(ctx context.Context) health.Status {
			return health.Status{
				Name:    "monitoring",
				Healthy: true,
				Detail:  fmt.Sprintf("active (%d warnings)", s.scheduler.Count()),
			}
		})
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	limitCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		limitCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
		limitCfg.BurstSize = s.cfg.RateLimitRPS
	}
	s.rateLimiter = ratelimit.New(limitCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// moderatorAuth guards routes that change verification state. Moderators
// authenticate with a shared bearer token; in development with no token
// configured, everything is allowed so demos work out of the box.
func (s *Server) moderatorAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.ModeratorToken == "" && !s.cfg.IsProduction() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Moderator token required. Include 'Authorization: Bearer <token>' header.",
			})
			return
		}

		token := header[len(prefix):]
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.ModeratorToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid moderator token",
			})
			return
		}

		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time streaming (warning events, chat rooms)
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	v1.GET("/platform", s.platformHandler)
	v1.GET("/realtime/stats", s.realtimeStatsHandler)

	warningHandler := warning.NewHandler(s.warnings)
	chatHandler := chat.NewHandler(s.chat)
	tombstoneHandler := tombstone.NewHandler(s.tombstones)
	tipHandler := insider.NewHandler(s.tips)

	// PUBLIC ROUTES (no auth required)
	// Reads everywhere, plus community submissions: chat messages and
	// insider tips come from anonymous users by design.
	warningHandler.RegisterRoutes(v1)
	chatHandler.RegisterRoutes(v1)
	tombstoneHandler.RegisterRoutes(v1)
	tipHandler.RegisterRoutes(v1)

	// MODERATOR ROUTES (require the shared moderator token)
	// Everything that creates or resolves official records.
	moderated := v1.Group("")
	moderated.Use(s.moderatorAuth())
	warningHandler.RegisterProtectedRoutes(moderated)
	tombstoneHandler.RegisterProtectedRoutes(moderated)
	tipHandler.RegisterProtectedRoutes(moderated)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		detail := st.Detail
		if detail == "" {
			if st.Healthy {
				detail = "healthy"
			} else {
				detail = "unhealthy"
			}
		}
		checks[st.Name] = detail
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "RugSentry",
		"description": "Community early-warning system for crypto rug pulls",
		"version":     "0.1.0",
		"networks":    validation.SupportedNetworks,
	})
}

// platformHandler returns platform info and usage pointers
func (s *Server) platformHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"platform": gin.H{
			"name":     "RugSentry",
			"version":  "0.1.0",
			"networks": validation.SupportedNetworks,
		},
		"instructions": gin.H{
			"warnings":  "GET /v1/warnings lists active warning signs. Moderators POST /v1/warnings with bearer token.",
			"tips":      "POST /v1/tips to submit an insider tip. 5 community reports escalate a tip to review.",
			"chat":      "POST /v1/rooms/{id}/messages, or send chat frames over /ws. Messages are scanned before broadcast.",
			"lookup":    "GET /v1/tombstones/lookup?network=...&address=... checks a contract against confirmed rug pulls.",
			"streaming": "Connect to /ws and subscribe to warning or chat room events.",
		},
	})
}

// realtimeStatsHandler exposes hub connection counts for demos and dashboards
func (s *Server) realtimeStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.hub.Stats())
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op when no OTLP endpoint configured)
	if stop, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger); err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracesStop = stop
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.hub.Run(runCtx)

	// Start warning monitor
	if s.scheduler != nil {
		go s.scheduler.Start(runCtx)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, scheduler)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop warning monitor
	if s.scheduler != nil {
		s.scheduler.Stop()
		s.logger.Info("monitor stopped")
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Close chain provider connections
	if s.provider != nil {
		s.provider.Close()
		s.logger.Info("chain provider closed")
	}

	// Flush traces
	if s.tracesStop != nil {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.tracesStop(flushCtx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
		flushCancel()
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
