package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/recircuit/internal/auth"
	"github.com/teemow/recircuit/internal/calendar"
	"github.com/teemow/recircuit/internal/chat"
	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/store"
)

const (
	// DefaultHTTPAddr is the default dashboard listen address.
	DefaultHTTPAddr = ":8080"

	// MaxUploadBytes bounds document uploads.
	MaxUploadBytes = 20 << 20

	// multipartSlack covers the multipart envelope around an upload.
	multipartSlack = 1 << 20

	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// LocalChat is the self-hosted ChatKit endpoint.
type LocalChat interface {
	http.Handler
	Stream(ctx context.Context, w *chat.EventWriter, threadID, text string) error
}

// Config holds the dependencies of the HTTP server.
type Config struct {
	// BaseURL is the public URL of the dashboard.
	BaseURL           string
	AllowInsecureHTTP bool
	Version           string

	Store         *store.Store
	Sessions      *auth.SessionManager
	Authenticator *auth.Authenticator

	Connector *calendar.Connector
	Tokens    calendar.AccessTokenSource
	Functions FunctionCaller

	OpenAI        OpenAI
	Workflows     Workflows
	VectorStoreID string

	// ChatMode is chat.ModeRelay, chat.ModeDirect or chat.ModeLocal.
	ChatMode string
	Relay    MessageRelay
	Direct   DirectStreamer
	Local    LocalChat
	Agent    AgentRunner

	// EnableMCP serves the calendar tools at /mcp for admins.
	EnableMCP bool

	RateLimit RateLimitConfig

	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	health     *HealthChecker
	limiter    *RateLimiter
	pages      *pageRenderer
	router     chi.Router
	httpServer *http.Server
}

// New validates cfg and builds the router.
func New(cfg Config) (*Server, error) {
	if err := validateHTTPSRequirement(cfg.BaseURL, cfg.AllowInsecureHTTP); err != nil {
		return nil, err
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Authenticator == nil {
		cfg.Authenticator = auth.NewAuthenticator(cfg.Store)
	}
	if cfg.ChatMode == "" {
		cfg.ChatMode = chat.ModeLocal
	}
	switch cfg.ChatMode {
	case chat.ModeRelay:
		if cfg.Relay == nil {
			return nil, fmt.Errorf("relay chat mode requires a ChatKit server URL")
		}
	case chat.ModeDirect:
		if cfg.Direct == nil {
			return nil, fmt.Errorf("direct chat mode requires the OpenAI client")
		}
	case chat.ModeLocal:
		if cfg.Local == nil {
			return nil, fmt.Errorf("local chat mode requires the self-hosted ChatKit server")
		}
	default:
		return nil, fmt.Errorf("unsupported chat mode %q, must be one of: relay, direct, local", cfg.ChatMode)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pages, err := newPageRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		health: NewHealthChecker(cfg.Store, cfg.Version, map[string]bool{
			"openai":          cfg.OpenAI != nil && cfg.OpenAI.Configured(),
			"google_calendar": cfg.Connector != nil && cfg.Connector.Configured(),
			"mcp":             cfg.EnableMCP,
		}),
		pages: pages,
	}
	if cfg.RateLimit.Rate > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit)
	}

	router, err := s.routes()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.router = router
	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		// Chat responses are long-lived event streams.
		WriteTimeout: 0,
	}
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Health returns the health checker.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", slog.String("addr", ln.Addr().String()), slog.String("base_url", s.cfg.BaseURL))
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown marks the server as draining and stops it gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	defer s.Close()
	return s.httpServer.Shutdown(ctx)
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

func (s *Server) routes() (chi.Router, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.cfg.RateLimit.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.observeRequests)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Method(http.MethodGet, "/healthz", s.health.LivenessHandler())
	r.Method(http.MethodGet, "/readyz", s.health.ReadinessHandler())
	r.Method(http.MethodGet, "/healthz/detailed", s.health.DetailedHealthHandler())

	sessions := s.cfg.Sessions

	// Pages.
	r.Group(func(r chi.Router) {
		r.Use(sessions.LoadSession)
		r.Get("/", s.handleRoot)
		r.Get(auth.SignInPath, s.handleSignInPage)
		r.With(s.rateLimited).Post(auth.SignInPath, s.handleSignIn)
		r.Post("/auth/signout", s.handleSignOut)
		r.Get(calendar.CallbackPath, s.handleCalendarCallback)
	})
	r.Route(auth.DashboardPath, func(r chi.Router) {
		r.Use(sessions.RequireSession)
		r.Get("/", s.handlePage(pageDashboard))
		r.Get("/chat", s.handlePage(pageChat))
		r.Get("/documents", s.handlePage(pageDocuments))
		r.With(auth.RequireAdminPage).Get("/schedule", s.handlePage(pageSchedule))
	})

	// JSON API.
	r.Route("/api", func(r chi.Router) {
		r.Use(sessions.RequireAPISession)

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/functions", s.handleFunctionDefinitions)
			r.Post("/functions", s.handleCalendarFunction)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/auth", s.handleCalendarAuth)
				r.Get("/status", s.handleCalendarStatus)
				r.Delete("/status", s.handleCalendarDisconnect)
				r.Get("/token", s.handleCalendarToken)
			})
		})
		r.Post("/ai/calendar", s.handleCalendarFunction)

		r.With(s.rateLimited).Post("/upload-file", s.handleUploadFile)
		r.Get("/get-file-details", s.handleFileDetails)
		r.Route("/vector-store", func(r chi.Router) {
			r.Post("/create", s.handleCreateVectorStore)
			r.Post("/add-file", s.handleAddFile)
			r.Get("/list-files", s.handleListFiles)
			r.Delete("/remove-file", s.handleRemoveFile)
		})

		r.Route("/chatkit", func(r chi.Router) {
			r.Post("/session", s.handleChatKitSession)
			r.Post("/thread", s.handleChatKitThread)
			r.Post("/message", s.handleChatKitMessage)
		})
		r.Post("/agent-chat", s.handleAgentChat)

		r.Get("/test-session", s.handleTestSession)
		r.Get("/debug-chatkit", s.handleDebugChatKit)
		r.With(auth.RequireAdmin).Get("/test-chatkit", s.handleTestChatKit)
	})

	if s.cfg.Local != nil {
		r.With(sessions.RequireAPISession).Method(http.MethodPost, "/chatkit", s.cfg.Local)
	}

	if s.cfg.EnableMCP {
		handler, err := s.mcpHandler()
		if err != nil {
			return nil, err
		}
		r.With(sessions.RequireAPISession, auth.RequireAdmin).Handle(MCPPath, handler)
	}

	return r, nil
}

// rateLimited applies the per-IP limiter when one is configured.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Middleware(next)
}
