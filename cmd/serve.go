package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/recircuit/internal/auth"
	"github.com/teemow/recircuit/internal/calendar"
	"github.com/teemow/recircuit/internal/chat"
	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/logging"
	"github.com/teemow/recircuit/internal/openai"
	"github.com/teemow/recircuit/internal/server"
	"github.com/teemow/recircuit/internal/store"
)

// Conversation store backends for the self-hosted chat endpoint.
const (
	conversationStoreMemory = "memory"
	conversationStoreValkey = "valkey"
)

const (
	defaultSignInRate  = 1.0
	defaultSignInBurst = 5
)

// GoogleConfig holds the Google Calendar OAuth client settings.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// OpenAIConfig holds the OpenAI settings.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	AdminWorkflowID string
	UserWorkflowID  string
	VectorStoreID   string
	AgentModel      string
	ChatModel       string
}

// ChatConfig selects how chat messages are answered.
type ChatConfig struct {
	// ServerURL is an external ChatKit server. Used unless UseDirect is set.
	ServerURL string
	UseDirect bool

	// Store is the conversation store of the self-hosted endpoint.
	Store          string
	ValkeyURL      string
	ValkeyPassword string
}

// Mode returns the chat mode the settings select.
func (c ChatConfig) Mode() string {
	switch {
	case c.UseDirect:
		return chat.ModeDirect
	case c.ServerURL != "":
		return chat.ModeRelay
	default:
		return chat.ModeLocal
	}
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// ServeConfig holds all serve settings after flags and environment are merged.
type ServeConfig struct {
	HTTPAddr          string
	BaseURL           string
	DatabaseDriver    string
	DatabaseURL       string
	SessionSecret     string
	EncryptionKey     string
	Debug             bool
	LogFormat         string
	AllowInsecureHTTP bool
	EnableMCP         bool
	RateLimit         server.RateLimitConfig

	Google  GoogleConfig
	OpenAI  OpenAIConfig
	Chat    ChatConfig
	Metrics MetricsConfig
}

func newServeCmd() *cobra.Command {
	var config ServeConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		Long: `Start the recircuit dashboard.

Every flag can also be set through the environment variable named in its help
text. A flag that is set explicitly always wins over the environment.

Chat messages are answered in one of three modes:
  - relay:  forwarded to an external ChatKit server (CHATKIT_SERVER_URL)
  - direct: sent to the OpenAI ChatKit threads API (USE_DIRECT_OPENAI=true)
  - local:  answered by the built-in ChatKit endpoint (default)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadServeEnvVars(cmd, &config)
			if err := config.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), config)
		},
	}

	bindServeFlags(cmd, &config)

	return cmd
}

func bindServeFlags(cmd *cobra.Command, config *ServeConfig) {
	cmd.Flags().StringVar(&config.HTTPAddr, "http-addr", server.DefaultHTTPAddr, "HTTP server address. Can also use HTTP_ADDR env var.")
	cmd.Flags().StringVar(&config.BaseURL, "base-url", "", "Public base URL of the dashboard. Can also use BASE_URL or NEXTAUTH_URL env vars. Defaults to http://localhost plus the port of --http-addr.")
	cmd.Flags().StringVar(&config.DatabaseDriver, "database-driver", store.DriverPostgres, "Database driver: pgx or sqlite. Can also use DATABASE_DRIVER env var.")
	cmd.Flags().StringVar(&config.DatabaseURL, "database-url", "", "Postgres DSN or SQLite path. Can also use DATABASE_URL or POSTGRES_DSN env vars.")
	cmd.Flags().StringVar(&config.SessionSecret, "session-secret", "", "Secret used to sign session cookies. REQUIRED. Can also use SESSION_SECRET or NEXTAUTH_SECRET env vars.")
	cmd.Flags().StringVar(&config.EncryptionKey, "encryption-key", "", "AES-256 key for calendar tokens at rest (32 bytes, base64 encoded). Can also use ENCRYPTION_KEY env var. Generate with: openssl rand -base64 32")
	cmd.Flags().BoolVar(&config.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&config.LogFormat, "log-format", logging.FormatJSON, "Log format: json or text. Can also use LOG_FORMAT env var.")
	cmd.Flags().BoolVar(&config.AllowInsecureHTTP, "allow-insecure-http", false, "WARNING: Allow a plain HTTP base URL on non-loopback hosts. Can also use ALLOW_INSECURE_HTTP env var.")
	cmd.Flags().BoolVar(&config.EnableMCP, "enable-mcp", false, "Serve the calendar tools over MCP at /mcp for admins. Can also use ENABLE_MCP env var.")

	// Rate limiting of sign-in and uploads
	cmd.Flags().Float64Var(&config.RateLimit.Rate, "rate-limit", defaultSignInRate, "Sustained sign-in and upload requests per second per client IP. 0 disables limiting. Can also use RATE_LIMIT env var.")
	cmd.Flags().IntVar(&config.RateLimit.Burst, "rate-limit-burst", defaultSignInBurst, "Burst size of the per-IP rate limiter. Can also use RATE_LIMIT_BURST env var.")
	cmd.Flags().BoolVar(&config.RateLimit.TrustProxy, "trust-proxy", false, "Use X-Forwarded-For and X-Real-IP for client addresses. Only enable behind a trusted proxy. Can also use TRUST_PROXY env var.")

	// Google OAuth flags
	cmd.Flags().StringVar(&config.Google.ClientID, "google-client-id", "", "Google OAuth Client ID for the calendar connection. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&config.Google.ClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&config.Google.RedirectURI, "google-redirect-uri", "", "OAuth redirect URI. Can also use GOOGLE_REDIRECT_URI env var. Defaults to <base-url>"+calendar.CallbackPath)

	// Metrics server flags
	cmd.Flags().BoolVar(&config.Metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&config.Metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
}

// loadServeEnvVars fills settings from environment variables.
// Environment variables only override flag values when the flag was not explicitly set.
func loadServeEnvVars(cmd *cobra.Command, config *ServeConfig) {
	flags := cmd.Flags()

	envString := func(flag string, target *string, names ...string) {
		if flags.Changed(flag) {
			return
		}
		if value := firstEnv(names...); value != "" {
			*target = value
		}
	}
	envBool := func(flag string, target *bool, name string) {
		if flags.Changed(flag) {
			return
		}
		if value, err := strconv.ParseBool(os.Getenv(name)); err == nil {
			*target = value
		}
	}

	envString("http-addr", &config.HTTPAddr, "HTTP_ADDR")
	envString("base-url", &config.BaseURL, "BASE_URL", "NEXTAUTH_URL")
	envString("database-driver", &config.DatabaseDriver, "DATABASE_DRIVER")
	envString("database-url", &config.DatabaseURL, "DATABASE_URL", "POSTGRES_DSN")
	envString("session-secret", &config.SessionSecret, "SESSION_SECRET", "NEXTAUTH_SECRET")
	envString("encryption-key", &config.EncryptionKey, "ENCRYPTION_KEY")
	envString("log-format", &config.LogFormat, "LOG_FORMAT")
	envBool("allow-insecure-http", &config.AllowInsecureHTTP, "ALLOW_INSECURE_HTTP")
	envBool("enable-mcp", &config.EnableMCP, "ENABLE_MCP")

	if !flags.Changed("rate-limit") {
		if value, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT"), 64); err == nil {
			config.RateLimit.Rate = value
		}
	}
	if !flags.Changed("rate-limit-burst") {
		if value, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST")); err == nil {
			config.RateLimit.Burst = value
		}
	}
	envBool("trust-proxy", &config.RateLimit.TrustProxy, "TRUST_PROXY")

	envString("google-client-id", &config.Google.ClientID, "GOOGLE_CLIENT_ID")
	envString("google-client-secret", &config.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	envString("google-redirect-uri", &config.Google.RedirectURI, "GOOGLE_REDIRECT_URI")

	envBool("metrics-enabled", &config.Metrics.Enabled, "METRICS_ENABLED")
	envString("metrics-addr", &config.Metrics.Addr, "METRICS_ADDR")

	// OpenAI and chat settings have no flags
	config.OpenAI = OpenAIConfig{
		APIKey:          os.Getenv("OPENAI_API_SECRET_KEY"),
		BaseURL:         os.Getenv("OPENAI_BASE_URL"),
		AdminWorkflowID: os.Getenv("OPENAI_ADMIN_WORKFLOW_ID"),
		UserWorkflowID:  os.Getenv("OPENAI_USER_WORKFLOW_ID"),
		VectorStoreID:   os.Getenv("OPENAI_VECTOR_STORE_ID"),
		AgentModel:      envOrDefault("OPENAI_AGENT_MODEL", chat.DefaultAgentModel),
		ChatModel:       envOrDefault("OPENAI_CHAT_MODEL", chat.DefaultChatModel),
	}
	config.Chat = ChatConfig{
		ServerURL:      os.Getenv("CHATKIT_SERVER_URL"),
		UseDirect:      os.Getenv("USE_DIRECT_OPENAI") == "true",
		Store:          envOrDefault("CONVERSATION_STORE", conversationStoreMemory),
		ValkeyURL:      os.Getenv("VALKEY_URL"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),
	}
}

// Validate checks the merged settings and fills derived defaults.
func (c *ServeConfig) Validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("session secret is required (--session-secret or SESSION_SECRET)")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (--database-url or DATABASE_URL)")
	}
	if c.DatabaseDriver != store.DriverPostgres && c.DatabaseDriver != store.DriverSQLite {
		return fmt.Errorf("unsupported database driver %q, must be one of: pgx, sqlite", c.DatabaseDriver)
	}
	if _, err := store.KeyFromBase64(c.EncryptionKey); err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}

	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL(c.HTTPAddr)
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}

	if c.RateLimit.Rate < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit.Rate)
	}
	if c.RateLimit.Rate > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1, got %d", c.RateLimit.Burst)
	}

	switch c.Chat.Store {
	case conversationStoreMemory:
	case conversationStoreValkey:
		if c.Chat.ValkeyURL == "" {
			return fmt.Errorf("VALKEY_URL is required when CONVERSATION_STORE is valkey")
		}
		if _, err := (chat.ValkeyConfig{URL: c.Chat.ValkeyURL}).ClientOption(); err != nil {
			return fmt.Errorf("invalid VALKEY_URL: %w", err)
		}
	default:
		return fmt.Errorf("unsupported conversation store %q, must be one of: memory, valkey", c.Chat.Store)
	}
	if c.Chat.Mode() == chat.ModeRelay {
		if _, err := url.ParseRequestURI(c.Chat.ServerURL); err != nil {
			return fmt.Errorf("invalid CHATKIT_SERVER_URL %q: %w", c.Chat.ServerURL, err)
		}
	}

	return nil
}

func runServe(ctx context.Context, config ServeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(os.Stderr, config.LogFormat, config.Debug)
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	metrics := provider.Metrics()
	audit := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)

	encryptionKey, err := store.KeyFromBase64(config.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}
	if encryptionKey == nil {
		logger.Warn("calendar tokens are stored unencrypted, set ENCRYPTION_KEY to encrypt them at rest")
	}

	db, err := store.Open(shutdownCtx, store.Config{
		Driver:        config.DatabaseDriver,
		URL:           config.DatabaseURL,
		EncryptionKey: encryptionKey,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", logging.Err(err))
		}
	}()
	if err := db.Migrate(shutdownCtx); err != nil {
		return err
	}

	sessions, err := auth.NewSessionManager(config.SessionSecret, server.SecureBaseURL(config.BaseURL))
	if err != nil {
		return err
	}

	connector := calendar.NewConnector(calendar.OAuthConfig{
		ClientID:     config.Google.ClientID,
		ClientSecret: config.Google.ClientSecret,
		RedirectURL:  config.Google.RedirectURI,
		BaseURL:      config.BaseURL,
	}, nil, metrics)
	if !connector.Configured() {
		logger.Warn("Google OAuth is not configured, the calendar cannot be connected",
			slog.Bool("client_id_set", config.Google.ClientID != ""),
			slog.Bool("client_secret_set", config.Google.ClientSecret != ""))
	}
	tokens := calendar.NewTokenManager(db, connector, metrics, logger)
	functions := calendar.NewFunctions(tokens, &calendar.ClientFactory{Metrics: metrics}, metrics, audit, logger)

	ai := openai.New(openai.Config{
		APIKey:  config.OpenAI.APIKey,
		BaseURL: config.OpenAI.BaseURL,
		Metrics: metrics,
		Logger:  logger,
	})
	if !ai.Configured() {
		logger.Warn("OPENAI_API_SECRET_KEY is not set, chat and document routes will fail")
	}

	history, closeHistory, err := newConversationStore(config.Chat)
	if err != nil {
		return err
	}
	defer closeHistory()

	srvConfig := server.Config{
		BaseURL:           config.BaseURL,
		AllowInsecureHTTP: config.AllowInsecureHTTP,
		Version:           version,
		Store:             db,
		Sessions:          sessions,
		Authenticator:     auth.NewAuthenticator(db),
		Connector:         connector,
		Tokens:            tokens,
		Functions:         functions,
		OpenAI:            ai,
		Workflows: server.Workflows{
			Admin: config.OpenAI.AdminWorkflowID,
			User:  config.OpenAI.UserWorkflowID,
		},
		VectorStoreID: config.OpenAI.VectorStoreID,
		ChatMode:      config.Chat.Mode(),
		Local: chat.NewLocalServer(chat.LocalConfig{
			Chat:    ai,
			History: history,
			Model:   config.OpenAI.ChatModel,
			Metrics: metrics,
			Logger:  logger,
		}),
		Agent: chat.NewAgent(chat.AgentConfig{
			Responses:     ai,
			Functions:     functions,
			Model:         config.OpenAI.AgentModel,
			VectorStoreID: config.OpenAI.VectorStoreID,
			Logger:        logger,
		}),
		EnableMCP: config.EnableMCP,
		RateLimit: config.RateLimit,
		Metrics:   metrics,
		Audit:     audit,
		Logger:    logger,
	}
	switch srvConfig.ChatMode {
	case chat.ModeRelay:
		srvConfig.Relay = chat.NewRelay(config.Chat.ServerURL, openai.NewHTTPClient(0))
	case chat.ModeDirect:
		srvConfig.Direct = chat.NewDirect(ai, logger)
	}

	srv, err := server.New(srvConfig)
	if err != nil {
		return err
	}

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if config.Metrics.Enabled && provider.Enabled() {
		metricsServer, err = startMetricsServer(config.Metrics, provider, logger)
		if err != nil {
			srv.Close()
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	ln, err := net.Listen("tcp", config.HTTPAddr)
	if err != nil {
		srv.Close()
		return fmt.Errorf("failed to listen on %s: %w", config.HTTPAddr, err)
	}

	logger.Info("dashboard configured",
		slog.String("base_url", config.BaseURL),
		slog.String("chat_mode", srvConfig.ChatMode),
		slog.String("conversation_store", config.Chat.Store),
		slog.Bool("google_calendar", connector.Configured()),
		slog.Bool("openai", ai.Configured()),
		slog.Bool("mcp", config.EnableMCP))

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Serve(ln); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		srv.Close()
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// startMetricsServer binds the metrics listener before returning so that a
// bad address fails startup.
func startMetricsServer(config MetricsConfig, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    config.Addr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	ln, err := net.Listen("tcp", metricsServer.Addr())
	if err != nil {
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	}
	go func() {
		if err := metricsServer.Start(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", logging.Err(err))
		}
	}()
	return metricsServer, nil
}

// newConversationStore returns the history backend and its cleanup func.
func newConversationStore(config ChatConfig) (chat.History, func(), error) {
	if config.Store != conversationStoreValkey {
		return chat.NewMemoryHistory(), func() {}, nil
	}

	history, err := chat.NewValkeyHistory(chat.ValkeyConfig{
		URL:      config.ValkeyURL,
		Password: config.ValkeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create valkey conversation store: %w", err)
	}
	return history, history.Close, nil
}

// defaultBaseURL derives a local base URL from the listen address.
func defaultBaseURL(httpAddr string) string {
	host, port, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return "http://localhost"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			return value
		}
	}
	return ""
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
