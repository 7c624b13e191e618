package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/recircuit/internal/chat"
	"github.com/teemow/recircuit/internal/server"
	"github.com/teemow/recircuit/internal/store"
)

var serveEnvVars = []string{
	"HTTP_ADDR", "BASE_URL", "NEXTAUTH_URL", "DATABASE_DRIVER", "DATABASE_URL", "POSTGRES_DSN",
	"SESSION_SECRET", "NEXTAUTH_SECRET", "ENCRYPTION_KEY", "LOG_FORMAT", "ALLOW_INSECURE_HTTP",
	"ENABLE_MCP", "RATE_LIMIT", "RATE_LIMIT_BURST", "TRUST_PROXY",
	"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URI",
	"METRICS_ENABLED", "METRICS_ADDR",
	"OPENAI_API_SECRET_KEY", "OPENAI_BASE_URL", "OPENAI_ADMIN_WORKFLOW_ID", "OPENAI_USER_WORKFLOW_ID",
	"OPENAI_VECTOR_STORE_ID", "OPENAI_AGENT_MODEL", "OPENAI_CHAT_MODEL",
	"CHATKIT_SERVER_URL", "USE_DIRECT_OPENAI", "CONVERSATION_STORE", "VALKEY_URL", "VALKEY_PASSWORD",
}

// clearServeEnv blanks every variable serve reads.
func clearServeEnv(t *testing.T) {
	t.Helper()
	for _, name := range serveEnvVars {
		t.Setenv(name, "")
	}
}

// loadServeConfig parses args and applies the environment like serve does.
func loadServeConfig(t *testing.T, args ...string) ServeConfig {
	t.Helper()

	var config ServeConfig
	cmd := &cobra.Command{Use: "serve"}
	bindServeFlags(cmd, &config)
	require.NoError(t, cmd.Flags().Parse(args))

	loadServeEnvVars(cmd, &config)
	return config
}

func TestLoadServeEnvVars_Defaults(t *testing.T) {
	clearServeEnv(t)

	config := loadServeConfig(t)

	assert.Equal(t, ":8080", config.HTTPAddr)
	assert.Equal(t, store.DriverPostgres, config.DatabaseDriver)
	assert.Equal(t, ":9090", config.Metrics.Addr)
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, chat.DefaultAgentModel, config.OpenAI.AgentModel)
	assert.Equal(t, chat.DefaultChatModel, config.OpenAI.ChatModel)
	assert.Equal(t, conversationStoreMemory, config.Chat.Store)
	assert.Equal(t, chat.ModeLocal, config.Chat.Mode())
}

func TestLoadServeEnvVars_Fallbacks(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, config ServeConfig)
	}{
		{
			name: "primary variables",
			env: map[string]string{
				"BASE_URL":       "https://dash.example.com",
				"DATABASE_URL":   "postgres://primary",
				"SESSION_SECRET": "primary-secret",
			},
			check: func(t *testing.T, config ServeConfig) {
				assert.Equal(t, "https://dash.example.com", config.BaseURL)
				assert.Equal(t, "postgres://primary", config.DatabaseURL)
				assert.Equal(t, "primary-secret", config.SessionSecret)
			},
		},
		{
			name: "legacy variables",
			env: map[string]string{
				"NEXTAUTH_URL":    "https://legacy.example.com",
				"POSTGRES_DSN":    "postgres://legacy",
				"NEXTAUTH_SECRET": "legacy-secret",
			},
			check: func(t *testing.T, config ServeConfig) {
				assert.Equal(t, "https://legacy.example.com", config.BaseURL)
				assert.Equal(t, "postgres://legacy", config.DatabaseURL)
				assert.Equal(t, "legacy-secret", config.SessionSecret)
			},
		},
		{
			name: "primary wins over legacy",
			env: map[string]string{
				"DATABASE_URL": "postgres://primary",
				"POSTGRES_DSN": "postgres://legacy",
			},
			check: func(t *testing.T, config ServeConfig) {
				assert.Equal(t, "postgres://primary", config.DatabaseURL)
			},
		},
		{
			name: "booleans and numbers",
			env: map[string]string{
				"ALLOW_INSECURE_HTTP": "true",
				"ENABLE_MCP":          "1",
				"METRICS_ENABLED":     "false",
				"RATE_LIMIT":          "2.5",
				"RATE_LIMIT_BURST":    "7",
				"TRUST_PROXY":         "true",
			},
			check: func(t *testing.T, config ServeConfig) {
				assert.True(t, config.AllowInsecureHTTP)
				assert.True(t, config.EnableMCP)
				assert.False(t, config.Metrics.Enabled)
				assert.Equal(t, 2.5, config.RateLimit.Rate)
				assert.Equal(t, 7, config.RateLimit.Burst)
				assert.True(t, config.RateLimit.TrustProxy)
			},
		},
		{
			name: "unparsable boolean keeps the default",
			env:  map[string]string{"METRICS_ENABLED": "maybe"},
			check: func(t *testing.T, config ServeConfig) {
				assert.True(t, config.Metrics.Enabled)
			},
		},
		{
			name: "google and openai",
			env: map[string]string{
				"GOOGLE_CLIENT_ID":         "client-id",
				"GOOGLE_CLIENT_SECRET":     "client-secret",
				"GOOGLE_REDIRECT_URI":      "https://dash.example.com/api/calendar/callback",
				"OPENAI_API_SECRET_KEY":    "sk-test",
				"OPENAI_ADMIN_WORKFLOW_ID": "wf_admin",
				"OPENAI_USER_WORKFLOW_ID":  "wf_user",
				"OPENAI_VECTOR_STORE_ID":   "vs_1",
				"OPENAI_AGENT_MODEL":       "gpt-test",
			},
			check: func(t *testing.T, config ServeConfig) {
				assert.Equal(t, GoogleConfig{
					ClientID:     "client-id",
					ClientSecret: "client-secret",
					RedirectURI:  "https://dash.example.com/api/calendar/callback",
				}, config.Google)
				assert.Equal(t, "sk-test", config.OpenAI.APIKey)
				assert.Equal(t, "wf_admin", config.OpenAI.AdminWorkflowID)
				assert.Equal(t, "wf_user", config.OpenAI.UserWorkflowID)
				assert.Equal(t, "vs_1", config.OpenAI.VectorStoreID)
				assert.Equal(t, "gpt-test", config.OpenAI.AgentModel)
				assert.Equal(t, chat.DefaultChatModel, config.OpenAI.ChatModel)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearServeEnv(t)
			for name, value := range tt.env {
				t.Setenv(name, value)
			}
			tt.check(t, loadServeConfig(t))
		})
	}
}

func TestLoadServeEnvVars_FlagWins(t *testing.T) {
	clearServeEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("SESSION_SECRET", "env-secret")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("HTTP_ADDR", ":7000")

	config := loadServeConfig(t,
		"--database-url", "postgres://flag",
		"--session-secret", "flag-secret",
		"--metrics-enabled=false",
		"--http-addr", ":8080",
	)

	assert.Equal(t, "postgres://flag", config.DatabaseURL)
	assert.Equal(t, "flag-secret", config.SessionSecret)
	assert.False(t, config.Metrics.Enabled)
	// Explicitly set to its default value still wins.
	assert.Equal(t, ":8080", config.HTTPAddr)
}

func TestChatConfig_Mode(t *testing.T) {
	tests := []struct {
		name   string
		config ChatConfig
		want   string
	}{
		{name: "nothing set", config: ChatConfig{}, want: chat.ModeLocal},
		{name: "server url", config: ChatConfig{ServerURL: "http://chatkit:8000"}, want: chat.ModeRelay},
		{name: "direct", config: ChatConfig{UseDirect: true}, want: chat.ModeDirect},
		{name: "direct wins over server url", config: ChatConfig{ServerURL: "http://chatkit:8000", UseDirect: true}, want: chat.ModeDirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.Mode())
		})
	}
}

func TestServeConfig_Validate(t *testing.T) {
	valid := func() ServeConfig {
		return ServeConfig{
			HTTPAddr:       ":8080",
			DatabaseDriver: store.DriverPostgres,
			DatabaseURL:    "postgres://localhost/recircuit",
			SessionSecret:  "0123456789abcdef0123",
			RateLimit:      server.RateLimitConfig{Rate: defaultSignInRate, Burst: defaultSignInBurst},
			Chat:           ChatConfig{Store: conversationStoreMemory},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *ServeConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(c *ServeConfig) {}},
		{name: "missing session secret", mutate: func(c *ServeConfig) { c.SessionSecret = "" }, wantErr: "session secret is required"},
		{name: "missing database url", mutate: func(c *ServeConfig) { c.DatabaseURL = "" }, wantErr: "database URL is required"},
		{name: "unknown driver", mutate: func(c *ServeConfig) { c.DatabaseDriver = "mysql" }, wantErr: "unsupported database driver"},
		{name: "short encryption key", mutate: func(c *ServeConfig) { c.EncryptionKey = "c2hvcnQ=" }, wantErr: "invalid encryption key"},
		{name: "valid encryption key", mutate: func(c *ServeConfig) {
			c.EncryptionKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
		}},
		{name: "bad base url", mutate: func(c *ServeConfig) { c.BaseURL = "not a url" }, wantErr: "invalid base URL"},
		{name: "negative rate", mutate: func(c *ServeConfig) { c.RateLimit.Rate = -1 }, wantErr: "rate limit must not be negative"},
		{name: "zero burst", mutate: func(c *ServeConfig) { c.RateLimit.Burst = 0 }, wantErr: "burst must be at least 1"},
		{name: "rate limiting disabled ignores burst", mutate: func(c *ServeConfig) {
			c.RateLimit.Rate = 0
			c.RateLimit.Burst = 0
		}},
		{name: "unknown conversation store", mutate: func(c *ServeConfig) { c.Chat.Store = "redis" }, wantErr: "unsupported conversation store"},
		{name: "valkey without url", mutate: func(c *ServeConfig) { c.Chat.Store = conversationStoreValkey }, wantErr: "VALKEY_URL is required"},
		{name: "valkey with url", mutate: func(c *ServeConfig) {
			c.Chat.Store = conversationStoreValkey
			c.Chat.ValkeyURL = "valkey:6379"
		}},
		{name: "valkey url with credentials", mutate: func(c *ServeConfig) {
			c.Chat.Store = conversationStoreValkey
			c.Chat.ValkeyURL = "redis://:secret@cache:6379/0"
		}},
		{name: "valkey url with bad scheme", mutate: func(c *ServeConfig) {
			c.Chat.Store = conversationStoreValkey
			c.Chat.ValkeyURL = "http://cache:6379"
		}, wantErr: "invalid VALKEY_URL"},
		{name: "bad relay url", mutate: func(c *ServeConfig) { c.Chat.ServerURL = "chatkit" }, wantErr: "invalid CHATKIT_SERVER_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			err := config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestServeConfig_Validate_DefaultBaseURL(t *testing.T) {
	config := ServeConfig{
		HTTPAddr:       "0.0.0.0:3000",
		DatabaseDriver: store.DriverSQLite,
		DatabaseURL:    "recircuit.db",
		SessionSecret:  "0123456789abcdef0123",
		Chat:           ChatConfig{Store: conversationStoreMemory},
	}
	require.NoError(t, config.Validate())
	assert.Equal(t, "http://localhost:3000", config.BaseURL)

	config.BaseURL = "https://dash.example.com/"
	require.NoError(t, config.Validate())
	assert.Equal(t, "https://dash.example.com", config.BaseURL)
}

func TestDefaultBaseURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{addr: ":8080", want: "http://localhost:8080"},
		{addr: "0.0.0.0:8080", want: "http://localhost:8080"},
		{addr: "127.0.0.1:9000", want: "http://127.0.0.1:9000"},
		{addr: "[::]:8080", want: "http://localhost:8080"},
		{addr: "garbage", want: "http://localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, defaultBaseURL(tt.addr))
		})
	}
}

func TestNewConversationStore_Memory(t *testing.T) {
	history, closeFn, err := newConversationStore(ChatConfig{Store: conversationStoreMemory})
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	defer closeFn()

	_, ok := history.(*chat.MemoryHistory)
	assert.True(t, ok)
}
