package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdk "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/logging"
)

// DefaultBaseURL is the OpenAI API base URL.
const DefaultBaseURL = "https://api.openai.com/v1"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("OpenAI API key not configured")

// Config holds OpenAI client settings.
type Config struct {
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient defaults to a client with an OpenTelemetry transport.
	HTTPClient *http.Client

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Service is the OpenAI API client used by the HTTP handlers and the agent.
type Service struct {
	sdk     *sdk.Client
	rest    *restClient
	apiKey  string
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewHTTPClient returns an HTTP client whose requests are traced.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// New creates a Service.
func New(cfg Config) *Service {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sdkConfig := sdk.DefaultConfig(cfg.APIKey)
	sdkConfig.BaseURL = baseURL
	sdkConfig.HTTPClient = httpClient

	return &Service{
		sdk: sdk.NewClientWithConfig(sdkConfig),
		rest: &restClient{
			baseURL:    baseURL,
			apiKey:     cfg.APIKey,
			httpClient: httpClient,
		},
		apiKey:  cfg.APIKey,
		metrics: cfg.Metrics,
		logger:  logging.WithProvider(logger, "openai"),
	}
}

// Configured reports whether an API key is set.
func (s *Service) Configured() bool {
	return s != nil && s.apiKey != ""
}

// observe runs fn inside an OpenAI span and records its metrics.
func (s *Service) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	ctx, span := instrumentation.StartOpenAISpan(ctx, operation)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		s.logger.WarnContext(ctx, "OpenAI request failed",
			logging.Operation(operation),
			logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordOpenAIOperation(ctx, operation, status, duration)

	return err
}
