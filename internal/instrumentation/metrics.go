package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrFunction  = "function"
	attrSource    = "source"
	attrDomain    = "user_domain"
	attrMode      = "mode"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeChatStreams   metric.Int64UpDownCounter

	// Sign-in metrics
	signInTotal metric.Int64Counter

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// OpenAI API metrics
	openAIOperationsTotal   metric.Int64Counter
	openAIOperationDuration metric.Float64Histogram

	// Calendar OAuth metrics
	oauthConnectTotal      metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// Calendar function metrics
	functionCallsTotal metric.Int64Counter
	functionDuration   metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.activeChatStreams, err = meter.Int64UpDownCounter(
		"chat_active_streams",
		metric.WithDescription("Number of chat responses currently streaming"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_active_streams gauge: %w", err)
	}

	m.signInTotal, err = meter.Int64Counter(
		"auth_signin_total",
		metric.WithDescription("Total number of credential sign-in attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_signin_total counter: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.openAIOperationsTotal, err = meter.Int64Counter(
		"openai_api_operations_total",
		metric.WithDescription("Total number of OpenAI API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai_api_operations_total counter: %w", err)
	}

	m.openAIOperationDuration, err = meter.Float64Histogram(
		"openai_api_operation_duration_seconds",
		metric.WithDescription("OpenAI API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai_api_operation_duration_seconds histogram: %w", err)
	}

	m.oauthConnectTotal, err = meter.Int64Counter(
		"calendar_oauth_connect_total",
		metric.WithDescription("Total number of calendar OAuth connect attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_oauth_connect_total counter: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.functionCallsTotal, err = meter.Int64Counter(
		"calendar_function_calls_total",
		metric.WithDescription("Total number of calendar function calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_function_calls_total counter: %w", err)
	}

	m.functionDuration, err = meter.Float64Histogram(
		"calendar_function_duration_seconds",
		metric.WithDescription("Calendar function execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_function_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, route, status code, and duration.
// path should be the matched route pattern, not the raw URL path.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSignIn records a credential sign-in attempt.
// Result should be one of the SignInResult* constants.
func (m *Metrics) RecordSignIn(ctx context.Context, result string) {
	if m == nil || m.signInTotal == nil {
		return
	}

	m.signInTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
//
// Parameters:
//   - service: Google service name (calendar, oauth)
//   - operation: Operation type (search, create, update, delete, exchange, refresh)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOpenAIOperation records an OpenAI API call (files, vector stores, chatkit, responses).
func (m *Metrics) RecordOpenAIOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.openAIOperationsTotal == nil || m.openAIOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.openAIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.openAIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthConnect records a calendar OAuth connect attempt with result.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthConnect(ctx context.Context, result string) {
	if m == nil || m.oauthConnectTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthConnectTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt with result.
// Result should be one of: "success", "failure", "expired"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordFunctionCall records a calendar function call.
//
// Parameters:
//   - function: Function name (search_events, create_event, update_event, delete_event)
//   - source: Caller surface (http, agent, mcp)
//   - status: Result status ("success" or "error")
//   - email: Caller email, reduced to its domain and only recorded with detailed labels
//   - duration: Time taken for the call
func (m *Metrics) RecordFunctionCall(ctx context.Context, function, source, status, email string, duration time.Duration) {
	if m == nil || m.functionCallsTotal == nil || m.functionDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrFunction, function),
		attribute.String(attrSource, source),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && email != "" {
		attrs = append(attrs, attribute.String(attrDomain, ExtractUserDomain(email)))
	}

	m.functionCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.functionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementActiveStreams increments the active chat stream gauge.
// mode is "relay", "direct" or "local".
func (m *Metrics) IncrementActiveStreams(ctx context.Context, mode string) {
	if m == nil || m.activeChatStreams == nil {
		return
	}

	m.activeChatStreams.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMode, mode)))
}

// DecrementActiveStreams decrements the active chat stream gauge.
func (m *Metrics) DecrementActiveStreams(ctx context.Context, mode string) {
	if m == nil || m.activeChatStreams == nil {
		return
	}

	m.activeChatStreams.Add(ctx, -1, metric.WithAttributes(attribute.String(attrMode, mode)))
}
