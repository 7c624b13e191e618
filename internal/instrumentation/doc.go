// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for recircuit.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds (method, route, status)
//   - chat_active_streams (mode)
//   - auth_signin_total (result)
//
// Upstream APIs:
//   - google_api_operations_total, google_api_operation_duration_seconds
//   - openai_api_operations_total, openai_api_operation_duration_seconds
//
// Calendar integration:
//   - calendar_oauth_connect_total (result)
//   - oauth_token_refresh_total (result: success, failure, expired)
//   - calendar_function_calls_total, calendar_function_duration_seconds
//     (function, source)
//
// # Configuration
//
// DefaultConfig reads the environment:
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - OTEL_SERVICE_NAME: Service name (default: recircuit)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP collector endpoint
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate 0.0-1.0 (default: 0.1)
//   - METRICS_DETAILED_LABELS: Add user domain labels (default: false)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII, AUDIT_LOGGING_LEVEL
//
// Example:
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
package instrumentation
