package instrumentation

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Exporter types.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// DefaultMetricInterval is the push interval of the OTLP and stdout readers.
const DefaultMetricInterval = 10 * time.Second

// Metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	SignInResultSuccess = "success"
	SignInResultInvalid = "invalid_credentials"
	SignInResultError   = "error"

	ServiceCalendar = "calendar"
	ServiceOAuth    = "oauth"

	// Surfaces a calendar function can be called from.
	SourceHTTP  = "http"
	SourceAgent = "agent"
	SourceMCP   = "mcp"
)

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// Config configures metrics, tracing and audit logging.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID defaults to the hostname, which is the pod name in
	// Kubernetes.
	ServiceInstanceID string
	K8sNamespace      string
	K8sPodName        string

	// Enabled turns metrics and tracing on. When off, Metrics are no-ops.
	Enabled bool

	// MetricsExporter is prometheus, otlp or stdout.
	MetricsExporter string
	// TracingExporter is otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port without scheme, e.g. "localhost:4318".
	OTLPEndpoint string
	// OTLPInsecure disables TLS towards the collector. Development only:
	// spans name calendar functions and OpenAI resources.
	OTLPInsecure bool

	// TraceSamplingRate is the ratio of root spans sampled, 0.0 to 1.0.
	TraceSamplingRate float64

	// PrometheusEndpoint is the scrape path on the metrics server.
	PrometheusEndpoint string
	// RuntimeMetrics adds the Go runtime and process collectors.
	RuntimeMetrics bool

	// DetailedLabels adds the caller's email domain to calendar function
	// metrics. High cardinality; keep it off in production.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig configures the audit trail of calendar changes.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs full emails instead of hashed user identifiers.
	IncludePII bool

	// LogLevel is the slog level of audit records (default: info).
	LogLevel string
}

// DefaultConfig reads the configuration from the environment.
//
//	INSTRUMENTATION_ENABLED       default true
//	METRICS_EXPORTER              prometheus | otlp | stdout
//	TRACING_EXPORTER              none | otlp | stdout
//	OTEL_EXPORTER_OTLP_ENDPOINT   collector host:port
//	OTEL_TRACES_SAMPLER_ARG       default 0.1
//	PROMETHEUS_ENDPOINT           default /metrics
//	AUDIT_LOGGING_ENABLED         default true
func DefaultConfig() Config {
	return Config{
		ServiceName:        envString("OTEL_SERVICE_NAME", "recircuit"),
		ServiceVersion:     "unknown",
		ServiceInstanceID:  envString("OTEL_SERVICE_INSTANCE_ID", ""),
		K8sNamespace:       envString("K8S_NAMESPACE", envString("POD_NAMESPACE", "")),
		K8sPodName:         envString("K8S_POD_NAME", envString("HOSTNAME", "")),
		Enabled:            envParsed("INSTRUMENTATION_ENABLED", true, strconv.ParseBool),
		MetricsExporter:    envString("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:    envString("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:       envString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:       envParsed("OTEL_EXPORTER_OTLP_INSECURE", false, strconv.ParseBool),
		TraceSamplingRate:  envParsed("OTEL_TRACES_SAMPLER_ARG", 0.1, parseFloat),
		PrometheusEndpoint: envString("PROMETHEUS_ENDPOINT", "/metrics"),
		RuntimeMetrics:     envParsed("METRICS_RUNTIME_ENABLED", true, strconv.ParseBool),
		DetailedLabels:     envParsed("METRICS_DETAILED_LABELS", false, strconv.ParseBool),
		AuditLogging: AuditLoggingConfig{
			Enabled:    envParsed("AUDIT_LOGGING_ENABLED", true, strconv.ParseBool),
			IncludePII: envParsed("AUDIT_LOGGING_INCLUDE_PII", false, strconv.ParseBool),
			LogLevel:   envString("AUDIT_LOGGING_LEVEL", "info"),
		},
	}
}

// Validate rejects unknown exporters, out of range sampling and OTLP
// exporters without an endpoint. Empty exporters are allowed.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}
	if c.MetricsExporter != "" && !slices.Contains(metricsExporters, c.MetricsExporter) {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: %s", c.MetricsExporter, strings.Join(metricsExporters, ", "))
	}
	if c.TracingExporter != "" && !slices.Contains(tracingExporters, c.TracingExporter) {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: %s", c.TracingExporter, strings.Join(tracingExporters, ", "))
	}
	if c.PrometheusEndpoint != "" && !strings.HasPrefix(c.PrometheusEndpoint, "/") {
		return fmt.Errorf("prometheus endpoint must start with /, got %q", c.PrometheusEndpoint)
	}
	if c.OTLPEndpoint == "" {
		if c.TracingExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		}
		if c.MetricsExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	}
	return nil
}

// AuditLevel parses LogLevel into a slog level, defaulting to info.
func (c AuditLoggingConfig) AuditLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// envParsed returns the parsed variable, or fallback when it is unset or
// does not parse.
func envParsed[T any](key string, fallback T, parse func(string) (T, error)) T {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := parse(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
