// Package server wires the recircuit HTTP surface: the dashboard pages, the
// JSON API consumed by the dashboard, the self-hosted ChatKit endpoint, the
// MCP endpoint and the operational endpoints.
//
// # Key Components
//
// Server builds the chi router and owns the HTTP listener. Every route is a
// thin handler that checks the session, calls one of the domain packages
// (calendar, openai, chat) and reshapes the result into JSON.
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed. Readiness
// includes a database ping.
//
// MetricsServer serves the Prometheus scrape endpoint on a dedicated port.
//
// # Security Features
//
//   - HTTPS required for non-loopback base URLs unless explicitly allowed
//   - Session cookies are HttpOnly, SameSite=Lax and Secure on https
//   - Per-IP rate limiting on sign-in and upload routes
//   - Admin-only calendar routes and MCP endpoint
//   - Security headers on all HTTP responses
package server
