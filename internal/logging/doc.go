// Package logging provides structured logging utilities for recircuit.
//
// All components log through log/slog. This package fixes the attribute names
// used across the codebase and keeps personal data out of log lines.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "calendar.refresh")
//	logger.Info("token refreshed",
//	    logging.Provider("google"),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("signed in", logging.UserHash(email))
//
// # Security Considerations
//
//   - User emails are hashed so log lines can be correlated without PII
//   - Tokens are never logged directly, only their length via SanitizeToken
package logging
