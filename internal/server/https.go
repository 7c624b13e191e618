package server

import (
	"fmt"
	"net/url"
)

// validateHTTPSRequirement ensures the public base URL uses HTTPS.
// Allows HTTP only for loopback addresses (localhost, 127.0.0.1, ::1) unless
// allowInsecure is set.
func validateHTTPSRequirement(baseURL string, allowInsecure bool) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if allowInsecure || isLoopback(u.Hostname()) {
			return nil
		}
		return fmt.Errorf("base URL must use HTTPS (got: %s). Use HTTPS, localhost for development, or --allow-insecure-http", baseURL)
	default:
		return fmt.Errorf("invalid URL scheme: %s. Must be http or https", u.Scheme)
	}
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// SecureBaseURL reports whether cookies should carry the Secure flag.
func SecureBaseURL(baseURL string) bool {
	u, err := url.Parse(baseURL)
	return err == nil && u.Scheme == "https"
}
