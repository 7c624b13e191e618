package openai

import (
	"errors"
	"fmt"
	"strings"

	sdk "github.com/sashabaranov/go-openai"
)

// APIError is a non-2xx response from the OpenAI API.
type APIError struct {
	StatusCode int
	// Body is the raw response body.
	Body string
}

// Error returns "<status> <body>".
func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// StatusCode returns the HTTP status of an OpenAI API failure, or 0 when err
// did not come from an API response.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var sdkErr *sdk.APIError
	if errors.As(err, &sdkErr) {
		return sdkErr.HTTPStatusCode
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
