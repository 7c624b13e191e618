package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// UserIDHeader carries the caller id to the ChatKit server.
const UserIDHeader = "x-user-id"

// UpstreamError is a non-2xx answer from the ChatKit server.
type UpstreamError struct {
	StatusCode int
	Body       string
}

// Error returns "ChatKit server error: <status> <body>".
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ChatKit server error: %d %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// MessageRequest is a chat message posted to a ChatKit server.
type MessageRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
	UserID   string `json:"user_id,omitempty"`
}

// Relay forwards messages to an external ChatKit server.
type Relay struct {
	serverURL  string
	httpClient *http.Client
}

// NewRelay creates a Relay for serverURL.
func NewRelay(serverURL string, httpClient *http.Client) *Relay {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Relay{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		httpClient: httpClient,
	}
}

// Forward posts req to <server>/chatkit and returns the event stream. The
// caller closes it.
func (r *Relay) Forward(ctx context.Context, req MessageRequest) (io.ReadCloser, error) {
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serverURL+"/chatkit", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(UserIDHeader, req.UserID)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ChatKit server: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return resp.Body, nil
}
