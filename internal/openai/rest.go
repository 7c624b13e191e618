package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	chatKitBetaHeader = "OpenAI-Beta"
	chatKitBetaValue  = "chatkit_beta=v1"

	maxErrorBodyBytes = 64 << 10
)

// restClient is a minimal JSON client for endpoints go-openai does not cover.
type restClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type requestOption func(*http.Request)

func withChatKitBeta() requestOption {
	return func(r *http.Request) {
		r.Header.Set(chatKitBetaHeader, chatKitBetaValue)
	}
}

func withAccept(v string) requestOption {
	return func(r *http.Request) {
		r.Header.Set("Accept", v)
	}
}

// send issues a request and returns the response when its status is 2xx.
// The caller closes the body.
func (c *restClient) send(ctx context.Context, method, path string, query url.Values, body any, opts ...requestOption) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	return resp, nil
}

// do issues a request and decodes the JSON response into out.
func (c *restClient) do(ctx context.Context, method, path string, query url.Values, body, out any, opts ...requestOption) error {
	resp, err := c.send(ctx, method, path, query, body, opts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
