package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "api error",
			err:        ErrBadRequest("Missing thread_id or message"),
			wantStatus: http.StatusBadRequest,
			wantBody:   "Missing thread_id or message",
		},
		{
			name:       "wrapped api error keeps message",
			err:        ErrNotFound("No calendar connected or token unavailable").Wrap(errors.New("sql: no rows")),
			wantStatus: http.StatusNotFound,
			wantBody:   "No calendar connected or token unavailable",
		},
		{
			name:       "plain error hides details",
			err:        errors.New("dial tcp 10.0.0.1:5432: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal server error",
		},
		{
			name:       "unauthorized",
			err:        ErrUnauthorized(),
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)

			WriteError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body.Error)
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := ErrBadGateway("Upstream failed").Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "502 Upstream failed")
	assert.Equal(t, "429 Too many requests", ErrTooManyRequests().Error())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Message string `json:"message"`
	}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "valid", body: `{"message":"hi"}`, want: "hi"},
		{name: "empty body", body: ``, want: ""},
		{name: "malformed", body: `{"message":`, wantErr: true},
		{name: "too large", body: `{"message":"` + strings.Repeat("a", MaxJSONBodyBytes) + `"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var p payload
			err := DecodeJSON(rec, req, &p)
			if tt.wantErr {
				var apiErr *Error
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusBadRequest, apiErr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Message)
		})
	}
}
