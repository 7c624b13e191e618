package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		debug     bool
		wantJSON  bool
		wantDebug bool
	}{
		{name: "json info", format: FormatJSON, wantJSON: true},
		{name: "text debug", format: FormatText, debug: true, wantDebug: true},
		{name: "unknown falls back to json", format: "yaml", wantJSON: true},
		{name: "case insensitive text", format: "TEXT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(&buf, tt.format, tt.debug)
			logger.Debug("debug line")
			logger.Info("info line", slog.String("k", "v"))

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug line"))
			assert.Contains(t, out, "info line")

			lines := strings.Split(strings.TrimSpace(out), "\n")
			var decoded map[string]any
			err := json.Unmarshal([]byte(lines[len(lines)-1]), &decoded)
			if tt.wantJSON {
				require.NoError(t, err)
				assert.Equal(t, "v", decoded["k"])
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAttributes(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"operation", Operation("calendar.refresh"), KeyOperation, "calendar.refresh"},
		{"provider", Provider("google"), KeyProvider, "google"},
		{"function", Function("search_events"), KeyFunction, "search_events"},
		{"role", Role("admin"), KeyRole, "admin"},
		{"status", Status(StatusSuccess), KeyStatus, "success"},
		{"request id", RequestID("abc"), KeyRequestID, "abc"},
		{"error", Err(errors.New("boom")), KeyError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKey, tt.attr.Key)
			assert.Equal(t, tt.wantVal, tt.attr.Value.String())
		})
	}
}

func TestErr_Nil(t *testing.T) {
	attr := Err(nil)
	assert.Equal(t, "", attr.Key)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("request finished", Err(nil))
	assert.NotContains(t, buf.String(), `"`+KeyError+`":`)
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	WithProvider(WithOperation(base, "calendar.store"), "google").Info("stored")

	out := buf.String()
	assert.Contains(t, out, `"operation":"calendar.store"`)
	assert.Contains(t, out, `"provider":"google"`)
}

func TestAnonymizeEmail(t *testing.T) {
	assert.Equal(t, "", AnonymizeEmail(""))

	a := AnonymizeEmail("Admin@Example.com")
	b := AnonymizeEmail("admin@example.com")
	assert.Equal(t, a, b, "hash should ignore case")
	assert.True(t, strings.HasPrefix(a, "user:"))
	assert.NotContains(t, a, "example")
	assert.NotEqual(t, a, AnonymizeEmail("other@example.com"))

	attr := UserHash("admin@example.com")
	assert.Equal(t, KeyUserHash, attr.Key)
	assert.Equal(t, a, attr.Value.String())
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))
	assert.Equal(t, "[token:12 chars]", SanitizeToken("ya29.abcdefg"))
}
