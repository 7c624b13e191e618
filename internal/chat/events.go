package chat

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Event types emitted to the browser.
const (
	EventAssistantMessage = "assistant_message"
	EventToolCall         = "tool_call"
	EventWidget           = "widget"
	EventComplete         = "complete"
	EventError            = "error"
)

// Event is one server-sent event of a chat stream.
type Event struct {
	Type    string          `json:"type"`
	Content *string         `json:"content,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TextEvent creates an event carrying text content.
func TextEvent(eventType, content string) Event {
	return Event{Type: eventType, Content: &content}
}

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// EventWriter writes server-sent events to an HTTP response.
type EventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewEventWriter wraps w. It fails when w cannot flush.
func NewEventWriter(w http.ResponseWriter) (*EventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &EventWriter{w: w, flusher: flusher}, nil
}

// Start writes the event stream headers. It is called implicitly by Send.
func (e *EventWriter) Start() {
	if e.started {
		return
	}
	e.started = true
	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)
	e.flusher.Flush()
}

// Started reports whether the stream headers were written.
func (e *EventWriter) Started() bool {
	return e.started
}

// Send writes ev as a data line and flushes it.
func (e *EventWriter) Send(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	e.Start()
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

// Pipe copies r to the response, flushing after every read.
func (e *EventWriter) Pipe(r io.Reader) error {
	e.Start()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := e.w.Write(buf[:n]); werr != nil {
				return werr
			}
			e.flusher.Flush()
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// maxEventLineBytes bounds a single upstream event line.
const maxEventLineBytes = 1 << 20

// ReadEvents calls fn with the payload of every "data: " line of an event
// stream. Payloads spanning reads are reassembled.
func ReadEvents(r io.Reader, fn func(data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimPrefix(payload, " ")
		if payload == "" || payload == "[DONE]" {
			continue
		}
		if err := fn([]byte(payload)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
