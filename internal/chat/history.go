package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Conversation store backends.
const (
	HistoryBackendMemory = "memory"
	HistoryBackendValkey = "valkey"
)

const (
	// ContextMessages is how many recent messages are sent as context.
	ContextMessages = 10

	// maxStoredMessages bounds the history kept per thread.
	maxStoredMessages = 100

	// historyTTL expires idle valkey threads.
	historyTTL = 7 * 24 * time.Hour

	historyKeyPrefix = "recircuit:chat:thread:"
)

// Message is a stored conversation message.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// History stores per-thread conversation messages.
type History interface {
	Append(ctx context.Context, threadID string, msg Message) error
	// Recent returns up to n of the newest messages, oldest first.
	Recent(ctx context.Context, threadID string, n int) ([]Message, error)
	Clear(ctx context.Context, threadID string) error
}

// MemoryHistory keeps conversations in process memory.
type MemoryHistory struct {
	mu      sync.RWMutex
	threads map[string][]Message
}

// NewMemoryHistory creates an empty MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{threads: make(map[string][]Message)}
}

// Append adds msg to the thread.
func (h *MemoryHistory) Append(_ context.Context, threadID string, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := append(h.threads[threadID], msg)
	if len(msgs) > maxStoredMessages {
		msgs = append([]Message(nil), msgs[len(msgs)-maxStoredMessages:]...)
	}
	h.threads[threadID] = msgs
	return nil
}

// Recent returns up to n of the newest messages of the thread.
func (h *MemoryHistory) Recent(_ context.Context, threadID string, n int) ([]Message, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msgs := h.threads[threadID]
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear deletes the thread.
func (h *MemoryHistory) Clear(_ context.Context, threadID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.threads, threadID)
	return nil
}

// ValkeyHistory keeps conversations in Valkey lists, one per thread.
type ValkeyHistory struct {
	client valkey.Client
	ttl    time.Duration
}

// ValkeyConfig holds Valkey connection settings.
type ValkeyConfig struct {
	// URL is host:port or a valkey://, valkeys://, redis:// or rediss:// URL
	// with optional credentials and database index.
	URL string
	// Password overrides the password of URL when set.
	Password string
}

// ClientOption converts cfg into valkey client options.
func (cfg ValkeyConfig) ClientOption() (valkey.ClientOption, error) {
	if cfg.URL == "" {
		return valkey.ClientOption{}, fmt.Errorf("valkey address is required")
	}
	raw := strings.TrimSuffix(cfg.URL, "/")
	if !strings.Contains(raw, "://") {
		raw = "valkey://" + raw
	}
	opt, err := valkey.ParseURL(raw)
	if err != nil {
		return valkey.ClientOption{}, fmt.Errorf("invalid valkey URL: %w", err)
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	return opt, nil
}

// NewValkeyHistory connects to Valkey.
func NewValkeyHistory(cfg ValkeyConfig) (*ValkeyHistory, error) {
	opt, err := cfg.ClientOption()
	if err != nil {
		return nil, err
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", strings.Join(opt.InitAddress, ","), err)
	}
	return &ValkeyHistory{client: client, ttl: historyTTL}, nil
}

func historyKey(threadID string) string {
	return historyKeyPrefix + threadID
}

// Append pushes msg, trims the list and refreshes its expiry.
func (h *ValkeyHistory) Append(ctx context.Context, threadID string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	key := historyKey(threadID)
	cmds := valkey.Commands{
		h.client.B().Rpush().Key(key).Element(string(data)).Build(),
		h.client.B().Ltrim().Key(key).Start(-maxStoredMessages).Stop(-1).Build(),
		h.client.B().Expire().Key(key).Seconds(int64(h.ttl.Seconds())).Build(),
	}
	for _, resp := range h.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("failed to append message to %s: %w", key, err)
		}
	}
	return nil
}

// Recent returns up to n of the newest messages of the thread.
func (h *ValkeyHistory) Recent(ctx context.Context, threadID string, n int) ([]Message, error) {
	start := int64(0)
	if n > 0 {
		start = -int64(n)
	}

	key := historyKey(threadID)
	values, err := h.client.Do(ctx, h.client.B().Lrange().Key(key).Start(start).Stop(-1).Build()).AsStrSlice()
	if err != nil && !valkey.IsValkeyNil(err) {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return decodeMessages(values)
}

// Clear deletes the thread.
func (h *ValkeyHistory) Clear(ctx context.Context, threadID string) error {
	return h.client.Do(ctx, h.client.B().Del().Key(historyKey(threadID)).Build()).Error()
}

// Close closes the Valkey connection.
func (h *ValkeyHistory) Close() {
	h.client.Close()
}

func decodeMessages(values []string) ([]Message, error) {
	msgs := make([]Message, 0, len(values))
	for _, v := range values {
		var m Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
