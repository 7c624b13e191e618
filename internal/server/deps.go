package server

import (
	"context"
	"encoding/json"
	"io"

	"github.com/teemow/recircuit/internal/auth"
	"github.com/teemow/recircuit/internal/calendar"
	"github.com/teemow/recircuit/internal/chat"
	"github.com/teemow/recircuit/internal/openai"
)

// OpenAI is the subset of the OpenAI client used by the API routes.
type OpenAI interface {
	Configured() bool
	UploadFile(ctx context.Context, name string, data []byte, purpose string) (*openai.File, error)
	FileDetails(ctx context.Context, fileID string) (*openai.File, error)
	CreateVectorStore(ctx context.Context, name string, expiresAfter *openai.ExpiresAfter) (*openai.VectorStore, error)
	AddFile(ctx context.Context, req openai.AddFileRequest) (*openai.VectorStoreFile, error)
	ListFiles(ctx context.Context, vectorStoreID string, params openai.ListFilesParams) (*openai.VectorStoreFileList, error)
	RemoveFile(ctx context.Context, vectorStoreID, fileID string) (*openai.DeletedFile, error)
	CreateChatKitSession(ctx context.Context, workflowID, user string) (*openai.ChatKitSession, error)
	CheckConnectivity(ctx context.Context) openai.ConnectivityResult
}

// FunctionCaller runs calendar functions.
type FunctionCaller interface {
	Call(ctx context.Context, name string, args json.RawMessage, caller calendar.Caller) (any, error)
}

// MessageRelay forwards chat messages to an external ChatKit server.
type MessageRelay interface {
	Forward(ctx context.Context, req chat.MessageRequest) (io.ReadCloser, error)
}

// DirectStreamer streams chat messages through the ChatKit threads API.
type DirectStreamer interface {
	Stream(ctx context.Context, w *chat.EventWriter, workflowID, userID, text string) error
}

// AgentRunner runs the agent workflow.
type AgentRunner interface {
	Run(ctx context.Context, req chat.AgentRequest) (string, error)
}

// Workflows holds the ChatKit workflow ids per role.
type Workflows struct {
	Admin string
	User  string
}

// ForSession returns the workflow for the session's role.
func (w Workflows) ForSession(s *auth.Session) string {
	if s != nil && s.IsAdmin() {
		return w.Admin
	}
	return w.User
}
