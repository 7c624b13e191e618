package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/teemow/recircuit/internal/instrumentation"
)

const (
	// DefaultVectorStoreName is used when a vector store is created without a name.
	DefaultVectorStoreName = "AI Knowledge Base"

	// UnknownFilename is stored when the file details cannot be read.
	UnknownFilename = "Unknown file"

	// DefaultListLimit is the page size of ListFiles.
	DefaultListLimit = 20
	maxListLimit     = 100
)

// ExpiresAfter is a vector store expiration policy.
type ExpiresAfter struct {
	Anchor string `json:"anchor"`
	Days   int    `json:"days"`
}

// FileCounts summarizes the processing state of a vector store's files.
type FileCounts struct {
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}

// VectorStore is a hosted embedding index.
type VectorStore struct {
	ID           string        `json:"id"`
	Object       string        `json:"object"`
	CreatedAt    int64         `json:"created_at"`
	Name         string        `json:"name"`
	FileCounts   FileCounts    `json:"file_counts"`
	Status       string        `json:"status"`
	ExpiresAfter *ExpiresAfter `json:"expires_after"`
	UsageBytes   int           `json:"usage_bytes"`
}

// CreateVectorStore creates a vector store. An empty name becomes
// DefaultVectorStoreName.
func (s *Service) CreateVectorStore(ctx context.Context, name string, expiresAfter *ExpiresAfter) (*VectorStore, error) {
	if name == "" {
		name = DefaultVectorStoreName
	}

	req := sdk.VectorStoreRequest{Name: name}
	if expiresAfter != nil {
		req.ExpiresAfter = &sdk.VectorStoreExpires{Anchor: expiresAfter.Anchor, Days: expiresAfter.Days}
	}

	var vs sdk.VectorStore
	err := s.observe(ctx, instrumentation.OperationCreateVectorStore, func(ctx context.Context) error {
		var err error
		vs, err = s.sdk.CreateVectorStore(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	out := &VectorStore{
		ID:         vs.ID,
		Object:     vs.Object,
		CreatedAt:  vs.CreatedAt,
		Name:       vs.Name,
		Status:     vs.Status,
		UsageBytes: vs.UsageBytes,
		FileCounts: FileCounts{
			InProgress: vs.FileCounts.InProgress,
			Completed:  vs.FileCounts.Completed,
			Failed:     vs.FileCounts.Failed,
			Cancelled:  vs.FileCounts.Cancelled,
			Total:      vs.FileCounts.Total,
		},
	}
	if vs.ExpiresAfter != nil {
		out.ExpiresAfter = &ExpiresAfter{Anchor: vs.ExpiresAfter.Anchor, Days: vs.ExpiresAfter.Days}
	}
	return out, nil
}

// VectorStoreFile is a file attached to a vector store.
type VectorStoreFile struct {
	ID               string          `json:"id"`
	Object           string          `json:"object"`
	CreatedAt        int64           `json:"created_at"`
	UsageBytes       int             `json:"usage_bytes"`
	VectorStoreID    string          `json:"vector_store_id"`
	Status           string          `json:"status"`
	LastError        json.RawMessage `json:"last_error"`
	ChunkingStrategy json.RawMessage `json:"chunking_strategy,omitempty"`
	Attributes       map[string]any  `json:"attributes,omitempty"`
}

// AddFileRequest attaches an uploaded file to a vector store.
type AddFileRequest struct {
	VectorStoreID string
	FileID        string
	// Attributes are stored with the file; "filename" is always set from
	// the file details.
	Attributes map[string]any
	// ChunkingStrategy is passed through unchanged when set.
	ChunkingStrategy json.RawMessage
}

type addFileBody struct {
	FileID           string          `json:"file_id"`
	Attributes       map[string]any  `json:"attributes,omitempty"`
	ChunkingStrategy json.RawMessage `json:"chunking_strategy,omitempty"`
}

// AddFile attaches a file to a vector store, recording its filename as an
// attribute. A failed file lookup records UnknownFilename.
func (s *Service) AddFile(ctx context.Context, req AddFileRequest) (*VectorStoreFile, error) {
	if req.VectorStoreID == "" || req.FileID == "" {
		return nil, fmt.Errorf("file ID and vector store ID are required")
	}

	filename := UnknownFilename
	if details, err := s.FileDetails(ctx, req.FileID); err == nil && details.Filename != "" {
		filename = details.Filename
	}

	attributes := make(map[string]any, len(req.Attributes)+1)
	for k, v := range req.Attributes {
		attributes[k] = v
	}
	attributes["filename"] = filename

	body := addFileBody{
		FileID:     req.FileID,
		Attributes: attributes,
	}
	if len(req.ChunkingStrategy) > 0 && string(req.ChunkingStrategy) != "null" {
		body.ChunkingStrategy = req.ChunkingStrategy
	}

	var file VectorStoreFile
	err := s.observe(ctx, instrumentation.OperationAddFile, func(ctx context.Context) error {
		return s.rest.do(ctx, http.MethodPost, "/vector_stores/"+url.PathEscape(req.VectorStoreID)+"/files", nil, body, &file)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add file to vector store: %w", err)
	}
	return &file, nil
}

// ListFilesParams controls ListFiles paging.
type ListFilesParams struct {
	Limit  int
	Order  string
	Filter string
	After  string
}

// ValidFileFilter reports whether filter is a vector store file status.
func ValidFileFilter(filter string) bool {
	switch filter {
	case "in_progress", "completed", "failed", "cancelled":
		return true
	}
	return false
}

func (p ListFilesParams) query() url.Values {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	order := p.Order
	if order != "asc" {
		order = "desc"
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order", order)
	if ValidFileFilter(p.Filter) {
		q.Set("filter", p.Filter)
	}
	if p.After != "" {
		q.Set("after", p.After)
	}
	return q
}

// VectorStoreFileList is a page of vector store files.
type VectorStoreFileList struct {
	Object  string            `json:"object"`
	Data    []VectorStoreFile `json:"data"`
	FirstID *string           `json:"first_id"`
	LastID  *string           `json:"last_id"`
	HasMore bool              `json:"has_more"`
}

// ListFiles lists the files of a vector store. Filters outside
// ValidFileFilter are ignored.
func (s *Service) ListFiles(ctx context.Context, vectorStoreID string, params ListFilesParams) (*VectorStoreFileList, error) {
	if vectorStoreID == "" {
		return nil, fmt.Errorf("vector store ID is required")
	}

	var list VectorStoreFileList
	err := s.observe(ctx, instrumentation.OperationListFiles, func(ctx context.Context) error {
		return s.rest.do(ctx, http.MethodGet, "/vector_stores/"+url.PathEscape(vectorStoreID)+"/files", params.query(), nil, &list)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list vector store files: %w", err)
	}
	if list.Data == nil {
		list.Data = []VectorStoreFile{}
	}
	return &list, nil
}

// DeletedFile confirms a removed vector store file.
type DeletedFile struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// RemoveFile detaches a file from a vector store. The file itself is kept.
func (s *Service) RemoveFile(ctx context.Context, vectorStoreID, fileID string) (*DeletedFile, error) {
	if vectorStoreID == "" || fileID == "" {
		return nil, fmt.Errorf("file ID and vector store ID are required")
	}

	err := s.observe(ctx, instrumentation.OperationRemoveFile, func(ctx context.Context) error {
		return s.sdk.DeleteVectorStoreFile(ctx, vectorStoreID, fileID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove file from vector store: %w", err)
	}
	return &DeletedFile{ID: fileID, Object: "vector_store.file.deleted", Deleted: true}, nil
}
