package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreateVectorStore(t *testing.T) {
	f, s := newFakeOpenAI(t)

	vs, err := s.CreateVectorStore(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "vs_123", vs.ID)
	assert.Equal(t, DefaultVectorStoreName, vs.Name)
	assert.Nil(t, vs.ExpiresAfter)
	assert.Equal(t, DefaultVectorStoreName, f.get("create_vs").body["name"])

	vs, err = s.CreateVectorStore(context.Background(), "Policies", &ExpiresAfter{Anchor: "last_active_at", Days: 7})
	require.NoError(t, err)
	assert.Equal(t, "Policies", vs.Name)
	require.NotNil(t, vs.ExpiresAfter)
	assert.Equal(t, 7, vs.ExpiresAfter.Days)
	assert.Equal(t, map[string]any{"anchor": "last_active_at", "days": float64(7)}, f.get("create_vs").body["expires_after"])
}

func TestService_AddFile(t *testing.T) {
	f, s := newFakeOpenAI(t)

	file, err := s.AddFile(context.Background(), AddFileRequest{
		VectorStoreID:    "vs_123",
		FileID:           "file-xyz",
		Attributes:       map[string]any{"team": "ops", "filename": "spoofed"},
		ChunkingStrategy: json.RawMessage(`{"type":"auto"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "vs_123", file.VectorStoreID)
	assert.Equal(t, "in_progress", file.Status)

	body := f.get("add_file").body
	assert.Equal(t, "file-xyz", body["file_id"])
	assert.Equal(t, map[string]any{"team": "ops", "filename": "handbook.pdf"}, body["attributes"])
	assert.Equal(t, map[string]any{"type": "auto"}, body["chunking_strategy"])
}

func TestService_AddFile_UnknownFilename(t *testing.T) {
	f, s := newFakeOpenAI(t)
	f.fileLookupFails = true

	_, err := s.AddFile(context.Background(), AddFileRequest{VectorStoreID: "vs_123", FileID: "file-xyz"})
	require.NoError(t, err)

	body := f.get("add_file").body
	assert.Equal(t, map[string]any{"filename": UnknownFilename}, body["attributes"])
	_, hasChunking := body["chunking_strategy"]
	assert.False(t, hasChunking)
}

func TestService_AddFile_Validation(t *testing.T) {
	_, s := newFakeOpenAI(t)

	_, err := s.AddFile(context.Background(), AddFileRequest{FileID: "file-xyz"})
	assert.Error(t, err)
	_, err = s.AddFile(context.Background(), AddFileRequest{VectorStoreID: "vs_123"})
	assert.Error(t, err)
}

func TestService_ListFiles(t *testing.T) {
	tests := []struct {
		name       string
		params     ListFilesParams
		wantLimit  string
		wantOrder  string
		wantFilter string
	}{
		{name: "defaults", wantLimit: "20", wantOrder: "desc"},
		{name: "ascending", params: ListFilesParams{Limit: 5, Order: "asc"}, wantLimit: "5", wantOrder: "asc"},
		{name: "limit capped", params: ListFilesParams{Limit: 1000}, wantLimit: "100", wantOrder: "desc"},
		{name: "valid filter", params: ListFilesParams{Filter: "failed"}, wantLimit: "20", wantOrder: "desc", wantFilter: "failed"},
		{name: "unknown filter ignored", params: ListFilesParams{Filter: "deleted"}, wantLimit: "20", wantOrder: "desc"},
		{name: "unknown order", params: ListFilesParams{Order: "random"}, wantLimit: "20", wantOrder: "desc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, s := newFakeOpenAI(t)

			list, err := s.ListFiles(context.Background(), "vs_123", tt.params)
			require.NoError(t, err)
			require.Len(t, list.Data, 1)
			assert.Equal(t, "file-1", *list.FirstID)

			q := f.get("list_files").query
			assert.Equal(t, tt.wantLimit, q["limit"][0])
			assert.Equal(t, tt.wantOrder, q["order"][0])
			if tt.wantFilter == "" {
				assert.NotContains(t, q, "filter")
			} else {
				assert.Equal(t, tt.wantFilter, q["filter"][0])
			}
		})
	}
}

func TestService_ListFiles_UpstreamError(t *testing.T) {
	f, s := newFakeOpenAI(t)
	f.fail = http.StatusBadGateway

	_, err := s.ListFiles(context.Background(), "vs_123", ListFilesParams{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
}

func TestService_RemoveFile(t *testing.T) {
	f, s := newFakeOpenAI(t)

	deleted, err := s.RemoveFile(context.Background(), "vs_123", "file-xyz")
	require.NoError(t, err)
	assert.Equal(t, &DeletedFile{ID: "file-xyz", Object: "vector_store.file.deleted", Deleted: true}, deleted)
	assert.Equal(t, http.MethodDelete, f.get("remove_file").method)

	_, err = s.RemoveFile(context.Background(), "", "file-xyz")
	assert.Error(t, err)
}

func TestValidFileFilter(t *testing.T) {
	for _, f := range []string{"in_progress", "completed", "failed", "cancelled"} {
		assert.True(t, ValidFileFilter(f), f)
	}
	assert.False(t, ValidFileFilter(""))
	assert.False(t, ValidFileFilter("COMPLETED"))
}
