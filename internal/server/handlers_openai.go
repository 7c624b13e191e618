package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/teemow/recircuit/internal/api"
	"github.com/teemow/recircuit/internal/openai"
)

const defaultFilePurpose = "assistants"

// openAIReady rejects the request when no API key is configured.
func (s *Server) openAIReady(w http.ResponseWriter, r *http.Request, message string) bool {
	if s.cfg.OpenAI == nil || !s.cfg.OpenAI.Configured() {
		api.WriteError(w, r, api.ErrInternal(message).Wrap(errors.New("OpenAI API key is not configured")))
		return false
	}
	return true
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	const failed = "Failed to upload file"

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+multipartSlack)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.WriteError(w, r, api.NewError(http.StatusRequestEntityTooLarge, "File too large"))
			return
		}
		api.WriteError(w, r, api.ErrBadRequest("No file provided"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.WriteError(w, r, api.ErrBadRequest("No file provided"))
		return
	}
	defer file.Close()
	if header.Size > MaxUploadBytes {
		api.WriteError(w, r, api.NewError(http.StatusRequestEntityTooLarge, "File too large"))
		return
	}

	purpose := r.FormValue("purpose")
	if purpose == "" {
		purpose = defaultFilePurpose
	}

	if !s.openAIReady(w, r, failed) {
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		api.WriteError(w, r, api.ErrInternal(failed).Wrap(err))
		return
	}

	uploaded, err := s.cfg.OpenAI.UploadFile(r.Context(), header.Filename, data, purpose)
	if err != nil {
		api.WriteError(w, r, api.ErrInternal(failed).Wrap(err))
		return
	}
	api.WriteJSON(w, http.StatusOK, uploaded)
}

func (s *Server) handleFileDetails(w http.ResponseWriter, r *http.Request) {
	const failed = "Failed to get file details"

	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		api.WriteError(w, r, api.ErrBadRequest("fileId is required"))
		return
	}
	if !s.openAIReady(w, r, failed) {
		return
	}

	file, err := s.cfg.OpenAI.FileDetails(r.Context(), fileID)
	if err != nil {
		api.WriteError(w, r, api.ErrInternal(failed).Wrap(err))
		return
	}
	api.WriteJSON(w, http.StatusOK, file)
}

type createVectorStoreRequest struct {
	Name         string               `json:"name"`
	ExpiresAfter *openai.ExpiresAfter `json:"expires_after"`
}

func (s *Server) handleCreateVectorStore(w http.ResponseWriter, r *http.Request) {
	const failed = "Failed to create vector store"

	var req createVectorStoreRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if !s.openAIReady(w, r, failed) {
		return
	}

	vs, err := s.cfg.OpenAI.CreateVectorStore(r.Context(), req.Name, req.ExpiresAfter)
	if err != nil {
		api.WriteError(w, r, api.ErrInternal(failed).Wrap(err))
		return
	}
	api.WriteJSON(w, http.StatusOK, vs)
}

type vectorStoreFileRequest struct {
	FileID           string          `json:"fileId"`
	VectorStoreID    string          `json:"vectorStoreId"`
	Attributes       map[string]any  `json:"attributes"`
	ChunkingStrategy json.RawMessage `json:"chunkingStrategy"`
}

func (s *Server) handleAddFile(w http.ResponseWriter, r *http.Request) {
	const failed = "Failed to add file to vector store"

	var req vectorStoreFileRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if req.FileID == "" || req.VectorStoreID == "" {
		api.WriteError(w, r, api.ErrBadRequest("fileId and vectorStoreId are required"))
		return
	}
	if !s.openAIReady(w, r, failed) {
		return
	}

	file, err := s.cfg.OpenAI.AddFile(r.Context(), openai.AddFileRequest{
		VectorStoreID:    req.VectorStoreID,
		FileID:           req.FileID,
		Attributes:       req.Attributes,
		ChunkingStrategy: req.ChunkingStrategy,
	})
	if err != nil {
		api.WriteError(w, r, api.ErrInternal(failed).Wrap(err))
		return
	}
	api.WriteJSON(w, http.StatusOK, file)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	const failed = "Failed to list vector store files"

	q := r.URL.Query()
	vectorStoreID := q.Get("vectorStoreId")
	if vectorStoreID == "" {
		api.WriteError(w, r, api.ErrBadRequest("vectorStoreId is required"))
		return
	}
	if !s.openAIReady(w, r, failed) {
		return
	}

	params := openai.ListFilesParams{
		Order:  q.Get("order"),
		Filter: q.Get("filter"),
		After:  q.Get("after"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		params.Limit = limit
	}

	list, err := s.cfg.OpenAI.ListFiles(r.Context(), vectorStoreID, params)
	if err != nil {
		api.WriteError(w, r, api.ErrInternal(failed).Wrap(err))
		return
	}
	api.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	const failed = "Failed to remove file from vector store"

	var req vectorStoreFileRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if req.FileID == "" || req.VectorStoreID == "" {
		api.WriteError(w, r, api.ErrBadRequest("fileId and vectorStoreId are required"))
		return
	}
	if !s.openAIReady(w, r, failed) {
		return
	}

	deleted, err := s.cfg.OpenAI.RemoveFile(r.Context(), req.VectorStoreID, req.FileID)
	if err != nil {
		api.WriteError(w, r, api.ErrInternal(failed).Wrap(err))
		return
	}
	api.WriteJSON(w, http.StatusOK, deleted)
}
