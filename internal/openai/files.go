package openai

import (
	"context"
	"fmt"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/teemow/recircuit/internal/instrumentation"
)

// DefaultFilePurpose is used when an upload names no purpose.
const DefaultFilePurpose = "assistants"

// File is an uploaded file.
type File struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Bytes     int    `json:"bytes"`
	CreatedAt int64  `json:"created_at"`
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose"`
	Status    string `json:"status"`
}

func fileFromSDK(f sdk.File) *File {
	return &File{
		ID:        f.ID,
		Object:    f.Object,
		Bytes:     f.Bytes,
		CreatedAt: f.CreatedAt,
		Filename:  f.FileName,
		Purpose:   f.Purpose,
		Status:    f.Status,
	}
}

// UploadFile uploads data as a file named name.
func (s *Service) UploadFile(ctx context.Context, name string, data []byte, purpose string) (*File, error) {
	if name == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if purpose == "" {
		purpose = DefaultFilePurpose
	}

	var uploaded sdk.File
	err := s.observe(ctx, instrumentation.OperationUploadFile, func(ctx context.Context) error {
		var err error
		uploaded, err = s.sdk.CreateFileBytes(ctx, sdk.FileBytesRequest{
			Name:    name,
			Bytes:   data,
			Purpose: sdk.PurposeType(purpose),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	return fileFromSDK(uploaded), nil
}

// FileDetails returns the metadata of a file.
func (s *Service) FileDetails(ctx context.Context, fileID string) (*File, error) {
	if fileID == "" {
		return nil, fmt.Errorf("file ID is required")
	}

	var file sdk.File
	err := s.observe(ctx, instrumentation.OperationGetFile, func(ctx context.Context) error {
		var err error
		file, err = s.sdk.GetFile(ctx, fileID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get file details: %w", err)
	}
	return fileFromSDK(file), nil
}
