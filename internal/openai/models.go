package openai

import (
	"context"
	"net/http"

	"github.com/teemow/recircuit/internal/instrumentation"
)

// ConnectivityResult reports whether the API answered a models listing.
type ConnectivityResult struct {
	Status int    `json:"status,omitempty"`
	OK     bool   `json:"ok"`
	Models int    `json:"models,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CheckConnectivity lists the available models.
func (s *Service) CheckConnectivity(ctx context.Context) ConnectivityResult {
	var count int
	err := s.observe(ctx, instrumentation.OperationListModels, func(ctx context.Context) error {
		list, err := s.sdk.ListModels(ctx)
		if err != nil {
			return err
		}
		count = len(list.Models)
		return nil
	})
	if err != nil {
		if status := StatusCode(err); status != 0 {
			return ConnectivityResult{Status: status, OK: false}
		}
		return ConnectivityResult{Error: err.Error()}
	}
	return ConnectivityResult{Status: http.StatusOK, OK: true, Models: count}
}
