package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerVisibilityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "reportVisibility",
		Method:      http.MethodPost,
		Path:        "/api/v1/visibility",
		Summary:     "Report shell visibility",
		Description: "Tells the agent whether the shell window is visible. Level-up reveals wait for visibility.",
		Tags:        []string{"Visibility"},
	}, s.handleReportVisibility)
}

// VisibilityRequest reports the shell window state.
type VisibilityRequest struct {
	Visible bool `json:"visible"`
}

// VisibilityInput wraps the visibility request for Huma.
type VisibilityInput struct {
	Body VisibilityRequest
}

func (s *Server) handleReportVisibility(_ context.Context, input *VisibilityInput) (*struct{}, error) {
	s.tracker.Set(input.Body.Visible)
	return nil, nil
}
