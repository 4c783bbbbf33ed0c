package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "updateSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/session",
		Summary:     "Hand over the shell's session token",
		Description: "Verifies the access token and switches the agent's identity. An empty token signs out.",
		Tags:        []string{"Session"},
	}, s.handleUpdateSession)
}

// SessionRequest carries the shell's current access token.
type SessionRequest struct {
	Token string `json:"token" doc:"PASETO access token, empty to sign out"`
}

// SessionInput wraps the session request for Huma.
type SessionInput struct {
	Body SessionRequest
}

// SessionResponse reports the identity the agent now reconciles under.
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
}

// SessionOutput wraps the session response for Huma.
type SessionOutput struct {
	Body SessionResponse
}

func (s *Server) handleUpdateSession(_ context.Context, input *SessionInput) (*SessionOutput, error) {
	if input.Body.Token == "" {
		s.sessions.Clear()
		return &SessionOutput{Body: SessionResponse{Authenticated: false}}, nil
	}

	if err := s.sessions.SetToken(input.Body.Token); err != nil {
		return nil, apiError(err)
	}

	user := s.sessions.CurrentUser()
	return &SessionOutput{
		Body: SessionResponse{
			Authenticated: true,
			UserID:        user.ID,
			Email:         user.Email,
		},
	}, nil
}
