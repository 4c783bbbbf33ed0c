package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/readmarkapp/readmark-agent/internal/engine"
)

func (s *Server) registerRankRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getRank",
		Method:      http.MethodGet,
		Path:        "/api/v1/rank",
		Summary:     "Current rank state",
		Description: "Returns the reconciled rank, weekly progress, and any pending level-up reveal",
		Tags:        []string{"Rank"},
	}, s.handleGetRank)

	huma.Register(s.api, huma.Operation{
		OperationID: "incrementRank",
		Method:      http.MethodPost,
		Path:        "/api/v1/rank/increment",
		Summary:     "Record a daily read",
		Description: "Advances weekly progress by one if nothing was read today",
		Tags:        []string{"Rank"},
	}, s.handleIncrementRank)

	huma.Register(s.api, huma.Operation{
		OperationID: "confirmLevelUp",
		Method:      http.MethodPost,
		Path:        "/api/v1/rank/confirm",
		Summary:     "Acknowledge a level-up",
		Description: "Persists the revealed rank as the new comparison baseline",
		Tags:        []string{"Rank"},
	}, s.handleConfirmLevelUp)
}

// RankOutput wraps the engine output for Huma.
type RankOutput struct {
	Body engine.Output
}

func (s *Server) handleGetRank(_ context.Context, _ *struct{}) (*RankOutput, error) {
	return &RankOutput{Body: s.engine.Output()}, nil
}

func (s *Server) handleIncrementRank(ctx context.Context, _ *struct{}) (*RankOutput, error) {
	if err := s.engine.IncrementReadingRank(ctx); err != nil {
		return nil, apiError(err)
	}
	return &RankOutput{Body: s.engine.Output()}, nil
}

func (s *Server) handleConfirmLevelUp(ctx context.Context, _ *struct{}) (*RankOutput, error) {
	if err := s.engine.ConfirmLevelUp(ctx); err != nil {
		return nil, apiError(err)
	}
	return &RankOutput{Body: s.engine.Output()}, nil
}
