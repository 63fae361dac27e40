package repository

import (
	"context"
	"time"

	"github.com/mr1hm/go-saferoute/internal/models"
)

type Filter struct {
	SessionID    string
	DisasterType string
	Source       models.RecommendationSource
	Since        *time.Time
	Limit        int
	Offset       int
}

type SelectionRepository interface {
	AddSelection(ctx context.Context, s *models.Selection) error
	ListSelections(ctx context.Context, opts Filter) ([]models.Selection, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
}
