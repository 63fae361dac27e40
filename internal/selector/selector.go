// Package selector picks the recommended facility for a disaster scenario.
//
// The reasoning service is asked first. Any failure on that path, including
// a reply naming a facility that is not in the candidate list, falls back to
// a deterministic rule: hospitals first, then the nearest.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/mr1hm/go-saferoute/internal/models"
	"github.com/mr1hm/go-saferoute/internal/reasoning"
)

// FallbackScore is the score given to heuristic picks.
const FallbackScore = 75

var ErrNoReasoner = errors.New("reasoning service not configured")

type Reasoner interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Selector struct {
	reasoner Reasoner
	validate *validator.Validate
}

// NewSelector returns a selector backed by r. A nil r runs in demo mode and
// only ever uses the fallback rule.
func NewSelector(r Reasoner) *Selector {
	return &Selector{
		reasoner: r,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Selector) DemoMode() bool {
	return s.reasoner == nil
}

// SelectBest returns nil only when facilities is empty.
func (s *Selector) SelectBest(ctx context.Context, disasterType string, assessment models.DisasterAssessment, facilities []models.Facility) *models.FacilityRecommendation {
	if len(facilities) == 0 {
		return nil
	}

	rec, err := s.Recommend(ctx, disasterType, assessment, facilities)
	if err != nil {
		if !errors.Is(err, ErrNoReasoner) {
			slog.Warn("reasoning selection failed, using fallback",
				"disaster_type", disasterType, "facilities", len(facilities), "error", err)
		}
		return Fallback(facilities)
	}
	return rec
}

// Recommend runs the reasoning path only and reports why it failed.
func (s *Selector) Recommend(ctx context.Context, disasterType string, assessment models.DisasterAssessment, facilities []models.Facility) (*models.FacilityRecommendation, error) {
	if s.reasoner == nil {
		return nil, ErrNoReasoner
	}
	if len(facilities) == 0 {
		return nil, fmt.Errorf("%w: no candidate facilities", models.ErrNotFound)
	}

	raw, err := s.reasoner.Complete(ctx, systemPrompt, buildPrompt(disasterType, assessment, facilities))
	if err != nil {
		return nil, fmt.Errorf("reasoning call: %w", err)
	}
	return s.parse(raw, facilities)
}

type reply struct {
	RecommendedFacility   string        `json:"recommendedFacility" validate:"required"`
	Score                 *float64      `json:"score" validate:"required,min=0,max=100"`
	Reasoning             string        `json:"reasoning" validate:"required"`
	Priority              string        `json:"priority" validate:"required,oneof=highest high medium low"`
	AlternativeFacilities []alternative `json:"alternativeFacilities"`
}

type alternative struct {
	BuildingID string  `json:"buildingId"`
	Score      float64 `json:"score"`
	Reasoning  string  `json:"reasoning"`
}

func (s *Selector) parse(raw string, facilities []models.Facility) (*models.FacilityRecommendation, error) {
	body := reasoning.ExtractJSON(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: reply contains no JSON object", models.ErrSchema)
	}

	var r reply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSchema, err)
	}
	r.Priority = strings.ToLower(strings.TrimSpace(r.Priority))
	if err := s.validate.Struct(r); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSchema, err)
	}

	if _, ok := models.FindFacility(facilities, r.RecommendedFacility); !ok {
		return nil, fmt.Errorf("%w: recommended facility %q", models.ErrNotFound, r.RecommendedFacility)
	}

	rec := &models.FacilityRecommendation{
		FacilityID: r.RecommendedFacility,
		Score:      int(math.Round(*r.Score)),
		Reasoning:  r.Reasoning,
		Priority:   models.Priority(r.Priority),
		Source:     models.SourceReasoning,
	}
	for _, alt := range r.AlternativeFacilities {
		if alt.BuildingID == rec.FacilityID {
			continue
		}
		if _, ok := models.FindFacility(facilities, alt.BuildingID); ok {
			rec.Alternatives = append(rec.Alternatives, alt.BuildingID)
		}
	}
	return rec, nil
}

// Fallback picks hospitals before anything else, then the nearest facility.
// Unknown distances sort last and ties break on id, so the result depends
// only on the input set.
func Fallback(facilities []models.Facility) *models.FacilityRecommendation {
	if len(facilities) == 0 {
		return nil
	}

	sorted := make([]models.Facility, len(facilities))
	copy(sorted, facilities)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ah, bh := a.Category == models.CategoryHospital, b.Category == models.CategoryHospital; ah != bh {
			return ah
		}
		if da, db := distanceOrInf(a), distanceOrInf(b); da != db {
			return da < db
		}
		return a.ID < b.ID
	})

	best := sorted[0]
	priority := models.PriorityMedium
	if best.Category == models.CategoryHospital {
		priority = models.PriorityHigh
	}

	return &models.FacilityRecommendation{
		FacilityID: best.ID,
		Score:      FallbackScore,
		Reasoning: fmt.Sprintf("Selected %s as the closest %s facility (%s away).",
			best.Name, best.Category, formatDistance(best, "unknown distance")),
		Priority: priority,
		Source:   models.SourceFallback,
	}
}

func distanceOrInf(f models.Facility) float64 {
	if d, ok := f.Distance(); ok {
		return d
	}
	return math.Inf(1)
}
