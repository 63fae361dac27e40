package models

import "time"

// Selection is one settled recommendation, kept as session history.
type Selection struct {
	ID             int64                `json:"id"`
	SessionID      string               `json:"session_id"`
	Generation     uint64               `json:"generation"`
	DisasterType   string               `json:"disaster_type"`
	Origin         Coordinate           `json:"origin"`
	FacilityID     string               `json:"facility_id"`
	FacilityName   string               `json:"facility_name"`
	Category       Category             `json:"category"`
	DistanceMeters *float64             `json:"distance_meters,omitempty"`
	Score          int                  `json:"score"`
	Priority       Priority             `json:"priority"`
	Source         RecommendationSource `json:"source"`
	Reasoning      string               `json:"reasoning"`
	RoutePoints    int                  `json:"route_points"`
	CreatedAt      time.Time            `json:"created_at"`
}

// SelectionFromSnapshot returns nil when the snapshot carries no
// recommendation.
func SelectionFromSnapshot(s *Snapshot) *Selection {
	if s == nil || s.Recommendation == nil || s.Location == nil {
		return nil
	}
	sel := &Selection{
		SessionID:    s.SessionID,
		Generation:   s.Generation,
		DisasterType: s.DisasterType,
		Origin:       s.Location.Coordinate,
		FacilityID:   s.Recommendation.FacilityID,
		Score:        s.Recommendation.Score,
		Priority:     s.Recommendation.Priority,
		Source:       s.Recommendation.Source,
		Reasoning:    s.Recommendation.Reasoning,
		RoutePoints:  len(s.Route.Points),
		CreatedAt:    time.Now(),
	}
	if f, ok := FindFacility(s.Facilities, sel.FacilityID); ok {
		sel.FacilityName = f.Name
		sel.Category = f.Category
		if d, ok := f.Distance(); ok {
			sel.DistanceMeters = &d
		}
	}
	return sel
}
