package models

import "time"

type State string

const (
	StateIdle              State = "idle"
	StateFacilitiesPending State = "facilities_pending"
	StateFacilitiesReady   State = "facilities_ready"
	StateSelectionPending  State = "selection_pending"
	StateRoutePending      State = "route_pending"
	StateSettled           State = "settled"
)

// Loading reports whether a network step is in flight for the snapshot's
// generation.
func (s State) Loading() bool {
	switch s {
	case StateFacilitiesPending, StateSelectionPending, StateRoutePending:
		return true
	}
	return false
}

var stateRank = map[State]int{
	StateIdle:              0,
	StateFacilitiesPending: 1,
	StateFacilitiesReady:   2,
	StateSelectionPending:  3,
	StateRoutePending:      4,
	StateSettled:           5,
}

// Snapshot is a read-only copy of a session's selection state. Everything
// in it belongs to one generation of inputs.
type Snapshot struct {
	SessionID         string                  `json:"session_id"`
	Generation        uint64                  `json:"generation"`
	State             State                   `json:"state"`
	Location          *Location               `json:"location,omitempty"`
	DisasterType      string                  `json:"disaster_type,omitempty"`
	Assessment        *DisasterAssessment     `json:"assessment,omitempty"`
	Facilities        []Facility              `json:"facilities"`
	ClosestFacilityID string                  `json:"closest_facility_id,omitempty"`
	Recommendation    *FacilityRecommendation `json:"recommendation,omitempty"`
	Route             RoutePath               `json:"route"`
	DemoMode          bool                    `json:"demo_mode"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// Clone returns a deep copy so readers never share memory with the writer.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Location != nil {
		loc := *s.Location
		c.Location = &loc
	}
	if s.Assessment != nil {
		a := *s.Assessment
		a.Recommendations = append([]string(nil), s.Assessment.Recommendations...)
		c.Assessment = &a
	}
	c.Facilities = cloneFacilities(s.Facilities)
	c.Recommendation = s.Recommendation.clone()
	c.Route = s.Route.clone()
	return &c
}

// Follows reports whether s is newer than a snapshot seen at (gen, state).
// Within a generation states only move forward.
func (s *Snapshot) Follows(gen uint64, state State) bool {
	if s.Generation != gen {
		return s.Generation > gen
	}
	return stateRank[s.State] > stateRank[state]
}
