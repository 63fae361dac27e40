package models

type Priority string

const (
	PriorityHighest Priority = "highest"
	PriorityHigh    Priority = "high"
	PriorityMedium  Priority = "medium"
	PriorityLow     Priority = "low"
)

type RecommendationSource string

const (
	SourceReasoning RecommendationSource = "reasoning"
	SourceFallback  RecommendationSource = "fallback"
)

// FacilityRecommendation references a facility of the list it was produced
// from. It is replaced or dropped whenever that list changes, never patched.
type FacilityRecommendation struct {
	FacilityID   string               `json:"facility_id"`
	Score        int                  `json:"score"`
	Reasoning    string               `json:"reasoning"`
	Priority     Priority             `json:"priority"`
	Alternatives []string             `json:"alternatives,omitempty"`
	Source       RecommendationSource `json:"source"`
}

func (r *FacilityRecommendation) clone() *FacilityRecommendation {
	if r == nil {
		return nil
	}
	c := *r
	if r.Alternatives != nil {
		c.Alternatives = append([]string(nil), r.Alternatives...)
	}
	return &c
}
