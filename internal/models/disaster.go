package models

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Hazard types reported by the prediction service.
const (
	HazardFloods      = "floods"
	HazardCyclone     = "cyclone"
	HazardEarthquakes = "earthquakes"
	HazardDroughts    = "droughts"
	HazardLandslides  = "landslides"
)

var HazardTypes = []string{HazardFloods, HazardCyclone, HazardEarthquakes, HazardDroughts, HazardLandslides}

func IsHazardType(s string) bool {
	for _, h := range HazardTypes {
		if h == s {
			return true
		}
	}
	return false
}

// DisasterAssessment is the prediction for a single hazard type.
// Immutable once received.
type DisasterAssessment struct {
	Probability     float64   `json:"probability" validate:"gte=0,lte=1"`
	RiskLevel       RiskLevel `json:"risk_level" validate:"oneof=low medium high"`
	Recommendations []string  `json:"recommendations"`
	Analysis        string    `json:"analysis"`
}

// Conclusion is the prediction service's overall summary across hazards.
type Conclusion struct {
	OverallProbability float64   `json:"overall_probability"`
	OverallRiskLevel   RiskLevel `json:"overall_risk_level"`
	PrimaryThreats     []string  `json:"primary_threats"`
	Recommendations    []string  `json:"recommendations"`
	Analysis           string    `json:"analysis"`
}

type Prediction struct {
	Location     Coordinate                    `json:"location"`
	Assessments  map[string]DisasterAssessment `json:"assessments"`
	Conclusion   *Conclusion                   `json:"conclusion,omitempty"`
	LocationInfo map[string]any                `json:"location_info,omitempty"`
}
