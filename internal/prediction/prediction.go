// Package prediction talks to the disaster prediction service.
package prediction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/mr1hm/go-saferoute/internal/models"
)

const conclusionKey = "conclusion"

type Client struct {
	baseURL  string
	client   *http.Client
	validate *validator.Validate
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type predictRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type predictResponse struct {
	Analysis       map[string]json.RawMessage `json:"analysis" validate:"required"`
	LocationInfo   map[string]any             `json:"location_info"`
	GeographicData map[string]any             `json:"geographic_data"`
}

type rawAssessment struct {
	Probability     *percent `json:"probability" validate:"required"`
	RiskLevel       string   `json:"risk_level" validate:"required"`
	Recommendations []string `json:"recommendations"`
	Analysis        string   `json:"analysis"`
}

type rawConclusion struct {
	Probability     *percent `json:"probability"`
	RiskLevel       string   `json:"risk_level"`
	PrimaryThreats  []string `json:"primary_threats"`
	Recommendations []string `json:"recommendations"`
	Analysis        string   `json:"analysis"`
}

// Predict returns the per-hazard assessments for a location. Probabilities
// are converted from percent to [0,1] and risk levels are folded into
// low/medium/high.
func (c *Client) Predict(ctx context.Context, at models.Coordinate) (*models.Prediction, error) {
	if !at.Valid() {
		return nil, fmt.Errorf("invalid location %s", at)
	}

	body, err := json.Marshal(predictRequest{Latitude: at.Latitude, Longitude: at.Longitude})
	if err != nil {
		return nil, fmt.Errorf("error encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict-disaster", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error while doing request: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: unexpected status code: %d - %s", models.ErrNetwork, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var data predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: error decoding resp.Body: %v", models.ErrSchema, err)
	}
	if err := c.validate.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSchema, err)
	}

	return c.convert(at, data)
}

// Assessment is Predict narrowed to one hazard type.
func (c *Client) Assessment(ctx context.Context, at models.Coordinate, hazard string) (models.DisasterAssessment, error) {
	p, err := c.Predict(ctx, at)
	if err != nil {
		return models.DisasterAssessment{}, err
	}
	a, ok := p.Assessments[hazard]
	if !ok {
		return models.DisasterAssessment{}, fmt.Errorf("%w: no assessment for %q", models.ErrNotFound, hazard)
	}
	return a, nil
}

func (c *Client) convert(at models.Coordinate, data predictResponse) (*models.Prediction, error) {
	p := &models.Prediction{
		Location:     at,
		Assessments:  make(map[string]models.DisasterAssessment, len(models.HazardTypes)),
		LocationInfo: data.LocationInfo,
	}

	for _, hazard := range models.HazardTypes {
		raw, ok := data.Analysis[hazard]
		if !ok {
			continue
		}
		var ra rawAssessment
		if err := json.Unmarshal(raw, &ra); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrSchema, hazard, err)
		}
		if err := c.validate.Struct(ra); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrSchema, hazard, err)
		}
		level, err := ParseRiskLevel(ra.RiskLevel)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrSchema, hazard, err)
		}
		p.Assessments[hazard] = models.DisasterAssessment{
			Probability:     ra.Probability.fraction(),
			RiskLevel:       level,
			Recommendations: nonNil(ra.Recommendations),
			Analysis:        ra.Analysis,
		}
	}
	if len(p.Assessments) == 0 {
		return nil, fmt.Errorf("%w: no hazard assessments in response", models.ErrSchema)
	}

	if raw, ok := data.Analysis[conclusionKey]; ok {
		var rc rawConclusion
		if err := json.Unmarshal(raw, &rc); err != nil {
			return nil, fmt.Errorf("%w: conclusion: %v", models.ErrSchema, err)
		}
		conclusion := &models.Conclusion{
			PrimaryThreats:  nonNil(rc.PrimaryThreats),
			Recommendations: nonNil(rc.Recommendations),
			Analysis:        rc.Analysis,
		}
		if rc.Probability != nil {
			conclusion.OverallProbability = rc.Probability.fraction()
		}
		if rc.RiskLevel != "" {
			var err error
			if conclusion.OverallRiskLevel, err = ParseRiskLevel(rc.RiskLevel); err != nil {
				return nil, fmt.Errorf("%w: conclusion: %v", models.ErrSchema, err)
			}
		}
		p.Conclusion = conclusion
	}

	return p, nil
}

// ParseRiskLevel folds the service's free-form levels into the three the
// selector understands.
func ParseRiskLevel(s string) (models.RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "very low":
		return models.RiskLow, nil
	case "medium", "moderate":
		return models.RiskMedium, nil
	case "high", "very high", "critical", "severe":
		return models.RiskHigh, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// percent is a probability expressed in percent. The service sometimes
// sends it as a string.
type percent float64

func (p *percent) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("probability %s: %w", b, err)
	}
	*p = percent(v)
	return nil
}

func (p percent) fraction() float64 {
	f := float64(p) / 100
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
