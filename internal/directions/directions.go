// Package directions fetches road routes from an OpenRouteService-style
// directions API.
package directions

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/mr1hm/go-saferoute/internal/models"
)

const DefaultBaseURL = "https://api.openrouteservice.org/v2"

var serviceProfiles = map[models.Profile]string{
	models.ProfileDriving: "driving-car",
	models.ProfileWalking: "foot-walking",
	models.ProfileCycling: "cycling-regular",
}

// straight-line travel speeds in m/s used when the service has no answer
var estimateSpeeds = map[models.Profile]float64{
	models.ProfileDriving: 13.89,
	models.ProfileWalking: 1.39,
	models.ProfileCycling: 4.17,
}

type Fetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewFetcher(baseURL, apiKey string, timeout time.Duration) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Fetcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchRoute never fails: any error is logged and an empty path returned.
func (f *Fetcher) FetchRoute(ctx context.Context, origin, destination models.Coordinate, profile models.Profile) models.RoutePath {
	route, err := f.Route(ctx, origin, destination, profile)
	if err != nil {
		slog.Warn("route fetch failed, continuing without route",
			"origin", origin.String(), "destination", destination.String(), "profile", profile, "error", err)
		return models.RoutePath{Profile: profile, Points: []models.Coordinate{}}
	}
	return route
}

type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
	Format      string       `json:"format"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Geometry json.RawMessage `json:"geometry"`
	} `json:"routes"`
}

// Route returns the decoded route geometry in (lat, lng) order, origin
// first.
func (f *Fetcher) Route(ctx context.Context, origin, destination models.Coordinate, profile models.Profile) (models.RoutePath, error) {
	name, ok := serviceProfiles[profile]
	if !ok {
		return models.RoutePath{}, fmt.Errorf("unknown routing profile: %q", profile)
	}

	var data directionsResponse
	err := f.post(ctx, "/directions/"+name, directionsRequest{
		Coordinates: [][2]float64{
			{origin.Longitude, origin.Latitude},
			{destination.Longitude, destination.Latitude},
		},
		Format: "json",
	}, &data)
	if err != nil {
		return models.RoutePath{}, err
	}

	if len(data.Routes) == 0 {
		return models.RoutePath{}, fmt.Errorf("%w: no routes in response", models.ErrSchema)
	}
	r := data.Routes[0]

	points, err := decodeGeometry(r.Geometry)
	if err != nil {
		return models.RoutePath{}, err
	}

	return models.RoutePath{
		Profile:         profile,
		Points:          points,
		DistanceMeters:  r.Summary.Distance,
		DurationSeconds: r.Summary.Duration,
	}, nil
}

// EstimateDuration returns the straight-line travel time in seconds.
func EstimateDuration(distanceMeters float64, profile models.Profile) float64 {
	speed, ok := estimateSpeeds[profile]
	if !ok {
		speed = estimateSpeeds[models.ProfileDriving]
	}
	return distanceMeters / speed
}

func (f *Fetcher) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: error while doing request: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: unexpected status code: %d - %s", models.ErrNetwork, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: error decoding resp.Body: %v", models.ErrSchema, err)
	}
	return nil
}
