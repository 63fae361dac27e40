package directions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mr1hm/go-saferoute/internal/geo"
	"github.com/mr1hm/go-saferoute/internal/models"
)

// Leg is the travel cost from an origin to one destination.
type Leg struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	Estimated       bool    `json:"estimated"`
}

type matrixRequest struct {
	Locations    [][2]float64 `json:"locations"`
	Sources      []int        `json:"sources"`
	Destinations []int        `json:"destinations"`
	Metrics      []string     `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// Distances returns road distances from origin to each destination in a
// single matrix request. Destinations the service cannot reach, or all of
// them when the request fails, get a straight-line estimate instead.
func (f *Fetcher) Distances(ctx context.Context, origin models.Coordinate, destinations []models.Coordinate, profile models.Profile) []Leg {
	legs := make([]Leg, len(destinations))
	if len(destinations) == 0 {
		return legs
	}

	distances, durations, err := f.matrix(ctx, origin, destinations, profile)
	if err != nil {
		slog.Warn("distance matrix failed, using straight-line estimates",
			"destinations", len(destinations), "profile", profile, "error", err)
	}

	for i, dest := range destinations {
		if err == nil && distances[i] != nil && durations[i] != nil {
			legs[i] = Leg{DistanceMeters: *distances[i], DurationSeconds: *durations[i]}
			continue
		}
		d := geo.DistanceMeters(origin, dest)
		legs[i] = Leg{DistanceMeters: d, DurationSeconds: EstimateDuration(d, profile), Estimated: true}
	}
	return legs
}

func (f *Fetcher) matrix(ctx context.Context, origin models.Coordinate, destinations []models.Coordinate, profile models.Profile) ([]*float64, []*float64, error) {
	name, ok := serviceProfiles[profile]
	if !ok {
		return nil, nil, fmt.Errorf("unknown routing profile: %q", profile)
	}

	req := matrixRequest{
		Locations:    [][2]float64{{origin.Longitude, origin.Latitude}},
		Sources:      []int{0},
		Destinations: make([]int, 0, len(destinations)),
		Metrics:      []string{"distance", "duration"},
	}
	for i, d := range destinations {
		req.Locations = append(req.Locations, [2]float64{d.Longitude, d.Latitude})
		req.Destinations = append(req.Destinations, i+1)
	}

	var data matrixResponse
	if err := f.post(ctx, "/matrix/"+name, req, &data); err != nil {
		return nil, nil, err
	}
	if len(data.Distances) == 0 || len(data.Durations) == 0 ||
		len(data.Distances[0]) != len(destinations) || len(data.Durations[0]) != len(destinations) {
		return nil, nil, fmt.Errorf("%w: matrix shape does not match %d destinations", models.ErrSchema, len(destinations))
	}
	return data.Distances[0], data.Durations[0], nil
}
