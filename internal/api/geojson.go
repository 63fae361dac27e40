package api

import (
	"github.com/mr1hm/go-saferoute/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry holds a position for points and a list of positions for lines.
// Positions are [longitude, latitude].
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// toGeoJSON renders a snapshot as the origin, one point per facility and the
// route line when there is one.
func toGeoJSON(s *models.Snapshot) FeatureCollection {
	features := make([]Feature, 0, len(s.Facilities)+2)

	if s.Location != nil {
		features = append(features, Feature{
			Type:     "Feature",
			Geometry: point(s.Location.Coordinate),
			Properties: map[string]any{
				"kind":    "origin",
				"address": s.Location.Address,
			},
		})
	}

	recommended := ""
	if s.Recommendation != nil {
		recommended = s.Recommendation.FacilityID
	}

	for _, f := range s.Facilities {
		props := map[string]any{
			"kind":        "facility",
			"id":          f.ID,
			"name":        f.Name,
			"category":    f.Category,
			"closest":     f.ID == s.ClosestFacilityID,
			"recommended": f.ID == recommended,
		}
		if d, ok := f.Distance(); ok {
			props["distance_meters"] = d
		}
		if f.Address != "" {
			props["address"] = f.Address
		}
		if f.Phone != "" {
			props["phone"] = f.Phone
		}
		features = append(features, Feature{
			Type:       "Feature",
			Geometry:   point(f.Location),
			Properties: props,
		})
	}

	if len(s.Route.Points) >= 2 {
		line := make([][]float64, len(s.Route.Points))
		for i, p := range s.Route.Points {
			line[i] = []float64{p.Longitude, p.Latitude}
		}
		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "LineString",
				Coordinates: line,
			},
			Properties: map[string]any{
				"kind":             "route",
				"profile":          s.Route.Profile,
				"distance_meters":  s.Route.DistanceMeters,
				"duration_seconds": s.Route.DurationSeconds,
			},
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}

func point(c models.Coordinate) Geometry {
	return Geometry{
		Type:        "Point",
		Coordinates: []float64{c.Longitude, c.Latitude},
	}
}
