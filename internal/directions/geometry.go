package directions

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/twpayne/go-polyline"

	"github.com/mr1hm/go-saferoute/internal/models"
)

type lineString struct {
	Coordinates [][]float64 `json:"coordinates"`
}

// decodeGeometry accepts either an encoded polyline string or a GeoJSON-like
// object with [lng, lat] pairs.
func decodeGeometry(raw []byte) ([]models.Coordinate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: missing geometry", models.ErrSchema)
	}

	var points []models.Coordinate
	switch raw[0] {
	case '"':
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("%w: geometry string: %v", models.ErrSchema, err)
		}
		coords, rest, err := polyline.DecodeCoords([]byte(encoded))
		if err != nil {
			return nil, fmt.Errorf("%w: decode polyline: %v", models.ErrSchema, err)
		}
		if len(rest) > 0 {
			return nil, fmt.Errorf("%w: %d trailing polyline bytes", models.ErrSchema, len(rest))
		}
		points = make([]models.Coordinate, 0, len(coords))
		for _, c := range coords {
			points = append(points, models.Coordinate{Latitude: c[0], Longitude: c[1]})
		}

	case '{':
		var ls lineString
		if err := json.Unmarshal(raw, &ls); err != nil {
			return nil, fmt.Errorf("%w: geometry object: %v", models.ErrSchema, err)
		}
		points = make([]models.Coordinate, 0, len(ls.Coordinates))
		for i, c := range ls.Coordinates {
			if len(c) < 2 {
				return nil, fmt.Errorf("%w: coordinate %d has %d values", models.ErrSchema, i, len(c))
			}
			points = append(points, models.Coordinate{Latitude: c[1], Longitude: c[0]})
		}

	default:
		return nil, fmt.Errorf("%w: unsupported geometry %q", models.ErrSchema, raw[:1])
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: empty geometry", models.ErrSchema)
	}
	for i, p := range points {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: point %d out of range: %s", models.ErrSchema, i, p)
		}
	}
	return points, nil
}
