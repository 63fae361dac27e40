// Package geo holds the distance math used to rank facilities.
package geo

import (
	"github.com/jftuga/geodist"

	"github.com/mr1hm/go-saferoute/internal/models"
)

// EarthRadiusMeters is the mean Earth radius the haversine distance is
// based on.
const EarthRadiusMeters = 6_371_000

// DistanceMeters returns the great-circle distance between a and b using
// the haversine formula on a sphere of EarthRadiusMeters.
func DistanceMeters(a, b models.Coordinate) float64 {
	_, km := geodist.HaversineDistance(toCoord(a), toCoord(b))
	return km * 1000
}

// Centroid returns the midpoint of a bounding box. Longitudes are averaged
// across the antimeridian when the box wraps.
func Centroid(minLat, minLon, maxLat, maxLon float64) models.Coordinate {
	lon := (minLon + maxLon) / 2
	if minLon > maxLon {
		lon += 180
		if lon > 180 {
			lon -= 360
		}
	}
	return models.Coordinate{
		Latitude:  (minLat + maxLat) / 2,
		Longitude: lon,
	}
}

func toCoord(c models.Coordinate) geodist.Coord {
	return geodist.Coord{Lat: c.Latitude, Lon: c.Longitude}
}
