package models

import "fmt"

type Profile string

const (
	ProfileDriving Profile = "driving"
	ProfileWalking Profile = "walking"
	ProfileCycling Profile = "cycling"
)

func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileDriving, ProfileWalking, ProfileCycling:
		return Profile(s), nil
	case "":
		return ProfileDriving, nil
	}
	return "", fmt.Errorf("unknown routing profile: %q", s)
}

// RoutePath is an ordered polyline from an origin to a facility. An empty
// path means the route could not be computed.
type RoutePath struct {
	Profile         Profile      `json:"profile,omitempty"`
	Points          []Coordinate `json:"points"`
	DistanceMeters  float64      `json:"distance_meters,omitempty"`
	DurationSeconds float64      `json:"duration_seconds,omitempty"`
}

func (r RoutePath) Empty() bool {
	return len(r.Points) == 0
}

func (r RoutePath) clone() RoutePath {
	c := r
	if r.Points != nil {
		c.Points = append([]Coordinate(nil), r.Points...)
	}
	return c
}
