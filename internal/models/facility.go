package models

type Category string

const (
	CategoryHospital         Category = "hospital"
	CategoryClinic           Category = "clinic"
	CategoryPharmacy         Category = "pharmacy"
	CategoryFireStation      Category = "fire_station"
	CategoryPoliceStation    Category = "police_station"
	CategoryEmergencyShelter Category = "emergency_shelter"
	CategoryOther            Category = "other"
)

// Facility is an emergency-relevant building near a query origin.
// DistanceMeters is computed once against the origin of the fetch that
// produced it and is nil when the origin was unknown.
type Facility struct {
	ID             string     `json:"id"` // "<element type>/<element id>", e.g. "node/123"
	Name           string     `json:"name"`
	Category       Category   `json:"category"`
	Location       Coordinate `json:"location"`
	Address        string     `json:"address,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	DistanceMeters *float64   `json:"distance_meters,omitempty"`
}

// Distance returns the distance to the facility, or ok=false when unknown.
func (f Facility) Distance() (meters float64, ok bool) {
	if f.DistanceMeters == nil {
		return 0, false
	}
	return *f.DistanceMeters, true
}

func FindFacility(facilities []Facility, id string) (Facility, bool) {
	for _, f := range facilities {
		if f.ID == id {
			return f, true
		}
	}
	return Facility{}, false
}

func cloneFacilities(in []Facility) []Facility {
	if in == nil {
		return nil
	}
	out := make([]Facility, len(in))
	for i, f := range in {
		out[i] = f
		if f.DistanceMeters != nil {
			d := *f.DistanceMeters
			out[i].DistanceMeters = &d
		}
	}
	return out
}
