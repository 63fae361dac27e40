package places

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mr1hm/go-saferoute/internal/geo"
	"github.com/mr1hm/go-saferoute/internal/models"
)

type searchRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchResponse struct {
	Data *searchData `json:"data" validate:"required"`
}

type searchData struct {
	Elements []element `json:"elements" validate:"required"`
}

type element struct {
	Type   string   `json:"type"`
	ID     *int64   `json:"id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Center *point   `json:"center"`
	Bounds *bounds  `json:"bounds"`
	Tags   tags     `json:"tags"`
}

// tags holds raw element tags. Values are usually strings but the service
// passes through numbers and booleans too.
type tags map[string]any

func (t tags) get(key string) string {
	switch v := t[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

type point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type bounds struct {
	MinLat float64 `json:"minlat"`
	MinLon float64 `json:"minlon"`
	MaxLat float64 `json:"maxlat"`
	MaxLon float64 `json:"maxlon"`
}

var amenityCategories = map[string]models.Category{
	"hospital":  models.CategoryHospital,
	"clinic":    models.CategoryClinic,
	"doctors":   models.CategoryClinic,
	"pharmacy":  models.CategoryPharmacy,
	"emergency": models.CategoryOther,
}

// coordinate resolves the element position: explicit point first, then the
// precomputed center, then the bounding box centroid.
func (e element) coordinate() (models.Coordinate, bool) {
	var c models.Coordinate
	switch {
	case e.Lat != nil && e.Lon != nil:
		c = models.Coordinate{Latitude: *e.Lat, Longitude: *e.Lon}
	case e.Center != nil:
		c = models.Coordinate{Latitude: e.Center.Lat, Longitude: e.Center.Lon}
	case e.Bounds != nil:
		c = geo.Centroid(e.Bounds.MinLat, e.Bounds.MinLon, e.Bounds.MaxLat, e.Bounds.MaxLon)
	default:
		return c, false
	}
	return c, c.Valid()
}

func (e element) toFacility() (models.Facility, bool) {
	category, ok := amenityCategories[strings.ToLower(e.Tags.get("amenity"))]
	if !ok {
		return models.Facility{}, false
	}
	loc, ok := e.coordinate()
	if !ok {
		return models.Facility{}, false
	}

	elemType := e.Type
	if elemType == "" {
		elemType = "element"
	}
	id := elemType + "/" + loc.String()
	if e.ID != nil {
		id = elemType + "/" + strconv.FormatInt(*e.ID, 10)
	}

	name := strings.TrimSpace(e.Tags.get("name"))
	if name == "" {
		name = fmt.Sprintf("Unnamed %s", category)
	}

	address := e.Tags.get("addr:full")
	if address == "" {
		address = e.Tags.get("addr:street")
	}

	return models.Facility{
		ID:       id,
		Name:     name,
		Category: category,
		Location: loc,
		Address:  address,
		Phone:    e.Tags.get("phone"),
	}, true
}
