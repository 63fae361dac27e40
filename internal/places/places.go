// Package places turns the places service's raw map elements into a ranked
// list of nearby emergency facilities.
package places

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/mr1hm/go-saferoute/internal/geo"
	"github.com/mr1hm/go-saferoute/internal/models"
)

// MaxResults is the upper bound on the number of facilities returned.
const MaxResults = 20

type Directory struct {
	baseURL    string
	client     *http.Client
	maxResults int
	validate   *validator.Validate
	group      singleflight.Group
}

func NewDirectory(baseURL string, timeout time.Duration, maxResults int) *Directory {
	if maxResults <= 0 || maxResults > MaxResults {
		maxResults = MaxResults
	}
	return &Directory{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: timeout},
		maxResults: maxResults,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// FetchNearby returns the facilities around origin, nearest first. Any
// failure is logged and yields an empty list.
func (d *Directory) FetchNearby(ctx context.Context, origin models.Coordinate, radiusMeters int) []models.Facility {
	facilities, err := d.Lookup(ctx, origin, radiusMeters)
	if err != nil {
		slog.Warn("facility lookup failed, continuing with no facilities",
			"origin", origin.String(), "radius", radiusMeters, "error", err)
		return []models.Facility{}
	}
	return facilities
}

// Lookup is FetchNearby with the error exposed. Concurrent calls for the
// same origin and radius share a single request.
func (d *Directory) Lookup(ctx context.Context, origin models.Coordinate, radiusMeters int) ([]models.Facility, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("invalid origin %s", origin)
	}
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("invalid radius: %d", radiusMeters)
	}

	// The shared request is detached from every caller and bounded by the
	// client timeout. Each caller waits on its own ctx.
	key := fmt.Sprintf("%s|%d", origin, radiusMeters)
	shared := context.WithoutCancel(ctx)
	ch := d.group.DoChan(key, func() (any, error) {
		elements, err := d.fetch(shared, origin, radiusMeters)
		if err != nil {
			return nil, err
		}
		return d.normalize(origin, elements), nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", models.ErrNetwork, ctx.Err())
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// Shared result, hand each caller its own slice.
	facilities := res.Val.([]models.Facility)
	out := make([]models.Facility, len(facilities))
	copy(out, facilities)
	return out, nil
}

func (d *Directory) fetch(ctx context.Context, origin models.Coordinate, radiusMeters int) ([]element, error) {
	body, err := json.Marshal(searchRequest{Latitude: origin.Latitude, Longitude: origin.Longitude})
	if err != nil {
		return nil, fmt.Errorf("error encoding request: %w", err)
	}

	endpoint := d.baseURL + "/buildings-emergency?" + url.Values{"radius": {strconv.Itoa(radiusMeters)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error while doing request: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: unexpected status code: %d - %s", models.ErrNetwork, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: error decoding resp.Body: %v", models.ErrSchema, err)
	}
	if err := d.validate.Struct(data); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: %v", models.ErrSchema, verrs)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrSchema, err)
	}

	return data.Data.Elements, nil
}

func (d *Directory) normalize(origin models.Coordinate, elements []element) []models.Facility {
	facilities := make([]models.Facility, 0, len(elements))
	seen := make(map[string]int, len(elements))
	for _, el := range elements {
		f, ok := el.toFacility()
		if !ok {
			continue
		}
		if n := seen[f.ID]; n > 0 {
			if el.ID != nil {
				// Same map element listed twice.
				continue
			}
			seen[f.ID] = n + 1
			f.ID = fmt.Sprintf("%s#%d", f.ID, n+1)
		} else {
			seen[f.ID] = 1
		}
		dist := geo.DistanceMeters(origin, f.Location)
		f.DistanceMeters = &dist
		facilities = append(facilities, f)
	}

	sort.SliceStable(facilities, func(i, j int) bool {
		return *facilities[i].DistanceMeters < *facilities[j].DistanceMeters
	})

	if len(facilities) > d.maxResults {
		facilities = facilities[:d.maxResults]
	}
	return facilities
}
