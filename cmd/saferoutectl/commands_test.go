package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-saferoute/internal/config"
	"github.com/mr1hm/go-saferoute/internal/models"
)

func TestParseCoordinate(t *testing.T) {
	c, err := parseCoordinate("9.9177, 78.1125")
	require.NoError(t, err)
	assert.Equal(t, models.Coordinate{Latitude: 9.9177, Longitude: 78.1125}, c)

	for _, in := range []string{"", "9.9", "a,b", "9.9,78.1,3", "91,0", "0,181"} {
		_, err := parseCoordinate(in)
		assert.Error(t, err, in)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, models.Coordinate{Latitude: 1, Longitude: 2}))
	assert.JSONEq(t, `{"latitude":1,"longitude":2}`, buf.String())
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

// backend serves the places and prediction endpoints; routing is left
// unreachable so the route degrades to empty.
func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/buildings-emergency", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"elements":[
			{"type":"node","id":1,"lat":9.9186,"lon":78.1125,"tags":{"amenity":"pharmacy","name":"Corner Pharmacy"}},
			{"type":"node","id":2,"lat":9.9204,"lon":78.1125,"tags":{"amenity":"hospital","name":"Government Hospital"}}
		]}}`))
	})
	mux.HandleFunc("/predict-disaster", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"analysis":{"floods":{"probability":70,"risk_level":"High","recommendations":["move uphill"],"analysis":"heavy rain"}}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) *config.Config {
	return &config.Config{
		Services: config.ServicesConfig{
			PredictionURL:    url,
			PlacesURL:        url,
			DirectionsURL:    "http://127.0.0.1:1",
			HTTPTimeout:      2 * time.Second,
			ReasoningTimeout: 2 * time.Second,
		},
		Search: config.SearchConfig{
			RadiusMeters:  1500,
			MaxFacilities: 20,
			Profile:       models.ProfileDriving,
		},
	}
}

func TestRunOnce(t *testing.T) {
	srv := backend(t)

	snap, err := runOnce(context.Background(), testConfig(srv.URL),
		models.Location{Coordinate: models.Coordinate{Latitude: 9.9177, Longitude: 78.1125}}, models.HazardFloods)
	require.NoError(t, err)

	assert.Equal(t, models.StateSettled, snap.State)
	assert.Len(t, snap.Facilities, 2)
	assert.Equal(t, "node/1", snap.ClosestFacilityID)
	require.NotNil(t, snap.Recommendation)
	assert.Equal(t, "node/2", snap.Recommendation.FacilityID)
	assert.True(t, snap.DemoMode)
	require.NotNil(t, snap.Assessment)
	assert.InDelta(t, 0.7, snap.Assessment.Probability, 1e-9)
	assert.True(t, snap.Route.Empty())
}

func TestRunOnce_UnknownDisaster(t *testing.T) {
	_, err := runOnce(context.Background(), testConfig("http://127.0.0.1:1"),
		models.Location{Coordinate: models.Coordinate{Latitude: 1, Longitude: 1}}, "meteor")
	assert.Error(t, err)
}

func TestNearbyCommand(t *testing.T) {
	srv := backend(t)
	cfg := testConfig(srv.URL)

	cmd := nearbyCmd(&cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--lat", "9.9177", "--lon", "78.1125"})
	require.NoError(t, cmd.Execute())

	var facilities []models.Facility
	require.NoError(t, json.Unmarshal(out.Bytes(), &facilities))
	require.Len(t, facilities, 2)
	assert.Equal(t, "node/1", facilities[0].ID)
}
