package selector

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-saferoute/internal/models"
)

// fakeReasoner returns a canned reply and records the prompts it saw.
type fakeReasoner struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	system string
	user   string
}

func (f *fakeReasoner) Complete(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system, f.user = system, user
	return f.reply, f.err
}

func dist(m float64) *float64 { return &m }

var flood = models.DisasterAssessment{
	Probability:     0.72,
	RiskLevel:       models.RiskHigh,
	Recommendations: []string{"Move to higher ground", "Avoid flood water"},
	Analysis:        "Heavy monsoon rainfall upstream.",
}

func candidates() []models.Facility {
	return []models.Facility{
		{ID: "node/2", Name: "Apollo Pharmacy", Category: models.CategoryPharmacy, DistanceMeters: dist(100)},
		{ID: "node/1", Name: "Government Rajaji Hospital", Category: models.CategoryHospital, DistanceMeters: dist(300), Phone: "+91 452 2532535"},
		{ID: "way/9", Name: "City Clinic", Category: models.CategoryClinic, DistanceMeters: dist(150), Address: "5 North Street"},
	}
}

func TestSelectBest_Empty(t *testing.T) {
	r := &fakeReasoner{reply: `{}`}
	s := NewSelector(r)

	assert.Nil(t, s.SelectBest(context.Background(), "floods", flood, nil))
	assert.Nil(t, s.SelectBest(context.Background(), "floods", flood, []models.Facility{}))
	assert.Equal(t, 0, r.calls)
}

func TestSelectBest_DemoModePrefersHospital(t *testing.T) {
	s := NewSelector(nil)
	require.True(t, s.DemoMode())

	rec := s.SelectBest(context.Background(), "floods", flood, candidates())
	require.NotNil(t, rec)

	assert.Equal(t, "node/1", rec.FacilityID)
	assert.Equal(t, FallbackScore, rec.Score)
	assert.Equal(t, models.PriorityHigh, rec.Priority)
	assert.Equal(t, models.SourceFallback, rec.Source)
	assert.Equal(t, "Selected Government Rajaji Hospital as the closest hospital facility (0.30 km away).", rec.Reasoning)
}

func TestFallback_NoHospital(t *testing.T) {
	facilities := []models.Facility{
		{ID: "node/5", Name: "Far Pharmacy", Category: models.CategoryPharmacy, DistanceMeters: dist(900)},
		{ID: "node/6", Name: "Mystery Clinic", Category: models.CategoryClinic},
		{ID: "node/7", Name: "Near Clinic", Category: models.CategoryClinic, DistanceMeters: dist(400)},
	}

	rec := Fallback(facilities)
	require.NotNil(t, rec)
	assert.Equal(t, "node/7", rec.FacilityID)
	assert.Equal(t, models.PriorityMedium, rec.Priority)

	unknown := Fallback(facilities[1:2])
	assert.Equal(t, "Selected Mystery Clinic as the closest clinic facility (unknown distance away).", unknown.Reasoning)
}

func TestFallback_Deterministic(t *testing.T) {
	facilities := []models.Facility{
		{ID: "node/b", Name: "B", Category: models.CategoryHospital, DistanceMeters: dist(200)},
		{ID: "node/a", Name: "A", Category: models.CategoryHospital, DistanceMeters: dist(200)},
		{ID: "node/c", Name: "C", Category: models.CategoryPharmacy, DistanceMeters: dist(10)},
	}
	reversed := []models.Facility{facilities[2], facilities[1], facilities[0]}

	first := Fallback(facilities)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Fallback(facilities))
		assert.Equal(t, first, Fallback(reversed))
	}
	assert.Equal(t, "node/a", first.FacilityID)

	// Input must not be reordered.
	assert.Equal(t, "node/b", facilities[0].ID)
}

func TestSelectBest_FallbackAlwaysInInput(t *testing.T) {
	s := NewSelector(nil)
	categories := []models.Category{
		models.CategoryPharmacy, models.CategoryClinic, models.CategoryHospital, models.CategoryOther,
	}
	for n := 1; n <= 20; n++ {
		var facilities []models.Facility
		for i := 0; i < n; i++ {
			f := models.Facility{
				ID:       "node/" + strings.Repeat("x", i+1),
				Category: categories[(i*7+n)%len(categories)],
			}
			if i%3 != 0 {
				f.DistanceMeters = dist(float64((i * 131) % 997))
			}
			facilities = append(facilities, f)
		}

		rec := s.SelectBest(context.Background(), "cyclone", flood, facilities)
		require.NotNil(t, rec)
		_, ok := models.FindFacility(facilities, rec.FacilityID)
		assert.True(t, ok, "n=%d picked %s", n, rec.FacilityID)
	}
}

func TestSelectBest_ReasoningPath(t *testing.T) {
	r := &fakeReasoner{reply: "```json\n" + `{
		"recommendedFacility": "way/9",
		"score": 88.4,
		"reasoning": "Clinic is close and open.",
		"priority": "Highest",
		"alternativeFacilities": [
			{"buildingId": "node/1", "score": 80, "reasoning": "hospital"},
			{"buildingId": "node/404", "score": 10, "reasoning": "ghost"}
		]
	}` + "\n```"}
	s := NewSelector(r)

	rec := s.SelectBest(context.Background(), "floods", flood, candidates())
	require.NotNil(t, rec)

	assert.Equal(t, "way/9", rec.FacilityID)
	assert.Equal(t, 88, rec.Score)
	assert.Equal(t, models.PriorityHighest, rec.Priority)
	assert.Equal(t, models.SourceReasoning, rec.Source)
	assert.Equal(t, []string{"node/1"}, rec.Alternatives)
	assert.Equal(t, 1, r.calls)
}

func TestSelectBest_PromptContents(t *testing.T) {
	r := &fakeReasoner{reply: `{"recommendedFacility":"node/1","score":90,"reasoning":"ok","priority":"high"}`}
	NewSelector(r).SelectBest(context.Background(), "floods", flood, candidates())

	assert.Contains(t, r.system, "Respond ONLY with valid JSON")
	for _, want := range []string{
		"- Type: floods",
		"- Risk Level: high",
		"- Probability: 72%",
		"Move to higher ground, Avoid flood water",
		"1. ID: node/2",
		"Distance: 0.10 km",
		"Phone: +91 452 2532535",
		"Address: 5 North Street",
		"Address: Not provided",
	} {
		assert.Contains(t, r.user, want)
	}
}

func TestSelectBest_InvalidRepliesFallBack(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "unknown id", reply: `{"recommendedFacility":"node/404","score":90,"reasoning":"x","priority":"high"}`},
		{name: "not json", reply: "I recommend the hospital."},
		{name: "broken json", reply: `{"recommendedFacility": "node/2", "score": }`},
		{name: "score too high", reply: `{"recommendedFacility":"node/2","score":140,"reasoning":"x","priority":"high"}`},
		{name: "negative score", reply: `{"recommendedFacility":"node/2","score":-1,"reasoning":"x","priority":"high"}`},
		{name: "missing score", reply: `{"recommendedFacility":"node/2","reasoning":"x","priority":"high"}`},
		{name: "bad priority", reply: `{"recommendedFacility":"node/2","score":50,"reasoning":"x","priority":"urgent"}`},
		{name: "missing reasoning", reply: `{"recommendedFacility":"node/2","score":50,"priority":"low"}`},
		{name: "transport error", err: errors.New("connection reset")},
		{name: "timeout", err: context.DeadlineExceeded},
	}

	want := Fallback(candidates())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(&fakeReasoner{reply: tt.reply, err: tt.err})
			got := s.SelectBest(context.Background(), "floods", flood, candidates())
			assert.Equal(t, want, got)
		})
	}
}

func TestRecommend_Errors(t *testing.T) {
	_, err := NewSelector(nil).Recommend(context.Background(), "floods", flood, candidates())
	assert.ErrorIs(t, err, ErrNoReasoner)

	s := NewSelector(&fakeReasoner{reply: `{"recommendedFacility":"node/404","score":90,"reasoning":"x","priority":"high"}`})
	_, err = s.Recommend(context.Background(), "floods", flood, candidates())
	assert.ErrorIs(t, err, models.ErrNotFound)

	s = NewSelector(&fakeReasoner{reply: `nope`})
	_, err = s.Recommend(context.Background(), "floods", flood, candidates())
	assert.ErrorIs(t, err, models.ErrSchema)
}
