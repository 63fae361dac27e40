package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-saferoute/internal/models"
	"github.com/mr1hm/go-saferoute/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockSelectionRepo struct {
	mu      sync.Mutex
	added   []*models.Selection
	failFor string
}

func (m *mockSelectionRepo) AddSelection(ctx context.Context, s *models.Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.SessionID == m.failFor {
		return errors.New("disk full")
	}
	m.added = append(m.added, s)
	return nil
}

func (m *mockSelectionRepo) ListSelections(ctx context.Context, opts repository.Filter) ([]models.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Selection, 0, len(m.added))
	for _, s := range m.added {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockSelectionRepo) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}

func (m *mockSelectionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.added)
}

func settled(session string, gen uint64) *models.Snapshot {
	d := 250.0
	return &models.Snapshot{
		SessionID:    session,
		Generation:   gen,
		State:        models.StateSettled,
		Location:     &models.Location{Coordinate: models.Coordinate{Latitude: 9.9, Longitude: 78.1}},
		DisasterType: models.HazardFloods,
		Facilities: []models.Facility{
			{ID: "node/1", Name: "City Hospital", Category: models.CategoryHospital, DistanceMeters: &d},
		},
		Recommendation: &models.FacilityRecommendation{
			FacilityID: "node/1",
			Score:      80,
			Priority:   models.PriorityHigh,
			Source:     models.SourceFallback,
		},
		Route: models.RoutePath{Points: []models.Coordinate{{}, {}}},
	}
}

func TestRecorder_RecordsSettledSnapshots(t *testing.T) {
	repo := &mockSelectionRepo{}
	r := NewRecorder(repo, 2, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	for i := uint64(1); i <= 5; i++ {
		if !r.Record(settled("s1", i)) {
			t.Fatalf("Record %d was rejected", i)
		}
	}
	r.Stop()

	if repo.count() != 5 {
		t.Fatalf("expected 5 selections, got %d", repo.count())
	}
	got, _ := repo.ListSelections(ctx, repository.Filter{})
	for _, s := range got {
		if s.FacilityName != "City Hospital" || s.RoutePoints != 2 {
			t.Errorf("unexpected selection %+v", s)
		}
		if s.DistanceMeters == nil || *s.DistanceMeters != 250 {
			t.Errorf("expected distance 250, got %v", s.DistanceMeters)
		}
	}
}

func TestRecorder_IgnoresSnapshotsWithoutRecommendation(t *testing.T) {
	repo := &mockSelectionRepo{}
	r := NewRecorder(repo, 1, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	s := settled("s1", 1)
	s.Recommendation = nil
	if r.Record(s) {
		t.Error("expected snapshot without recommendation to be ignored")
	}
	if r.Record(nil) {
		t.Error("expected nil snapshot to be ignored")
	}
	r.Stop()

	if repo.count() != 0 {
		t.Errorf("expected nothing recorded, got %d", repo.count())
	}
}

func TestRecorder_RepositoryErrorDoesNotStopWorkers(t *testing.T) {
	repo := &mockSelectionRepo{failFor: "broken"}
	r := NewRecorder(repo, 1, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	r.Record(settled("broken", 1))
	r.Record(settled("ok", 1))
	r.Stop()

	if repo.count() != 1 {
		t.Errorf("expected 1 selection, got %d", repo.count())
	}
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	repo := &mockSelectionRepo{}
	r := NewRecorder(repo, 1, 1)

	// Not started: the single buffer slot fills up.
	if !r.Record(settled("s1", 1)) {
		t.Fatal("expected first record to be queued")
	}
	if r.Record(settled("s1", 2)) {
		t.Error("expected second record to be dropped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for repo.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	r.Stop()

	if repo.count() != 1 {
		t.Errorf("expected 1 selection, got %d", repo.count())
	}
}

func TestRecorder_RecordAfterStop(t *testing.T) {
	r := NewRecorder(&mockSelectionRepo{}, 1, 10)
	r.Start(context.Background())
	r.Stop()

	if r.Record(settled("s1", 1)) {
		t.Error("expected Record after Stop to fail")
	}
}
