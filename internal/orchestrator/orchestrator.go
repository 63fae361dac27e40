// Package orchestrator keeps one session's facility list, recommendation and
// route consistent with its latest inputs.
//
// Every change to the inputs starts a new generation. The facility fetch,
// selection and route fetch of a generation run in order on their own
// goroutine, and each result is applied only if its generation is still the
// current one. Stale calls are allowed to finish; their results are dropped.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mr1hm/go-saferoute/internal/models"
)

type FacilityDirectory interface {
	FetchNearby(ctx context.Context, origin models.Coordinate, radiusMeters int) []models.Facility
}

type FacilitySelector interface {
	SelectBest(ctx context.Context, disasterType string, assessment models.DisasterAssessment, facilities []models.Facility) *models.FacilityRecommendation
	DemoMode() bool
}

type RouteFetcher interface {
	FetchRoute(ctx context.Context, origin, destination models.Coordinate, profile models.Profile) models.RoutePath
}

// Assessor resolves a hazard assessment for a location when the caller did
// not supply one.
type Assessor interface {
	Assessment(ctx context.Context, at models.Coordinate, hazard string) (models.DisasterAssessment, error)
}

type Publisher interface {
	Publish(*models.Snapshot)
}

type Dependencies struct {
	Directory FacilityDirectory
	Selector  FacilitySelector
	Router    RouteFetcher
	Assessor  Assessor // optional
	Publisher Publisher
	// OnSettled is called with every settled snapshot. Optional.
	OnSettled func(*models.Snapshot)
}

type Options struct {
	RadiusMeters int
	Profile      models.Profile
}

var (
	ErrClosed          = errors.New("session closed")
	ErrInvalidLocation = errors.New("invalid location")
	ErrUnknownHazard   = errors.New("unknown disaster type")
)

type inputs struct {
	location     *models.Location
	disasterType string
	assessment   *models.DisasterAssessment // nil: resolve through the Assessor
}

type Orchestrator struct {
	id   string
	deps Dependencies
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	closed         bool
	generation     uint64
	state          models.State
	in             inputs
	assessment     *models.DisasterAssessment
	facilities     []models.Facility
	recommendation *models.FacilityRecommendation
	route          models.RoutePath
	updatedAt      time.Time
	lastActive     time.Time
}

func New(id string, deps Dependencies, opts Options) *Orchestrator {
	if opts.Profile == "" {
		opts.Profile = models.ProfileDriving
	}
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &Orchestrator{
		id:         id,
		deps:       deps,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		state:      models.StateIdle,
		route:      emptyRoute(opts.Profile),
		updatedAt:  now,
		lastActive: now,
	}
}

func (o *Orchestrator) ID() string {
	return o.id
}

// SetLocation replaces the selected location.
func (o *Orchestrator) SetLocation(loc models.Location) error {
	if !loc.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidLocation, loc.Coordinate)
	}
	return o.update(func(in *inputs) {
		in.location = &loc
	})
}

func (o *Orchestrator) ClearLocation() error {
	return o.update(func(in *inputs) {
		in.location = nil
	})
}

// SetDisaster selects the hazard. A nil assessment is resolved for the
// current location through the configured Assessor on every generation.
func (o *Orchestrator) SetDisaster(disasterType string, assessment *models.DisasterAssessment) error {
	if !models.IsHazardType(disasterType) {
		return fmt.Errorf("%w: %q", ErrUnknownHazard, disasterType)
	}
	var a *models.DisasterAssessment
	if assessment != nil {
		c := *assessment
		c.Recommendations = append([]string(nil), assessment.Recommendations...)
		a = &c
	}
	return o.update(func(in *inputs) {
		in.disasterType = disasterType
		in.assessment = a
	})
}

func (o *Orchestrator) ClearDisaster() error {
	return o.update(func(in *inputs) {
		in.disasterType = ""
		in.assessment = nil
	})
}

// Refresh re-runs the whole chain for unchanged inputs.
func (o *Orchestrator) Refresh() error {
	return o.update(func(*inputs) {})
}

func (o *Orchestrator) update(change func(*inputs)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	change(&o.in)
	o.lastActive = time.Now()
	o.restartLocked()
	return nil
}

// restartLocked starts a new generation and drops all derived state.
func (o *Orchestrator) restartLocked() {
	o.generation++
	o.facilities = nil
	o.recommendation = nil
	o.route = emptyRoute(o.opts.Profile)
	o.assessment = o.in.assessment

	if o.in.location == nil || o.in.disasterType == "" {
		o.state = models.StateIdle
		o.publishLocked()
		return
	}

	o.state = models.StateFacilitiesPending
	o.publishLocked()

	gen := o.generation
	in := o.in
	o.wg.Add(1)
	go o.run(gen, in)
}

func (o *Orchestrator) run(gen uint64, in inputs) {
	defer o.wg.Done()

	ctx := o.ctx
	origin := in.location.Coordinate
	log := slog.With("session_id", o.id, "generation", gen)

	facilities, assessment := o.gather(ctx, log, origin, in)
	ok := o.apply(gen, func() {
		o.facilities = facilities
		o.assessment = &assessment
		o.state = models.StateFacilitiesReady
	})
	if !ok {
		log.Debug("discarding stale facility list")
		return
	}

	if len(facilities) == 0 {
		o.apply(gen, func() { o.state = models.StateSettled })
		return
	}
	if !o.apply(gen, func() { o.state = models.StateSelectionPending }) {
		return
	}

	rec := o.deps.Selector.SelectBest(ctx, in.disasterType, assessment, facilities)
	var target models.Facility
	found := false
	if rec != nil {
		target, found = models.FindFacility(facilities, rec.FacilityID)
	}
	ok = o.apply(gen, func() {
		o.recommendation = rec
		if found {
			o.state = models.StateRoutePending
		} else {
			o.state = models.StateSettled
		}
	})
	if !ok {
		log.Debug("discarding stale recommendation")
		return
	}
	if !found {
		return
	}

	route := o.deps.Router.FetchRoute(ctx, origin, target.Location, o.opts.Profile)
	if route.Points == nil {
		route.Points = []models.Coordinate{}
	}
	ok = o.apply(gen, func() {
		o.route = route
		o.state = models.StateSettled
	})
	if !ok {
		log.Debug("discarding stale route")
	}
}

// gather fetches the facility list and, when needed, the assessment at the
// same time. Neither call fails: errors degrade to an empty list and an
// empty assessment.
func (o *Orchestrator) gather(ctx context.Context, log *slog.Logger, origin models.Coordinate, in inputs) ([]models.Facility, models.DisasterAssessment) {
	var (
		facilities []models.Facility
		assessment models.DisasterAssessment
	)
	if in.assessment != nil {
		assessment = *in.assessment
	}

	var g errgroup.Group
	g.Go(func() error {
		facilities = o.deps.Directory.FetchNearby(ctx, origin, o.opts.RadiusMeters)
		return nil
	})
	if in.assessment == nil && o.deps.Assessor != nil {
		g.Go(func() error {
			a, err := o.deps.Assessor.Assessment(ctx, origin, in.disasterType)
			if err != nil {
				log.Warn("assessment lookup failed, selecting without it", "disaster_type", in.disasterType, "error", err)
				return nil
			}
			assessment = a
			return nil
		})
	}
	_ = g.Wait()

	if facilities == nil {
		facilities = []models.Facility{}
	}
	return facilities, assessment
}

// apply runs fn under the lock and publishes the result, unless gen has been
// superseded or the session is closed.
func (o *Orchestrator) apply(gen uint64, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || gen != o.generation {
		return false
	}
	fn()
	snap := o.publishLocked()

	if o.state == models.StateSettled && o.deps.OnSettled != nil {
		o.deps.OnSettled(snap)
	}
	return true
}

func (o *Orchestrator) publishLocked() *models.Snapshot {
	o.updatedAt = time.Now()
	snap := o.snapshotLocked()
	if o.deps.Publisher != nil {
		o.deps.Publisher.Publish(snap)
	}
	return snap
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() *models.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() *models.Snapshot {
	s := &models.Snapshot{
		SessionID:      o.id,
		Generation:     o.generation,
		State:          o.state,
		Location:       o.in.location,
		DisasterType:   o.in.disasterType,
		Assessment:     o.assessment,
		Facilities:     o.facilities,
		Recommendation: o.recommendation,
		Route:          o.route,
		DemoMode:       o.deps.Selector != nil && o.deps.Selector.DemoMode(),
		UpdatedAt:      o.updatedAt,
	}
	if s.Facilities == nil {
		s.Facilities = []models.Facility{}
	}
	if len(o.facilities) > 0 && o.facilities[0].DistanceMeters != nil {
		s.ClosestFacilityID = o.facilities[0].ID
	}
	return s.Clone()
}

// LastActive is the time of the last input change.
func (o *Orchestrator) LastActive() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastActive
}

func (o *Orchestrator) touch() {
	o.mu.Lock()
	o.lastActive = time.Now()
	o.mu.Unlock()
}

// Wait blocks until every in-flight step has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close stops publishing and waits for in-flight steps to return.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.generation++
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}

func emptyRoute(p models.Profile) models.RoutePath {
	return models.RoutePath{Profile: p, Points: []models.Coordinate{}}
}
