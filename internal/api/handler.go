package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/mr1hm/go-saferoute/internal/directions"
	internalgrpc "github.com/mr1hm/go-saferoute/internal/grpc"
	"github.com/mr1hm/go-saferoute/internal/models"
	"github.com/mr1hm/go-saferoute/internal/orchestrator"
	"github.com/mr1hm/go-saferoute/internal/repository"
)

type Predictor interface {
	Predict(ctx context.Context, at models.Coordinate) (*models.Prediction, error)
}

type FacilityFinder interface {
	Lookup(ctx context.Context, origin models.Coordinate, radiusMeters int) ([]models.Facility, error)
}

type Recommender interface {
	SelectBest(ctx context.Context, disasterType string, assessment models.DisasterAssessment, facilities []models.Facility) *models.FacilityRecommendation
	DemoMode() bool
}

type Router interface {
	Route(ctx context.Context, origin, destination models.Coordinate, profile models.Profile) (models.RoutePath, error)
	Distances(ctx context.Context, origin models.Coordinate, destinations []models.Coordinate, profile models.Profile) []directions.Leg
}

type Sessions interface {
	Create() (*orchestrator.Orchestrator, error)
	Get(id string) (*orchestrator.Orchestrator, bool)
	Delete(id string) bool
}

type Dependencies struct {
	Predictor   Predictor
	Facilities  FacilityFinder
	Recommender Recommender
	Router      Router
	Sessions    Sessions
	History     repository.SelectionRepository
	Broadcaster *internalgrpc.Broadcaster
}

type Options struct {
	RadiusMeters int
	Profile      models.Profile
}

type Handler struct {
	deps     Dependencies
	opts     Options
	validate *validator.Validate
}

func NewHandler(deps Dependencies, opts Options) *Handler {
	if opts.Profile == "" {
		opts.Profile = models.ProfileDriving
	}
	return &Handler{
		deps:     deps,
		opts:     opts,
		validate: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.POST("/predict", h.predict)
	api.GET("/facilities", h.facilities)
	api.POST("/recommend", h.recommend)
	api.POST("/route", h.route)
	api.POST("/distances", h.distances)
	api.GET("/history", h.history)

	s := api.Group("/sessions")
	s.POST("", h.createSession)
	s.GET("/:id", h.getSession)
	s.DELETE("/:id", h.deleteSession)
	s.PUT("/:id/location", h.setLocation)
	s.DELETE("/:id/location", h.clearLocation)
	s.PUT("/:id/disaster", h.setDisaster)
	s.DELETE("/:id/disaster", h.clearDisaster)
	s.POST("/:id/refresh", h.refresh)
	s.GET("/:id/events", h.events)
	s.GET("/:id/geojson", h.sessionGeoJSON)
	s.GET("/:id/history", h.sessionHistory)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"demo_mode": h.deps.Recommender != nil && h.deps.Recommender.DemoMode(),
	})
}

type coordinateRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
}

func (r coordinateRequest) coordinate() models.Coordinate {
	return models.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

func (h *Handler) predict(c *gin.Context) {
	var req coordinateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	prediction, err := h.deps.Predictor.Predict(c.Request.Context(), req.coordinate())
	if err != nil {
		upstreamError(c, "prediction failed", err)
		return
	}
	c.JSON(http.StatusOK, prediction)
}

type facilitiesQuery struct {
	Latitude  *float64 `form:"lat" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `form:"lon" binding:"required,gte=-180,lte=180"`
	Radius    int      `form:"radius" binding:"omitempty,gt=0,lte=50000"`
}

func (h *Handler) facilities(c *gin.Context) {
	var q facilitiesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	radius := q.Radius
	if radius == 0 {
		radius = h.opts.RadiusMeters
	}

	origin := models.Coordinate{Latitude: *q.Latitude, Longitude: *q.Longitude}
	facilities, err := h.deps.Facilities.Lookup(c.Request.Context(), origin, radius)
	if err != nil {
		upstreamError(c, "facility search failed", err)
		return
	}

	resp := gin.H{
		"facilities": facilities,
		"count":      len(facilities),
	}
	if len(facilities) > 0 && facilities[0].DistanceMeters != nil {
		resp["closest_facility_id"] = facilities[0].ID
	}
	c.JSON(http.StatusOK, resp)
}

type recommendRequest struct {
	DisasterType string                     `json:"disaster_type" binding:"required"`
	Assessment   *models.DisasterAssessment `json:"assessment"`
	Facilities   []models.Facility          `json:"facilities" binding:"max=20"`
}

func (h *Handler) recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !models.IsHazardType(req.DisasterType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown disaster type: " + req.DisasterType})
		return
	}
	var assessment models.DisasterAssessment
	if req.Assessment != nil {
		if err := h.validate.Struct(req.Assessment); err != nil {
			badRequest(c, err)
			return
		}
		assessment = *req.Assessment
	}

	rec := h.deps.Recommender.SelectBest(c.Request.Context(), req.DisasterType, assessment, req.Facilities)
	c.JSON(http.StatusOK, gin.H{
		"recommendation": rec,
		"demo_mode":      h.deps.Recommender.DemoMode(),
	})
}

type routeRequest struct {
	From    coordinateRequest `json:"from"`
	To      coordinateRequest `json:"to"`
	Profile string            `json:"profile"`
}

func (h *Handler) route(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	profile, ok := h.profile(c, req.Profile)
	if !ok {
		return
	}

	path, err := h.deps.Router.Route(c.Request.Context(), req.From.coordinate(), req.To.coordinate(), profile)
	if err != nil {
		upstreamError(c, "routing failed", err)
		return
	}
	c.JSON(http.StatusOK, path)
}

type distancesRequest struct {
	Origin       coordinateRequest   `json:"origin"`
	Destinations []coordinateRequest `json:"destinations" binding:"required,min=1,max=50,dive"`
	Profile      string              `json:"profile"`
}

func (h *Handler) distances(c *gin.Context) {
	var req distancesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	profile, ok := h.profile(c, req.Profile)
	if !ok {
		return
	}

	dests := make([]models.Coordinate, len(req.Destinations))
	for i, d := range req.Destinations {
		dests[i] = d.coordinate()
	}
	legs := h.deps.Router.Distances(c.Request.Context(), req.Origin.coordinate(), dests, profile)
	c.JSON(http.StatusOK, gin.H{"legs": legs})
}

func (h *Handler) history(c *gin.Context) {
	filter := repository.Filter{
		Limit: 20,
	}

	if t := c.Query("disaster_type"); t != "" {
		filter.DisasterType = t
	}
	if s := c.Query("source"); s != "" {
		filter.Source = models.RecommendationSource(s)
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off >= 0 {
			filter.Offset = off
		}
	}

	h.listHistory(c, filter)
}

func (h *Handler) listHistory(c *gin.Context, filter repository.Filter) {
	selections, err := h.deps.History.ListSelections(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch history",
		})
		return
	}
	if selections == nil {
		selections = []models.Selection{}
	}
	c.JSON(http.StatusOK, gin.H{"selections": selections})
}

func (h *Handler) profile(c *gin.Context, s string) (models.Profile, bool) {
	if s == "" {
		return h.opts.Profile, true
	}
	p, err := models.ParseProfile(s)
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return p, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// upstreamError maps failures of the backing services to a response.
func upstreamError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrNetwork), errors.Is(err, models.ErrSchema):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": msg, "detail": err.Error()})
}
