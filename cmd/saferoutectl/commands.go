package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-saferoute/internal/config"
	"github.com/mr1hm/go-saferoute/internal/directions"
	"github.com/mr1hm/go-saferoute/internal/models"
	"github.com/mr1hm/go-saferoute/internal/orchestrator"
	"github.com/mr1hm/go-saferoute/internal/places"
	"github.com/mr1hm/go-saferoute/internal/prediction"
	"github.com/mr1hm/go-saferoute/internal/reasoning"
	"github.com/mr1hm/go-saferoute/internal/selector"
)

func nearbyCmd(cfg **config.Config) *cobra.Command {
	var (
		lat, lon float64
		radius   int
	)

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List emergency facilities around a location, closest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *cfg
			origin, err := coordinate(lat, lon)
			if err != nil {
				return err
			}
			if radius <= 0 {
				radius = c.Search.RadiusMeters
			}

			directory := places.NewDirectory(c.Services.PlacesURL, c.Services.HTTPTimeout, c.Search.MaxFacilities)
			facilities, err := directory.Lookup(cmd.Context(), origin, radius)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), facilities)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().IntVarP(&radius, "radius", "r", 0, "search radius in meters (default from config)")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	return cmd
}

func routeCmd(cfg **config.Config) *cobra.Command {
	var from, to, profile string

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Compute a route between two points",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *cfg
			origin, err := parseCoordinate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			dest, err := parseCoordinate(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			p := c.Search.Profile
			if profile != "" {
				if p, err = models.ParseProfile(profile); err != nil {
					return err
				}
			}

			fetcher := directions.NewFetcher(c.Services.DirectionsURL, c.Services.DirectionsAPIKey, c.Services.HTTPTimeout)
			path, err := fetcher.Route(cmd.Context(), origin, dest, p)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), path)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "origin as lat,lon")
	cmd.Flags().StringVar(&to, "to", "", "destination as lat,lon")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "driving, walking or cycling")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func predictCmd(cfg **config.Config) *cobra.Command {
	var lat, lon float64

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Fetch hazard assessments for a location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *cfg
			at, err := coordinate(lat, lon)
			if err != nil {
				return err
			}

			client := prediction.NewClient(c.Services.PredictionURL, c.Services.HTTPTimeout)
			p, err := client.Predict(cmd.Context(), at)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	return cmd
}

func recommendCmd(cfg **config.Config) *cobra.Command {
	var (
		lat, lon float64
		disaster string
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Run the full pipeline once and print the settled result",
		Long: "Looks up the hazard assessment and nearby facilities, picks the best " +
			"facility for the disaster type and routes to it.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *cfg
			at, err := coordinate(lat, lon)
			if err != nil {
				return err
			}

			snap, err := runOnce(cmd.Context(), c, models.Location{Coordinate: at}, disaster)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().StringVarP(&disaster, "disaster", "d", "", "one of "+strings.Join(models.HazardTypes, ", "))
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	cmd.MarkFlagRequired("disaster")
	return cmd
}

// runOnce drives a single throwaway session until it settles.
func runOnce(ctx context.Context, c *config.Config, loc models.Location, disaster string) (*models.Snapshot, error) {
	var reasoner selector.Reasoner
	if !c.DemoMode() {
		reasoner = reasoning.NewClient(c.Services.ReasoningURL, c.Services.ReasoningAPIKey,
			reasoning.WithModel(c.Services.ReasoningModel),
			reasoning.WithTimeout(c.Services.ReasoningTimeout),
		)
	}

	o := orchestrator.New("cli", orchestrator.Dependencies{
		Directory: places.NewDirectory(c.Services.PlacesURL, c.Services.HTTPTimeout, c.Search.MaxFacilities),
		Selector:  selector.NewSelector(reasoner),
		Router:    directions.NewFetcher(c.Services.DirectionsURL, c.Services.DirectionsAPIKey, c.Services.HTTPTimeout),
		Assessor:  prediction.NewClient(c.Services.PredictionURL, c.Services.HTTPTimeout),
	}, orchestrator.Options{
		RadiusMeters: c.Search.RadiusMeters,
		Profile:      c.Search.Profile,
	})
	defer o.Close()

	if err := o.SetDisaster(disaster, nil); err != nil {
		return nil, err
	}
	if err := o.SetLocation(loc); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		o.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return o.Snapshot(), nil
}

func coordinate(lat, lon float64) (models.Coordinate, error) {
	c := models.Coordinate{Latitude: lat, Longitude: lon}
	if !c.Valid() {
		return c, fmt.Errorf("invalid coordinate %s", c)
	}
	return c, nil
}

// parseCoordinate reads "lat,lon".
func parseCoordinate(s string) (models.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Coordinate{}, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("bad latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("bad longitude: %w", err)
	}
	return coordinate(lat, lon)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
