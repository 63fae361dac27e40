package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mr1hm/go-saferoute/internal/models"
)

// maxFacilities is the hard cap on facilities per search.
const maxFacilities = 20

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig
	Worker    WorkerConfig
	Services  ServicesConfig
	Search    SearchConfig
	Sessions  SessionsConfig
	RateLimit RateLimitConfig
	DB        DatabaseConfig
	Logging   LoggingConfig
}

type GRPCConfig struct {
	Port int
}

type ServerConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type ServicesConfig struct {
	PredictionURL    string
	PlacesURL        string
	DirectionsURL    string
	DirectionsAPIKey string
	ReasoningURL     string
	ReasoningAPIKey  string
	ReasoningModel   string
	ReasoningTimeout time.Duration
	HTTPTimeout      time.Duration
}

type SearchConfig struct {
	RadiusMeters  int
	MaxFacilities int
	Profile       models.Profile
}

type SessionsConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// DemoMode reports whether recommendations run without the reasoning service.
func (c *Config) DemoMode() bool {
	return c.Services.ReasoningAPIKey == ""
}

// Load reads configuration from the environment. When CONFIG_FILE names a
// YAML file, its keys provide defaults that environment variables override.
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	profile, err := models.ParseProfile(src.getEnv("ROUTING_PROFILE", string(models.ProfileDriving)))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: src.getEnv("SERVER_HOST", "localhost"),
			Port: src.getEnvInt("SERVER_PORT", 8080),
		},
		GRPC: GRPCConfig{
			Port: src.getEnvInt("GRPC_PORT", 50051),
		},
		Worker: WorkerConfig{
			Count:      src.getEnvInt("WORKER_COUNT", 2),
			BufferSize: src.getEnvInt("WORKER_BUFFER_SIZE", 100),
		},
		Services: ServicesConfig{
			PredictionURL:    src.getEnv("PREDICTION_URL", "http://localhost:8000"),
			PlacesURL:        src.getEnv("PLACES_URL", "http://localhost:8000"),
			DirectionsURL:    src.getEnv("DIRECTIONS_URL", "https://api.openrouteservice.org/v2"),
			DirectionsAPIKey: src.getEnv("DIRECTIONS_API_KEY", ""),
			ReasoningURL:     src.getEnv("REASONING_URL", "https://api.groq.com/openai/v1/chat/completions"),
			ReasoningAPIKey:  src.getEnv("REASONING_API_KEY", ""),
			ReasoningModel:   src.getEnv("REASONING_MODEL", "llama-3.3-70b-versatile"),
			ReasoningTimeout: src.getEnvDuration("REASONING_TIMEOUT", 20*time.Second),
			HTTPTimeout:      src.getEnvDuration("HTTP_TIMEOUT", 15*time.Second),
		},
		Search: SearchConfig{
			RadiusMeters:  src.getEnvInt("SEARCH_RADIUS_METERS", 1500),
			MaxFacilities: min(src.getEnvInt("MAX_FACILITIES", maxFacilities), maxFacilities),
			Profile:       profile,
		},
		Sessions: SessionsConfig{
			TTL:           src.getEnvDuration("SESSION_TTL", 30*time.Minute),
			SweepInterval: src.getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			MaxSessions:   src.getEnvInt("MAX_SESSIONS", 1000),
		},
		RateLimit: RateLimitConfig{
			RPS:   src.getEnvFloat("RATE_LIMIT_RPS", 10),
			Burst: src.getEnvInt("RATE_LIMIT_BURST", 20),
		},
		DB: DatabaseConfig{
			Path: src.getEnv("DB_PATH", ":memory:"),
		},
		Logging: LoggingConfig{
			Level:  src.getEnv("LOG_LEVEL", "info"),
			Format: src.getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Search.RadiusMeters <= 0 {
		return fmt.Errorf("search radius must be positive")
	}
	if c.Search.MaxFacilities < 1 {
		return fmt.Errorf("max facilities must be at least 1")
	}
	if c.Services.PredictionURL == "" || c.Services.PlacesURL == "" {
		return fmt.Errorf("prediction and places URLs are required")
	}
	if c.Services.HTTPTimeout <= 0 || c.Services.ReasoningTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Sessions.TTL < time.Minute {
		return fmt.Errorf("session TTL must be at least 1 minute")
	}
	if c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("session sweep interval must be positive")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("invalid rate limit: %.2f rps, burst %d", c.RateLimit.RPS, c.RateLimit.Burst)
	}

	return nil
}

// source resolves keys from the environment first, then from the file.
type source struct {
	file map[string]string
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func (s source) lookup(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return s.file[key]
}

func (s source) getEnv(key, fallback string) string {
	if val := s.lookup(key); val != "" {
		return val
	}
	return fallback
}

func (s source) getEnvInt(key string, fallback int) int {
	if val := s.lookup(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func (s source) getEnvFloat(key string, fallback float64) float64 {
	if val := s.lookup(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func (s source) getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := s.lookup(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
