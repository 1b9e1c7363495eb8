package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort     = 50051
	DefaultHTTPPort     = 8080
	DefaultLogLevel     = "info"
	DefaultTimezone     = "UTC"
	DefaultUserHeader   = "X-User-ID"
	DefaultTeamHeader   = "X-Team-ID"
	DefaultHistoryLimit = 20
	DefaultBufferSize   = 256
)

// Default analyzer thresholds.
const (
	DefaultEARThreshold          = 0.25
	DefaultConsecutiveFrames     = 10
	DefaultFatigueIncrement      = 0.05
	DefaultFatigueDecay          = 0.01
	DefaultConfidenceThreshold   = 0.6
	DefaultFacePadding           = 30
	DefaultEmotionInterval       = time.Second
	DefaultPatchSize             = 48
	DefaultFatigueScoreThreshold = 0.5
	DefaultHydrationLevel        = 0.8
	DefaultHydrationThreshold    = 0.6
)

// Default inference sidecar settings.
const (
	DefaultInferenceEndpoint = "localhost:50052"
	DefaultInferenceService  = "healthmirror.inference.v1.Inference"
	DefaultLoadTimeout       = 10 * time.Second
	DefaultCallTimeout       = 2 * time.Second
	DefaultWorkers           = 4
)

// Config is the full server configuration parsed from config.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Inference InferenceConfig `yaml:"inference"`
	Storage   StorageConfig   `yaml:"storage"`
	Shipper   ShipperConfig   `yaml:"shipper"`
	Alerts    AlertsConfig    `yaml:"alerts"`
}

// ServerConfig holds listener and process-wide settings.
type ServerConfig struct {
	// HTTPPort serves the REST API, the WebSocket channel and /metrics (default 8080).
	HTTPPort int `yaml:"http_port"`

	// GRPCPort serves the gRPC health service (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Timezone is the IANA zone used for daily and hourly dashboard buckets.
	Timezone string `yaml:"timezone"`

	// Identity names the headers an upstream proxy sets after authenticating
	// the caller.
	Identity IdentityConfig `yaml:"identity"`
}

// Location returns the dashboard time zone. Load has already validated it,
// so an unknown zone falls back to UTC only for hand-built configs.
func (s ServerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IdentityConfig names the trusted identity headers.
type IdentityConfig struct {
	UserHeader string `yaml:"user_header"`
	TeamHeader string `yaml:"team_header"`
}

// AnalyzerConfig holds every tunable of the per-frame pipeline.
// Changes picked up by Watch apply to sessions opened afterwards.
type AnalyzerConfig struct {
	// EARThreshold is the eye aspect ratio below which eyes count as closed.
	EARThreshold float64 `yaml:"ear_threshold"`

	// ConsecutiveFrames is how many closed-eye frames in a row raise the alert.
	ConsecutiveFrames int `yaml:"consecutive_frames"`

	// FatigueIncrement is added to the fatigue score on every alert frame.
	FatigueIncrement float64 `yaml:"fatigue_increment"`

	// FatigueDecay is subtracted from the fatigue score on every open-eye frame.
	FatigueDecay float64 `yaml:"fatigue_decay"`

	// ConfidenceThreshold is the minimum probability for a negative emotion
	// to be reported; weaker predictions are reported as Neutral.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// FacePadding is added on every side of the landmark bounding box, in pixels.
	FacePadding int `yaml:"face_padding"`

	// EmotionInterval is the minimum time between two model invocations per session.
	EmotionInterval time.Duration `yaml:"emotion_interval"`

	// PatchSize is the side of the square grayscale input fed to the model.
	PatchSize int `yaml:"patch_size"`

	// FatigueScoreThreshold is the fatigue score above which the health
	// score is penalised.
	FatigueScoreThreshold float64 `yaml:"fatigue_score_threshold"`

	// HydrationLevel is the constant reading reported by the default
	// hydration source. HydrationThreshold is the level below which the
	// hydration tip is issued.
	HydrationLevel     float64 `yaml:"hydration_level"`
	HydrationThreshold float64 `yaml:"hydration_threshold"`

	// Mirror flips frames horizontally before landmark detection.
	Mirror *bool `yaml:"mirror"`
}

// MirrorFrames reports whether frames are flipped before detection (default true).
func (a AnalyzerConfig) MirrorFrames() bool {
	return a.Mirror == nil || *a.Mirror
}

// InferenceConfig points at the model sidecar.
type InferenceConfig struct {
	// Endpoint is the host:port of the inference gRPC service.
	Endpoint string `yaml:"endpoint"`

	// Service is the fully qualified gRPC service name.
	Service string `yaml:"service"`

	// LoadTimeout bounds the startup readiness check. If the sidecar does not
	// report SERVING within it, the server runs in degraded mode.
	LoadTimeout time.Duration `yaml:"load_timeout"`

	// CallTimeout bounds each landmark or emotion call.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// Workers bounds concurrent emotion model calls across all sessions.
	Workers int `yaml:"workers"`
}

// StorageConfig selects the session summary store.
type StorageConfig struct {
	// Backend is one of: memory | postgres.
	Backend string `yaml:"backend"`

	// DSNEnv is the name of the environment variable holding the Postgres DSN.
	DSNEnv string `yaml:"dsn_env"`

	// HistoryLimit caps the per-user history listing (default 20).
	HistoryLimit int `yaml:"history_limit"`

	// Retention evicts memory-backend records older than this. Zero keeps
	// everything.
	Retention time.Duration `yaml:"retention"`
}

// DSN returns the Postgres DSN resolved from the environment.
func (s StorageConfig) DSN() string {
	if s.DSNEnv == "" {
		return ""
	}
	return os.Getenv(s.DSNEnv)
}

// ShipperConfig controls asynchronous summary persistence.
type ShipperConfig struct {
	// BufferSize is the queue depth; when full the oldest summary is dropped.
	BufferSize int `yaml:"buffer_size"`
}

// AlertsConfig holds alerting rules and delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
}

// AlertRule defines one condition evaluated on every analysis result.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "fatigue_alert == true",
	// "health_score < 50", "fatigue_score > 0.5", "emotion == Sad".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// MQTTConfig publishes alerts to a broker. Disabled when Broker is empty.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`

	// TopicPrefix is prepended to "<team>/<session>".
	TopicPrefix string `yaml:"topic_prefix"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values. Tests and
// callers without a config file use it directly.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			GRPCPort: DefaultGRPCPort,
			LogLevel: DefaultLogLevel,
			Timezone: DefaultTimezone,
			Identity: IdentityConfig{
				UserHeader: DefaultUserHeader,
				TeamHeader: DefaultTeamHeader,
			},
		},
		Analyzer: AnalyzerConfig{
			EARThreshold:          DefaultEARThreshold,
			ConsecutiveFrames:     DefaultConsecutiveFrames,
			FatigueIncrement:      DefaultFatigueIncrement,
			FatigueDecay:          DefaultFatigueDecay,
			ConfidenceThreshold:   DefaultConfidenceThreshold,
			FacePadding:           DefaultFacePadding,
			EmotionInterval:       DefaultEmotionInterval,
			PatchSize:             DefaultPatchSize,
			FatigueScoreThreshold: DefaultFatigueScoreThreshold,
			HydrationLevel:        DefaultHydrationLevel,
			HydrationThreshold:    DefaultHydrationThreshold,
		},
		Inference: InferenceConfig{
			Endpoint:    DefaultInferenceEndpoint,
			Service:     DefaultInferenceService,
			LoadTimeout: DefaultLoadTimeout,
			CallTimeout: DefaultCallTimeout,
			Workers:     DefaultWorkers,
		},
		Storage: StorageConfig{
			Backend:      "memory",
			DSNEnv:       "DATABASE_URL",
			HistoryLimit: DefaultHistoryLimit,
		},
		Shipper: ShipperConfig{
			BufferSize: DefaultBufferSize,
		},
		Alerts: AlertsConfig{
			MQTT: MQTTConfig{
				ClientID:    "health-mirror",
				TopicPrefix: "healthmirror/alerts",
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.GRPCPort <= 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", cfg.Server.LogLevel)
	}
	if _, err := time.LoadLocation(cfg.Server.Timezone); err != nil {
		return fmt.Errorf("server.timezone %q: %w", cfg.Server.Timezone, err)
	}
	if cfg.Server.Identity.UserHeader == "" || cfg.Server.Identity.TeamHeader == "" {
		return fmt.Errorf("server.identity headers must not be empty")
	}

	a := cfg.Analyzer
	if a.EARThreshold <= 0 {
		return fmt.Errorf("analyzer.ear_threshold must be positive")
	}
	if a.ConsecutiveFrames < 1 {
		return fmt.Errorf("analyzer.consecutive_frames must be at least 1")
	}
	if a.FatigueIncrement < 0 || a.FatigueDecay < 0 {
		return fmt.Errorf("analyzer.fatigue_increment and fatigue_decay must not be negative")
	}
	if a.ConfidenceThreshold < 0 || a.ConfidenceThreshold > 1 {
		return fmt.Errorf("analyzer.confidence_threshold %v is out of range [0, 1]", a.ConfidenceThreshold)
	}
	if a.FacePadding < 0 {
		return fmt.Errorf("analyzer.face_padding must not be negative")
	}
	if a.EmotionInterval < 0 {
		return fmt.Errorf("analyzer.emotion_interval must not be negative")
	}
	if a.PatchSize < 1 {
		return fmt.Errorf("analyzer.patch_size must be at least 1")
	}

	if cfg.Inference.Endpoint == "" {
		return fmt.Errorf("inference.endpoint is required")
	}
	if cfg.Inference.Workers < 1 {
		return fmt.Errorf("inference.workers must be at least 1")
	}

	switch cfg.Storage.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.backend %q unknown: want memory|postgres", cfg.Storage.Backend)
	}
	if cfg.Storage.HistoryLimit < 1 {
		return fmt.Errorf("storage.history_limit must be at least 1")
	}
	if cfg.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention must not be negative")
	}
	if cfg.Shipper.BufferSize < 1 {
		return fmt.Errorf("shipper.buffer_size must be at least 1")
	}

	for _, wh := range cfg.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks type %q unknown: want slack|teams|http", wh.Type)
		}
	}
	return nil
}
