package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Analyzer  AnalyzerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Poll      PollConfig
	Selection SelectionConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// AnalyzerConfig points at the external job-processing backend. BaseURL has
// no default on purpose: an unset value must fail loudly on first use, never
// fall back to some guessed origin.
type AnalyzerConfig struct {
	BaseURL string
	Timeout int // seconds, per HTTP call
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	JobsPerHour      int
	SelectionsPerMin int
}

// PollConfig bounds the three polling loops.
type PollConfig struct {
	StatusIntervalSec         int // default tick
	StatusTrackingIntervalSec int // slower tick while tracking
	StatusScoringIntervalSec  int // faster tick while scoring
	StatusMaxWaitSec          int // wall-clock ceiling for the status loop
	PreviewIntervalSec        int
	PreviewMaxAttempts        int
	PreviewRequiredFrames     int
	CandidateIntervalSec      int
	CandidateMaxAttempts      int
}

func (p PollConfig) StatusInterval() time.Duration {
	return time.Duration(p.StatusIntervalSec) * time.Second
}

func (p PollConfig) StatusMaxWait() time.Duration {
	return time.Duration(p.StatusMaxWaitSec) * time.Second
}

func (p PollConfig) PreviewInterval() time.Duration {
	return time.Duration(p.PreviewIntervalSec) * time.Second
}

func (p PollConfig) CandidateInterval() time.Duration {
	return time.Duration(p.CandidateIntervalSec) * time.Second
}

// SelectionConfig is the allowed size band for normalized boxes.
type SelectionConfig struct {
	MinBoxSize float64
	MaxBoxSize float64
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("analyzer.base_url", "ANALYZER_BASE_URL")
	_ = viper.BindEnv("analyzer.timeout", "ANALYZER_TIMEOUT")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("ratelimit.jobs_per_hour", "RATELIMIT_JOBS_PER_HOUR")
	_ = viper.BindEnv("ratelimit.selections_per_min", "RATELIMIT_SELECTIONS_PER_MIN")
	_ = viper.BindEnv("poll.status_interval", "POLL_STATUS_INTERVAL")
	_ = viper.BindEnv("poll.status_tracking_interval", "POLL_STATUS_TRACKING_INTERVAL")
	_ = viper.BindEnv("poll.status_scoring_interval", "POLL_STATUS_SCORING_INTERVAL")
	_ = viper.BindEnv("poll.status_max_wait", "POLL_STATUS_MAX_WAIT")
	_ = viper.BindEnv("poll.preview_interval", "POLL_PREVIEW_INTERVAL")
	_ = viper.BindEnv("poll.preview_max_attempts", "POLL_PREVIEW_MAX_ATTEMPTS")
	_ = viper.BindEnv("poll.preview_required_frames", "POLL_PREVIEW_REQUIRED_FRAMES")
	_ = viper.BindEnv("poll.candidate_interval", "POLL_CANDIDATE_INTERVAL")
	_ = viper.BindEnv("poll.candidate_max_attempts", "POLL_CANDIDATE_MAX_ATTEMPTS")
	_ = viper.BindEnv("selection.min_box_size", "SELECTION_MIN_BOX_SIZE")
	_ = viper.BindEnv("selection.max_box_size", "SELECTION_MAX_BOX_SIZE")

	// Defaults. analyzer.base_url deliberately has none.
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("analyzer.timeout", 15)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.jobs_per_hour", 20)
	viper.SetDefault("ratelimit.selections_per_min", 60)
	viper.SetDefault("poll.status_interval", 3)
	viper.SetDefault("poll.status_tracking_interval", 8)
	viper.SetDefault("poll.status_scoring_interval", 2)
	viper.SetDefault("poll.status_max_wait", 1800)
	viper.SetDefault("poll.preview_interval", 2)
	viper.SetDefault("poll.preview_max_attempts", 30)
	viper.SetDefault("poll.preview_required_frames", 6)
	viper.SetDefault("poll.candidate_interval", 3)
	viper.SetDefault("poll.candidate_max_attempts", 40)
	viper.SetDefault("selection.min_box_size", 0.02)
	viper.SetDefault("selection.max_box_size", 0.9)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Analyzer: AnalyzerConfig{
			BaseURL: viper.GetString("analyzer.base_url"),
			Timeout: viper.GetInt("analyzer.timeout"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour:      viper.GetInt("ratelimit.jobs_per_hour"),
			SelectionsPerMin: viper.GetInt("ratelimit.selections_per_min"),
		},
		Poll: PollConfig{
			StatusIntervalSec:         viper.GetInt("poll.status_interval"),
			StatusTrackingIntervalSec: viper.GetInt("poll.status_tracking_interval"),
			StatusScoringIntervalSec:  viper.GetInt("poll.status_scoring_interval"),
			StatusMaxWaitSec:          viper.GetInt("poll.status_max_wait"),
			PreviewIntervalSec:        viper.GetInt("poll.preview_interval"),
			PreviewMaxAttempts:        viper.GetInt("poll.preview_max_attempts"),
			PreviewRequiredFrames:     viper.GetInt("poll.preview_required_frames"),
			CandidateIntervalSec:      viper.GetInt("poll.candidate_interval"),
			CandidateMaxAttempts:      viper.GetInt("poll.candidate_max_attempts"),
		},
		Selection: SelectionConfig{
			MinBoxSize: viper.GetFloat64("selection.min_box_size"),
			MaxBoxSize: viper.GetFloat64("selection.max_box_size"),
		},
	}

	return cfg, nil
}
