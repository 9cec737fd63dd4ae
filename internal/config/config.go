// Package config loads the orchestrator's tunable knobs from a TOML file.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the runtime knobs described in the orchestrator's external
// interface: admission limits, idle eviction, frame budgets, and propagation
// cadences.
type Config struct {
	// SessionTimeoutSeconds is the idle window before a session is swept.
	SessionTimeoutSeconds int `toml:"session_timeout_seconds"`
	// MaxConcurrentSessions is the admission cap on open sessions.
	MaxConcurrentSessions int `toml:"max_concurrent_sessions"`
	// MaxVideoFrames is the per-session frame count cap.
	MaxVideoFrames int `toml:"max_video_frames"`
	// MaxFrameDimension is the per-session pixel cap that triggers downscale.
	MaxFrameDimension int `toml:"max_frame_dimension"`
	// FrameJPEGQuality is the FrameStore write quality, 1-100.
	FrameJPEGQuality int `toml:"frame_jpeg_quality"`
	// MaxWorkers bounds propagation job concurrency.
	MaxWorkers int `toml:"max_workers"`
	// JobRetentionSeconds is the terminal-job sweep window.
	JobRetentionSeconds int `toml:"job_retention_seconds"`
	// ProgressLogEvery is the frame cadence for progress log lines.
	ProgressLogEvery int `toml:"progress_log_every"`
	// TouchEvery is the frame cadence for refreshing session last-access.
	TouchEvery int `toml:"touch_every"`
}

// Default returns the configuration used when no file is supplied, matching
// the conservative defaults implied by spec.md §6.
func Default() *Config {
	return &Config{
		SessionTimeoutSeconds: 600,
		MaxConcurrentSessions: 4,
		MaxVideoFrames:        3000,
		MaxFrameDimension:     1024,
		FrameJPEGQuality:      90,
		MaxWorkers:            2,
		JobRetentionSeconds:   3600,
		ProgressLogEvery:      50,
		TouchEvery:            10,
	}
}

// LoadConfig reads and parses the TOML configuration file at path, filling in
// defaults for any knob absent from the file. A knob set to zero or a
// negative value is rejected with an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}

	if cfg.SessionTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("session_timeout_seconds must be positive, got %d", cfg.SessionTimeoutSeconds)
	}
	if cfg.MaxConcurrentSessions <= 0 {
		return nil, fmt.Errorf("max_concurrent_sessions must be positive, got %d", cfg.MaxConcurrentSessions)
	}
	if cfg.MaxVideoFrames <= 0 {
		return nil, fmt.Errorf("max_video_frames must be positive, got %d", cfg.MaxVideoFrames)
	}
	if cfg.MaxFrameDimension <= 0 {
		return nil, fmt.Errorf("max_frame_dimension must be positive, got %d", cfg.MaxFrameDimension)
	}
	if cfg.FrameJPEGQuality <= 0 || cfg.FrameJPEGQuality > 100 {
		return nil, fmt.Errorf("frame_jpeg_quality must be in (0,100], got %d", cfg.FrameJPEGQuality)
	}
	if cfg.MaxWorkers <= 0 {
		return nil, fmt.Errorf("max_workers must be positive, got %d", cfg.MaxWorkers)
	}
	if cfg.JobRetentionSeconds <= 0 {
		return nil, fmt.Errorf("job_retention_seconds must be positive, got %d", cfg.JobRetentionSeconds)
	}
	if cfg.ProgressLogEvery <= 0 {
		return nil, fmt.Errorf("progress_log_every must be positive, got %d", cfg.ProgressLogEvery)
	}
	if cfg.TouchEvery <= 0 {
		return nil, fmt.Errorf("touch_every must be positive, got %d", cfg.TouchEvery)
	}

	return cfg, nil
}

// SessionTimeout returns the idle window as a time.Duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// JobRetention returns the terminal-job sweep window as a time.Duration.
func (c *Config) JobRetention() time.Duration {
	return time.Duration(c.JobRetentionSeconds) * time.Second
}
