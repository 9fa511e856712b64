// Package config holds the worker's tunables: everything spec.md left
// as a named constant or a "should be configurable" aside becomes a
// YAML-overridable field here, merged over hardcoded defaults the same
// way the teacher's pkg/config layers a YAML string over DefaultConfig.
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level worker configuration.
type Config struct {
	Rtcp  RtcpConfig  `yaml:"rtcp,omitempty"`
	Nack  NackConfig  `yaml:"nack,omitempty"`
	Score ScoreConfig `yaml:"score,omitempty"`

	Development bool `yaml:"development,omitempty"`
}

// RtcpConfig holds the sender-report cadence settings.
type RtcpConfig struct {
	MaxIntervalAudio time.Duration `yaml:"max_interval_audio,omitempty"`
	MaxIntervalVideo time.Duration `yaml:"max_interval_video,omitempty"`
	// EarlyEmitFactor gates how far ahead of MaxInterval an SR may be
	// sent when a batch boundary falls close to the deadline.
	EarlyEmitFactor float64 `yaml:"early_emit_factor,omitempty"`
}

// NackConfig holds the retransmit ring buffer and resend throttling settings.
type NackConfig struct {
	BufferCapacity int           `yaml:"buffer_capacity,omitempty"`
	RetainHorizon  time.Duration `yaml:"retain_horizon,omitempty"`
	ResendMinGap   time.Duration `yaml:"resend_min_gap,omitempty"`
}

// ScoreConfig holds the 0-10 quality monitor's smoothing setting.
type ScoreConfig struct {
	SmoothingWeight float64 `yaml:"smoothing_weight,omitempty"`
}

// DefaultConfig holds the same values as the constants that
// internal/consumer and internal/rtpstream use. Those packages do not
// read a Config, so overriding a field does not change their behaviour.
var DefaultConfig = Config{
	Rtcp: RtcpConfig{
		MaxIntervalAudio: 5000 * time.Millisecond,
		MaxIntervalVideo: 1000 * time.Millisecond,
		EarlyEmitFactor:  1.15,
	},
	Nack: NackConfig{
		BufferCapacity: 1500,
		RetainHorizon:  time.Second,
		ResendMinGap:   20 * time.Millisecond,
	},
	Score: ScoreConfig{
		SmoothingWeight: 0.75,
	},
}

// New merges a YAML document over DefaultConfig. An empty confString
// returns the defaults unchanged.
func New(confString string) (*Config, error) {
	marshalled, err := yaml.Marshal(&DefaultConfig)
	if err != nil {
		return nil, err
	}

	var conf Config
	if err := yaml.Unmarshal(marshalled, &conf); err != nil {
		return nil, err
	}

	if confString != "" {
		decoder := yaml.NewDecoder(strings.NewReader(confString))
		decoder.KnownFields(true)
		if err := decoder.Decode(&conf); err != nil {
			return nil, fmt.Errorf("could not parse config: %w", err)
		}
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) validate() error {
	if c.Nack.BufferCapacity < 0 {
		return fmt.Errorf("nack.buffer_capacity must not be negative")
	}
	if c.Score.SmoothingWeight < 0 || c.Score.SmoothingWeight > 1 {
		return fmt.Errorf("score.smoothing_weight must be within [0,1]")
	}
	if c.Rtcp.EarlyEmitFactor < 1 {
		return fmt.Errorf("rtcp.early_emit_factor must be >= 1")
	}
	return nil
}
