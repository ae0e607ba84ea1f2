package migrate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-file form of the migration knobs. Every field has a
// working default; an absent file is not an error for callers that treat the
// config as optional.
type Config struct {
	CoordinateTolerance    float64  `yaml:"coordinateTolerance" json:"coordinateTolerance"`
	DuplicatePhotoStrategy string   `yaml:"duplicatePhotoStrategy,omitempty" json:"duplicatePhotoStrategy,omitempty"`
	PreserveTimestamps     *bool    `yaml:"preserveTimestamps,omitempty" json:"preserveTimestamps,omitempty"`
	MatcherOrder           []string `yaml:"matcherOrder,omitempty" json:"matcherOrder,omitempty"`
	PhotoOverlapThreshold  float64  `yaml:"photoOverlapThreshold,omitempty" json:"photoOverlapThreshold,omitempty"`
	RMSEMultiplier         float64  `yaml:"rmseMultiplier,omitempty" json:"rmseMultiplier,omitempty"`
	MaxRMSE                float64  `yaml:"maxRmse,omitempty" json:"maxRmse,omitempty"`
	MaxScaleRatio          float64  `yaml:"maxScaleRatio,omitempty" json:"maxScaleRatio,omitempty"`
}

// LoadConfig loads and validates a migration config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks field values eagerly so a bad config fails at load time,
// not mid-merge.
func (c *Config) Validate() error {
	if c.CoordinateTolerance < 0 {
		return fmt.Errorf("coordinateTolerance must be non-negative, got %v", c.CoordinateTolerance)
	}
	switch PhotoStrategy(c.DuplicatePhotoStrategy) {
	case "", PhotoStrategySkip, PhotoStrategyRename:
	default:
		return fmt.Errorf("duplicatePhotoStrategy must be %q or %q, got %q",
			PhotoStrategySkip, PhotoStrategyRename, c.DuplicatePhotoStrategy)
	}
	for i, m := range c.MatcherOrder {
		switch MatcherKind(m) {
		case MatchByPhotos, MatchByLabels, MatchByCoordinates:
		default:
			return fmt.Errorf("matcherOrder[%d]: unknown matcher %q", i, m)
		}
	}
	if c.PhotoOverlapThreshold < 0 || c.PhotoOverlapThreshold > 1 {
		return fmt.Errorf("photoOverlapThreshold must be in [0, 1], got %v", c.PhotoOverlapThreshold)
	}
	if c.RMSEMultiplier < 0 {
		return fmt.Errorf("rmseMultiplier must be non-negative, got %v", c.RMSEMultiplier)
	}
	return nil
}

// MergeOptions converts the config into merge options, filling unset fields
// with the defaults.
func (c *Config) MergeOptions() MergeOptions {
	opts := DefaultMergeOptions()
	if c == nil {
		return opts
	}
	opts.CoordinateTolerance = c.CoordinateTolerance
	if c.DuplicatePhotoStrategy != "" {
		opts.DuplicatePhotoStrategy = PhotoStrategy(c.DuplicatePhotoStrategy)
	}
	if c.PreserveTimestamps != nil {
		opts.PreserveTimestamps = *c.PreserveTimestamps
	}
	if len(c.MatcherOrder) > 0 {
		order := make([]MatcherKind, len(c.MatcherOrder))
		for i, m := range c.MatcherOrder {
			order[i] = MatcherKind(m)
		}
		opts.MatcherOrder = order
	}
	if c.PhotoOverlapThreshold > 0 {
		opts.PhotoOverlapThreshold = c.PhotoOverlapThreshold
	}
	return opts
}

// FitOptions converts the config into fit validation options, filling unset
// fields with the defaults.
func (c *Config) FitOptions() FitOptions {
	opts := DefaultFitOptions()
	if c == nil {
		return opts
	}
	if c.RMSEMultiplier > 0 {
		opts.RMSEMultiplier = c.RMSEMultiplier
	}
	if c.MaxRMSE > 0 {
		opts.MaxRMSE = c.MaxRMSE
	}
	if c.MaxScaleRatio > 0 {
		opts.MaxScaleRatio = c.MaxScaleRatio
	}
	return opts
}
