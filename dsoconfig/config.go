// Package dsoconfig holds the JSON-serializable configuration tree for the
// pipeline, following rdk's old config.AttributeMap pattern: a
// typed struct for the well-known fields, plus mapstructure decoding for an
// open-ended attribute extension point future components can read from
// without a config schema change.
package dsoconfig

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/multierr"

	"github.com/lumen-robotics/dso/dsoerrors"
)

// AffineLight bounds and enables photometric light optimization.
type AffineLight struct {
	Optimize bool    `json:"optimize_affine_light" mapstructure:"optimize_affine_light"`
	MinA     float64 `json:"min_affine_light_a" mapstructure:"min_affine_light_a"`
	MaxA     float64 `json:"max_affine_light_a" mapstructure:"max_affine_light_a"`
	MinB     float64 `json:"min_affine_light_b" mapstructure:"min_affine_light_b"`
	MaxB     float64 `json:"max_affine_light_b" mapstructure:"max_affine_light_b"`
}

// ResidualPattern configures the photometric patch geometry.
type ResidualPattern struct {
	Pattern string `json:"pattern" mapstructure:"pattern"`
	Height  int    `json:"height" mapstructure:"height"`
}

// Depth bounds the inverse-depth parameterization used as box constraints.
type Depth struct {
	Min float64 `json:"min" mapstructure:"min"`
	Max float64 `json:"max" mapstructure:"max"`
}

// Intensity configures the Huber threshold and outlier classification.
type Intensity struct {
	OutlierDiff float64 `json:"outlier_diff" mapstructure:"outlier_diff"`
}

// GradWeighting configures the gradient-norm soft weighting scale.
type GradWeighting struct {
	C float64 `json:"c" mapstructure:"c"`
}

// Threading configures the solver thread-pool size.
type Threading struct {
	NumThreads int `json:"num_threads" mapstructure:"num_threads"`
}

// BundleAdjuster configures the bundle adjuster's gauge-fixation flags.
type BundleAdjuster struct {
	FixedRotationOnSecondKF     bool `json:"fixed_rotation_on_second_kf" mapstructure:"fixed_rotation_on_second_kf"`
	FixedMotionOnFirstAdjustent bool `json:"fixed_motion_on_first_adjustent" mapstructure:"fixed_motion_on_first_adjustent"`
}

// Config is the top-level configuration tree for a vo.System.
type Config struct {
	AffineLight     AffineLight     `json:"affine_light" mapstructure:"affine_light"`
	ResidualPattern ResidualPattern `json:"residual_pattern" mapstructure:"residual_pattern"`
	Depth           Depth           `json:"depth" mapstructure:"depth"`
	Intensity       Intensity       `json:"intensity" mapstructure:"intensity"`
	GradWeighting   GradWeighting   `json:"grad_weighting" mapstructure:"grad_weighting"`
	Threading       Threading       `json:"threading" mapstructure:"threading"`
	BundleAdjuster  BundleAdjuster  `json:"bundle_adjuster" mapstructure:"bundle_adjuster"`

	PyrLevels                    int     `json:"pyr_levels" mapstructure:"pyr_levels"`
	FirstFramesSkip              int     `json:"first_frames_skip" mapstructure:"first_frames_skip"`
	InterestPointsUsed           int     `json:"interest_points_used" mapstructure:"interest_points_used"`
	EpipolarOnImageTestCount     int     `json:"epipolar_on_image_test_count" mapstructure:"epipolar_on_image_test_count"`
	EpipolarOutlierIntensityDiff float64 `json:"epipolar_outlier_intensity_diff" mapstructure:"epipolar_outlier_intensity_diff"`
	MinSecondBestDistance        float64 `json:"min_second_best_distance" mapstructure:"min_second_best_distance"`
	ActivationMinQuality         float64 `json:"activation_min_quality" mapstructure:"activation_min_quality"`

	TrackFromLastKF      bool   `json:"track_from_last_kf" mapstructure:"track_from_last_kf"`
	UseORBInitialization bool   `json:"use_orb_initialization" mapstructure:"use_orb_initialization"`
	OutputDirectory      string `json:"output_directory" mapstructure:"output_directory"`

	// Attributes is the free-form extension point: components that need a
	// config field the schema above doesn't name yet can decode their own
	// struct out of it via mapstructure.Decode, without a Config change.
	Attributes map[string]interface{} `json:"attributes,omitempty" mapstructure:"attributes"`
}

// Default returns a Config with conservative, commonly-used defaults.
func Default() Config {
	return Config{
		AffineLight: AffineLight{
			Optimize: true,
			MinA:     -1.5, MaxA: 1.5,
			MinB: -150, MaxB: 150,
		},
		ResidualPattern: ResidualPattern{Pattern: "diamond8", Height: 4},
		Depth:           Depth{Min: 1e-3, Max: 1e3},
		Intensity:       Intensity{OutlierDiff: 12},
		GradWeighting:   GradWeighting{C: 50},
		Threading:       Threading{NumThreads: 4},
		BundleAdjuster:  BundleAdjuster{FixedRotationOnSecondKF: true, FixedMotionOnFirstAdjustent: false},

		PyrLevels:                    5,
		FirstFramesSkip:              5,
		InterestPointsUsed:           2000,
		EpipolarOnImageTestCount:     5,
		EpipolarOutlierIntensityDiff: 12,
		MinSecondBestDistance:        1.5,
		ActivationMinQuality:         1.5,

		TrackFromLastKF:      true,
		UseORBInitialization: true,
		OutputDirectory:      ".",
	}
}

// FromJSON decodes a Config from JSON bytes and validates it.
func FromJSON(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, dsoerrors.NewConfigurationError("json", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecodeAttribute decodes the named free-form attribute into out via
// mapstructure, the extension point's read side.
func (c Config) DecodeAttribute(name string, out interface{}) error {
	v, ok := c.Attributes[name]
	if !ok {
		return dsoerrors.NewConfigurationError(name, "attribute not present")
	}
	return mapstructure.Decode(v, out)
}

// Validate rejects bounds crossings and configurations the pipeline cannot
// run with, per the ConfigurationError taxonomy: invalid construction is
// fatal, never silently clamped.
func (c Config) Validate() error {
	var err error
	if c.AffineLight.MinA > c.AffineLight.MaxA {
		err = multierr.Append(err, dsoerrors.NewConfigurationError("affine_light.min_affine_light_a", "min exceeds max"))
	}
	if c.AffineLight.MinB > c.AffineLight.MaxB {
		err = multierr.Append(err, dsoerrors.NewConfigurationError("affine_light.min_affine_light_b", "min exceeds max"))
	}
	if c.Depth.Min <= 0 || c.Depth.Min > c.Depth.Max {
		err = multierr.Append(err, dsoerrors.NewConfigurationError("depth", "bounds must satisfy 0 < min <= max"))
	}
	if c.ResidualPattern.Height <= 0 {
		err = multierr.Append(err, dsoerrors.NewConfigurationError("residual_pattern.height", "must be positive"))
	}
	if c.PyrLevels <= 0 {
		err = multierr.Append(err, dsoerrors.NewConfigurationError("pyr_levels", "must be positive"))
	}
	if c.Threading.NumThreads <= 0 {
		err = multierr.Append(err, dsoerrors.NewConfigurationError("threading.num_threads", "must be positive"))
	}
	if !c.UseORBInitialization {
		// with use_orb_initialization false the bootstrap falls back to the
		// pure initializer, which activates every immature point without a
		// depth estimate and leaves logInvDepth uninitialized; reject this
		// path rather than silently run with no known-good coverage.
		err = multierr.Append(err, dsoerrors.NewConfigurationError("use_orb_initialization", "pure-initializer bootstrap path is not supported; must be true"))
	}
	return err
}
