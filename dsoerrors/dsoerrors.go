// Package dsoerrors collects the sentinel error values shared across the
// pipeline's packages, following rdk's convention (see rimage,
// pointcloud) of exported sentinel vars checked with errors.Is rather than
// type assertions.
package dsoerrors

import "github.com/pkg/errors"

var (
	// ErrOutOfImage is returned when a projected pixel fails IsOnImage.
	ErrOutOfImage = errors.New("projected point falls outside the image")

	// ErrDegenerateGeometry is returned when an epipolar search or
	// spherical-cap intersection has no valid solution.
	ErrDegenerateGeometry = errors.New("degenerate epipolar geometry")

	// ErrNumericInfeasibility is returned when a computed quantity (depth,
	// residual) is non-positive or NaN.
	ErrNumericInfeasibility = errors.New("numerically infeasible result")

	// ErrNoImprovement is returned when a solver fails to reduce its cost
	// below the value it started from.
	ErrNoImprovement = errors.New("solver made no improvement")
)

// ConfigurationError reports an invalid configuration value, fatal at
// construction time.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration field " + e.Field + ": " + e.Reason
}

// NewConfigurationError builds a ConfigurationError for field with reason.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}
