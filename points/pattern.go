package points

import (
	"math"

	"github.com/golang/geo/r2"
)

// Pattern is the fixed set of pixel offsets (relative to a point's host
// pixel) sampled for every photometric residual, the patch geometry shared
// by the immature-point tracer and the bundle adjuster.
type Pattern []r2.Point

// Diamond8 is an 8-point diamond pattern, a common dense-enough-but-cheap
// residual footprint.
func Diamond8() Pattern {
	return Pattern{
		{X: 0, Y: 0},
		{X: -2, Y: 0}, {X: 2, Y: 0},
		{X: 0, Y: -2}, {X: 0, Y: 2},
		{X: -1, Y: -1}, {X: 1, Y: -1},
		{X: -1, Y: 1},
	}
}

// PatternByName resolves a configured pattern name to its offsets.
func PatternByName(name string) Pattern {
	switch name {
	case "diamond8":
		return Diamond8()
	default:
		return Diamond8()
	}
}

// Spread returns the pattern's maximum pairwise offset magnitude, the pixel
// "spread" used to pick a pyramid level for residual evaluation.
func (p Pattern) Spread() float64 {
	var max float64
	for i := range p {
		for j := range p {
			d := p[i].Sub(p[j]).Norm()
			if d > max {
				max = d
			}
		}
	}
	return max
}

// LevelForSpread picks the pyramid level whose downsampling best matches a
// pattern that, once reprojected, spans spread pixels against a pattern
// whose nominal extent is patternHeight: level = round(log2(spread /
// patternHeight)), clamped into [0, maxLevel].
func LevelForSpread(spread, patternHeight float64, maxLevel int) int {
	if spread <= 0 || patternHeight <= 0 {
		return 0
	}
	level := int(math.Round(math.Log2(spread / patternHeight)))
	if level < 0 {
		level = 0
	}
	if level > maxLevel {
		level = maxLevel
	}
	return level
}
