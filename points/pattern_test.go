package points

import (
	"testing"

	"go.viam.com/test"
)

// TestPyramidLevelSelection grounds scenario S5: a pattern reprojecting to
// a 16-pixel spread with patternHeight=4 must select level 2.
func TestPyramidLevelSelection(t *testing.T) {
	level := LevelForSpread(16, 4, 10)
	test.That(t, level, test.ShouldEqual, 2)
}

func TestPyramidLevelSelectionClampedToMax(t *testing.T) {
	level := LevelForSpread(16, 4, 1)
	test.That(t, level, test.ShouldEqual, 1)
}

func TestPyramidLevelSelectionClampedToZero(t *testing.T) {
	level := LevelForSpread(1, 4, 5)
	test.That(t, level, test.ShouldEqual, 0)
}

func TestDiamond8Spread(t *testing.T) {
	p := Diamond8()
	test.That(t, p.Spread(), test.ShouldBeGreaterThan, 0.0)
}
