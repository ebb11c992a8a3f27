package points

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestPointStateMonotonicity(t *testing.T) {
	p := NewImmaturePoint(r2.Point{X: 1, Y: 2}, 0, 0.001, 1)
	test.That(t, p.Status(), test.ShouldEqual, StatusImmature)

	test.That(t, p.NarrowBracket(Bracket{MinInvDepth: 0.1, MaxInvDepth: 0.5}, 10), test.ShouldBeNil)
	test.That(t, p.Activate(0.3), test.ShouldBeNil)
	test.That(t, p.Status(), test.ShouldEqual, StatusActive)

	// cannot re-activate
	test.That(t, p.Activate(0.2), test.ShouldNotBeNil)

	test.That(t, p.MarkOutlier(), test.ShouldBeNil)
	test.That(t, p.Status(), test.ShouldEqual, StatusOutlier)
	test.That(t, p.IsTerminal(), test.ShouldBeTrue)

	// terminal states never transition back
	test.That(t, p.MarkOOB(), test.ShouldNotBeNil)
	test.That(t, p.MarkOutlier(), test.ShouldNotBeNil)
	test.That(t, p.Activate(0.4), test.ShouldNotBeNil)
}

func TestPointOOBFromImmature(t *testing.T) {
	p := NewImmaturePoint(r2.Point{X: 0, Y: 0}, 0, 0.001, 1)
	test.That(t, p.MarkOOB(), test.ShouldBeNil)
	test.That(t, p.Status(), test.ShouldEqual, StatusOOB)
	test.That(t, p.MarkOOB(), test.ShouldNotBeNil)
}

func TestNarrowBracketRejectedAfterActivation(t *testing.T) {
	p := NewImmaturePoint(r2.Point{X: 0, Y: 0}, 0, 0.001, 1)
	test.That(t, p.Activate(0.5), test.ShouldBeNil)
	test.That(t, p.NarrowBracket(Bracket{MinInvDepth: 0.1, MaxInvDepth: 0.2}, 1), test.ShouldNotBeNil)
}
