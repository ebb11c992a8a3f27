// Package bundle implements the windowed photometric bundle adjuster: the
// joint optimization over keyframe poses, affine light transforms, and
// point inverse depths that refines everything currently in the sliding
// window.
package bundle

import (
	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"

	"github.com/lumen-robotics/dso/dsoerrors"
)

// CostFunc evaluates a problem's total residual at params and, when grad is
// non-nil, fills it with the residual's gradient with respect to params.
// Both the tracker's per-level alignment and the bundle adjuster's joint
// solve share this shape, the one hot-kernel abstraction both build on.
type CostFunc func(params []float64, grad []float64) float64

// NloptProblem wraps a single go-nlopt optimizer instance configured for a
// box-constrained local solve, generalizing rdk's
// CreateNloptSolver/DoSolve pattern (built for joint-angle IK) to a flat
// parameter vector of arbitrary origin (pose, light, or depth values).
type NloptProblem struct {
	opt     *nlopt.NLopt
	dim     int
	maxEval int
	xtolRel float64
}

// NewNloptProblem allocates a problem over dim scalar parameters, bounded
// elementwise by lb/ub (either may be nil for an unbounded direction). It
// uses LD_SLSQP whenever lb or ub is non-nil, matching rdk's choice of
// solver algorithm for bounded local refinement, or LD_LBFGS when both
// are nil.
func NewNloptProblem(dim int, lb, ub []float64) (*NloptProblem, error) {
	algorithm := nlopt.LD_LBFGS
	if lb != nil || ub != nil {
		algorithm = nlopt.LD_SLSQP
	}

	opt, err := nlopt.NewNLopt(algorithm, uint(dim))
	if err != nil {
		return nil, errors.Wrap(err, "creating nlopt optimizer")
	}
	if lb != nil {
		if err := opt.SetLowerBounds(lb); err != nil {
			return nil, errors.Wrap(err, "setting lower bounds")
		}
	}
	if ub != nil {
		if err := opt.SetUpperBounds(ub); err != nil {
			return nil, errors.Wrap(err, "setting upper bounds")
		}
	}

	p := &NloptProblem{opt: opt, dim: dim, maxEval: 200, xtolRel: 1e-8}
	if err := opt.SetMaxEval(p.maxEval); err != nil {
		return nil, errors.Wrap(err, "setting max eval")
	}
	if err := opt.SetXtolRel(p.xtolRel); err != nil {
		return nil, errors.Wrap(err, "setting xtol")
	}
	return p, nil
}

// Solve runs the local solve starting from x0, returning the refined
// parameter vector and the cost achieved. If the optimizer cannot improve
// on the starting cost, it returns dsoerrors.ErrNoImprovement and the
// caller must keep its previous parameter values — the solver never writes
// back on failure.
func (p *NloptProblem) Solve(cost CostFunc, x0 []float64) ([]float64, float64, error) {
	startCost := cost(x0, nil)

	if err := p.opt.SetMinObjective(func(x, gradient []float64) float64 {
		return cost(x, gradient)
	}); err != nil {
		return nil, 0, errors.Wrap(err, "setting objective")
	}

	xopt, minf, err := p.opt.Optimize(append([]float64(nil), x0...))
	if err != nil {
		return nil, 0, errors.Wrap(err, "nlopt optimize")
	}
	if minf >= startCost {
		return nil, 0, dsoerrors.ErrNoImprovement
	}
	return xopt, minf, nil
}

// Close releases the underlying nlopt optimizer.
func (p *NloptProblem) Close() {
	p.opt.Destroy()
}
