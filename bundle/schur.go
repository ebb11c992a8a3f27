package bundle

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SchurReduce eliminates the first nDepth parameters (the depth block,
// group 0 per the problem-builder's parameter ordering) from a
// Gauss-Newton normal-equations system (jtj, jtr), producing the reduced
// system over the remaining frame-level parameters (group 1). The depth
// block couples only through shared frame residuals, never to itself
// across points, so in a fully-built BA it would be block-diagonal and
// cheap to invert directly; this helper accepts the general case (inverting
// via mat.Dense.Solve) so it stays correct regardless of how sparse that
// block actually is, mirroring rdk's use of gonum/mat for its own
// dense calibration solve.
func SchurReduce(jtj *mat.Dense, jtr *mat.VecDense, nDepth int) (*mat.Dense, *mat.VecDense, error) {
	r, c := jtj.Dims()
	if r != c {
		return nil, nil, errors.New("jtj must be square")
	}
	nFrame := r - nDepth
	if nDepth < 0 || nFrame < 0 {
		return nil, nil, errors.New("nDepth out of range")
	}
	if nDepth == 0 {
		return mat.DenseCopyOf(jtj), mat.VecDenseCopyOf(jtr), nil
	}
	if nFrame == 0 {
		return mat.NewDense(0, 0, nil), mat.NewVecDense(0, nil), nil
	}

	dd := jtj.Slice(0, nDepth, 0, nDepth)
	df := jtj.Slice(0, nDepth, nDepth, r)
	fd := jtj.Slice(nDepth, r, 0, nDepth)
	ff := jtj.Slice(nDepth, r, nDepth, r)

	bd := mat.NewVecDense(nDepth, nil)
	bf := mat.NewVecDense(nFrame, nil)
	for i := 0; i < nDepth; i++ {
		bd.SetVec(i, jtr.AtVec(i))
	}
	for i := 0; i < nFrame; i++ {
		bf.SetVec(i, jtr.AtVec(nDepth+i))
	}

	var ddInvDf mat.Dense
	if err := ddInvDf.Solve(dd, df); err != nil {
		return nil, nil, errors.Wrap(err, "inverting depth block")
	}
	var ddInvBd mat.VecDense
	if err := ddInvBd.SolveVec(dd, bd); err != nil {
		return nil, nil, errors.Wrap(err, "solving depth block rhs")
	}

	var correction mat.Dense
	correction.Mul(fd, &ddInvDf)
	var reducedA mat.Dense
	reducedA.Sub(ff, &correction)

	var fdDdInvBd mat.VecDense
	fdDdInvBd.MulVec(fd, &ddInvBd)
	var reducedB mat.VecDense
	reducedB.SubVec(bf, &fdDdInvBd)

	return &reducedA, &reducedB, nil
}
