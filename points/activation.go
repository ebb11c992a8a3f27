package points

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"

	"github.com/lumen-robotics/dso/camera"
)

// candidateScore pairs a pixel with its selection score (gradient norm
// weighted by distance from the existing point set), higher is better.
type candidateScore struct {
	pix   r2.Point
	score float64
}

// SelectCandidates scans pyr's level-0 gradient field for the numWanted
// best new point locations: high-gradient pixels that are also far from
// every point already hosted elsewhere in the keyframe, via DistanceMap.
// border excludes a margin around the image edge where epipolar search
// would immediately fail IsOnImage.
func SelectCandidates(pyr *camera.Pyramid, existing []r2.Point, numWanted int, border float64, downscale int) []r2.Point {
	grad := pyr.Gradient(0)
	img := pyr.Image(0)
	dm := BuildDistanceMap(img.Width(), img.Height(), existing, downscale)

	b := int(border)
	var candidates []candidateScore
	for y := b; y < img.Height()-b; y++ {
		for x := b; x < img.Width()-b; x++ {
			mag := grad.GetVec2D(x, y).Magnitude()
			if mag <= 0 {
				continue
			}
			dist := dm.At(r2.Point{X: float64(x), Y: float64(y)})
			if dist < 0 {
				dist = 0 // no existing points: rank by gradient alone
			}
			score := mag * float64(dist+1)
			candidates = append(candidates, candidateScore{pix: r2.Point{X: float64(x), Y: float64(y)}, score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if numWanted > len(candidates) {
		numWanted = len(candidates)
	}
	out := make([]r2.Point, numWanted)
	for i := 0; i < numWanted; i++ {
		out[i] = candidates[i].pix
	}
	return out
}

// ActivateReady promotes every immature point on kf whose accumulated trace
// quality has reached minQuality, committing logInvDepth as the log of the
// midpoint of its narrowed inverse-depth bracket. It returns the number of
// points activated.
func ActivateReady(kf *KeyFrame, minQuality float64) int {
	count := 0
	for _, p := range kf.Points() {
		if p.Status() != StatusImmature {
			continue
		}
		if p.Quality() < minQuality {
			continue
		}
		mid := (p.Bracket().MinInvDepth + p.Bracket().MaxInvDepth) / 2
		if err := p.Activate(math.Log(mid)); err == nil {
			count++
		}
	}
	return count
}
