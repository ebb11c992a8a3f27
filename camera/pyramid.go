package camera

import "sync"

// Pyramid holds a coarse-to-fine stack of grayscale images and their
// matching per-level gradient fields and camera models, the shared
// substrate the tracker's coarse-to-fine alignment and the point engine's
// depth search both index by level.
type Pyramid struct {
	levels  []*GrayImage
	grads   []*VectorField2D
	cameras []Model
}

// BuildPyramid halves img numLevels-1 times via PyrDown, rescaling cam for
// each level via ScaledBy when cam implements ScalableModel, or else reusing
// the same camera model at every level. Gradient fields are computed on a
// single worker; see BuildPyramidWithWorkers to fan that step out.
func BuildPyramid(img *GrayImage, cam Model, numLevels int) *Pyramid {
	return BuildPyramidWithWorkers(img, cam, numLevels, 1)
}

// BuildPyramidWithWorkers is BuildPyramid but spreads the per-level Sobel
// gradient computation across a numWorkers-sized pool: a buffered channel of
// level indices drained by numWorkers goroutines, joined with a
// sync.WaitGroup before returning. The levels themselves are still built
// sequentially, since each PyrDown consumes the level above it, but once
// every level image exists its gradient field is independent of every
// other's and safe to compute concurrently.
func BuildPyramidWithWorkers(img *GrayImage, cam Model, numLevels, numWorkers int) *Pyramid {
	p := &Pyramid{
		levels:  make([]*GrayImage, numLevels),
		grads:   make([]*VectorField2D, numLevels),
		cameras: make([]Model, numLevels),
	}

	p.levels[0] = img
	p.cameras[0] = cam
	for l := 1; l < numLevels; l++ {
		p.levels[l] = p.levels[l-1].PyrDown()
		if sm, ok := p.cameras[l-1].(ScalableModel); ok {
			p.cameras[l] = sm.ScaledBy(0.5)
		} else {
			p.cameras[l] = p.cameras[l-1]
		}
	}

	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > numLevels {
		numWorkers = numLevels
	}
	work := make(chan int, numLevels)
	for l := 0; l < numLevels; l++ {
		work <- l
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for l := range work {
				p.grads[l] = SobelGradient(p.levels[l])
			}
		}()
	}
	wg.Wait()
	return p
}

// NumLevels returns the pyramid's level count.
func (p *Pyramid) NumLevels() int { return len(p.levels) }

// Image returns the grayscale image at level l (0 is full resolution).
func (p *Pyramid) Image(l int) *GrayImage { return p.levels[l] }

// Gradient returns the Sobel gradient field at level l.
func (p *Pyramid) Gradient(l int) *VectorField2D { return p.grads[l] }

// Camera returns the camera model scaled for level l.
func (p *Pyramid) Camera(l int) Model { return p.cameras[l] }
