package tracker

import "github.com/golang/geo/r3"

func vec3(a [3]float64) r3.Vector {
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}
