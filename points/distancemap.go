package points

import "github.com/golang/geo/r2"

// DistanceMap scores candidate pixel locations by their grid distance to
// the nearest existing point, via a multi-source breadth-first search over
// a downscaled grid. Point selection uses it to spread new immature points
// away from ones already tracked rather than clustering them.
type DistanceMap struct {
	gridW, gridH int
	downscale    int
	dist         []int
}

const distUnreached = -1

// BuildDistanceMap runs a multi-source BFS from seeds (full-resolution
// pixel coordinates) over a grid downscaled by downscale, so the search
// cost stays proportional to image area divided by downscale^2 rather than
// the number of candidate points squared.
func BuildDistanceMap(width, height int, seeds []r2.Point, downscale int) *DistanceMap {
	if downscale < 1 {
		downscale = 1
	}
	gridW := width/downscale + 1
	gridH := height/downscale + 1

	d := &DistanceMap{gridW: gridW, gridH: gridH, downscale: downscale, dist: make([]int, gridW*gridH)}
	for i := range d.dist {
		d.dist[i] = distUnreached
	}

	type cell struct{ x, y int }
	var queue []cell
	for _, s := range seeds {
		gx, gy := int(s.X)/downscale, int(s.Y)/downscale
		if gx < 0 || gy < 0 || gx >= gridW || gy >= gridH {
			continue
		}
		idx := gy*gridW + gx
		if d.dist[idx] == distUnreached {
			d.dist[idx] = 0
			queue = append(queue, cell{gx, gy})
		}
	}

	neighbors := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for head := 0; head < len(queue); head++ {
		c := queue[head]
		curDist := d.dist[c.y*gridW+c.x]
		for _, n := range neighbors {
			nx, ny := c.x+n[0], c.y+n[1]
			if nx < 0 || ny < 0 || nx >= gridW || ny >= gridH {
				continue
			}
			idx := ny*gridW + nx
			if d.dist[idx] != distUnreached {
				continue
			}
			d.dist[idx] = curDist + 1
			queue = append(queue, cell{nx, ny})
		}
	}
	return d
}

// At returns the grid distance (in downscale-sized cells) from p to the
// nearest seed point, or -1 if no seed reached it (every cell, when the map
// was built with no seeds).
func (d *DistanceMap) At(p r2.Point) int {
	gx, gy := int(p.X)/d.downscale, int(p.Y)/d.downscale
	if gx < 0 || gy < 0 || gx >= d.gridW || gy >= d.gridH {
		return distUnreached
	}
	return d.dist[gy*d.gridW+gx]
}
