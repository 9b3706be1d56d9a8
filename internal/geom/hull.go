package geom

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// ErrDegenerate is returned when a point cloud spans fewer than three
// dimensions, so no solid hull exists.
var ErrDegenerate = errors.New("points do not span three dimensions")

// hullFace is a hull triangle with its outward normal cached.
type hullFace struct {
	v      [3]int
	normal Vec3
	d      float32
}

func newHullFace(points []Vec3, a, b, c int) hullFace {
	n := points[b].Sub(points[a]).Cross(points[c].Sub(points[a]))
	return hullFace{v: [3]int{a, b, c}, normal: n, d: n.Dot(points[a])}
}

func (f hullFace) sees(p Vec3, eps float32) bool {
	return f.normal.Dot(p)-f.d > eps
}

// ConvexHull computes the convex hull of a point cloud and returns the
// hull triangles as indices into the input, wound outward. Interior
// and duplicate points simply never appear in the output.
func ConvexHull(points []Vec3) ([][3]int, error) {
	if len(points) < 4 {
		return nil, fmt.Errorf("%d points: %w", len(points), ErrDegenerate)
	}
	eps := hullEpsilon(points)

	i0, i1, i2, i3, err := initialTetrahedron(points, eps)
	if err != nil {
		return nil, err
	}

	// orient the seed tetrahedron so all four faces point outward
	if newHullFace(points, i0, i1, i2).sees(points[i3], 0) {
		i1, i2 = i2, i1
	}
	faces := []hullFace{
		newHullFace(points, i0, i1, i2),
		newHullFace(points, i0, i2, i3),
		newHullFace(points, i2, i1, i3),
		newHullFace(points, i1, i0, i3),
	}

	for p := range points {
		if p == i0 || p == i1 || p == i2 || p == i3 {
			continue
		}
		faces = addPoint(points, faces, p, eps)
	}

	out := make([][3]int, len(faces))
	for i, f := range faces {
		out[i] = f.v
	}
	return out, nil
}

// addPoint folds one point into the hull: faces that see the point are
// removed, and the horizon ring they leave behind is fanned to the
// point.
func addPoint(points []Vec3, faces []hullFace, p int, eps float32) []hullFace {
	var kept []hullFace
	horizon := map[[2]int]int{}
	for _, f := range faces {
		if !f.sees(points[p], eps) {
			kept = append(kept, f)
			continue
		}
		// a removed face's edges join the horizon unless the matching
		// reversed edge is already there, in which case the edge is
		// interior to the removed region
		for k := 0; k < 3; k++ {
			a, b := f.v[k], f.v[(k+1)%3]
			if horizon[[2]int{b, a}] > 0 {
				delete(horizon, [2]int{b, a})
			} else {
				horizon[[2]int{a, b}]++
			}
		}
	}
	if len(kept) == len(faces) {
		// interior point, hull unchanged
		return faces
	}
	for e := range horizon {
		kept = append(kept, newHullFace(points, e[0], e[1], p))
	}
	return kept
}

// hullEpsilon scales the visibility tolerance to the cloud's extent.
func hullEpsilon(points []Vec3) float32 {
	var m float32
	for _, p := range points {
		for _, c := range p {
			if a := math32.Abs(c); a > m {
				m = a
			}
		}
	}
	return 1e-5 * m * m
}

// initialTetrahedron finds four points in general position.
func initialTetrahedron(points []Vec3, eps float32) (int, int, int, int, error) {
	i0 := 0
	i1 := -1
	for i := 1; i < len(points); i++ {
		if points[i].Sub(points[i0]).Length() > eps {
			i1 = i
			break
		}
	}
	if i1 < 0 {
		return 0, 0, 0, 0, ErrDegenerate
	}
	i2 := -1
	for i := i1 + 1; i < len(points); i++ {
		d := points[i1].Sub(points[i0])
		if d.Cross(points[i].Sub(points[i0])).Length() > eps {
			i2 = i
			break
		}
	}
	if i2 < 0 {
		return 0, 0, 0, 0, ErrDegenerate
	}
	n := points[i1].Sub(points[i0]).Cross(points[i2].Sub(points[i0]))
	i3 := -1
	for i := i2 + 1; i < len(points); i++ {
		if math32.Abs(n.Dot(points[i].Sub(points[i0]))) > eps {
			i3 = i
			break
		}
	}
	if i3 < 0 {
		return 0, 0, 0, 0, ErrDegenerate
	}
	return i0, i1, i2, i3, nil
}
