package geom

import "fmt"

// MassProps describes a solid bounded by a closed triangle surface.
type MassProps struct {
	Mass    float32
	Center  Vec3
	Inertia [3][3]float32
}

// MassProperties integrates mass, center of mass and the inertia
// tensor about the center of mass for the solid enclosed by the given
// outward-wound triangle surface, assuming uniform density. The
// surface must be closed; an open surface shows up as a non-positive
// volume integral.
func MassProperties(verts []Vec3, triangles [][3]int, density float32) (MassProps, error) {
	var intg [10]float32

	for _, tri := range triangles {
		p0, p1, p2 := verts[tri[0]], verts[tri[1]], verts[tri[2]]

		e1 := p1.Sub(p0)
		e2 := p2.Sub(p0)
		d := e1.Cross(e2)

		f1x, f2x, f3x, g0x, g1x, g2x := subexpressions(p0[0], p1[0], p2[0])
		_, f2y, f3y, g0y, g1y, g2y := subexpressions(p0[1], p1[1], p2[1])
		_, f2z, f3z, g0z, g1z, g2z := subexpressions(p0[2], p1[2], p2[2])

		intg[0] += d[0] * f1x
		intg[1] += d[0] * f2x
		intg[2] += d[1] * f2y
		intg[3] += d[2] * f2z
		intg[4] += d[0] * f3x
		intg[5] += d[1] * f3y
		intg[6] += d[2] * f3z
		intg[7] += d[0] * (p0[1]*g0x + p1[1]*g1x + p2[1]*g2x)
		intg[8] += d[1] * (p0[2]*g0y + p1[2]*g1y + p2[2]*g2y)
		intg[9] += d[2] * (p0[0]*g0z + p1[0]*g1z + p2[0]*g2z)
	}

	for i, c := range [10]float32{
		1.0 / 6, 1.0 / 24, 1.0 / 24, 1.0 / 24,
		1.0 / 60, 1.0 / 60, 1.0 / 60,
		1.0 / 120, 1.0 / 120, 1.0 / 120,
	} {
		intg[i] *= c
	}

	volume := intg[0]
	if volume <= 0 {
		return MassProps{}, fmt.Errorf("volume integral %g, surface not a closed outward-wound solid", volume)
	}

	mass := density * volume
	center := Vec3{intg[1] / volume, intg[2] / volume, intg[3] / volume}

	// inertia about the origin, then shifted to the center of mass
	var it [3][3]float32
	it[0][0] = density*(intg[5]+intg[6]) - mass*(center[1]*center[1]+center[2]*center[2])
	it[1][1] = density*(intg[4]+intg[6]) - mass*(center[2]*center[2]+center[0]*center[0])
	it[2][2] = density*(intg[4]+intg[5]) - mass*(center[0]*center[0]+center[1]*center[1])
	it[0][1] = -(density*intg[7] - mass*center[0]*center[1])
	it[1][2] = -(density*intg[8] - mass*center[1]*center[2])
	it[0][2] = -(density*intg[9] - mass*center[2]*center[0])
	it[1][0] = it[0][1]
	it[2][1] = it[1][2]
	it[2][0] = it[0][2]

	return MassProps{Mass: mass, Center: center, Inertia: it}, nil
}

// subexpressions evaluates the shared polynomial terms of the face
// integrals in one coordinate.
func subexpressions(w0, w1, w2 float32) (f1, f2, f3, g0, g1, g2 float32) {
	t0 := w0 + w1
	f1 = t0 + w2
	t1 := w0 * w0
	t2 := t1 + w1*t0
	f2 = t2 + w2*f1
	f3 = w0*t1 + w1*t2 + w2*f2
	g0 = f2 + w0*(f1+w0)
	g1 = f2 + w1*(f1+w1)
	g2 = f2 + w2*(f1+w2)
	return
}
