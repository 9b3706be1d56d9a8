package geom

import "fmt"

// TangentSpace derives per-vertex tangents and bitangents from
// positions, normals and texture coordinates. Face contributions are
// accumulated, then each tangent is orthogonalized against its normal
// and the bitangent rebuilt from the pair so the frame stays
// right-handed where the UV winding allows.
func TangentSpace(verts, norms []Vec3, uvs [][2]float32, triangles [][3]int) (tangents, bitangents []Vec3, err error) {
	if len(norms) != len(verts) || len(uvs) != len(verts) {
		return nil, nil, fmt.Errorf("got %d vertices, %d normals, %d uvs", len(verts), len(norms), len(uvs))
	}

	tan := make([]Vec3, len(verts))
	bitan := make([]Vec3, len(verts))
	for _, tri := range triangles {
		i0, i1, i2 := tri[0], tri[1], tri[2]
		if i0 >= len(verts) || i1 >= len(verts) || i2 >= len(verts) {
			return nil, nil, fmt.Errorf("triangle %v indexes past %d vertices", tri, len(verts))
		}

		e1 := verts[i1].Sub(verts[i0])
		e2 := verts[i2].Sub(verts[i0])
		du1 := uvs[i1][0] - uvs[i0][0]
		dv1 := uvs[i1][1] - uvs[i0][1]
		du2 := uvs[i2][0] - uvs[i0][0]
		dv2 := uvs[i2][1] - uvs[i0][1]

		det := du1*dv2 - du2*dv1
		if det == 0 {
			// degenerate UV mapping contributes nothing
			continue
		}
		r := 1 / det
		sdir := e1.Scale(dv2 * r).Sub(e2.Scale(dv1 * r))
		tdir := e2.Scale(du1 * r).Sub(e1.Scale(du2 * r))
		for _, i := range tri {
			tan[i] = tan[i].Add(sdir)
			bitan[i] = bitan[i].Add(tdir)
		}
	}

	tangents = make([]Vec3, len(verts))
	bitangents = make([]Vec3, len(verts))
	for i := range verts {
		n := norms[i]
		t := tan[i].Sub(n.Scale(n.Dot(tan[i]))).Normalized()
		tangents[i] = t

		b := n.Cross(t)
		if b.Dot(bitan[i]) < 0 {
			b = b.Scale(-1)
		}
		bitangents[i] = b
	}
	return tangents, bitangents, nil
}
