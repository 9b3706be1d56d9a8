package geom

// Stripify converts a triangle list into triangle strips. The strips
// jointly cover exactly the input set: TriangulateStrips of the result
// yields the same triangles, possibly reordered.
//
// The builder is greedy. It seeds a strip at the unused face with the
// fewest unused neighbors, walks over shared edges in both directions
// from the seed, and serializes the resulting face chain.
func Stripify(triangles [][3]int) [][]int {
	m := NewMesh()
	for _, t := range triangles {
		// degenerates cannot join a strip and are dropped, matching
		// what TriangulateStrips does on expansion
		_, _ = m.AddFace(t[0], t[1], t[2])
	}

	used := make([]bool, m.NumFaces())
	var strips [][]int
	for {
		seed := pickSeed(m, used)
		if seed < 0 {
			break
		}
		strips = append(strips, serialize(m, chain(m, used, seed)))
	}
	return strips
}

// pickSeed returns the unused face with the fewest unused neighbors,
// which tends to start strips at mesh borders, or -1 when all faces
// are used.
func pickSeed(m *Mesh, used []bool) int {
	best, bestScore := -1, 4
	for i := range used {
		if used[i] {
			continue
		}
		score := 0
		for _, j := range m.Neighbors(i) {
			if !used[j] {
				score++
			}
		}
		if score < bestScore {
			best, bestScore = i, score
			if score == 0 {
				break
			}
		}
	}
	return best
}

// chain grows a face chain through the seed, where consecutive faces
// share an edge and each new face hangs off the free edge the strip
// order dictates. Faces are marked used as they join.
func chain(m *Mesh, used []bool, seed int) []int {
	f := m.Face(seed)
	used[seed] = true

	forward := walk(m, used, f[1], f[2])
	backward := walk(m, used, f[1], f[0])

	faces := make([]int, 0, len(backward)+1+len(forward))
	for i := len(backward) - 1; i >= 0; i-- {
		faces = append(faces, backward[i])
	}
	faces = append(faces, seed)
	faces = append(faces, forward...)
	return faces
}

// walk repeatedly crosses the edge (u, v) to an unused face, the way a
// strip would, and returns the faces crossed into.
func walk(m *Mesh, used []bool, u, v int) []int {
	var out []int
	for {
		next := -1
		for _, j := range m.FacesOnEdge(u, v) {
			if !used[j] {
				next = j
				break
			}
		}
		if next < 0 {
			return out
		}
		used[next] = true
		out = append(out, next)
		u, v = v, thirdVertex(m.Face(next), u, v)
	}
}

// serialize turns a strip-compatible face chain into the vertex run.
// Vertex order is dictated by the chain's shared edges; when that
// order would start on the wrong winding, a leading duplicate vertex
// shifts the parity, and TriangulateStrips drops the degenerate.
func serialize(m *Mesh, faces []int) []int {
	first := m.Face(faces[0])
	if len(faces) == 1 {
		return []int{first[0], first[1], first[2]}
	}

	second := m.Face(faces[1])
	lead := -1
	for _, v := range first {
		if !contains(second, v) {
			lead = v
			break
		}
	}
	p, q := others(first, lead)
	if len(faces) > 2 {
		// q pivots into the edge the second and third faces share
		w := thirdVertex(second, p, q)
		third := m.Face(faces[2])
		if !(contains(third, q) && contains(third, w)) {
			p, q = q, p
		}
	} else if !sameCycle(first, lead, p, q) {
		p, q = q, p
	}

	strip := []int{lead, p, q}
	if !sameCycle(first, lead, p, q) {
		strip = append([]int{lead}, strip...)
	}
	for _, fi := range faces[1:] {
		u, v := strip[len(strip)-2], strip[len(strip)-1]
		strip = append(strip, thirdVertex(m.Face(fi), u, v))
	}
	return strip
}

func contains(f Face, v int) bool { return f[0] == v || f[1] == v || f[2] == v }

// others returns the two vertices of f besides v, in stored order.
func others(f Face, v int) (int, int) {
	var out []int
	for _, w := range f {
		if w != v {
			out = append(out, w)
		}
	}
	return out[0], out[1]
}

// sameCycle reports whether (a, b, c) is a rotation of f.
func sameCycle(f Face, a, b, c int) bool {
	for i := 0; i < 3; i++ {
		if f[i] == a && f[(i+1)%3] == b && f[(i+2)%3] == c {
			return true
		}
	}
	return false
}

func thirdVertex(f Face, u, v int) int {
	for _, w := range f {
		if w != u && w != v {
			return w
		}
	}
	return -1
}

// TriangulateStrips expands triangle strips back into a triangle
// list. Alternate triangles flip winding, and degenerate entries
// (repeated indices used for strip stitching) are dropped.
func TriangulateStrips(strips [][]int) [][3]int {
	var out [][3]int
	for _, strip := range strips {
		for i := 0; i+2 < len(strip); i++ {
			a, b, c := strip[i], strip[i+1], strip[i+2]
			if a == b || b == c || c == a {
				continue
			}
			if i%2 == 1 {
				a, b = b, a
			}
			out = append(out, [3]int{a, b, c})
		}
	}
	return out
}
