// Package geom holds the mesh utilities that back model inspection:
// topology bookkeeping, strip generation, vertex-cache ordering,
// tangent-space and volumetric integrals.
package geom

import "fmt"

// edge is an undirected vertex pair, stored low index first.
type edge struct{ a, b int }

func makeEdge(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// Face is a triangle by vertex index, stored with the lowest index
// first so that the same triangle always compares equal regardless of
// which rotation it arrived in. Winding is preserved.
type Face [3]int

func canonical(v0, v1, v2 int) Face {
	switch {
	case v1 < v0 && v1 < v2:
		return Face{v1, v2, v0}
	case v2 < v0 && v2 < v1:
		return Face{v2, v0, v1}
	default:
		return Face{v0, v1, v2}
	}
}

// Mesh is a triangle-topology arena. It owns faces by index and keeps
// the edge-to-face map current, so adjacency queries stay cheap while
// faces are added.
type Mesh struct {
	faces []Face
	index map[Face]int
	edges map[edge][]int
}

// NewMesh returns an empty arena.
func NewMesh() *Mesh {
	return &Mesh{
		index: map[Face]int{},
		edges: map[edge][]int{},
	}
}

// AddFace records a triangle and returns its index. Degenerate
// triangles are rejected and duplicates return the index of the first
// copy.
func (m *Mesh) AddFace(v0, v1, v2 int) (int, error) {
	if v0 < 0 || v1 < 0 || v2 < 0 {
		return 0, fmt.Errorf("negative vertex index in (%d, %d, %d)", v0, v1, v2)
	}
	if v0 == v1 || v1 == v2 || v2 == v0 {
		return 0, fmt.Errorf("degenerate triangle (%d, %d, %d)", v0, v1, v2)
	}
	f := canonical(v0, v1, v2)
	if i, ok := m.index[f]; ok {
		return i, nil
	}
	i := len(m.faces)
	m.faces = append(m.faces, f)
	m.index[f] = i
	for k := 0; k < 3; k++ {
		e := makeEdge(f[k], f[(k+1)%3])
		m.edges[e] = append(m.edges[e], i)
	}
	return i, nil
}

// NumFaces reports how many distinct triangles the arena holds.
func (m *Mesh) NumFaces() int { return len(m.faces) }

// Face returns the i-th triangle.
func (m *Mesh) Face(i int) Face { return m.faces[i] }

// Faces returns all triangles in insertion order.
func (m *Mesh) Faces() []Face { return m.faces }

// FacesOnEdge lists the faces sharing the undirected edge (a, b).
func (m *Mesh) FacesOnEdge(a, b int) []int { return m.edges[makeEdge(a, b)] }

// Neighbors lists the faces sharing at least one edge with face i,
// excluding i itself.
func (m *Mesh) Neighbors(i int) []int {
	f := m.faces[i]
	var out []int
	seen := map[int]bool{i: true}
	for k := 0; k < 3; k++ {
		for _, j := range m.FacesOnEdge(f[k], f[(k+1)%3]) {
			if !seen[j] {
				seen[j] = true
				out = append(out, j)
			}
		}
	}
	return out
}
