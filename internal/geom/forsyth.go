package geom

import "github.com/chewxy/math32"

// Forsyth's linear-speed scoring constants, straight from the paper.
const (
	cacheSize         = 32
	cacheDecayPower   = 1.5
	lastTriScore      = 0.75
	valenceBoostScale = 2.0
	valenceBoostPower = 0.5
)

// vertexScore rates a vertex by how recently it sat in the simulated
// post-transform cache and how few triangles still need it.
func vertexScore(cachePos, remaining int) float32 {
	if remaining <= 0 {
		return -1
	}
	var score float32
	switch {
	case cachePos < 0:
		// not in cache, no bonus
	case cachePos < 3:
		// the three vertices of the previous triangle share a flat
		// bonus so that ordering inside it does not matter
		score = lastTriScore
	default:
		scaled := 1 - float32(cachePos-3)/float32(cacheSize-3)
		score = math32.Pow(scaled, cacheDecayPower)
	}
	score += valenceBoostScale * math32.Pow(float32(remaining), -valenceBoostPower)
	return score
}

// OptimizeVertexCache reorders a triangle list so that vertex reuse
// clusters within the reach of a post-transform cache. Triangles are
// only reordered, never rewound or dropped.
func OptimizeVertexCache(triangles [][3]int, numVertices int) [][3]int {
	if len(triangles) == 0 {
		return nil
	}

	remaining := make([]int, numVertices)
	adjacency := make([][]int, numVertices)
	for t, tri := range triangles {
		for _, v := range tri {
			remaining[v]++
			adjacency[v] = append(adjacency[v], t)
		}
	}

	cachePos := make([]int, numVertices)
	scores := make([]float32, numVertices)
	for v := range scores {
		cachePos[v] = -1
		scores[v] = vertexScore(-1, remaining[v])
	}

	triScore := make([]float32, len(triangles))
	emitted := make([]bool, len(triangles))
	for t, tri := range triangles {
		triScore[t] = scores[tri[0]] + scores[tri[1]] + scores[tri[2]]
	}

	var cache []int
	out := make([][3]int, 0, len(triangles))
	best := bestTriangle(triScore, emitted)

	for best >= 0 {
		tri := triangles[best]
		emitted[best] = true
		out = append(out, tri)

		for _, v := range tri {
			remaining[v]--
			cache = promote(cache, v)
		}
		var evicted []int
		if len(cache) > cacheSize {
			evicted = append(evicted, cache[cacheSize:]...)
			cache = cache[:cacheSize]
		}

		// rescore everything the cache shuffle touched
		touched := map[int]bool{}
		for pos, v := range cache {
			cachePos[v] = pos
			scores[v] = vertexScore(pos, remaining[v])
			touched[v] = true
		}
		for _, v := range append(evicted, tri[0], tri[1], tri[2]) {
			if !touched[v] {
				cachePos[v] = -1
				scores[v] = vertexScore(-1, remaining[v])
				touched[v] = true
			}
		}
		next := -1
		nextScore := float32(0)
		for v := range touched {
			for _, t := range adjacency[v] {
				if emitted[t] {
					continue
				}
				ts := scores[triangles[t][0]] + scores[triangles[t][1]] + scores[triangles[t][2]]
				triScore[t] = ts
				if next < 0 || ts > nextScore {
					next, nextScore = t, ts
				}
			}
		}
		// fall back to a full scan when the neighborhood is exhausted
		if next < 0 {
			next = bestTriangle(triScore, emitted)
		}
		best = next
	}
	return out
}

func bestTriangle(triScore []float32, emitted []bool) int {
	best := -1
	for t := range triScore {
		if emitted[t] {
			continue
		}
		if best < 0 || triScore[t] > triScore[best] {
			best = t
		}
	}
	return best
}

// promote moves v to the front of the cache model, inserting it if
// absent.
func promote(cache []int, v int) []int {
	for i, have := range cache {
		if have == v {
			copy(cache[1:i+1], cache[:i])
			cache[0] = v
			return cache
		}
	}
	cache = append(cache, 0)
	copy(cache[1:], cache)
	cache[0] = v
	return cache
}

// CacheMissRate reports the average transforms per triangle a FIFO
// cache of the given size would spend on the list, a quick way to
// compare orderings.
func CacheMissRate(triangles [][3]int, size int) float32 {
	if len(triangles) == 0 {
		return 0
	}
	var fifo []int
	misses := 0
	for _, tri := range triangles {
		for _, v := range tri {
			if inCache(fifo, v) {
				continue
			}
			misses++
			fifo = append(fifo, v)
			if len(fifo) > size {
				fifo = fifo[1:]
			}
		}
	}
	return float32(misses) / float32(len(triangles))
}

func inCache(fifo []int, v int) bool {
	for _, have := range fifo {
		if have == v {
			return true
		}
	}
	return false
}
