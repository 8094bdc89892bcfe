package workpool

import "sort"

// TileCoord addresses a single stored tile: a pyramid level plus a tile-x/
// tile-y position within that level's lattice.
type TileCoord struct {
	Level int
	TileX int
	TileY int
}

// xyToHilbert converts (x, y) to a Hilbert curve index for an n x n grid.
// n must be a power of two. Adapted from pspoerri/geotiff2pmtiles's
// internal/coord/hilbert.go, which used this to order PMTiles slippy-map
// tiles; here it orders lattice tile coordinates within one pyramid level.
func xyToHilbert(x, y, n uint64) uint64 {
	var d uint64
	s := n / 2
	for s > 0 {
		var rx, ry uint64
		if (x & s) > 0 {
			rx = 1
		}
		if (y & s) > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		if ry == 0 {
			if rx == 1 {
				x = s*2 - 1 - x
				y = s*2 - 1 - y
			}
			x, y = y, x
		}
		s /= 2
	}
	return d
}

// nextPowerOfTwo returns the smallest power of two >= v (minimum 1).
func nextPowerOfTwo(v uint64) uint64 {
	n := uint64(1)
	for n < v {
		n <<= 1
	}
	return n
}

// SortByHilbert orders a synchronous fetch batch along a Hilbert space-
// filling curve so that tiles close together in the lattice are fetched
// close together in time, improving BackendGateway/TileCache locality for
// workers draining the batch from a shared queue. All tiles must belong to
// the same pyramid level; the per-call bounded fetch pool enforces this by
// construction (a single read plan never spans levels).
func SortByHilbert(tiles []TileCoord) {
	if len(tiles) <= 1 {
		return
	}
	var maxCoord uint64
	for _, t := range tiles {
		if x := uint64(t.TileX); x > maxCoord {
			maxCoord = x
		}
		if y := uint64(t.TileY); y > maxCoord {
			maxCoord = y
		}
	}
	n := nextPowerOfTwo(maxCoord + 1)

	indices := make([]uint64, len(tiles))
	for i, t := range tiles {
		indices[i] = xyToHilbert(uint64(t.TileX), uint64(t.TileY), n)
	}
	sort.Sort(hilbertSorter{tiles: tiles, indices: indices})
}

type hilbertSorter struct {
	tiles   []TileCoord
	indices []uint64
}

func (s hilbertSorter) Len() int           { return len(s.tiles) }
func (s hilbertSorter) Less(i, j int) bool { return s.indices[i] < s.indices[j] }
func (s hilbertSorter) Swap(i, j int) {
	s.tiles[i], s.tiles[j] = s.tiles[j], s.tiles[i]
	s.indices[i], s.indices[j] = s.indices[j], s.indices[i]
}
