// Package spatial provides the uniform-cell broad-phase index used to
// limit collision pair candidates.
//
// Cells are stored in row-major order with preallocated slices to
// minimize GC pressure. An id index records each entity's stored AABB
// so removal touches only the cells that entity occupies.
package spatial

import "math"

type entry struct {
	x, y, radius float64
	// covered cell range, cached so Remove is O(k) in cells covered
	minCol, maxCol, minRow, maxRow int
}

// Grid is a uniform spatial grid keyed by entity id. An entity is
// appended to every cell its circle's AABB intersects.
type Grid struct {
	cellSize    float64
	invCellSize float64 // 1/cellSize for faster division
	cols, rows  int
	cells       [][]string
	index       map[string]entry
	scratch     []string // reusable buffer for query results
}

// NewGrid creates a grid covering a worldWidth x worldHeight field.
// cellSize should be at least the largest query radius.
func NewGrid(worldWidth, worldHeight, cellSize float64) *Grid {
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]string, cols*rows)
	for i := range cells {
		cells[i] = make([]string, 0, 4)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		index:       make(map[string]entry),
		scratch:     make([]string, 0, 64),
	}
}

// cellRange computes the clamped cell range covering the AABB of a
// circle at (x, y) with the given radius.
func (g *Grid) cellRange(x, y, radius float64) (minCol, maxCol, minRow, maxRow int) {
	minCol = int((x - radius) * g.invCellSize)
	maxCol = int((x + radius) * g.invCellSize)
	minRow = int((y - radius) * g.invCellSize)
	maxRow = int((y + radius) * g.invCellSize)

	if minCol < 0 {
		minCol = 0
	}
	if maxCol >= g.cols {
		maxCol = g.cols - 1
	}
	if minRow < 0 {
		minRow = 0
	}
	if maxRow >= g.rows {
		maxRow = g.rows - 1
	}
	if minCol >= g.cols {
		minCol = g.cols - 1
	}
	if minRow >= g.rows {
		minRow = g.rows - 1
	}
	if maxCol < minCol {
		maxCol = minCol
	}
	if maxRow < minRow {
		maxRow = minRow
	}
	return minCol, maxCol, minRow, maxRow
}

// Insert adds an entity. Inserting an id that is already present
// refreshes its position (equivalent to Update).
func (g *Grid) Insert(id string, x, y, radius float64) {
	if _, ok := g.index[id]; ok {
		g.Remove(id)
	}

	minCol, maxCol, minRow, maxRow := g.cellRange(x, y, radius)
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			idx := row*g.cols + col
			g.cells[idx] = append(g.cells[idx], id)
		}
	}

	g.index[id] = entry{
		x: x, y: y, radius: radius,
		minCol: minCol, maxCol: maxCol, minRow: minRow, maxRow: maxRow,
	}
}

// Remove strips an entity from the cells it occupies. Unknown ids are
// a no-op. O(k) in cells covered.
func (g *Grid) Remove(id string) {
	e, ok := g.index[id]
	if !ok {
		return
	}

	for row := e.minRow; row <= e.maxRow; row++ {
		for col := e.minCol; col <= e.maxCol; col++ {
			idx := row*g.cols + col
			cell := g.cells[idx]
			for i, other := range cell {
				if other == id {
					cell[i] = cell[len(cell)-1]
					g.cells[idx] = cell[:len(cell)-1]
					break
				}
			}
		}
	}

	delete(g.index, id)
}

// Update moves an entity to a new position. When the new AABB covers
// the same cell range, only the index entry is refreshed.
func (g *Grid) Update(id string, x, y, radius float64) {
	e, ok := g.index[id]
	if !ok {
		g.Insert(id, x, y, radius)
		return
	}

	minCol, maxCol, minRow, maxRow := g.cellRange(x, y, radius)
	if minCol == e.minCol && maxCol == e.maxCol && minRow == e.minRow && maxRow == e.maxRow {
		e.x, e.y, e.radius = x, y, radius
		g.index[id] = e
		return
	}

	g.Remove(id)
	g.Insert(id, x, y, radius)
}

// Clear resets all cells and the index without deallocating cell
// memory.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	for id := range g.index {
		delete(g.index, id)
	}
}

// Contains reports whether the entity is currently indexed.
func (g *Grid) Contains(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Len returns the number of indexed entities.
func (g *Grid) Len() int { return len(g.index) }

// QueryRegion returns the ids intersecting the rectangle, deduplicated.
//
// IMPORTANT: the returned slice is reused on subsequent calls. Copy
// the results if you need to persist them.
func (g *Grid) QueryRegion(minX, minY, maxX, maxY float64) []string {
	g.scratch = g.scratch[:0]

	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2
	rx := (maxX - minX) / 2
	ry := (maxY - minY) / 2
	r := rx
	if ry > r {
		r = ry
	}

	minCol, maxCol, minRow, maxRow := g.cellRange(cx, cy, r)
	seen := make(map[string]struct{}, 16)
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, id := range g.cells[row*g.cols+col] {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				g.scratch = append(g.scratch, id)
			}
		}
	}
	return g.scratch
}

// Nearby returns the ids whose cells intersect the entity's AABB
// expanded by radius, excluding the entity itself. The returned slice
// is reused like QueryRegion's.
func (g *Grid) Nearby(id string, radius float64) []string {
	e, ok := g.index[id]
	if !ok {
		return nil
	}

	r := e.radius + radius
	candidates := g.QueryRegion(e.x-r, e.y-r, e.x+r, e.y+r)

	n := 0
	for _, other := range candidates {
		if other != id {
			candidates[n] = other
			n++
		}
	}
	return candidates[:n]
}

// Position returns the stored position and radius for an entity.
func (g *Grid) Position(id string) (x, y, radius float64, ok bool) {
	e, found := g.index[id]
	if !found {
		return 0, 0, 0, false
	}
	return e.x, e.y, e.radius, true
}

// Stats returns occupancy statistics for debugging.
func (g *Grid) Stats() GridStats {
	var total, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		n := len(cell)
		total += n
		if n > maxInCell {
			maxInCell = n
		}
		if n > 0 {
			nonEmpty++
		}
	}
	return GridStats{
		TotalCells:    len(g.cells),
		NonEmptyCells: nonEmpty,
		TotalEntries:  total,
		MaxInCell:     maxInCell,
		Entities:      len(g.index),
	}
}

// GridStats contains grid occupancy counters.
type GridStats struct {
	TotalCells    int
	NonEmptyCells int
	TotalEntries  int
	MaxInCell     int
	Entities      int
}
