package parallel

import "github.com/gogpu/tilefx/pixel"

// DefaultTileSize is the edge length of a CPU tile in pixels.
const DefaultTileSize = 1024

// Grid partitions an area into tiles of a fixed size.
//
// Tiles are laid out in row-major order starting at the area origin. Tiles on
// the right and bottom edge are clipped to the area, so the tiles cover the
// area exactly once with no gaps and no overlap.
type Grid struct {
	area     pixel.Rect
	tileSize int
	cols     int
	rows     int
}

// NewGrid builds the tile grid of area. A tileSize <= 0 selects
// DefaultTileSize.
func NewGrid(area pixel.Rect, tileSize int) Grid {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	g := Grid{area: area, tileSize: tileSize}
	if !area.Empty() {
		g.cols = ceilDiv(area.W, tileSize)
		g.rows = ceilDiv(area.H, tileSize)
	}
	return g
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Cols returns the number of tile columns.
func (g Grid) Cols() int { return g.cols }

// Rows returns the number of tile rows.
func (g Grid) Rows() int { return g.rows }

// Len returns the number of tiles.
func (g Grid) Len() int { return g.cols * g.rows }

// TileSize returns the nominal tile edge length.
func (g Grid) TileSize() int { return g.tileSize }

// Area returns the partitioned area.
func (g Grid) Area() pixel.Rect { return g.area }

// Tile returns the clipped rectangle of tile (i, j), column i and row j.
func (g Grid) Tile(i, j int) pixel.Rect {
	x := i * g.tileSize
	y := j * g.tileSize
	return pixel.Rect{
		X: g.area.X + x,
		Y: g.area.Y + y,
		W: min(g.tileSize, g.area.W-x),
		H: min(g.tileSize, g.area.H-y),
	}
}

// Each calls fn for every tile in row-major order.
func (g Grid) Each(fn func(i, j int, r pixel.Rect)) {
	for j := 0; j < g.rows; j++ {
		for i := 0; i < g.cols; i++ {
			fn(i, j, g.Tile(i, j))
		}
	}
}

// Tiles returns every tile rectangle in row-major order.
func (g Grid) Tiles() []pixel.Rect {
	out := make([]pixel.Rect, 0, g.Len())
	g.Each(func(_, _ int, r pixel.Rect) {
		out = append(out, r)
	})
	return out
}
