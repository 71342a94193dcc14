package parallel

import "github.com/gogpu/tilefx/pixel"

// Kernel processes one tile. It must only write pixels inside tile.
type Kernel func(tile pixel.Rect)

// ExecuteTiles splits area into tiles of tileSize and runs kernel once per
// tile on the pool.
//
// When manualSync is false ExecuteTiles waits for every tile and returns the
// first task failure. When manualSync is true it returns immediately and the
// caller must Wait on the returned batch before touching the pixels.
func ExecuteTiles(p *WorkerPool, area pixel.Rect, tileSize int, kernel Kernel, manualSync bool) (*Batch, error) {
	b := p.NewBatch()
	grid := NewGrid(area, tileSize)
	grid.Each(func(_, _ int, r pixel.Rect) {
		b.Go(func() { kernel(r) })
	})
	slogger().Debug("tiles submitted", "area", area, "tiles", grid.Len(), "manual", manualSync)
	if manualSync {
		return b, nil
	}
	return b, b.Wait()
}
