// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/internal/atomicx"
	"github.com/gogpu/tilefx/pixel"
)

// tile is one slot of the image tile grid.
//
// A resident tile holds a pooled texture. In streamlined mode a tile may
// instead hold a host backup of its texels, or nothing at all when it was
// never written (it then reads as zero).
type tile struct {
	// logical is the part of the image covered by the tile, clamped at the
	// image edge. physical is the full tileSize^2 texture area.
	logical  pixel.Rect
	physical pixel.Rect

	tex    *Texture
	backup []byte

	// pinned > 0 keeps the tile resident while a renderer uses it.
	pinned atomicx.Int32
}

// Image is a tiled GPU image. Every tile is an RGBA8 texture of the device
// tile size; the logical rectangles of the tiles cover the image exactly.
//
// The GPU backend is driven from one goroutine at a time; Image does not
// lock its tiles.
type Image struct {
	dev    *Device
	format pixel.Format
	w, h   int

	tileSize   int
	cols, rows int
	tiles      []*tile
	created    bool
}

var _ backend.Image = (*Image)(nil)

// Backend implements backend.Image.
func (img *Image) Backend() backend.ID { return backend.GPU }

// Device returns the owning device.
func (img *Image) Device() *Device { return img.dev }

// Width implements backend.Image.
func (img *Image) Width() int { return img.w }

// Height implements backend.Image.
func (img *Image) Height() int { return img.h }

// Format implements backend.Image.
func (img *Image) Format() pixel.Format { return img.format }

// Bounds returns the full image rectangle.
func (img *Image) Bounds() pixel.Rect { return pixel.Full(img.w, img.h) }

// Empty reports whether the image holds no pixels.
func (img *Image) Empty() bool { return !img.created || img.w == 0 || img.h == 0 }

// TileSize returns the tile edge length.
func (img *Image) TileSize() int { return img.tileSize }

// TileCount returns the number of tile columns and rows.
func (img *Image) TileCount() (cols, rows int) { return img.cols, img.rows }

// LogicalRect returns the image area covered by tile (nx, ny).
func (img *Image) LogicalRect(nx, ny int) pixel.Rect {
	return img.tiles[ny*img.cols+nx].logical
}

// PhysicalRect returns the texture area of tile (nx, ny) in image space.
func (img *Image) PhysicalRect(nx, ny int) pixel.Rect {
	return img.tiles[ny*img.cols+nx].physical
}

// TileTexture returns the texture of tile (nx, ny), materializing it in
// streamlined mode.
func (img *Image) TileTexture(nx, ny int) (*Texture, error) {
	t, err := img.tileAt(nx, ny)
	if err != nil {
		return nil, err
	}
	if err := img.materialize(t); err != nil {
		return nil, err
	}
	return t.tex, nil
}

// TileRenderTarget acquires a render target matching tile (nx, ny). The
// caller releases it.
func (img *Image) TileRenderTarget(nx, ny int) (*Texture, error) {
	if _, err := img.tileAt(nx, ny); err != nil {
		return nil, err
	}
	return img.dev.AcquireRenderTarget(uint32(img.tileSize))
}

// TextureAtPosition returns the texture of the tile containing pixel (x, y).
func (img *Image) TextureAtPosition(x, y int) (*Texture, error) {
	return img.TileTexture(x/img.tileSize, y/img.tileSize)
}

// RenderTargetAtPosition acquires a render target for the tile containing
// pixel (x, y).
func (img *Image) RenderTargetAtPosition(x, y int) (*Texture, error) {
	return img.TileRenderTarget(x/img.tileSize, y/img.tileSize)
}

func (img *Image) tileAt(nx, ny int) (*tile, error) {
	if img.Empty() {
		return nil, backend.ErrEmpty
	}
	if nx < 0 || ny < 0 || nx >= img.cols || ny >= img.rows {
		return nil, errors.Wrapf(backend.ErrOutOfBounds, "tile (%d,%d) of %dx%d", nx, ny, img.cols, img.rows)
	}
	return img.tiles[ny*img.cols+nx], nil
}

func checkFormat(f pixel.Format, w, h int) error {
	if w < 0 || h < 0 {
		return errors.Wrapf(backend.ErrOutOfBounds, "size %dx%d", w, h)
	}
	switch f {
	case pixel.Mono8, pixel.RGB8, pixel.RGBA8:
		return nil
	}
	return errors.Wrapf(backend.ErrUnsupportedFormat, "gpu: %v", f)
}

// Create implements backend.Image. In realtime mode every tile texture is
// acquired and zeroed here; in streamlined mode tiles stay empty until they
// are first touched.
func (img *Image) Create(f pixel.Format, w, h int) error {
	if err := checkFormat(f, w, h); err != nil {
		return err
	}
	if err := img.dev.checkOpen(); err != nil {
		return err
	}
	img.DiscardBuffers()

	ts := img.dev.TileSize()
	img.format, img.w, img.h, img.tileSize = f, w, h, ts
	img.cols = (w + ts - 1) / ts
	img.rows = (h + ts - 1) / ts
	img.tiles = make([]*tile, 0, img.cols*img.rows)
	for ny := 0; ny < img.rows; ny++ {
		for nx := 0; nx < img.cols; nx++ {
			phys := pixel.R(nx*ts, ny*ts, ts, ts)
			img.tiles = append(img.tiles, &tile{
				physical: phys,
				logical:  phys.Clip(w, h),
			})
		}
	}
	img.created = true

	if img.dev.Mode() == Realtime {
		for _, t := range img.tiles {
			if err := img.materialize(t); err != nil {
				img.DiscardBuffers()
				return errors.Wrapf(err, "gpu: allocate %dx%d %v", w, h, f)
			}
		}
	}
	slogger().Debug("gpu image created", "format", f.String(), "w", w, "h", h,
		"tiles", len(img.tiles), "mode", img.dev.Mode().String())
	return nil
}

// CreateFromData implements backend.Image.
func (img *Image) CreateFromData(f pixel.Format, w, h int, data []byte) error {
	if err := img.Create(f, w, h); err != nil {
		return err
	}
	if img.Empty() {
		return nil
	}
	return img.Upload(data, img.Bounds())
}

// materialize makes sure t has a texture holding its current texels.
func (img *Image) materialize(t *tile) error {
	d := img.dev
	if t.tex != nil {
		if d.Mode() == Streamlined {
			d.memory.Touch(t)
		}
		return nil
	}
	size := uint32(img.tileSize)
	if d.Mode() == Streamlined {
		if err := d.memory.Reserve(t, uint64(size)*uint64(size)*tileBytesPerPixel); err != nil {
			return err
		}
	}
	tex, err := d.AcquireTexture(size)
	if err != nil {
		if d.Mode() == Streamlined {
			d.memory.Forget(t)
		}
		return err
	}
	data := t.backup
	if data == nil {
		data = make([]byte, int(size)*int(size)*tileBytesPerPixel)
	}
	if err := d.writeTexture(tex, data); err != nil {
		tex.Release()
		if d.Mode() == Streamlined {
			d.memory.Forget(t)
		}
		return err
	}
	if t.backup != nil {
		d.backupBytes.Sub(uint64(len(t.backup)))
		t.backup = nil
	}
	t.tex = tex
	return nil
}

// evictTile moves the texels of t to host memory and returns its texture to
// the pool. Called by the memory manager.
func (d *Device) evictTile(t *tile) error {
	if t.tex == nil {
		return nil
	}
	data, err := d.readTexture(t.tex)
	if err != nil {
		return err
	}
	t.backup = data
	d.backupBytes.Add(uint64(len(data)))
	t.tex.Release()
	t.tex = nil
	slogger().Debug("tile evicted", "tile", t.logical)
	return nil
}

// readTile returns the tightly packed RGBA8 texels of t.
func (img *Image) readTile(t *tile) ([]byte, error) {
	if t.tex == nil {
		n := img.tileSize * img.tileSize * tileBytesPerPixel
		out := make([]byte, n)
		copy(out, t.backup)
		return out, nil
	}
	if img.dev.Mode() == Streamlined {
		img.dev.memory.Touch(t)
	}
	return img.dev.readTexture(t.tex)
}

// writeTile replaces the texels of t.
func (img *Image) writeTile(t *tile, data []byte) error {
	if err := img.materialize(t); err != nil {
		return err
	}
	return img.dev.writeTexture(t.tex, data)
}

func (img *Image) checkIO(buf []byte, r pixel.Rect) error {
	if r.Empty() {
		return nil
	}
	if img.Empty() {
		return backend.ErrEmpty
	}
	if err := backend.CheckRect(r, img.w, img.h); err != nil {
		return err
	}
	return backend.CheckBuffer(buf, img.format, r)
}

// Retrieve implements backend.Image. Every tile overlapping r is read back
// through a staging buffer.
func (img *Image) Retrieve(buf []byte, r pixel.Rect) error {
	if err := img.checkIO(buf, r); err != nil {
		return err
	}
	if r.Empty() {
		return nil
	}
	codec := pixel.CodecFor(img.format)
	for _, t := range img.tiles {
		part := t.logical.Intersect(r)
		if part.Empty() {
			continue
		}
		texels, err := img.readTile(t)
		if err != nil {
			return errors.Wrapf(err, "gpu: retrieve tile %v", t.logical)
		}
		for y := part.Y; y < part.Bottom(); y++ {
			for x := part.X; x < part.Right(); x++ {
				src := ((y-t.physical.Y)*img.tileSize + (x - t.physical.X)) * tileBytesPerPixel
				dst := (y-r.Y)*r.W + (x - r.X)
				for ch := 0; ch < codec.Channels(); ch++ {
					buf[dst*codec.Size()+ch] = texels[src+ch]
				}
			}
		}
	}
	return nil
}

// Upload implements backend.Image. Tiles only partly covered by r are read
// back first.
func (img *Image) Upload(data []byte, r pixel.Rect) error {
	if err := img.checkIO(data, r); err != nil {
		return err
	}
	if r.Empty() {
		return nil
	}
	codec := pixel.CodecFor(img.format)
	for _, t := range img.tiles {
		part := t.logical.Intersect(r)
		if part.Empty() {
			continue
		}
		var texels []byte
		if part == t.logical {
			texels = make([]byte, img.tileSize*img.tileSize*tileBytesPerPixel)
		} else {
			var err error
			if texels, err = img.readTile(t); err != nil {
				return errors.Wrapf(err, "gpu: upload tile %v", t.logical)
			}
		}
		for y := part.Y; y < part.Bottom(); y++ {
			for x := part.X; x < part.Right(); x++ {
				dst := ((y-t.physical.Y)*img.tileSize + (x - t.physical.X)) * tileBytesPerPixel
				src := ((y-r.Y)*r.W + (x - r.X)) * codec.Size()
				encodeTexel(texels[dst:dst+tileBytesPerPixel], data[src:src+codec.Size()])
			}
		}
		if err := img.writeTile(t, texels); err != nil {
			return errors.Wrapf(err, "gpu: upload tile %v", t.logical)
		}
	}
	return nil
}

// encodeTexel widens one 8-bit pixel to RGBA8. Mono is replicated into RGB;
// formats without alpha are opaque.
func encodeTexel(dst, px []byte) {
	switch len(px) {
	case 1:
		dst[0], dst[1], dst[2], dst[3] = px[0], px[0], px[0], 0xFF
	case 3:
		dst[0], dst[1], dst[2], dst[3] = px[0], px[1], px[2], 0xFF
	default:
		copy(dst, px[:4])
	}
}

// Copy implements backend.Image. Pixels travel through the host, so src may
// be img itself with an overlapping rectangle.
func (img *Image) Copy(src backend.Image, r pixel.Rect, dx, dy int) error {
	s, ok := src.(*Image)
	if !ok {
		return errors.Wrapf(backend.ErrWrongBackend, "copy from %v", src.Backend())
	}
	if s.format != img.format {
		return errors.Wrapf(backend.ErrUnsupportedFormat, "copy %v into %v", s.format, img.format)
	}
	if r.Empty() {
		return nil
	}
	if s.Empty() || img.Empty() {
		return backend.ErrEmpty
	}
	if err := backend.CheckRect(pixel.R(dx, dy, r.W, r.H), img.w, img.h); err != nil {
		return err
	}
	buf := make([]byte, r.Area()*img.format.Size())
	if err := s.Retrieve(buf, r); err != nil {
		return err
	}
	return img.Upload(buf, pixel.R(dx, dy, r.W, r.H))
}

// DiscardBuffers returns every tile texture to the device pool and drops
// host backups. Size and format are kept.
func (img *Image) DiscardBuffers() {
	d := img.dev
	for _, t := range img.tiles {
		if d.Mode() == Streamlined {
			d.memory.Forget(t)
		}
		if t.tex != nil {
			t.tex.Release()
			t.tex = nil
		}
		if t.backup != nil {
			d.backupBytes.Sub(uint64(len(t.backup)))
			t.backup = nil
		}
	}
	img.tiles = nil
	img.created = false
}

// Synchronize implements backend.Image.
func (img *Image) Synchronize() error {
	if img.Empty() {
		return nil
	}
	return img.dev.Synchronize()
}

// Resident returns the number of tiles currently holding a texture.
func (img *Image) Resident() int {
	n := 0
	for _, t := range img.tiles {
		if t.tex != nil {
			n++
		}
	}
	return n
}

// CPUMemory implements backend.Image. It counts host backups of evicted
// tiles.
func (img *Image) CPUMemory() uint64 {
	var n uint64
	for _, t := range img.tiles {
		n += uint64(len(t.backup))
	}
	return n
}

// GPUMemory implements backend.Image.
func (img *Image) GPUMemory() uint64 {
	var n uint64
	for _, t := range img.tiles {
		if t.tex != nil {
			n += t.tex.GPUMemory()
		}
	}
	return n
}
