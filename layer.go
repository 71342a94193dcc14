package tilefx

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/pixel"
)

// Layer residency errors.
var (
	// ErrNotResident is returned when a layer holds no copy for a backend.
	ErrNotResident = errors.New("tilefx: layer has no data for backend")

	// ErrStale is returned when the copy for a backend is out of date.
	ErrStale = errors.New("tilefx: layer data for backend is stale")

	// ErrNoDevice is returned when the layer was not given a device for a
	// backend, or the device was released.
	ErrNoDevice = errors.New("tilefx: no device for backend")

	// ErrMismatch is returned when two layers disagree on format or size.
	ErrMismatch = errors.New("tilefx: layer format or size mismatch")
)

// SlotState is the residency state of one backend copy of a layer.
type SlotState uint8

const (
	// Absent means the backend holds no storage for the layer.
	Absent SlotState = iota
	// Valid means the backend copy holds the current pixels.
	Valid
	// Stale means the backend has storage but another copy was written
	// after it.
	Stale
)

func (s SlotState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Valid:
		return "valid"
	case Stale:
		return "stale"
	}
	return "state(?)"
}

// Plan declares the backend copies an operation reads and writes.
// Committing a plan leaves the written copies valid and every other resident
// copy stale.
type Plan struct {
	Read  backend.Set
	Write backend.Set
}

type slot struct {
	dev   *backend.Shared
	img   backend.Image
	state SlotState
}

// slotIndex maps a backend id onto the slot array.
func slotIndex(id backend.ID) int {
	switch id {
	case backend.GPU:
		return 0
	case backend.CPU:
		return 1
	}
	return -1
}

// Layer is an image with up to one copy per backend.
//
// Every copy agrees with the layer on format and size. Copies are never
// synchronized implicitly: after a write only the written copies are valid,
// and a caller that needs the pixels on another backend asks for them with
// UpdateDataForBackend.
//
// Layer keeps weak references to the devices it may use and a strong one
// for every backend it holds storage on.
//
// Thread safety: the residency bookkeeping is safe for concurrent use. Pixel
// writes through the backend images are not synchronized by the layer.
type Layer struct {
	mu      sync.RWMutex
	name    string
	devices [2]*backend.WeakRef
	format  pixel.Format
	w, h    int
	slots   [2]slot
	version uint64
}

// NewLayer returns an empty layer that may materialize on devices.
func NewLayer(name string, devices ...*backend.Shared) *Layer {
	l := &Layer{name: name}
	for _, d := range devices {
		if d == nil {
			continue
		}
		if i := slotIndex(d.Get().ID()); i >= 0 {
			l.devices[i] = d.Weak()
		}
	}
	return l
}

// Name returns the layer name.
func (l *Layer) Name() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.name
}

// SetName renames the layer.
func (l *Layer) SetName(name string) {
	l.mu.Lock()
	l.name = name
	l.mu.Unlock()
}

// Format returns the pixel format.
func (l *Layer) Format() pixel.Format {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.format
}

// Width returns the width in pixels.
func (l *Layer) Width() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.w
}

// Height returns the height in pixels.
func (l *Layer) Height() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.h
}

// Bounds returns the full rectangle of the layer.
func (l *Layer) Bounds() pixel.Rect {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return pixel.Full(l.w, l.h)
}

// Empty reports whether the layer has no format or no pixels.
func (l *Layer) Empty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.format == pixel.Empty || l.w == 0 || l.h == 0
}

// SameShape reports whether o has the format and size of l.
func (l *Layer) SameShape(o *Layer) bool {
	if l == o {
		return true
	}
	f, w, h := o.shape()
	lf, lw, lh := l.shape()
	return f == lf && w == lw && h == lh
}

func (l *Layer) shape() (pixel.Format, int, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.format, l.w, l.h
}

// Devices returns the backends the layer can materialize on.
func (l *Layer) Devices() backend.Set {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var s backend.Set
	for _, id := range backend.All {
		if w := l.devices[slotIndex(id)]; w != nil && !w.Expired() {
			s = s.With(id)
		}
	}
	return s
}

// device returns a strong reference to the device of id.
func (l *Layer) device(id backend.ID) (*backend.Shared, error) {
	i := slotIndex(id)
	if i < 0 || l.devices[i] == nil {
		return nil, errors.Wrapf(ErrNoDevice, "%v", id)
	}
	d, ok := l.devices[i].Upgrade()
	if !ok {
		return nil, errors.Wrapf(ErrNoDevice, "%v device released", id)
	}
	return d, nil
}

// Reset (re)creates zeroed storage of format f and size w x h on backend id.
// If the shape changes every other copy is dropped; otherwise the other
// copies turn stale.
func (l *Layer) Reset(id backend.ID, f pixel.Format, w, h int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetLocked(id, f, w, h, nil)
}

// ResetFromData is Reset seeded with data.
func (l *Layer) ResetFromData(id backend.ID, f pixel.Format, w, h int, data []byte) error {
	if need := pixel.BufferSize(f, w, h); len(data) < need {
		return errors.Wrapf(backend.ErrBufferSize, "have %d bytes, need %d", len(data), need)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetLocked(id, f, w, h, data)
}

// ResetFromBitmap is Reset seeded with the contents of b.
func (l *Layer) ResetFromBitmap(id backend.ID, b *Bitmap) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return l.ResetFromData(id, b.Format, b.Width, b.Height, b.Data)
}

// ResetFromBitmapArea is ResetFromBitmap with the r part of b.
func (l *Layer) ResetFromBitmapArea(id backend.ID, b *Bitmap, r pixel.Rect) error {
	sub, err := b.Sub(r)
	if err != nil {
		return err
	}
	return l.ResetFromBitmap(id, sub)
}

func (l *Layer) resetLocked(id backend.ID, f pixel.Format, w, h int, data []byte) error {
	i := slotIndex(id)
	if i < 0 {
		return errors.Wrapf(backend.ErrBackendNotAvailable, "%v", id)
	}
	if !f.IsValid() {
		return errors.Wrapf(backend.ErrUnsupportedFormat, "format %v", f)
	}
	if w < 0 || h < 0 {
		return errors.Wrapf(backend.ErrOutOfBounds, "size %dx%d", w, h)
	}
	if d := l.devices[i]; d == nil || d.Expired() {
		return errors.Wrapf(ErrNoDevice, "%v", id)
	}
	if f != l.format || w != l.w || h != l.h {
		for j := range l.slots {
			l.releaseSlot(j)
		}
		l.format, l.w, l.h = f, w, h
	}
	s := &l.slots[i]
	if s.img == nil {
		dev, err := l.device(id)
		if err != nil {
			return err
		}
		s.dev = dev
		s.img = dev.Get().NewImage()
	}
	var err error
	if data != nil {
		err = s.img.CreateFromData(f, w, h, data)
	} else {
		err = s.img.Create(f, w, h)
	}
	if err != nil {
		l.releaseSlot(i)
		return errors.Wrapf(err, "tilefx: reset %q on %v", l.name, id)
	}
	l.markWrittenLocked(backend.SetOf(id))
	return nil
}

// Clear drops every copy and leaves the layer empty.
func (l *Layer) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.slots {
		l.releaseSlot(i)
	}
	l.format, l.w, l.h = pixel.Empty, 0, 0
}

func (l *Layer) releaseSlot(i int) {
	s := &l.slots[i]
	if s.img != nil {
		s.dev.Get().DestroyImage(s.img)
	}
	if s.dev != nil {
		s.dev.Release()
	}
	*s = slot{}
}

// ContainsDataForBackend reports whether the copy on id is valid.
func (l *Layer) ContainsDataForBackend(id backend.ID) bool {
	return l.State(id) == Valid
}

// State returns the residency state of the copy on id.
func (l *Layer) State(id backend.ID) SlotState {
	i := slotIndex(id)
	if i < 0 {
		return Absent
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slots[i].state
}

// Version returns a counter that changes whenever the pixels of the layer
// may have changed.
func (l *Layer) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// ValidBackends returns the backends holding a valid copy.
func (l *Layer) ValidBackends() backend.Set {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.setLocked(func(s SlotState) bool { return s == Valid })
}

// ResidentBackends returns the backends holding any storage.
func (l *Layer) ResidentBackends() backend.Set {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.setLocked(func(s SlotState) bool { return s != Absent })
}

func (l *Layer) setLocked(pred func(SlotState) bool) backend.Set {
	var set backend.Set
	for _, id := range backend.All {
		if pred(l.slots[slotIndex(id)].state) {
			set = set.With(id)
		}
	}
	return set
}

// InternalImageForBackend returns the valid copy on id.
func (l *Layer) InternalImageForBackend(id backend.ID) (backend.Image, error) {
	i := slotIndex(id)
	if i < 0 {
		return nil, errors.Wrapf(ErrNotResident, "%v", id)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch l.slots[i].state {
	case Valid:
		return l.slots[i].img, nil
	case Stale:
		return nil, errors.Wrapf(ErrStale, "layer %q on %v", l.name, id)
	}
	return nil, errors.Wrapf(ErrNotResident, "layer %q on %v", l.name, id)
}

// UpdateDataForBackend makes the copy on id valid by transferring the pixels
// of a valid copy on another backend through host memory.
func (l *Layer) UpdateDataForBackend(id backend.ID) error {
	i := slotIndex(id)
	if i < 0 {
		return errors.Wrapf(backend.ErrBackendNotAvailable, "%v", id)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots[i].state == Valid {
		return nil
	}
	if l.format == pixel.Empty {
		return errors.Wrapf(ErrNotResident, "layer %q is empty", l.name)
	}
	var src backend.Image
	for _, other := range backend.All {
		if s := l.slots[slotIndex(other)]; other != id && s.state == Valid {
			src = s.img
			break
		}
	}
	if src == nil {
		return errors.Wrapf(ErrNotResident, "layer %q has no valid copy to update %v from", l.name, id)
	}
	buf := make([]byte, pixel.BufferSize(l.format, l.w, l.h))
	if err := src.Retrieve(buf, pixel.Full(l.w, l.h)); err != nil {
		return errors.Wrapf(err, "tilefx: update %v", id)
	}

	s := &l.slots[i]
	if s.img == nil {
		dev, err := l.device(id)
		if err != nil {
			return err
		}
		s.dev = dev
		s.img = dev.Get().NewImage()
	}
	var err error
	if s.img.Empty() {
		err = s.img.CreateFromData(l.format, l.w, l.h, buf)
	} else {
		err = s.img.Upload(buf, pixel.Full(l.w, l.h))
	}
	if err != nil {
		l.releaseSlot(i)
		return errors.Wrapf(err, "tilefx: update %v", id)
	}
	s.state = Valid
	Logger().Debug("layer copy updated", "layer", l.name, "backend", id.String(), "from", src.Backend().String())
	return nil
}

// Synchronize updates every stale copy.
func (l *Layer) Synchronize() error {
	for _, id := range l.ResidentBackends().IDs() {
		if l.State(id) == Stale {
			if err := l.UpdateDataForBackend(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateInternalState marks the copy on id as the most recently written.
func (l *Layer) UpdateInternalState(id backend.ID) error {
	return l.Commit(Plan{Write: backend.SetOf(id)})
}

// Commit records the outcome of an operation: every written copy becomes
// valid and every other resident copy stale. Written backends must be
// resident.
func (l *Layer) Commit(p Plan) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	resident := l.setLocked(func(s SlotState) bool { return s != Absent })
	if missing := p.Write &^ resident; !missing.Empty() {
		return errors.Wrapf(ErrNotResident, "layer %q: commit writes %v", l.name, missing)
	}
	l.markWrittenLocked(p.Write)
	return nil
}

func (l *Layer) markWrittenLocked(written backend.Set) {
	l.version++
	for _, id := range backend.All {
		s := &l.slots[slotIndex(id)]
		switch {
		case s.img == nil:
		case written.Has(id):
			s.state = Valid
		default:
			s.state = Stale
		}
	}
}

// DeleteDataForBackend releases the copy on id. Other copies are unchanged.
func (l *Layer) DeleteDataForBackend(id backend.ID) {
	i := slotIndex(id)
	if i < 0 {
		return
	}
	l.mu.Lock()
	l.releaseSlot(i)
	l.mu.Unlock()
}

// readable returns a valid copy, preferring the CPU.
func (l *Layer) readable() (backend.Image, error) {
	for _, id := range backend.All {
		if s := l.slots[slotIndex(id)]; s.state == Valid {
			return s.img, nil
		}
	}
	return nil, errors.Wrapf(ErrNotResident, "layer %q has no valid copy", l.name)
}

// Retrieve copies the whole layer into buf.
func (l *Layer) Retrieve(buf []byte) error {
	return l.RetrieveRect(buf, l.Bounds())
}

// RetrieveRect copies the r part of the layer into buf from a valid copy.
func (l *Layer) RetrieveRect(buf []byte, r pixel.Rect) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	img, err := l.readable()
	if err != nil {
		return err
	}
	return img.Retrieve(buf, r)
}

// Upload writes data into the r part of every valid copy. When a copy fails
// to take the data, the copies already written stay valid and the others
// turn stale.
func (l *Layer) Upload(data []byte, r pixel.Rect) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := backend.CheckRect(r, l.w, l.h); err != nil {
		return errors.Wrapf(err, "layer %q", l.name)
	}
	if err := backend.CheckBuffer(data, l.format, r); err != nil {
		return errors.Wrapf(err, "layer %q", l.name)
	}
	var written backend.Set
	for _, id := range backend.All {
		s := l.slots[slotIndex(id)]
		if s.state != Valid {
			continue
		}
		if err := s.img.Upload(data, r); err != nil {
			l.markWrittenLocked(written)
			return errors.Wrapf(err, "tilefx: upload to %v", id)
		}
		written = written.With(id)
	}
	if written.Empty() {
		return errors.Wrapf(ErrNotResident, "layer %q has no valid copy", l.name)
	}
	l.markWrittenLocked(written)
	return nil
}

// Bitmap returns a host copy of the layer.
func (l *Layer) Bitmap() (*Bitmap, error) {
	f, w, h := l.shape()
	b := NewBitmap(f, w, h)
	if err := l.Retrieve(b.Data); err != nil {
		return nil, err
	}
	return b, nil
}

// Like returns a zeroed layer with the shape and devices of l, resident on
// every backend of set.
func (l *Layer) Like(name string, set backend.Set) (*Layer, error) {
	f, w, h := l.shape()
	out := l.sibling(name)
	for _, id := range set.IDs() {
		if err := out.Reset(id, f, w, h); err != nil {
			out.Release()
			return nil, err
		}
	}
	// Every copy starts zeroed, so all of them hold the same pixels.
	if err := out.Commit(Plan{Write: set}); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// Duplicate returns a copy of l holding a copy of every valid backend copy.
func (l *Layer) Duplicate(name string) (*Layer, error) {
	out, err := l.Like(name, l.ValidBackends())
	if err != nil {
		return nil, err
	}
	r := l.Bounds()
	for _, id := range out.ValidBackends().IDs() {
		src, err := l.InternalImageForBackend(id)
		if err != nil {
			out.Release()
			return nil, err
		}
		dst, _ := out.InternalImageForBackend(id)
		if err := dst.Copy(src, r, 0, 0); err != nil {
			out.Release()
			return nil, errors.Wrapf(err, "tilefx: duplicate %q on %v", l.Name(), id)
		}
	}
	return out, nil
}

func (l *Layer) sibling(name string) *Layer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := &Layer{name: name}
	for i, w := range l.devices {
		if w == nil {
			continue
		}
		if d, ok := w.Upgrade(); ok {
			out.devices[i] = d.Weak()
			d.Release()
		}
	}
	return out
}

// CPUMemory returns the host memory held by every copy.
func (l *Layer) CPUMemory() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var n uint64
	for _, s := range l.slots {
		if s.img != nil {
			n += s.img.CPUMemory()
		}
	}
	return n
}

// GPUMemory returns the device memory held by every copy.
func (l *Layer) GPUMemory() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var n uint64
	for _, s := range l.slots {
		if s.img != nil {
			n += s.img.GPUMemory()
		}
	}
	return n
}

// Release drops every copy and detaches the layer from its devices.
func (l *Layer) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.slots {
		l.releaseSlot(i)
	}
	for i, w := range l.devices {
		w.Reset()
		l.devices[i] = nil
	}
	l.format, l.w, l.h = pixel.Empty, 0, 0
}
