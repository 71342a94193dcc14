package backend

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx/internal/handle"
	"github.com/gogpu/tilefx/pixel"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when a device is used before Initialize.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrWrongBackend is returned when an image of another backend is passed.
	ErrWrongBackend = errors.New("backend: image belongs to another backend")

	// ErrOutOfBounds is returned for rectangles that do not fit the image.
	ErrOutOfBounds = errors.New("backend: rectangle out of bounds")

	// ErrBufferSize is returned when a host buffer is too small.
	ErrBufferSize = errors.New("backend: buffer too small")

	// ErrUnsupportedFormat is returned for pixel formats a backend cannot store.
	ErrUnsupportedFormat = errors.New("backend: unsupported pixel format")

	// ErrEmpty is returned when an empty image is read or written.
	ErrEmpty = errors.New("backend: image is empty")
)

// ID identifies an execution backend.
type ID uint8

// Backend identifiers.
const (
	GPU ID = 0x10
	CPU ID = 0x20
)

// All lists every backend id in dispatch preference order.
var All = []ID{CPU, GPU}

func (id ID) String() string {
	switch id {
	case GPU:
		return "gpu"
	case CPU:
		return "cpu"
	default:
		return fmt.Sprintf("backend(%#x)", uint8(id))
	}
}

func (id ID) bit() Set {
	switch id {
	case GPU:
		return 1
	case CPU:
		return 2
	default:
		return 0
	}
}

// Set is a set of backend ids.
type Set uint8

// SetOf returns the set holding ids.
func SetOf(ids ...ID) Set {
	var s Set
	for _, id := range ids {
		s |= id.bit()
	}
	return s
}

// Has reports whether id is in s.
func (s Set) Has(id ID) bool { return id.bit() != 0 && s&id.bit() != 0 }

// With returns s plus id.
func (s Set) With(id ID) Set { return s | id.bit() }

// Without returns s minus id.
func (s Set) Without(id ID) Set { return s &^ id.bit() }

// Union returns the ids in s or o.
func (s Set) Union(o Set) Set { return s | o }

// Intersect returns the ids in both s and o.
func (s Set) Intersect(o Set) Set { return s & o }

// Empty reports whether s holds no id.
func (s Set) Empty() bool { return s == 0 }

// Len returns the number of ids in s.
func (s Set) Len() int { return bits.OnesCount8(uint8(s)) }

// IDs returns the members of s in dispatch preference order.
func (s Set) IDs() []ID {
	out := make([]ID, 0, 2)
	for _, id := range All {
		if s.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func (s Set) String() string {
	ids := s.IDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Device is one execution backend.
//
// Devices create and destroy the 2-D (Image) and 1-D (PixelArray) resources
// of their backend and report how much memory their pools hold. CleanUp
// sweeps every pool the device owns and returns how many pooled objects were
// destroyed; it is meant to be polled by the application, never run
// automatically.
type Device interface {
	// ID returns the backend identifier.
	ID() ID

	// Name returns a human readable device name.
	Name() string

	// Initialize prepares the device. It is safe to call more than once.
	Initialize() error

	// Shutdown releases every resource of the device.
	Shutdown()

	// Synchronize waits until all work submitted to the device finished.
	Synchronize() error

	NewImage() Image
	CreateImage(f pixel.Format, w, h int) (Image, error)
	CreateImageFromData(f pixel.Format, w, h int, data []byte) (Image, error)
	DestroyImage(img Image)

	NewPixelArray() PixelArray
	CreatePixelArray(f pixel.Format, n int) (PixelArray, error)
	CreatePixelArrayFromData(f pixel.Format, n int, data []byte) (PixelArray, error)
	DestroyPixelArray(a PixelArray)

	// CleanUp destroys every unacquired pooled object and returns the count.
	CleanUp() int

	// ManagedMemory returns host memory held by the device pools in bytes.
	ManagedMemory() uint64

	// BackendMemory returns device-side memory held by the pools in bytes.
	BackendMemory() uint64

	// Stats returns a snapshot of the device pools.
	Stats() Stats
}

// Image is a tiled 2-D image owned by one backend.
//
// Rectangles passed to Retrieve, Upload and Copy must lie inside the image.
// Host buffers hold the pixels of the rectangle packed row by row in the
// image format.
type Image interface {
	Backend() ID
	Width() int
	Height() int
	Format() pixel.Format
	Empty() bool

	// Create (re)allocates storage for the given format and size. Existing
	// contents are lost.
	Create(f pixel.Format, w, h int) error

	// CreateFromData allocates storage and seeds it with data.
	CreateFromData(f pixel.Format, w, h int, data []byte) error

	// Retrieve copies the pixels of r into buf.
	Retrieve(buf []byte, r pixel.Rect) error

	// Upload copies data into the pixels of r.
	Upload(data []byte, r pixel.Rect) error

	// Copy copies the r part of src to (dx, dy). src must be of the same
	// backend and format.
	Copy(src Image, r pixel.Rect, dx, dy int) error

	// DiscardBuffers releases the storage back to the device pools. The image
	// stays usable through Create.
	DiscardBuffers()

	// Synchronize is a barrier for backends with asynchronous storage.
	Synchronize() error

	CPUMemory() uint64
	GPUMemory() uint64
}

// PixelArray is a 1-D run of pixels owned by one backend.
type PixelArray interface {
	Backend() ID
	Len() int
	Format() pixel.Format
	Create(f pixel.Format, n int) error
	CreateFromData(f pixel.Format, n int, data []byte) error
	Retrieve(buf []byte, offset, n int) error
	Upload(data []byte, offset int) error
	Release()
}

// Shared is a strong, reference counted device handle.
type Shared = handle.Shared[Device]

// WeakRef observes a device without keeping it alive.
type WeakRef = handle.Weak[Device]

// Share wraps dev in a shared handle. The device is shut down when the last
// strong reference is released.
func Share(dev Device) *Shared {
	return handle.NewShared(dev, func(d Device) { d.Shutdown() })
}

// CheckRect validates r against a w x h image.
func CheckRect(r pixel.Rect, w, h int) error {
	if r.W < 0 || r.H < 0 || !r.In(w, h) {
		return errors.Wrapf(ErrOutOfBounds, "%v in %dx%d", r, w, h)
	}
	return nil
}

// CheckBuffer validates that buf can hold r in format f.
func CheckBuffer(buf []byte, f pixel.Format, r pixel.Rect) error {
	need := r.Area() * f.Size()
	if len(buf) < need {
		return errors.Wrapf(ErrBufferSize, "have %d bytes, need %d", len(buf), need)
	}
	return nil
}
