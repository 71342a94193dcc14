package backend

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/tilefx/config"
	"github.com/gogpu/tilefx/pixel"
)

type fakeDevice struct {
	id       ID
	inits    int
	shutdown int
	initErr  error
}

func (d *fakeDevice) ID() ID             { return d.id }
func (d *fakeDevice) Name() string       { return "fake-" + d.id.String() }
func (d *fakeDevice) Initialize() error  { d.inits++; return d.initErr }
func (d *fakeDevice) Shutdown()          { d.shutdown++ }
func (d *fakeDevice) Synchronize() error { return nil }
func (d *fakeDevice) NewImage() Image    { return nil }
func (d *fakeDevice) CreateImage(pixel.Format, int, int) (Image, error) {
	return nil, nil
}
func (d *fakeDevice) CreateImageFromData(pixel.Format, int, int, []byte) (Image, error) {
	return nil, nil
}
func (d *fakeDevice) DestroyImage(Image)         {}
func (d *fakeDevice) NewPixelArray() PixelArray { return nil }
func (d *fakeDevice) CreatePixelArray(pixel.Format, int) (PixelArray, error) {
	return nil, nil
}
func (d *fakeDevice) CreatePixelArrayFromData(pixel.Format, int, []byte) (PixelArray, error) {
	return nil, nil
}
func (d *fakeDevice) DestroyPixelArray(PixelArray) {}
func (d *fakeDevice) CleanUp() int                  { return 0 }
func (d *fakeDevice) ManagedMemory() uint64         { return 100 }
func (d *fakeDevice) BackendMemory() uint64         { return 7 }
func (d *fakeDevice) Stats() Stats {
	return Stats{
		Backend:       d.id,
		Name:          d.Name(),
		ManagedMemory: d.ManagedMemory(),
		BackendMemory: d.BackendMemory(),
		Pools:         []PoolStats{{Name: "buffers", Total: 3, Acquired: 1, CPUMemory: 100}},
	}
}

func TestSet(t *testing.T) {
	s := SetOf(CPU)
	require.True(t, s.Has(CPU))
	require.False(t, s.Has(GPU))
	require.False(t, s.Has(ID(0x99)))
	require.Equal(t, 1, s.Len())

	s = s.With(GPU)
	require.Equal(t, []ID{CPU, GPU}, s.IDs())
	require.Equal(t, "{cpu,gpu}", s.String())
	require.Equal(t, SetOf(GPU), s.Without(CPU))
	require.Equal(t, SetOf(CPU), s.Intersect(SetOf(CPU)))
	require.True(t, SetOf().Empty())
	require.Equal(t, s, SetOf(CPU).Union(SetOf(GPU)))
}

func TestIDString(t *testing.T) {
	require.Equal(t, "gpu", GPU.String())
	require.Equal(t, "cpu", CPU.String())
	require.Equal(t, "backend(0x7)", ID(7).String())
	require.Equal(t, ID(0x10), GPU)
	require.Equal(t, ID(0x20), CPU)
}

func TestRegistryOpen(t *testing.T) {
	id := ID(0x7f)
	dev := &fakeDevice{id: id}
	Register(id, func(*config.Config) (Device, error) { return dev, nil })
	defer Unregister(id)

	require.True(t, IsRegistered(id))
	require.Contains(t, Available(), id)

	got, err := Open(id, nil)
	require.NoError(t, err)
	require.Same(t, dev, got)
	require.Equal(t, 1, dev.inits)
}

func TestRegistryOpenFailures(t *testing.T) {
	_, err := Open(ID(0x7e), nil)
	require.True(t, errors.Is(err, ErrBackendNotAvailable))

	id := ID(0x7d)
	dev := &fakeDevice{id: id, initErr: errors.New("boom")}
	Register(id, func(*config.Config) (Device, error) { return dev, nil })
	defer Unregister(id)

	_, err = Open(id, config.Default())
	require.Error(t, err)
	require.Equal(t, 1, dev.shutdown, "failed initialization must shut the device down")
}

func TestShareShutsDownOnLastRelease(t *testing.T) {
	dev := &fakeDevice{id: CPU}
	s := Share(dev)
	weak := s.Weak()
	c := s.Clone()

	s.Release()
	require.Zero(t, dev.shutdown)
	require.False(t, weak.Expired())

	c.Release()
	require.Equal(t, 1, dev.shutdown)
	require.True(t, weak.Expired())
	_, ok := weak.Upgrade()
	require.False(t, ok)
}

func TestBuildStatsString(t *testing.T) {
	out := BuildStatsString(&fakeDevice{id: CPU}, nil, &fakeDevice{id: GPU})

	var doc struct {
		Devices []struct {
			Backend string
			Pools   []struct {
				Name      string
				Available int
			}
		}
		TotalManagedBytes float64
		TotalBackendBytes float64
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Devices, 2)
	require.Equal(t, "cpu", doc.Devices[0].Backend)
	require.Equal(t, "gpu", doc.Devices[1].Backend)
	require.Equal(t, 2, doc.Devices[0].Pools[0].Available)
	require.Equal(t, float64(200), doc.TotalManagedBytes)
	require.Equal(t, float64(14), doc.TotalBackendBytes)
}

func TestCheckRect(t *testing.T) {
	require.NoError(t, CheckRect(pixel.R(0, 0, 4, 4), 4, 4))
	require.NoError(t, CheckRect(pixel.R(2, 2, 0, 0), 4, 4))
	require.True(t, errors.Is(CheckRect(pixel.R(1, 0, 4, 4), 4, 4), ErrOutOfBounds))
	require.True(t, errors.Is(CheckBuffer(make([]byte, 3), pixel.RGBA8, pixel.R(0, 0, 1, 1)), ErrBufferSize))
}
