package filter

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/pixel"
)

// failing is a filter that never succeeds.
type failing struct {
	base
	calls int
}

func (f *failing) Process(dst, src *tilefx.Layer) bool { return f.ProcessOn(f.owner, dst, src) }

func (f *failing) ProcessOn(backend.ID, *tilefx.Layer, *tilefx.Layer) bool {
	f.calls++
	return false
}

func (f *failing) Clone() Filter           { c := *f; return &c }
func (f *failing) ToPreset() *Preset       { return f.preset() }
func (f *failing) FromPreset(*Preset) bool { return false }

func invert() *Curves {
	f := NewCurves(backend.CPU)
	f.SetPoints([]pixel.PointF{{X: 0, Y: 1}, {X: 1, Y: 0}})
	return f
}

func TestStackEditing(t *testing.T) {
	var s Stack
	require.Nil(t, s.Top())
	require.Nil(t, s.Bottom())

	a, b, c := NewVignette(backend.CPU), NewBWMixer(backend.CPU), NewSplitTone(backend.CPU)
	s.PushBack(b)
	s.PushFront(a)
	require.True(t, s.Insert(2, c))
	require.False(t, s.Insert(5, c))
	require.Equal(t, 3, s.Len())
	require.Same(t, a, s.Top())
	require.Same(t, c, s.Bottom())

	got, ok := s.At(1)
	require.True(t, ok)
	require.Same(t, b, got)
	_, ok = s.At(3)
	require.False(t, ok)

	got, ok = s.ByName("SplitTone")
	require.True(t, ok)
	require.Same(t, c, got)
	_, ok = s.ByName("Curves")
	require.False(t, ok)

	var names []string
	for _, f := range s.All() {
		names = append(names, f.Name())
	}
	require.Equal(t, []string{"Vignette", "BWMixer", "SplitTone"}, names)

	require.True(t, s.Remove(b))
	require.False(t, s.Remove(b))
	require.True(t, s.RemoveByName("Vignette"))
	require.False(t, s.RemoveByName("Vignette"))
	require.False(t, s.RemoveAt(1))
	require.True(t, s.RemoveAt(0))
	require.Zero(t, s.Len())

	s.PushBack(NewUnsharpMask(backend.CPU))
	s.Clear()
	require.Zero(t, s.Len())
}

func TestStackStopsAtFirstFailure(t *testing.T) {
	e := newEngine(t)
	data := noise(21, pixel.BufferSize(pixel.RGB8, 7, 5))
	src := newLayer(t, e, "src", pixel.RGB8, 7, 5, data)
	dst := e.NewLayer("dst")
	t.Cleanup(dst.Release)

	bad := &failing{base: base{name: "Failing", owner: backend.CPU}}
	after := invert()

	var s Stack
	s.PushBack(invert())
	s.PushBack(bad)
	s.PushBack(after)
	require.False(t, s.Process(dst, src))
	require.Equal(t, 1, bad.calls)

	want := make([]byte, len(data))
	for i, v := range data {
		want[i] = 255 - v
	}
	require.Equal(t, want, retrieve(t, dst), "the first filter keeps its effect")
	require.Equal(t, data, retrieve(t, src))
}

func TestStackChainsInPlace(t *testing.T) {
	e := newEngine(t)
	data := noise(22, pixel.BufferSize(pixel.Mono8, 6, 6))
	src := newLayer(t, e, "src", pixel.Mono8, 6, 6, data)
	dst := e.NewLayer("dst")
	t.Cleanup(dst.Release)

	var s Stack
	require.True(t, s.Process(dst, src), "empty stack")
	s.PushBack(invert())
	s.PushBack(invert())
	require.True(t, s.ProcessOn(backend.CPU, dst, src))
	require.Equal(t, data, retrieve(t, dst))

	require.False(t, s.Process(nil, src))
	require.False(t, s.ProcessOn(backend.GPU, dst, src))
}

func fullPreset() *Preset {
	p := NewPreset("Everything", "All values")
	p.Category = "Test"
	p.Positions = map[string]pixel.Point{"pos": {X: -3, Y: 9}}
	p.Points = map[string]pixel.PointF{"pt": {X: 0.25, Y: 0.125}}
	p.Lines = map[string]Line{"line": {From: pixel.Point{X: 1, Y: 2}, To: pixel.Point{X: 30, Y: 40}}}
	p.Rects = map[string]pixel.Rect{"rect": pixel.R(5, 6, 70, 80)}
	p.Floats = map[string]float32{"f": 1.0 / 3, "g": -2.5}
	p.Ints = map[string]int{"i": -42}
	p.Chars = map[string]int8{"c": -7}
	p.Uints = map[string]uint{"u": 1 << 40}
	p.Switches = map[string]bool{"on": true, "off": false}
	p.Strings = map[string]string{"s": "quote \" and ünïcode"}
	p.RGB8s = map[string][3]uint8{"rgb8": {1, 2, 255}}
	p.RGB16s = map[string][3]uint16{"rgb16": {1000, 2000, 65535}}
	p.ARGB8s = map[string][4]uint8{"argb8": {0, 128, 64, 32}}
	p.ARGB16s = map[string][4]uint16{"argb16": {65535, 1, 2, 3}}
	p.Mono8s = map[string]uint8{"m8": 200}
	p.Mono16s = map[string]uint16{"m16": 60000}
	return p
}

func TestPresetEqualAndContains(t *testing.T) {
	p := fullPreset()
	q := p.Clone()
	require.True(t, p.Equal(q))
	for _, key := range []string{"pos", "pt", "line", "rect", "f", "i", "c", "u", "on", "s", "rgb8", "rgb16", "argb8", "argb16", "m8", "m16"} {
		require.True(t, p.Contains(key), key)
	}
	require.False(t, p.Contains("missing"))

	q.Mono16s["m16"]++
	require.False(t, p.Equal(q))
	q = p.Clone()
	q.Category = "Other"
	require.False(t, p.Equal(q))

	require.True(t, NewPreset("a", "b").Equal(&Preset{FilterName: "a", Name: "b", Floats: map[string]float32{}}))
	require.False(t, p.Equal(nil))
}

func TestPresetFile(t *testing.T) {
	p := fullPreset()
	path := filepath.Join(t.TempDir(), "all.json")
	require.NoError(t, p.WriteFile(path))

	got, err := ReadPreset(path)
	require.NoError(t, err)
	require.True(t, p.Equal(got))

	_, err = ReadPreset(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	var bad Preset
	err = bad.UnmarshalJSON([]byte(`{"Name": "x", "RGB8s": {"k": [1, 2]}}`))
	require.True(t, errors.Is(err, ErrPreset), "%v", err)
	err = bad.UnmarshalJSON([]byte(`{"Name": `))
	require.True(t, errors.Is(err, ErrPreset), "%v", err)

	require.NoError(t, bad.UnmarshalJSON([]byte(`{"Name": "x", "Unknown": [1, {"a": 2}], "Floats": {"f": 0.5}}`)))
	require.Equal(t, "x", bad.Name)
	require.Equal(t, map[string]float32{"f": 0.5}, bad.Floats)
}

func TestCollection(t *testing.T) {
	dir := t.TempDir()
	sharp := NewCascadedSharpen(backend.CPU)
	sharp.SetCascadeCount(2)
	crisp := sharp.ToPreset()
	crisp.Name, crisp.Category = "Crisp", "Sharpen"
	crispPath := filepath.Join(dir, "crisp.json")
	require.NoError(t, crisp.WriteFile(crispPath))

	var c Collection
	require.NoError(t, c.LoadFile(crispPath))
	require.NoError(t, c.LoadFile(crispPath))
	require.Equal(t, 1, c.Len())
	require.Error(t, c.LoadFile(filepath.Join(dir, "missing.json")))

	soft := NewVignette(backend.CPU).ToPreset()
	soft.Name, soft.Category = "Soft Edge", "Vignette"
	c.Add(soft)
	soft.Name = "changed"

	require.True(t, c.ContainsByName("soft edge"))
	require.True(t, c.ContainsByName("CRISP"))
	require.True(t, c.ContainsByPath(crispPath))
	require.False(t, c.ContainsByPath(""))

	got, ok := c.ByName("Soft Edge")
	require.True(t, ok)
	require.Equal(t, "Vignette", got.FilterName)
	require.Equal(t, []string{"Sharpen", "Vignette"}, c.Categories())

	sharpen := c.ForFilter("CascadedSharpen")
	require.Equal(t, 1, sharpen.Len())
	for _, e := range sharpen.All() {
		require.Empty(t, e.Path)
		require.True(t, crisp.Equal(e.Preset))
	}

	crisp.SetFloat("Threshold", 12)
	require.NoError(t, crisp.WriteFile(crispPath))
	require.NoError(t, c.Reload())
	got, _ = c.ByName("crisp")
	v, _ := got.Float("Threshold")
	require.Equal(t, float32(12), v)

	f := NewCascadedSharpen(backend.CPU)
	require.True(t, f.FromPreset(got))
	require.Equal(t, float32(12), f.Threshold)
	require.Len(t, f.Cascades(), 2)

	require.True(t, c.Remove(got))
	require.False(t, c.RemoveByPath(crispPath))
	require.True(t, c.RemoveByName("SOFT EDGE"))
	require.Zero(t, c.Len())
}
