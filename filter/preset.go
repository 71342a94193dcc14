package filter

import (
	"maps"
	"os"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/gogpu/tilefx/pixel"
)

// CurrentPreset is the name of presets taken from a filter's live state.
const CurrentPreset = "Current"

// ErrPreset is returned for preset documents that cannot be decoded.
var ErrPreset = errors.New("filter: invalid preset")

// Line is a segment between two pixel positions.
type Line struct {
	From, To pixel.Point
}

// Preset is a named snapshot of filter parameters. It holds no backend
// resources.
//
// Values live in typed maps keyed by parameter name. A nil map reads as
// empty; the Set helpers allocate on first use.
type Preset struct {
	Category   string
	Name       string
	FilterName string

	Positions map[string]pixel.Point
	Points    map[string]pixel.PointF
	Lines     map[string]Line
	Rects     map[string]pixel.Rect
	Floats    map[string]float32
	Ints      map[string]int
	Chars     map[string]int8
	Uints     map[string]uint
	Switches  map[string]bool
	Strings   map[string]string
	RGB8s     map[string][3]uint8
	RGB16s    map[string][3]uint16
	ARGB8s    map[string][4]uint8
	ARGB16s   map[string][4]uint16
	Mono8s    map[string]uint8
	Mono16s   map[string]uint16
}

// NewPreset returns an empty preset of the named filter.
func NewPreset(filterName, name string) *Preset {
	return &Preset{FilterName: filterName, Name: name}
}

func set[V any](m *map[string]V, key string, v V) {
	if *m == nil {
		*m = make(map[string]V)
	}
	(*m)[key] = v
}

func (p *Preset) SetFloat(key string, v float32)      { set(&p.Floats, key, v) }
func (p *Preset) SetInt(key string, v int)            { set(&p.Ints, key, v) }
func (p *Preset) SetPoint(key string, v pixel.PointF) { set(&p.Points, key, v) }
func (p *Preset) SetSwitch(key string, v bool)        { set(&p.Switches, key, v) }
func (p *Preset) SetString(key string, v string)      { set(&p.Strings, key, v) }

// Float returns the float value of key.
func (p *Preset) Float(key string) (float32, bool) {
	v, ok := p.Floats[key]
	return v, ok
}

// Int returns the integer value of key.
func (p *Preset) Int(key string) (int, bool) {
	v, ok := p.Ints[key]
	return v, ok
}

// Point returns the point value of key.
func (p *Preset) Point(key string) (pixel.PointF, bool) {
	v, ok := p.Points[key]
	return v, ok
}

func has[V any](m map[string]V, key string) bool {
	_, ok := m[key]
	return ok
}

// Contains reports whether any typed map holds key.
func (p *Preset) Contains(key string) bool {
	return has(p.Positions, key) || has(p.Points, key) || has(p.Lines, key) ||
		has(p.Rects, key) || has(p.Floats, key) || has(p.Ints, key) ||
		has(p.Chars, key) || has(p.Uints, key) || has(p.Switches, key) ||
		has(p.Strings, key) || has(p.RGB8s, key) || has(p.RGB16s, key) ||
		has(p.ARGB8s, key) || has(p.ARGB16s, key) || has(p.Mono8s, key) ||
		has(p.Mono16s, key)
}

// Equal reports whether p and o have the same identity and values.
func (p *Preset) Equal(o *Preset) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Category == o.Category && p.Name == o.Name && p.FilterName == o.FilterName &&
		maps.Equal(p.Positions, o.Positions) &&
		maps.Equal(p.Points, o.Points) &&
		maps.Equal(p.Lines, o.Lines) &&
		maps.Equal(p.Rects, o.Rects) &&
		maps.Equal(p.Floats, o.Floats) &&
		maps.Equal(p.Ints, o.Ints) &&
		maps.Equal(p.Chars, o.Chars) &&
		maps.Equal(p.Uints, o.Uints) &&
		maps.Equal(p.Switches, o.Switches) &&
		maps.Equal(p.Strings, o.Strings) &&
		maps.Equal(p.RGB8s, o.RGB8s) &&
		maps.Equal(p.RGB16s, o.RGB16s) &&
		maps.Equal(p.ARGB8s, o.ARGB8s) &&
		maps.Equal(p.ARGB16s, o.ARGB16s) &&
		maps.Equal(p.Mono8s, o.Mono8s) &&
		maps.Equal(p.Mono16s, o.Mono16s)
}

// Clone returns a deep copy of p.
func (p *Preset) Clone() *Preset {
	return &Preset{
		Category:   p.Category,
		Name:       p.Name,
		FilterName: p.FilterName,
		Positions:  maps.Clone(p.Positions),
		Points:     maps.Clone(p.Points),
		Lines:      maps.Clone(p.Lines),
		Rects:      maps.Clone(p.Rects),
		Floats:     maps.Clone(p.Floats),
		Ints:       maps.Clone(p.Ints),
		Chars:      maps.Clone(p.Chars),
		Uints:      maps.Clone(p.Uints),
		Switches:   maps.Clone(p.Switches),
		Strings:    maps.Clone(p.Strings),
		RGB8s:      maps.Clone(p.RGB8s),
		RGB16s:     maps.Clone(p.RGB16s),
		ARGB8s:     maps.Clone(p.ARGB8s),
		ARGB16s:    maps.Clone(p.ARGB16s),
		Mono8s:     maps.Clone(p.Mono8s),
		Mono16s:    maps.Clone(p.Mono16s),
	}
}

// vec converts a map value to and from a JSON number array.
type vec[V any] struct {
	enc func(V) []float64
	dec func([]float64) V
	n   int
}

var (
	posVec   = vec[pixel.Point]{func(v pixel.Point) []float64 { return f64(v.X, v.Y) }, func(a []float64) pixel.Point { return pixel.Point{X: int(a[0]), Y: int(a[1])} }, 2}
	pointVec = vec[pixel.PointF]{func(v pixel.PointF) []float64 { return f64(v.X, v.Y) }, func(a []float64) pixel.PointF { return pixel.PointF{X: float32(a[0]), Y: float32(a[1])} }, 2}
	lineVec  = vec[Line]{
		func(v Line) []float64 { return f64(v.From.X, v.From.Y, v.To.X, v.To.Y) },
		func(a []float64) Line {
			return Line{From: pixel.Point{X: int(a[0]), Y: int(a[1])}, To: pixel.Point{X: int(a[2]), Y: int(a[3])}}
		}, 4}
	rectVec = vec[pixel.Rect]{func(v pixel.Rect) []float64 { return f64(v.X, v.Y, v.W, v.H) }, func(a []float64) pixel.Rect { return pixel.R(int(a[0]), int(a[1]), int(a[2]), int(a[3])) }, 4}
	rgb8    = vec[[3]uint8]{func(v [3]uint8) []float64 { return f64(v[:]...) }, func(a []float64) [3]uint8 { return [3]uint8{uint8(a[0]), uint8(a[1]), uint8(a[2])} }, 3}
	rgb16   = vec[[3]uint16]{func(v [3]uint16) []float64 { return f64(v[:]...) }, func(a []float64) [3]uint16 { return [3]uint16{uint16(a[0]), uint16(a[1]), uint16(a[2])} }, 3}
	argb8   = vec[[4]uint8]{func(v [4]uint8) []float64 { return f64(v[:]...) }, func(a []float64) [4]uint8 { return [4]uint8{uint8(a[0]), uint8(a[1]), uint8(a[2]), uint8(a[3])} }, 4}
	argb16  = vec[[4]uint16]{func(v [4]uint16) []float64 { return f64(v[:]...) }, func(a []float64) [4]uint16 {
		return [4]uint16{uint16(a[0]), uint16(a[1]), uint16(a[2]), uint16(a[3])}
	}, 4}
)

func f64[T int | uint8 | uint16 | float32](v ...T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func writeVecs[V any](obj *jwriter.ObjectState, name string, m map[string]V, c vec[V]) {
	if len(m) == 0 {
		return
	}
	o := obj.Name(name).Object()
	for _, k := range slices.Sorted(maps.Keys(m)) {
		arr := o.Name(k).Array()
		for _, x := range c.enc(m[k]) {
			arr.Float64(x)
		}
		arr.End()
	}
	o.End()
}

func writeNumbers[V int | int8 | uint | uint8 | uint16 | float32](obj *jwriter.ObjectState, name string, m map[string]V) {
	if len(m) == 0 {
		return
	}
	o := obj.Name(name).Object()
	for _, k := range slices.Sorted(maps.Keys(m)) {
		o.Name(k).Float64(float64(m[k]))
	}
	o.End()
}

// MarshalJSON encodes p as a JSON object with one member per non-empty
// typed map.
func (p *Preset) MarshalJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("Category").String(p.Category)
	obj.Name("Name").String(p.Name)
	obj.Name("FilterName").String(p.FilterName)

	writeVecs(&obj, "Positions", p.Positions, posVec)
	writeVecs(&obj, "Points", p.Points, pointVec)
	writeVecs(&obj, "Lines", p.Lines, lineVec)
	writeVecs(&obj, "Rects", p.Rects, rectVec)
	writeNumbers(&obj, "Floats", p.Floats)
	writeNumbers(&obj, "Ints", p.Ints)
	writeNumbers(&obj, "Chars", p.Chars)
	writeNumbers(&obj, "Uints", p.Uints)
	if len(p.Switches) > 0 {
		o := obj.Name("Switches").Object()
		for _, k := range slices.Sorted(maps.Keys(p.Switches)) {
			o.Name(k).Bool(p.Switches[k])
		}
		o.End()
	}
	if len(p.Strings) > 0 {
		o := obj.Name("Strings").Object()
		for _, k := range slices.Sorted(maps.Keys(p.Strings)) {
			o.Name(k).String(p.Strings[k])
		}
		o.End()
	}
	writeVecs(&obj, "RGB8s", p.RGB8s, rgb8)
	writeVecs(&obj, "RGB16s", p.RGB16s, rgb16)
	writeVecs(&obj, "ARGB8s", p.ARGB8s, argb8)
	writeVecs(&obj, "ARGB16s", p.ARGB16s, argb16)
	writeNumbers(&obj, "Mono8s", p.Mono8s)
	writeNumbers(&obj, "Mono16s", p.Mono16s)
	obj.End()
	return w.Bytes(), w.Error()
}

func readVecs[V any](r *jreader.Reader, m *map[string]V, c vec[V]) {
	for obj := r.Object(); obj.Next(); {
		key := string(obj.Name())
		var a []float64
		for arr := r.Array(); arr.Next(); {
			a = append(a, r.Float64())
		}
		if len(a) != c.n {
			r.AddError(errors.Wrapf(ErrPreset, "%s: %d values, want %d", key, len(a), c.n))
			return
		}
		set(m, key, c.dec(a))
	}
}

func readNumbers[V int | int8 | uint | uint8 | uint16 | float32](r *jreader.Reader, m *map[string]V) {
	for obj := r.Object(); obj.Next(); {
		set(m, string(obj.Name()), V(r.Float64()))
	}
}

// UnmarshalJSON decodes a document written by MarshalJSON. Unknown members
// are skipped.
func (p *Preset) UnmarshalJSON(data []byte) error {
	*p = Preset{}
	r := jreader.NewReader(data)
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "Category":
			p.Category = r.String()
		case "Name":
			p.Name = r.String()
		case "FilterName":
			p.FilterName = r.String()
		case "Positions":
			readVecs(&r, &p.Positions, posVec)
		case "Points":
			readVecs(&r, &p.Points, pointVec)
		case "Lines":
			readVecs(&r, &p.Lines, lineVec)
		case "Rects":
			readVecs(&r, &p.Rects, rectVec)
		case "Floats":
			readNumbers(&r, &p.Floats)
		case "Ints":
			readNumbers(&r, &p.Ints)
		case "Chars":
			readNumbers(&r, &p.Chars)
		case "Uints":
			readNumbers(&r, &p.Uints)
		case "Switches":
			for o := r.Object(); o.Next(); {
				set(&p.Switches, string(o.Name()), r.Bool())
			}
		case "Strings":
			for o := r.Object(); o.Next(); {
				set(&p.Strings, string(o.Name()), r.String())
			}
		case "RGB8s":
			readVecs(&r, &p.RGB8s, rgb8)
		case "RGB16s":
			readVecs(&r, &p.RGB16s, rgb16)
		case "ARGB8s":
			readVecs(&r, &p.ARGB8s, argb8)
		case "ARGB16s":
			readVecs(&r, &p.ARGB16s, argb16)
		case "Mono8s":
			readNumbers(&r, &p.Mono8s)
		case "Mono16s":
			readNumbers(&r, &p.Mono16s)
		default:
			_ = r.SkipValue()
		}
	}
	if err := r.Error(); err != nil {
		return errors.Mark(errors.Wrap(err, "filter: decode preset"), ErrPreset)
	}
	return nil
}

// WriteFile stores p as JSON at path.
func (p *Preset) WriteFile(path string) error {
	data, err := p.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "filter: encode preset")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "filter: write preset %s", path)
	}
	return nil
}

// ReadPreset loads a preset written by WriteFile.
func ReadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "filter: read preset %s", path)
	}
	p := &Preset{}
	if err := p.UnmarshalJSON(data); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return p, nil
}
