package filter

import (
	"iter"
	"slices"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
)

// Stack is an ordered list of filters applied one after another. The first
// filter reads the source; every later filter works on the destination in
// place.
//
// A Stack is not safe for concurrent use.
type Stack struct {
	filters []Filter
}

// Len returns the number of filters.
func (s *Stack) Len() int { return len(s.filters) }

// Top returns the first filter, or nil for an empty stack.
func (s *Stack) Top() Filter {
	if len(s.filters) == 0 {
		return nil
	}
	return s.filters[0]
}

// Bottom returns the last filter, or nil for an empty stack.
func (s *Stack) Bottom() Filter {
	if len(s.filters) == 0 {
		return nil
	}
	return s.filters[len(s.filters)-1]
}

// Clear removes every filter and releases their cached layers.
func (s *Stack) Clear() {
	for _, f := range s.filters {
		release(f)
	}
	s.filters = nil
}

func (s *Stack) PushFront(f Filter) { s.filters = slices.Insert(s.filters, 0, f) }
func (s *Stack) PushBack(f Filter)  { s.filters = append(s.filters, f) }

// Insert places f before the i-th filter. i may equal Len.
func (s *Stack) Insert(i int, f Filter) bool {
	if i < 0 || i > len(s.filters) {
		return false
	}
	s.filters = slices.Insert(s.filters, i, f)
	return true
}

// At returns the i-th filter.
func (s *Stack) At(i int) (Filter, bool) {
	if i < 0 || i >= len(s.filters) {
		return nil, false
	}
	return s.filters[i], true
}

// ByName returns the first filter called name.
func (s *Stack) ByName(name string) (Filter, bool) {
	i := s.index(name)
	if i < 0 {
		return nil, false
	}
	return s.filters[i], true
}

func (s *Stack) index(name string) int {
	return slices.IndexFunc(s.filters, func(f Filter) bool { return f.Name() == name })
}

// All iterates the filters in processing order.
func (s *Stack) All() iter.Seq2[int, Filter] { return slices.All(s.filters) }

// Remove removes f. Its cached layers stay with the caller.
func (s *Stack) Remove(f Filter) bool {
	i := slices.Index(s.filters, f)
	if i < 0 {
		return false
	}
	s.filters = slices.Delete(s.filters, i, i+1)
	return true
}

// RemoveByName removes the first filter called name.
func (s *Stack) RemoveByName(name string) bool {
	i := s.index(name)
	if i < 0 {
		return false
	}
	s.filters = slices.Delete(s.filters, i, i+1)
	return true
}

// RemoveAt removes the i-th filter.
func (s *Stack) RemoveAt(i int) bool {
	if i < 0 || i >= len(s.filters) {
		return false
	}
	s.filters = slices.Delete(s.filters, i, i+1)
	return true
}

// Process runs every filter on its own backend. It stops at the first
// filter that fails and returns false; filters already applied keep their
// effect on dst.
func (s *Stack) Process(dst, src *tilefx.Layer) bool {
	return s.run(dst, src, func(f Filter, dst, src *tilefx.Layer) bool { return f.Process(dst, src) })
}

// ProcessOn is Process with every filter running on id.
func (s *Stack) ProcessOn(id backend.ID, dst, src *tilefx.Layer) bool {
	return s.run(dst, src, func(f Filter, dst, src *tilefx.Layer) bool { return f.ProcessOn(id, dst, src) })
}

func (s *Stack) run(dst, src *tilefx.Layer, apply func(f Filter, dst, src *tilefx.Layer) bool) bool {
	if dst == nil || src == nil {
		return false
	}
	for i, f := range s.filters {
		in := src
		if i > 0 {
			in = dst
		}
		if !apply(f, dst, in) {
			tilefx.Logger().Debug("filter: stack stopped", "index", i, "filter", f.Name())
			return false
		}
	}
	return true
}

// release frees the cached layers of filters that keep any.
func release(f Filter) {
	if r, ok := f.(interface{ Release() }); ok {
		r.Release()
	}
}
