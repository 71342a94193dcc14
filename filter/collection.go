package filter

import (
	"iter"
	"slices"

	"golang.org/x/text/cases"
)

// Entry is a preset of a Collection and the file it was loaded from. Path
// is empty for presets added in memory.
type Entry struct {
	Preset *Preset
	Path   string
}

// Collection is an ordered set of presets. Preset names match without
// regard to case.
type Collection struct {
	entries []Entry
}

func foldName(s string) string { return cases.Fold().String(s) }

func (c *Collection) Len() int { return len(c.entries) }

// All iterates the entries in insertion order.
func (c *Collection) All() iter.Seq2[int, Entry] { return slices.All(c.entries) }

// Add appends a copy of p.
func (c *Collection) Add(p *Preset) {
	c.entries = append(c.entries, Entry{Preset: p.Clone()})
}

// LoadFile adds the preset stored at path. A path already in the collection
// is not read again.
func (c *Collection) LoadFile(path string) error {
	if c.ContainsByPath(path) {
		return nil
	}
	p, err := ReadPreset(path)
	if err != nil {
		return err
	}
	c.entries = append(c.entries, Entry{Preset: p, Path: path})
	return nil
}

// Reload reads every file-backed preset again. It stops at the first
// failure.
func (c *Collection) Reload() error {
	for i, e := range c.entries {
		if e.Path == "" {
			continue
		}
		p, err := ReadPreset(e.Path)
		if err != nil {
			return err
		}
		c.entries[i].Preset = p
	}
	return nil
}

func (c *Collection) indexByName(name string) int {
	key := foldName(name)
	return slices.IndexFunc(c.entries, func(e Entry) bool { return foldName(e.Preset.Name) == key })
}

func (c *Collection) indexByPath(path string) int {
	if path == "" {
		return -1
	}
	return slices.IndexFunc(c.entries, func(e Entry) bool { return e.Path == path })
}

// ByName returns a copy of the first preset called name.
func (c *Collection) ByName(name string) (*Preset, bool) {
	i := c.indexByName(name)
	if i < 0 {
		return nil, false
	}
	return c.entries[i].Preset.Clone(), true
}

func (c *Collection) ContainsByName(name string) bool { return c.indexByName(name) >= 0 }
func (c *Collection) ContainsByPath(path string) bool { return c.indexByPath(path) >= 0 }

// Remove removes the first preset equal to p.
func (c *Collection) Remove(p *Preset) bool {
	return c.removeAt(slices.IndexFunc(c.entries, func(e Entry) bool { return e.Preset.Equal(p) }))
}

func (c *Collection) RemoveByName(name string) bool { return c.removeAt(c.indexByName(name)) }
func (c *Collection) RemoveByPath(path string) bool { return c.removeAt(c.indexByPath(path)) }

func (c *Collection) removeAt(i int) bool {
	if i < 0 {
		return false
	}
	c.entries = slices.Delete(c.entries, i, i+1)
	return true
}

func (c *Collection) Clear() { c.entries = nil }

// ForFilter returns a collection of copies of the presets of the named
// filter.
func (c *Collection) ForFilter(filterName string) *Collection {
	out := &Collection{}
	for _, e := range c.entries {
		if e.Preset.FilterName == filterName {
			out.Add(e.Preset)
		}
	}
	return out
}

// Categories returns the distinct preset categories in order of first
// appearance.
func (c *Collection) Categories() []string {
	var out []string
	for _, e := range c.entries {
		if !slices.Contains(out, e.Preset.Category) {
			out = append(out, e.Preset.Category)
		}
	}
	return out
}
