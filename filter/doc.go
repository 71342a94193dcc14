// Package filter provides parameterized image filters built on the ops
// package, an ordered filter Stack and named parameter Presets.
//
// Every filter has an owner backend that Process runs on; ProcessOn picks
// the backend explicitly. A filter returns false instead of panicking when
// an operand is missing or not valid on the backend.
//
// Presets capture every tunable parameter in typed maps keyed by name:
//
//	p := sharpen.ToPreset()
//	p.Name = "Crisp"
//	if err := p.WriteFile("crisp.json"); err != nil {
//		return err
//	}
//
// FromPreset applies the recognized keys of a preset and reports whether
// any was found.
package filter
