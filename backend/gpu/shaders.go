// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"embed"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/naga"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

// EffectKind identifies one compiled tile pipeline.
type EffectKind uint8

const (
	EffectFill EffectKind = iota
	EffectFillChannel
	EffectNegate
	EffectBrightness
	EffectMonochrome
	EffectVignette
	EffectSplitTone
	EffectAdaptiveBW
	EffectCopy
	EffectCopyChannel
	EffectThresholdMin
	EffectThresholdMax
	EffectNormalize
	// EffectBlend combines two sources with a pixel.BlendMode.
	EffectBlend
	// EffectBlendValue combines the source with a constant color.
	EffectBlendValue

	effectCount
)

var effectFiles = [effectCount]string{
	EffectFill:         "fill",
	EffectFillChannel:  "fill_channel",
	EffectNegate:       "negate",
	EffectBrightness:   "brightness",
	EffectMonochrome:   "monochrome",
	EffectVignette:     "vignette",
	EffectSplitTone:    "split_tone",
	EffectAdaptiveBW:   "adaptive_bw",
	EffectCopy:         "copy",
	EffectCopyChannel:  "copy_channel",
	EffectThresholdMin: "threshold_min",
	EffectThresholdMax: "threshold_max",
	EffectNormalize:    "normalize",
	EffectBlend:        "blend",
	EffectBlendValue:   "blend_value",
}

// ErrUnknownEffect is returned for an EffectKind outside the known range.
var ErrUnknownEffect = errors.New("gpu: unknown effect")

func (k EffectKind) String() string {
	if k < effectCount {
		return effectFiles[k]
	}
	return "effect(?)"
}

// Valid reports whether k names a known effect.
func (k EffectKind) Valid() bool { return k < effectCount }

// Effects returns every effect kind in declaration order.
func Effects() []EffectKind {
	out := make([]EffectKind, 0, effectCount)
	for k := EffectKind(0); k < effectCount; k++ {
		out = append(out, k)
	}
	return out
}

// ShaderSource returns the complete WGSL module of effect k: the shared tile
// prelude followed by the effect's apply function.
func ShaderSource(k EffectKind) (string, error) {
	if !k.Valid() {
		return "", errors.Wrapf(ErrUnknownEffect, "kind %d", k)
	}
	prelude, err := shaderFS.ReadFile("shaders/prelude.wgsl")
	if err != nil {
		return "", errors.Wrap(err, "read prelude")
	}
	body, err := shaderFS.ReadFile("shaders/" + effectFiles[k] + ".wgsl")
	if err != nil {
		return "", errors.Wrapf(err, "read %s", k)
	}
	return string(prelude) + "\n" + string(body), nil
}

// compileSPIRV compiles WGSL source to SPIR-V words.
func compileSPIRV(src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, errors.Wrap(err, "compile shader")
	}
	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

// paramsSize is the byte size of the WGSL Params uniform.
const paramsSize = 112

// Params mirrors the Params uniform of the tile prelude.
type Params struct {
	// Area is x0, y0, x1, y1 of the clipped operation area in image space.
	Area [4]int32
	// Origin is the image-space position of the tile in the first two lanes.
	Origin [4]int32
	// V holds the effect values v0..v3.
	V [4][4]float32
	// Misc is stride, destination channel, channel count, source channel.
	Misc [4]uint32
}

func (p *Params) bytes() []byte {
	out := make([]byte, paramsSize)
	o := 0
	for _, v := range p.Area {
		binary.LittleEndian.PutUint32(out[o:], uint32(v))
		o += 4
	}
	for _, v := range p.Origin {
		binary.LittleEndian.PutUint32(out[o:], uint32(v))
		o += 4
	}
	for _, vec := range p.V {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(out[o:], math.Float32bits(v))
			o += 4
		}
	}
	for _, v := range p.Misc {
		binary.LittleEndian.PutUint32(out[o:], v)
		o += 4
	}
	return out
}
