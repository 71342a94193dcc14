// Package tilefx is a tiled image-processing engine with a CPU and a GPU
// backend.
//
// # Overview
//
// An image lives in a [Layer]. A layer holds up to one copy of its pixels per
// backend; each copy is a tiled backend image created by the backend device.
// Operations in the ops package run on every backend whose copies of all
// operands are valid, and filters in the filter package chain operations
// into adjustable, preset-driven image filters.
//
// # Quick Start
//
//	e, err := tilefx.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close()
//
//	src, err := e.NewLayerFromBitmap("photo", backend.CPU, bitmap)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer src.Release()
//
//	if err := ops.Negate(src, src, src.Bounds()).Err(); err != nil {
//	    log.Fatal(err)
//	}
//	out, err := src.Bitmap()
//
// # Residency
//
// Each backend copy of a layer is Absent, Valid or Stale. Writing through an
// operation leaves the written copies Valid and every other resident copy
// Stale. Copies are never synchronized behind the caller's back: a GPU
// operation on a layer that is only valid on the CPU does not run until the
// caller asks for the GPU copy with [Layer.UpdateDataForBackend].
//
// # Architecture
//
// The module is organized into:
//   - Public API: Engine, Layer, Bitmap
//   - backend: device, image and pixel array contracts, registry, statistics
//   - backend/cpu: packed host images and the tile executor
//   - backend/gpu: per-tile textures, effect cache, tiled renderer
//   - ops: operation dispatch, CPU kernels and compositions
//   - filter: filters, presets and filter stacks
//   - config: TOML engine configuration
//
// # Coordinate System
//
// Pixel (0,0) is the top-left corner, X increases right and Y increases down.
// Rectangles are x, y, width, height in pixels.
package tilefx

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
