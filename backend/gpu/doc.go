// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu implements the GPU backend device of tilefx on top of the
// wgpu hardware abstraction layer.
//
// Images are stored as a grid of square tile textures taken from the device
// texture pool. Operations render one full-tile triangle per destination tile
// into a pooled render target and write the result back into the tile, see
// Renderer.
//
// Only the 8-bit formats are supported. Every tile is an RGBA8Unorm texture;
// Mono8 pixels are stored as R=G=B=v and RGB8 pixels carry an opaque alpha.
//
// The device is meant to be driven from one goroutine at a time. Pools and
// the effect cache are internally synchronized, but tile contents of a single
// image are not.
package gpu
