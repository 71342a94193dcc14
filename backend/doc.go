// Package backend defines the contract shared by the execution backends of
// tilefx.
//
// A backend is one execution target able to hold and process image data.
// Two implementations exist:
//
//   - [CPU] in package backend/cpu: packed host buffers processed by a
//     worker pool, one task per tile.
//   - [GPU] in package backend/gpu: per-tile textures processed by
//     full-tile draws on a wgpu HAL device.
//
// Every backend is identified by an [ID] which the dispatch layer uses to
// select kernels and which image layers use to track residency.
//
// # Registration
//
// Backends register a [Factory] from their package init function:
//
//	import _ "github.com/gogpu/tilefx/backend/cpu"
//
//	dev, err := backend.Open(backend.CPU, cfg)
//
// Devices are reference counted through [Shared] handles; filters keep a
// [WeakRef] so that a device shutdown is observable instead of leaving a
// dangling pointer behind.
package backend
