// Package ops implements the image operations of tilefx.
//
// Every operation runs on each backend whose copies of all operands are
// valid, and reports a [Result]. On the CPU an operation runs its host kernel
// through the device's tile executor. On the GPU it renders a dedicated
// effect; operations without an effect run their host kernel on a host copy
// of the GPU data and upload the result.
//
// Operands of one call share width and height. A destination may also be a
// source. The area is given in destination pixels and must lie inside the
// destination.
//
// A failed operation leaves the destination as its kernels left it: copies
// written before the failure stay valid, all others turn stale.
package ops
