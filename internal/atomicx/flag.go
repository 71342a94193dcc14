package atomicx

import "sync/atomic"

// Flag is a claim word. Zero means free; any other value is the id of the
// claimant that won it. A claimant may only touch the guarded data after
// TryClaim succeeded and must give it back with Release using the same id.
type Flag struct {
	v atomic.Uint64
}

// nextClaimant hands out process-unique claimant ids, never zero.
var nextClaimant atomic.Uint64

// NewClaimant returns a fresh non-zero claimant id.
func NewClaimant() uint64 {
	return nextClaimant.Add(1)
}

// TryClaim attempts the 0 -> id transition.
func (f *Flag) TryClaim(id uint64) bool {
	if id == 0 {
		return false
	}
	return f.v.CompareAndSwap(0, id)
}

// Release performs the id -> 0 transition and reports whether id held the flag.
func (f *Flag) Release(id uint64) bool {
	return f.v.CompareAndSwap(id, 0)
}

// ForceRelease clears the flag regardless of owner and returns the previous owner.
func (f *Flag) ForceRelease() uint64 {
	return f.v.Swap(0)
}

// Owner returns the current claimant id, or zero when free.
func (f *Flag) Owner() uint64 {
	return f.v.Load()
}

// Claimed reports whether the flag is held.
func (f *Flag) Claimed() bool {
	return f.v.Load() != 0
}
