package pool

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/gogpu/tilefx/internal/assert"
	"github.com/gogpu/tilefx/internal/atomicx"
)

// Policy controls how Acquire waits for a claimed resource.
type Policy struct {
	// Spins is the number of immediate retries before backing off.
	Spins int

	// BackoffRounds is the number of sleeping retries before parking.
	BackoffRounds int

	// MaxBackoff caps the sleep between backoff rounds.
	MaxBackoff time.Duration
}

// DefaultPolicy is used by every Claim unless SetPolicy replaced it.
var DefaultPolicy = Policy{
	Spins:         64,
	BackoffRounds: 10,
	MaxBackoff:    time.Millisecond,
}

var policy = DefaultPolicy
var policyMu sync.RWMutex

// SetPolicy replaces the process-wide acquire policy.
func SetPolicy(p Policy) {
	if p.Spins < 0 {
		p.Spins = 0
	}
	if p.BackoffRounds < 0 {
		p.BackoffRounds = 0
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultPolicy.MaxBackoff
	}
	policyMu.Lock()
	policy = p
	policyMu.Unlock()
}

func currentPolicy() Policy {
	policyMu.RLock()
	defer policyMu.RUnlock()
	return policy
}

// Claim implements the acquire/release half of Resource. Embed it by value.
//
// TryAcquire is a single compare-and-swap. Acquire retries the swap, then
// sleeps with exponential backoff, then parks on a condition variable that
// Release signals. Only the holder may Release.
type Claim struct {
	flag    atomicx.Flag
	waiters atomicx.Int32

	mu   sync.Mutex
	cond *sync.Cond
}

func (c *Claim) condLocked() *sync.Cond {
	if c.cond == nil {
		c.cond = sync.NewCond(&c.mu)
	}
	return c.cond
}

// Acquired reports whether the resource is currently held.
func (c *Claim) Acquired() bool {
	return c.flag.Claimed()
}

// TryAcquire claims the resource if it is free.
func (c *Claim) TryAcquire() bool {
	return c.flag.TryClaim(atomicx.NewClaimant())
}

// Acquire blocks until the resource is claimed by the caller.
func (c *Claim) Acquire() {
	_ = c.AcquireContext(context.Background())
}

// AcquireContext is Acquire with cancellation. It returns ctx.Err() when the
// context ends before the claim succeeded.
func (c *Claim) AcquireContext(ctx context.Context) error {
	if c.TryAcquire() {
		return nil
	}

	p := currentPolicy()
	for i := 0; i < p.Spins; i++ {
		if c.TryAcquire() {
			return nil
		}
		runtime.Gosched()
	}

	delay := time.Microsecond
	for i := 0; i < p.BackoffRounds; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(delay)
		if c.TryAcquire() {
			return nil
		}
		delay = min(delay*2, p.MaxBackoff)
	}

	return c.park(ctx)
}

func (c *Claim) park(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.condLocked().Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiters.Inc()
	defer c.waiters.Dec()
	cond := c.condLocked()
	for !c.TryAcquire() {
		if err := ctx.Err(); err != nil {
			return err
		}
		cond.Wait()
	}
	return nil
}

// Release gives up the claim and wakes parked acquirers.
// Releasing a resource that is not held is a caller bug.
func (c *Claim) Release() {
	prev := c.flag.ForceRelease()
	assert.That(prev != 0, "pool: release of a resource that is not acquired")
	c.wake()
}

// ForceRelease clears the claim regardless of state.
func (c *Claim) ForceRelease() {
	c.flag.ForceRelease()
	c.wake()
}

func (c *Claim) wake() {
	if c.waiters.Load() == 0 {
		return
	}
	c.mu.Lock()
	c.condLocked().Broadcast()
	c.mu.Unlock()
}
