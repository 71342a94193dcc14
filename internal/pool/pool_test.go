package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testResource struct {
	Claim
	size      int
	destroyed bool
}

func (r *testResource) CPUMemory() uint64 { return uint64(r.size) }
func (r *testResource) GPUMemory() uint64 { return 0 }

func newTestPool(sizes ...int) (*Pool[*testResource], []*testResource) {
	p := New[*testResource]("test", func(r *testResource) { r.destroyed = true })
	out := make([]*testResource, 0, len(sizes))
	for _, s := range sizes {
		r := &testResource{size: s}
		p.Add(r)
		out = append(out, r)
	}
	return p, out
}

func TestCleanUpRemovesUnacquired(t *testing.T) {
	p, rs := newTestPool(1, 2, 3, 4)
	require.True(t, rs[1].TryAcquire())

	require.Equal(t, 3, p.CleanUp())
	require.Equal(t, 1, p.Len())
	require.True(t, rs[0].destroyed)
	require.False(t, rs[1].destroyed)

	require.Equal(t, 0, p.CleanUp(), "second CleanUp must be a no-op")
}

func TestCleanUpIdempotent(t *testing.T) {
	tests := []struct {
		name     string
		sizes    []int
		acquired []int
	}{
		{"empty", nil, nil},
		{"all free", []int{1, 2, 3}, nil},
		{"all held", []int{1, 2}, []int{0, 1}},
		{"mixed", []int{1, 2, 3, 4, 5}, []int{0, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, rs := newTestPool(tt.sizes...)
			for _, i := range tt.acquired {
				rs[i].Acquire()
			}
			first := p.CleanUp()
			require.Equal(t, len(tt.sizes)-len(tt.acquired), first)
			require.Equal(t, 0, p.CleanUp())
		})
	}
}

func TestAcquireMatching(t *testing.T) {
	p, rs := newTestPool(16, 32, 64)

	r, ok := p.AcquireMatching(func(r *testResource) bool { return r.size >= 32 })
	require.True(t, ok)
	require.Same(t, rs[1], r)

	r, ok = p.AcquireMatching(func(r *testResource) bool { return r.size >= 32 })
	require.True(t, ok)
	require.Same(t, rs[2], r)

	_, ok = p.AcquireMatching(func(r *testResource) bool { return r.size >= 32 })
	require.False(t, ok, "no free match must yield nothing")

	require.Equal(t, 2, p.CountAcquired(nil))
	require.Equal(t, 1, p.CountAvailable(nil))
	require.Equal(t, 1, p.CountAvailable(func(r *testResource) bool { return r.size == 16 }))
}

func TestAcquireRangePrefersTail(t *testing.T) {
	p, rs := newTestPool(8, 8, 8)
	r, ok := p.AcquireRange(nil, 2, -1)
	require.True(t, ok)
	require.Same(t, rs[2], r)

	_, ok = p.FindRange(func(r *testResource) bool { return r.size == 8 }, 5, 10)
	require.False(t, ok)
}

func TestAcquireOrCreate(t *testing.T) {
	p, _ := newTestPool()
	created := 0
	create := func() (*testResource, error) {
		created++
		return &testResource{size: 10}, nil
	}
	r1, isNew, err := p.AcquireOrCreate(nil, create)
	require.NoError(t, err)
	require.True(t, isNew)
	require.True(t, r1.Acquired())

	r1.Release()
	r2, isNew, err := p.AcquireOrCreate(nil, create)
	require.NoError(t, err)
	require.False(t, isNew)
	require.Same(t, r1, r2)
	require.Equal(t, 1, created)
	require.Equal(t, uint64(10), p.CPUMemory())
}

func TestRemove(t *testing.T) {
	p, rs := newTestPool(1, 2, 3)
	require.NoError(t, p.Remove(rs[1]))
	require.True(t, rs[1].destroyed)
	require.ErrorIs(t, p.Remove(rs[1]), ErrNotFound)

	require.NoError(t, p.RemoveAt(0))
	require.Error(t, p.RemoveAt(5))
	got, ok := p.At(0)
	require.True(t, ok)
	require.Same(t, rs[2], got)

	p.Clear()
	require.Equal(t, 0, p.Len())
	require.True(t, rs[2].destroyed)
}

func TestTryAcquireExclusive(t *testing.T) {
	for round := 0; round < 200; round++ {
		r := &testResource{}
		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if r.TryAcquire() {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()
		require.Equal(t, int32(1), wins.Load(), "round %d", round)
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	SetPolicy(Policy{Spins: 1, BackoffRounds: 1, MaxBackoff: time.Microsecond})
	defer SetPolicy(DefaultPolicy)

	r := &testResource{}
	r.Acquire()

	acquired := make(chan struct{})
	go func() {
		r.Acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned while resource was held")
	case <-time.After(20 * time.Millisecond):
	}

	r.Release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("parked acquirer was not woken by Release")
	}
	require.True(t, r.Acquired())
}

func TestAcquireContextCancel(t *testing.T) {
	SetPolicy(Policy{Spins: 1, BackoffRounds: 1, MaxBackoff: time.Microsecond})
	defer SetPolicy(DefaultPolicy)

	r := &testResource{}
	r.Acquire()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := r.AcquireContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	p := New[*testResource]("wait", nil)
	p.Add(r)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	_, err = p.AcquireWait(ctx2, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuards(t *testing.T) {
	r := &testResource{}
	r.Acquire()
	g := NewGuard(r)
	g.Release()
	g.Release()
	require.False(t, r.Acquired())

	r.Acquire()
	sg := NewSharedGuard(r)
	sg.Hold()
	sg.Release()
	require.True(t, r.Acquired())
	sg.Release()
	require.False(t, r.Acquired())
}
