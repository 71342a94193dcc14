package handle

import (
	"sync"
	"testing"
)

func TestOwnedRelease(t *testing.T) {
	deleted := 0
	o := NewOwned(42, func(int) { deleted++ })
	if v, ok := o.Get(); !ok || v != 42 {
		t.Fatalf("Get = %d,%v", v, ok)
	}
	o.Release()
	o.Release()
	if deleted != 1 {
		t.Errorf("deleter ran %d times, want 1", deleted)
	}
	if o.Valid() {
		t.Error("handle still valid after Release")
	}
}

func TestOwnedTake(t *testing.T) {
	deleted := false
	o := NewOwned("tex", func(string) { deleted = true })
	v, ok := o.Take()
	if !ok || v != "tex" {
		t.Fatalf("Take = %q,%v", v, ok)
	}
	o.Release()
	if deleted {
		t.Error("deleter ran after ownership was taken")
	}
}

func TestSharedLastReleaseDeletes(t *testing.T) {
	deleted := 0
	s := NewShared([]byte{1, 2, 3}, func([]byte) { deleted++ })
	c := s.Clone()
	if s.UseCount() != 2 {
		t.Fatalf("UseCount = %d, want 2", s.UseCount())
	}
	s.Release()
	s.Release()
	if deleted != 0 {
		t.Fatal("deleted while a clone is alive")
	}
	if c.Get()[1] != 2 {
		t.Error("clone lost value")
	}
	c.Release()
	if deleted != 1 {
		t.Errorf("deleter ran %d times, want 1", deleted)
	}
}

func TestWeakUpgrade(t *testing.T) {
	s := NewShared(7, nil)
	w := s.Weak()
	if w.WeakCount() != 1 {
		t.Errorf("WeakCount = %d, want 1", w.WeakCount())
	}
	up, ok := w.Upgrade()
	if !ok || up.Get() != 7 {
		t.Fatal("upgrade of live value failed")
	}
	up.Release()
	s.Release()
	if !w.Expired() {
		t.Error("weak not expired after last release")
	}
	if _, ok := w.Upgrade(); ok {
		t.Error("upgrade succeeded on expired value")
	}
	w.Reset()
	if w.WeakCount() != 0 {
		t.Error("WeakCount after Reset")
	}
}

func TestSharedConcurrentClone(t *testing.T) {
	deleted := 0
	var mu sync.Mutex
	s := NewShared(1, func(int) {
		mu.Lock()
		deleted++
		mu.Unlock()
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		c := s.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Release()
		}()
	}
	wg.Wait()
	s.Release()
	if deleted != 1 {
		t.Errorf("deleter ran %d times, want 1", deleted)
	}
}
