package frame

import "sync/atomic"

// arena is a single contiguous allocation shared by the N Frame views
// NewFrames hands out. Its refcount is the same atomic-int32 idiom as the
// teacher's cache block refcounting: acquire on every view handed out,
// release when a view is dropped, free the backing buffer when the count
// reaches zero.
type arena struct {
	device Device
	buf    []byte
	refs   int32
}

func newArena(device Device, size, initialViews int) *arena {
	return &arena{
		device: device,
		buf:    make([]byte, size),
	}
}

func (a *arena) acquire() {
	atomic.AddInt32(&a.refs, 1)
}

// release decrements the refcount and frees the backing buffer once the
// last view has been released. Freeing here just means dropping the Go
// slice reference so the GC can reclaim it; a real accelerator-backed
// arena would call the device deallocator at this point instead.
func (a *arena) release() {
	if atomic.AddInt32(&a.refs, -1) == 0 {
		a.buf = nil
	}
}

// Live reports whether the arena still has outstanding views. Exposed for
// tests verifying the free-on-last-release invariant.
func (a *arena) Live() bool {
	return atomic.LoadInt32(&a.refs) > 0
}
