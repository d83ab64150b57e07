// Package frame implements the fixed-rank-3 typed image buffers that flow
// through column batches, plus the block allocator that amortizes device
// allocation cost across many views into one contiguous buffer.
package frame

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind is the element type of a Frame's pixels.
type Kind int

const (
	KindInvalid Kind = iota
	KindU8
	KindF32
	KindF64
)

// SizeOf returns sizeof(kind) in bytes.
func SizeOf(k Kind) int {
	switch k {
	case KindU8:
		return 1
	case KindF32:
		return 4
	case KindF64:
		return 8
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	default:
		return "invalid"
	}
}

// DeviceType distinguishes where a Frame's buffer lives.
type DeviceType int

const (
	DeviceCPU DeviceType = iota
	DeviceGPU
)

// Device names a specific allocation target: a device type plus an index
// (e.g. which GPU). CPUDevice is the canonical CPU handle.
type Device struct {
	Type DeviceType
	ID   int
}

// CPUDevice is the device save workers must move every output to before
// serialization.
var CPUDevice = Device{Type: DeviceCPU, ID: 0}

// Info is the shape+kind descriptor for a Frame: FrameInfo in spec terms.
// Shape is always rank 3: (height, width, channels). Missing trailing
// dimensions are implicitly zero, mirroring the two constructors spec.md
// describes (explicit h,w,c and a shape-list form).
type Info struct {
	Shape [3]int
	Kind  Kind
}

// NewInfo builds an Info from explicit height/width/channels.
func NewInfo(h, w, c int, kind Kind) (Info, error) {
	if h < 0 || w < 0 || c < 0 {
		return Info{}, errors.Newf("frame: negative dimension (%d,%d,%d)", h, w, c)
	}
	return Info{Shape: [3]int{h, w, c}, Kind: kind}, nil
}

// NewInfoFromShape builds an Info from a shape slice of length <= 3; missing
// trailing dimensions are zero.
func NewInfoFromShape(shape []int, kind Kind) (Info, error) {
	if len(shape) > 3 {
		return Info{}, errors.Newf("frame: shape has rank %d, want <= 3", len(shape))
	}
	var info Info
	info.Kind = kind
	for i, s := range shape {
		if s < 0 {
			return Info{}, errors.Newf("frame: negative dimension at index %d", i)
		}
		info.Shape[i] = s
	}
	return info, nil
}

// Size returns the total byte size of a buffer with this shape and kind.
func (fi Info) Size() int {
	return fi.Shape[0] * fi.Shape[1] * fi.Shape[2] * SizeOf(fi.Kind)
}

func (fi Info) Height() int   { return fi.Shape[0] }
func (fi Info) Width() int    { return fi.Shape[1] }
func (fi Info) Channels() int { return fi.Shape[2] }

// Equal reports whether two Infos have matching shape and kind.
func (fi Info) Equal(other Info) bool {
	return fi.Shape == other.Shape && fi.Kind == other.Kind
}

func (fi Info) String() string {
	return fmt.Sprintf("Info{%dx%dx%d %s}", fi.Shape[0], fi.Shape[1], fi.Shape[2], fi.Kind)
}

// Frame is a view of Info.Size() bytes, either exclusively owning its own
// buffer or a non-owning view striding into a shared arena (see arena). Its
// lifetime is bounded by the lifetime of the device allocation it
// references: releasing the last view of an arena-backed Frame frees the
// arena.
type Frame struct {
	Info   Info
	Device Device
	Data   []byte

	arena *arena // nil when this Frame owns Data outright
}

// AsInfo reconstructs the descriptor for a Frame, mirroring spec.md's
// as_frame_info().
func (f *Frame) AsInfo() Info { return f.Info }

func (f *Frame) Size() int      { return f.Info.Size() }
func (f *Frame) Width() int     { return f.Info.Width() }
func (f *Frame) Height() int    { return f.Info.Height() }
func (f *Frame) Channels() int  { return f.Info.Channels() }

// Validate checks the buffer-length invariant: len(Data) must equal
// Info.Size().
func (f *Frame) Validate() error {
	if len(f.Data) != f.Info.Size() {
		return errors.Newf("frame: buffer length %d does not match info size %d (%s)",
			len(f.Data), f.Info.Size(), f.Info)
	}
	return nil
}

// Release drops this view. If the Frame was carved from an arena, the
// arena's refcount is decremented and the backing buffer is freed once the
// last view is released. A Frame that owns its own buffer is a no-op to
// release (the Go GC reclaims it).
func (f *Frame) Release() {
	if f.arena != nil {
		f.arena.release()
		f.arena = nil
	}
	f.Data = nil
}

// NewFrame allocates a single buffer of info.Size() bytes on device.
func NewFrame(device Device, info Info) *Frame {
	return &Frame{
		Info:   info,
		Device: device,
		Data:   make([]byte, info.Size()),
	}
}

// NewFrames performs one block allocation of n*info.Size() bytes and
// returns n Frame views striding into it, amortizing device-allocation
// cost and guaranteeing contiguity for bulk DMA. The views share an arena;
// the backing buffer is freed exactly once, when the last view releases.
func NewFrames(device Device, info Info, n int) []*Frame {
	if n <= 0 {
		return nil
	}
	a := newArena(device, info.Size()*n, n)
	frames := make([]*Frame, n)
	stride := info.Size()
	for i := 0; i < n; i++ {
		a.acquire()
		frames[i] = &Frame{
			Info:   info,
			Device: device,
			Data:   a.buf[i*stride : (i+1)*stride],
			arena:  a,
		}
	}
	return frames
}
