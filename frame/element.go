package frame

// Element is the tagged union transported through columns: either raw
// bytes or a Frame. Exactly one of Bytes/Frame is non-nil.
type Element struct {
	Bytes []byte
	Frame *Frame
}

// Size returns the byte length of whichever payload this Element carries.
func (e Element) Size() int {
	if e.Frame != nil {
		return e.Frame.Size()
	}
	return len(e.Bytes)
}

// Data returns the underlying byte slice regardless of which union member
// is populated.
func (e Element) Data() []byte {
	if e.Frame != nil {
		return e.Frame.Data
	}
	return e.Bytes
}

// Device returns the owning device of this Element's payload. Bytes
// elements are always considered CPU-resident.
func (e Element) Device() Device {
	if e.Frame != nil {
		return e.Frame.Device
	}
	return CPUDevice
}

// Release frees any arena-backed buffer this element holds.
func (e Element) Release() {
	if e.Frame != nil {
		e.Frame.Release()
	}
}

// ColumnType is the declared type of a column.
type ColumnType int

const (
	ColumnBytes ColumnType = iota
	ColumnVideo
)

func (c ColumnType) String() string {
	if c == ColumnVideo {
		return "Video"
	}
	return "Bytes"
}

// MoveIfDifferentAddressSpace is a no-op when every element is already on
// dst; otherwise it copies each element's buffer to dst in place, updating
// the element's owning device. The save path requires CPU-resident output
// before serialization, so dst is always CPUDevice there.
//
// Because this Go module only models CPU and a placeholder accelerator
// device (actual HW DMA is outside a storage/codec core, see spec.md §1
// Non-goals), the "cross-device copy" degenerates to a plain byte copy; the
// device bookkeeping is what callers depend on, not the transport.
func MoveIfDifferentAddressSpace(src Device, dst Device, elements []Element) {
	if src == dst {
		return
	}
	for i, e := range elements {
		if e.Frame == nil {
			continue
		}
		if e.Frame.Device == dst {
			continue
		}
		moved := make([]byte, len(e.Frame.Data))
		copy(moved, e.Frame.Data)
		e.Frame.Data = moved
		e.Frame.Device = dst
		if e.Frame.arena != nil {
			// The view no longer references the shared block; drop its
			// hold so the block frees once the last unmoved view does.
			e.Frame.arena.release()
			e.Frame.arena = nil
		}
		elements[i] = e
	}
}
