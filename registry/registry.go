// Package registry implements the process-wide op/source/sink registry
// from spec.md §6: name → factory + I/O column signature, registered at
// process start. Mirrors the once-initialized/frozen-read-mostly
// discipline of spec.md §5 ("initialized lazily on first access; after
// initialization it is immutable... implementations must ensure the
// initialization itself is race-free") using the teacher's own swiss.Map
// (internal/cache/block_map.go) for the frozen read-mostly lookup table.
package registry

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"

	"github.com/videotable/vstore/internal/base"
)

// ColumnSignature names one input or output column's declared type.
type ColumnSignature struct {
	Name string
}

// Descriptor is what a name registers: a factory plus its I/O column
// signature (spec.md §6). VariadicInputs marks an op that accepts any
// number of input columns; such an op may declare zero named inputs.
type Descriptor struct {
	Name           string
	Inputs         []ColumnSignature
	VariadicInputs bool
	Outputs        []ColumnSignature
	// Factory is opaque to the registry — the concrete Op/Source/Sink
	// constructor is an external collaborator's concern (spec.md §1).
	Factory func() (interface{}, error)
}

// Registry is a name → Descriptor table with the frozen read-mostly
// discipline spec.md §5 requires: Register calls happen only before the
// table is frozen (process start), after which Lookup needs no
// synchronization. The zero synchronization in this type is intentional:
// initialization is single-writer (the process-wide registries below are
// created under sync.Once), and a frozen registry is immutable.
type Registry struct {
	frozen bool
	names  swiss.Map[string, *Descriptor]
}

// New returns an empty, unfrozen Registry.
func New() *Registry {
	r := &Registry{}
	r.names.Init(16)
	return r
}

// Register rejects duplicate names, empty+non-variadic inputs, and empty
// outputs, surfacing ErrRegistrationConflict before any task runs
// (spec.md §6, §7). Registering after Freeze also conflicts: mutation is
// only legal during the single-writer initialization phase (spec.md §5).
func (r *Registry) Register(d Descriptor) error {
	if r.frozen {
		return errors.Wrapf(base.ErrRegistrationConflict, "registry: %q registered after freeze", d.Name)
	}
	if _, ok := r.names.Get(d.Name); ok {
		return errors.Wrapf(base.ErrRegistrationConflict, "registry: %q already registered", d.Name)
	}
	if len(d.Inputs) == 0 && !d.VariadicInputs {
		return errors.Wrapf(base.ErrRegistrationConflict, "registry: %q has empty, non-variadic inputs", d.Name)
	}
	if len(d.Outputs) == 0 {
		return errors.Wrapf(base.ErrRegistrationConflict, "registry: %q has empty outputs", d.Name)
	}
	cp := d
	r.names.Put(d.Name, &cp)
	return nil
}

// Freeze marks the registry read-only: no further Register calls may
// succeed. Lookup never requires Freeze to have been called, but calling
// it documents the single-writer/frozen-read-mostly boundary explicitly
// and lets callers assert it in tests.
func (r *Registry) Freeze() { r.frozen = true }

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool { return r.frozen }

// Lookup returns the Descriptor registered under name, if any.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	return r.names.Get(name)
}

// Len reports how many names are registered.
func (r *Registry) Len() int { return r.names.Len() }
