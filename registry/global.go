package registry

import "sync"

// The three process-wide registries (ops, sources, sinks) from spec.md §5:
// initialized lazily on first access, immutable after the registration
// phase. sync.Once makes the initialization itself race-free; all
// mutation after that goes through Register, which external collaborators
// call at process start before any task runs.
var (
	globalOnce    sync.Once
	globalOps     *Registry
	globalSources *Registry
	globalSinks   *Registry
)

func initGlobals() {
	globalOps = New()
	globalSources = New()
	globalSinks = New()
}

// Ops returns the process-wide op registry.
func Ops() *Registry {
	globalOnce.Do(initGlobals)
	return globalOps
}

// Sources returns the process-wide source registry.
func Sources() *Registry {
	globalOnce.Do(initGlobals)
	return globalSources
}

// Sinks returns the process-wide sink registry.
func Sinks() *Registry {
	globalOnce.Do(initGlobals)
	return globalSinks
}
