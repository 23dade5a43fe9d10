package mem

import (
	"github.com/betrusted-io/xous-core-sub009/kernel/arch/riscv"
	"github.com/betrusted-io/xous-core-sub009/kernel/ktrace"
)

// A Builder can build memory managers.
type Builder struct {
	hart   *riscv.Hart
	tracer ktrace.Tracer
}

// MakeBuilder creates a new Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithHart sets the hart whose active mapping the manager operates on.
func (b Builder) WithHart(hart *riscv.Hart) Builder {
	b.hart = hart
	return b
}

// WithTracer sets the tracer that records the manager's actions.
func (b Builder) WithTracer(tracer ktrace.Tracer) Builder {
	b.tracer = tracer
	return b
}

// Build creates the manager. Init must be called with the boot argument
// stream before any other operation.
func (b Builder) Build() *Manager {
	if b.hart == nil {
		panic("memory manager requires a hart")
	}

	return &Manager{
		hart:   b.hart,
		tracer: b.tracer,
	}
}
