package services

import (
	"github.com/betrusted-io/xous-core-sub009/kernel/arch/riscv"
	"github.com/betrusted-io/xous-core-sub009/kernel/ktrace"
	"github.com/betrusted-io/xous-core-sub009/kernel/mem"
)

// A Builder can build system services.
type Builder struct {
	hart   *riscv.Hart
	mm     *mem.Manager
	tracer ktrace.Tracer
}

// MakeBuilder creates a new Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithHart sets the hart whose context and mapping are switched.
func (b Builder) WithHart(hart *riscv.Hart) Builder {
	b.hart = hart
	return b
}

// WithMemoryManager sets the memory manager used for stack reservation and
// process teardown.
func (b Builder) WithMemoryManager(mm *mem.Manager) Builder {
	b.mm = mm
	return b
}

// WithTracer sets the tracer that records process switches.
func (b Builder) WithTracer(tracer ktrace.Tracer) Builder {
	b.tracer = tracer
	return b
}

// Build creates the system services. Init must be called with the boot
// argument stream before any other operation.
func (b Builder) Build() *SystemServices {
	if b.hart == nil || b.mm == nil {
		panic("system services require a hart and a memory manager")
	}

	return &SystemServices{
		hart:   b.hart,
		mm:     b.mm,
		tracer: b.tracer,
	}
}
