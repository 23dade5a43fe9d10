// Package kernel wires the memory manager and the process table to one hart
// and boots them from a boot argument image.
package kernel

import (
	"github.com/betrusted-io/xous-core-sub009/kernel/arch/riscv"
	"github.com/betrusted-io/xous-core-sub009/kernel/bootargs"
	"github.com/betrusted-io/xous-core-sub009/kernel/ktrace"
	"github.com/betrusted-io/xous-core-sub009/kernel/mem"
	"github.com/betrusted-io/xous-core-sub009/kernel/services"
)

// A Kernel is one booted instance of the memory core.
type Kernel struct {
	Hart     *riscv.Hart
	Mem      *mem.Manager
	Services *services.SystemServices
}

// A Builder can build kernels.
type Builder struct {
	tracer ktrace.Tracer
}

// MakeBuilder creates a new Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithTracer sets the tracer that records the kernel's memory and process
// actions.
func (b Builder) WithTracer(tracer ktrace.Tracer) Builder {
	b.tracer = tracer
	return b
}

// Build creates an unbooted kernel.
func (b Builder) Build() *Kernel {
	hart := riscv.NewHart()

	mm := mem.MakeBuilder().
		WithHart(hart).
		WithTracer(b.tracer).
		Build()

	ss := services.MakeBuilder().
		WithHart(hart).
		WithMemoryManager(mm).
		WithTracer(b.tracer).
		Build()

	return &Kernel{Hart: hart, Mem: mm, Services: ss}
}

// Boot parses the boot argument image, builds the page ownership table, and
// creates the initial processes. A malformed image is fatal.
func (k *Kernel) Boot(image []byte) {
	tags := bootargs.Read(image)

	k.Mem.Init(tags)
	k.Services.Init(tags)
}
