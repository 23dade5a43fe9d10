// Package services owns the process table: it answers who is running,
// switches the active address space, and injects callbacks into other
// processes.
package services

import (
	"github.com/betrusted-io/xous-core-sub009/kernel/arch/riscv"
	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
)

// State is the lifecycle state of one process slot.
type State int

// The process lifecycle states. A slot starts Free, moves to Setup when the
// loader hands the kernel an initial image, becomes Running on first
// dispatch, and bounces between Running, Ready, and Sleeping on context
// switches until termination returns it to Free.
const (
	StateFree State = iota
	StateSetup
	StateReady
	StateRunning
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateSetup:
		return "setup"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	default:
		return "invalid"
	}
}

// A Process is one schedulable address space.
type Process struct {
	// Mapping is the satp value owned by this process for its entire
	// lifetime.
	Mapping riscv.MemoryMapping

	State  State
	Parent defs.PID

	// First-dispatch parameters, meaningful only in StateSetup.
	Entry     uint32
	SP        uint32
	StackSize uint32

	// Saved holds the hardware context preserved when the process stops
	// running, by a plain switch or a callback injection, until the
	// process is resumed. At most one context is ever in flight.
	Saved *riscv.Context

	// Base virtual addresses for the process's default mappings, message
	// buffers, and heap.
	DefaultBase uint32
	MessageBase uint32
	HeapBase    uint32
	HeapSize    uint32
	HeapMax     uint32
}

// Runnable reports whether the process can be the target of a callback or a
// resume.
func (p *Process) Runnable() bool {
	switch p.State {
	case StateReady, StateRunning, StateSleeping:
		return true
	default:
		return false
	}
}
