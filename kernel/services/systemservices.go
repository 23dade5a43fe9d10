package services

import (
	"log"

	"github.com/betrusted-io/xous-core-sub009/kernel/arch/riscv"
	"github.com/betrusted-io/xous-core-sub009/kernel/bootargs"
	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
	"github.com/betrusted-io/xous-core-sub009/kernel/ktrace"
	"github.com/betrusted-io/xous-core-sub009/kernel/mem"
)

// SystemServices is the fixed-capacity process table plus the operations
// that switch the active process. Slot index plus one is the PID.
type SystemServices struct {
	hart   *riscv.Hart
	mm     *mem.Manager
	tracer ktrace.Tracer

	processes [defs.MaxProcessCount]Process
}

// Init creates one process per initial program image in the boot argument
// stream. The PID is the address-space ID encoded in the image's satp value;
// the kernel's parent is PID 0, every other initial process defaults to the
// kernel as parent. All created processes are left in Setup; the kernel's
// mapping is activated so the hart has a live translation context.
func (s *SystemServices) Init(tags []bootargs.Tag) {
	var programs []bootargs.InitProgram
	for _, t := range tags {
		if t.Name == bootargs.TagInit {
			programs = append(programs, bootargs.ParseInitPrograms(t)...)
		}
	}

	if len(programs) == 0 {
		log.Panic("boot arguments describe no initial processes")
	}

	for _, prog := range programs {
		mapping := riscv.MappingFromSatp(prog.Satp)
		pid := mapping.PID()
		if pid == 0 {
			log.Panicf("init image has invalid PID %d", pid)
		}

		proc := &s.processes[pid-1]
		if proc.State != StateFree {
			log.Panicf("init image PID %d is already in use", pid)
		}

		parent := defs.KernelPID
		if pid == defs.KernelPID {
			parent = 0
		}

		// The loader built this image's page tables out of pages the
		// ownership table does not know about yet. Claim the root so
		// the allocator never hands it out.
		if err := s.mm.ClaimPage(mapping.RootPhys(), pid); err != nil {
			log.Panicf("cannot claim root page table of PID %d: %v", pid, err)
		}

		*proc = Process{
			Mapping:     mapping,
			State:       StateSetup,
			Parent:      parent,
			Entry:       prog.Entry,
			SP:          prog.SP,
			StackSize:   defs.DefaultStackSize,
			DefaultBase: defs.DefaultBase,
			MessageBase: defs.DefaultMessageBase,
			HeapBase:    defs.DefaultHeapBase,
			HeapMax:     defs.MaxHeapSize,
		}
	}

	s.processes[defs.KernelPID-1].Mapping.Activate(s.hart)
}

// GetProcess returns a copy of the process record for the PID. PID 0, an
// out-of-range PID, or a slot whose mapping does not carry the requested PID
// resolve to a process-not-found error.
func (s *SystemServices) GetProcess(pid defs.PID) (Process, error) {
	proc, err := s.getMut(pid)
	if err != nil {
		return Process{}, err
	}

	return *proc, nil
}

func (s *SystemServices) getMut(pid defs.PID) (*Process, error) {
	if pid == 0 || int(pid) > defs.MaxProcessCount {
		return nil, defs.ProcessNotFoundError{PID: pid}
	}

	proc := &s.processes[pid-1]
	if proc.Mapping.PID() != pid {
		return nil, defs.ProcessNotFoundError{PID: pid}
	}

	return proc, nil
}

// CurrentPID reads the PID of the live hardware mapping and cross-checks it
// against the process table. The two sources of truth must agree at every
// call boundary; a mismatch means a corrupted page table or process record,
// and continuing past either is unsafe.
func (s *SystemServices) CurrentPID() defs.PID {
	current := riscv.Current(s.hart)
	pid := current.PID()
	if pid == 0 {
		log.Panic("hardware mapping carries PID 0")
	}

	proc := &s.processes[pid-1]
	if proc.Mapping != current {
		log.Panicf(
			"hardware mapping (satp 0x%08x) does not match process %d's recorded mapping (satp 0x%08x)",
			current.Satp(), pid, proc.Mapping.Satp())
	}

	return pid
}

// ResumePID switches execution to the given process. The previously running
// process is demoted to previousState with its hardware context saved, so a
// later resume brings it back exactly where it stopped. A process still in
// Setup gets its first-run initialization: a fresh context at its entry
// point and a lazily reserved, unbacked stack. Resuming the process that is
// already active skips the mapping activation.
func (s *SystemServices) ResumePID(pid defs.PID, previousState State) error {
	proc, err := s.getMut(pid)
	if err != nil {
		return err
	}

	currentPID := s.CurrentPID()
	if pid != currentPID {
		if prev, err := s.getMut(currentPID); err == nil && prev.State == StateRunning {
			prev.State = previousState
			saved := s.hart.Context
			prev.Saved = &saved
		}

		proc.Mapping.Activate(s.hart)
	}

	switch proc.State {
	case StateSetup:
		s.firstDispatch(proc)
	case StateReady, StateSleeping, StateRunning:
		if proc.Saved != nil {
			s.hart.Context = *proc.Saved
			proc.Saved = nil
		}
	}

	proc.State = StateRunning

	ktrace.Emit(s.tracer, ktrace.Event{Kind: ktrace.KindSwitch, PID: pid})

	return nil
}

// firstDispatch builds the initial execution context of a Setup process and
// reserves its stack. The stack pages are present in the page table but not
// backed; the first write faults them in one at a time.
func (s *SystemServices) firstDispatch(proc *Process) {
	context := riscv.Context{PC: proc.Entry}
	context.Registers[riscv.RegSP] = proc.SP
	s.hart.Context = context

	stackBottom := proc.SP - proc.StackSize - defs.PageSize
	err := s.mm.ReserveRange(
		stackBottom,
		proc.StackSize+defs.PageSize,
		riscv.EntryRead|riscv.EntryWrite,
	)
	if err != nil {
		log.Panicf("cannot reserve stack [0x%08x, 0x%08x) for PID %d: %v",
			stackBottom, proc.SP, proc.Mapping.PID(), err)
	}
}

// MakeCallbackTo injects an upcall into another process without going
// through the scheduler: the current process is parked Ready with its
// hardware context saved, the target's mapping is activated, and a
// synthesized frame runs the handler with the interrupt number and argument,
// returning to the callback trampoline.
//
// The target must be a runnable process other than the current one. Free or
// still-Setup targets, a self-callback, and a current process that already
// has a context in flight, are kernel bugs.
func (s *SystemServices) MakeCallbackTo(pid defs.PID, pc uint32, irq, arg uint32) {
	currentPID := s.CurrentPID()
	if pid == currentPID {
		log.Panicf("process %d tried to inject a callback into itself", pid)
	}

	current := &s.processes[currentPID-1]

	target, err := s.getMut(pid)
	if err != nil || !target.Runnable() {
		log.Panicf("callback target PID %d is not runnable (process hasn't been set up yet, or slot is free)",
			pid)
	}

	if current.Saved != nil {
		log.Panicf("current process %d was not running: a saved context is already in flight",
			currentPID)
	}

	current.State = StateReady
	saved := s.hart.Context
	current.Saved = &saved

	target.Mapping.Activate(s.hart)

	frame := riscv.Context{PC: pc}
	frame.Registers[riscv.RegRA] = defs.ReturnFromISR
	frame.Registers[riscv.RegSP] = defs.ExceptionStackTop
	frame.Registers[riscv.RegA0] = irq
	frame.Registers[riscv.RegA1] = arg
	s.hart.Context = frame

	target.State = StateRunning

	ktrace.Emit(s.tracer, ktrace.Event{
		Kind: ktrace.KindCallback, PID: pid, Virt: pc, Size: irq,
	})
}

// Terminate tears a process down: every page it owns is returned to the
// free pool and its slot becomes Free for reuse. Terminating the active
// process would pull the page tables out from under the running kernel, so
// it is a fatal error.
func (s *SystemServices) Terminate(pid defs.PID) error {
	proc, err := s.getMut(pid)
	if err != nil {
		return err
	}

	if pid == s.CurrentPID() {
		log.Panicf("process %d tried to terminate itself", pid)
	}

	s.mm.ReleaseAllPages(pid)
	*proc = Process{}

	return nil
}

// Processes returns a snapshot of all live process records keyed by PID.
func (s *SystemServices) Processes() map[defs.PID]Process {
	snapshot := make(map[defs.PID]Process)
	for i := range s.processes {
		if s.processes[i].State != StateFree {
			snapshot[defs.PID(i+1)] = s.processes[i]
		}
	}

	return snapshot
}
