package defs

import (
	"errors"
	"fmt"
)

// The recoverable, caller-facing error kinds. Callers match against these
// sentinels with errors.Is; the concrete error values carry the diagnostic
// fields. Kernel invariant violations are never reported through this
// taxonomy, they panic.
var (
	ErrOutOfMemory     = errors.New("out of memory")
	ErrBadAddress      = errors.New("bad address")
	ErrBadAlignment    = errors.New("bad alignment")
	ErrMemoryInUse     = errors.New("memory in use")
	ErrProcessNotFound = errors.New("process not found")
)

// BadAddressError reports an address that is null, outside every known
// memory region, or not currently translated.
type BadAddressError struct {
	Addr uint32
}

func (e BadAddressError) Error() string {
	return fmt.Sprintf("bad address 0x%08x", e.Addr)
}

// Is matches ErrBadAddress.
func (e BadAddressError) Is(target error) bool {
	return target == ErrBadAddress
}

// BadAlignmentError reports an address or size that is not page-aligned.
type BadAlignmentError struct {
	Value uint32
}

func (e BadAlignmentError) Error() string {
	return fmt.Sprintf("bad alignment 0x%08x", e.Value)
}

// Is matches ErrBadAlignment.
func (e BadAlignmentError) Is(target error) bool {
	return target == ErrBadAlignment
}

// MemoryInUseError reports an ownership conflict on a physical page.
type MemoryInUseError struct {
	Addr  uint32
	Owner PID
}

func (e MemoryInUseError) Error() string {
	return fmt.Sprintf("memory at 0x%08x in use by process %d", e.Addr, e.Owner)
}

// Is matches ErrMemoryInUse.
func (e MemoryInUseError) Is(target error) bool {
	return target == ErrMemoryInUse
}

// ProcessNotFoundError reports a PID that names no live process.
type ProcessNotFoundError struct {
	PID PID
}

func (e ProcessNotFoundError) Error() string {
	return fmt.Sprintf("process %d not found", e.PID)
}

// Is matches ErrProcessNotFound.
func (e ProcessNotFoundError) Is(target error) bool {
	return target == ErrProcessNotFound
}
