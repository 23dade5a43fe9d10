// Package ktrace records the actions of the kernel memory core: page
// allocation, ownership changes, mapping changes, and process switches.
// Tracers are optional hooks; a nil tracer costs nothing.
package ktrace

import (
	"log"

	"github.com/rs/xid"

	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
)

// Kind labels one traced kernel action.
type Kind string

// The traced action kinds.
const (
	KindAlloc     Kind = "alloc"
	KindClaim     Kind = "claim"
	KindRelease   Kind = "release"
	KindMap       Kind = "map"
	KindUnmap     Kind = "unmap"
	KindReserve   Kind = "reserve"
	KindSwitch    Kind = "switch"
	KindCallback  Kind = "callback"
	KindTerminate Kind = "terminate"
)

// An Event is one traced kernel action.
type Event struct {
	ID   string
	Kind Kind
	PID  defs.PID
	Phys uint32
	Virt uint32
	Size uint32
}

// A Tracer consumes kernel events.
type Tracer interface {
	Record(e Event)
}

// NewEventID returns a fresh globally unique event ID.
func NewEventID() string {
	return xid.New().String()
}

// Emit sends the event to the tracer, assigning it an ID. A nil tracer
// drops the event.
func Emit(t Tracer, e Event) {
	if t == nil {
		return
	}

	e.ID = NewEventID()
	t.Record(e)
}

type logTracer struct {
	logger *log.Logger
}

// NewLogTracer creates a tracer that prints one line per event.
func NewLogTracer(logger *log.Logger) Tracer {
	return &logTracer{logger: logger}
}

func (t *logTracer) Record(e Event) {
	t.logger.Printf("%s, %s, pid %d, phys 0x%08x, virt 0x%08x, %d\n",
		e.ID, e.Kind, e.PID, e.Phys, e.Virt, e.Size)
}
