package ktrace

import (
	"github.com/betrusted-io/xous-core-sub009/datarecording"
)

// kernelEventEntry is the database row for one traced kernel action.
type kernelEventEntry struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	PID  uint8  `json:"pid"`
	Phys uint64 `json:"phys"`
	Virt uint64 `json:"virt"`
	Size uint64 `json:"size"`
}

// A dbTracer records kernel events into a database through a data recorder.
type dbTracer struct {
	recorder datarecording.DataRecorder
}

// NewDBTracer creates a tracer that stores events in the kernel_events
// table of the given recorder.
func NewDBTracer(recorder datarecording.DataRecorder) Tracer {
	t := &dbTracer{recorder: recorder}

	t.recorder.CreateTable("kernel_events", kernelEventEntry{})

	return t
}

func (t *dbTracer) Record(e Event) {
	t.recorder.InsertData("kernel_events", kernelEventEntry{
		ID:   e.ID,
		Kind: string(e.Kind),
		PID:  uint8(e.PID),
		Phys: uint64(e.Phys),
		Virt: uint64(e.Virt),
		Size: uint64(e.Size),
	})
}
