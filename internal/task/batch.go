package task

// Status is the lifecycle state of a Batch.
type Status int

const (
	StatusRunning Status = iota // Steps remain and no step has failed
	StatusDone                  // Every step committed
	StatusFailed                // A step failed; the chain is halted
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Batch is one run of applying a mutation to each member of an ordered
// selection, strictly one at a time. It holds a snapshot of the selection
// taken at submit time; the live selection can keep changing without
// affecting a running batch.
//
// The cursor only moves forward, by exactly one, on Advance. On failure it
// stays at the failed index: items before it are committed permanently
// (there is no rollback), items from it on were never dispatched. A halted
// or finished batch is dead; resubmission means a brand-new Batch.
//
// Batch is purely bookkeeping. Issuing the per-item mutation and observing
// its completion is the owner's job, via Task.
type Batch[E any] struct {
	items  []E
	cursor int
	status Status
	err    error
}

// NewBatch snapshots items into a running batch. The caller is expected to
// treat an empty selection as a no-op and not submit at all; a Batch built
// from an empty slice starts out Done.
func NewBatch[E any](items []E) *Batch[E] {
	b := &Batch[E]{items: append([]E(nil), items...)}
	if len(b.items) == 0 {
		b.status = StatusDone
	}
	return b
}

// Len returns the number of items in the snapshot.
func (b *Batch[E]) Len() int {
	return len(b.items)
}

// Cursor returns the index of the current step. While running it is the
// step in flight; after a failure it is the step that failed; when done it
// equals Len.
func (b *Batch[E]) Cursor() int {
	return b.cursor
}

// Committed returns how many steps have succeeded so far.
func (b *Batch[E]) Committed() int {
	return b.cursor
}

// Status returns the batch lifecycle state.
func (b *Batch[E]) Status() Status {
	return b.status
}

// Err returns the error that halted the batch, or nil.
func (b *Batch[E]) Err() error {
	return b.err
}

// Current returns the item whose mutation should be (or is) in flight.
// ok is false when the batch is not running.
func (b *Batch[E]) Current() (E, bool) {
	if b.status != StatusRunning {
		var zero E
		return zero, false
	}
	return b.items[b.cursor], true
}

// Advance records success of the current step and moves the cursor forward.
// It returns the next item to dispatch, or ok=false when the batch is done
// (or was not running).
func (b *Batch[E]) Advance() (E, bool) {
	var zero E
	if b.status != StatusRunning {
		return zero, false
	}
	b.cursor++
	if b.cursor == len(b.items) {
		b.status = StatusDone
		return zero, false
	}
	return b.items[b.cursor], true
}

// Fail halts the batch at the current cursor. Committed steps stay
// committed.
func (b *Batch[E]) Fail(err error) {
	if b.status != StatusRunning {
		return
	}
	b.status = StatusFailed
	b.err = err
}
