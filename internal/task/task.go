// Package task provides the async-operation primitives the console widgets
// are built on: a single-in-flight Task with stale-completion detection, and
// a sequential Batch that mutates one item at a time.
package task

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// taskIDs issues process-unique task identities so that completion messages
// can never be claimed by a different widget's task, even when both share a
// result type.
var taskIDs atomic.Uint64

// Task tracks at most one outstanding asynchronous operation for its owner.
//
// Start does not reject overlapping starts: a newer start supersedes the
// older one, and the older completion is silently discarded by Observe.
// Owners that want to prevent overlap (submit buttons, search triggers)
// check Busy before starting.
//
// Each Task value carries a process-unique identity and a generation counter
// incremented on every Start. A completion is claimed only when both match,
// so late results from superseded operations or from a torn-down owner's
// task never touch state.
type Task[T any] struct {
	id   uint64
	seq  uint64 // Generation; increments on every Start
	busy bool
}

// New returns a Task with a fresh identity. The zero value is not usable:
// two zero Tasks of the same result type would claim each other's
// completions.
func New[T any]() Task[T] {
	return Task[T]{id: taskIDs.Add(1)}
}

// DoneMsg is the completion message for a started operation. Exactly one is
// produced per Start; route it through Observe to claim it.
type DoneMsg[T any] struct {
	taskID uint64
	seq    uint64

	Value T
	Err   error
}

// Start begins fn in the background and returns the command that delivers
// its DoneMsg. Any operation already in flight is superseded: it keeps
// running, but its completion will no longer match the current generation.
func (t *Task[T]) Start(fn func() (T, error)) tea.Cmd {
	t.seq++
	t.busy = true
	id, seq := t.id, t.seq
	return func() tea.Msg {
		v, err := fn()
		return DoneMsg[T]{taskID: id, seq: seq, Value: v, Err: err}
	}
}

// Busy reports whether an operation is in flight.
func (t *Task[T]) Busy() bool {
	return t.busy
}

// Observe claims msg if it is the completion of this task's current
// operation. It returns ok=false for anything else: messages of other
// types, completions belonging to other tasks, and stale completions from
// superseded generations. Unclaimed messages must be ignored, not treated
// as errors.
func (t *Task[T]) Observe(msg tea.Msg) (DoneMsg[T], bool) {
	if !t.busy {
		return DoneMsg[T]{}, false
	}
	done, ok := msg.(DoneMsg[T])
	if !ok || done.taskID != t.id || done.seq != t.seq {
		return DoneMsg[T]{}, false
	}
	t.busy = false
	return done, true
}
