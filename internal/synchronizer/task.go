package synchronizer

import (
	"sync/atomic"
	"time"
)

// State of a download task
type State int32

// Task states. A task moves Idle -> Fetching -> Applied or Failed; a new
// Execute call after completion starts a new task.
const (
	StateIdle State = iota
	StateFetching
	StateApplied
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateApplied:
		return "applied"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result describes a finished task
type Result struct {
	URL     string
	Status  string // one of the models.Status* values, empty when discarded
	Err     error
	Filters int
	Applied bool
	At      time.Time
}

// Task is a single download of one URL
type Task struct {
	url    string
	state  atomic.Int32
	done   chan struct{}
	result Result
}

func newTask(url string) *Task {
	return &Task{url: url, done: make(chan struct{})}
}

// URL returns the downloaded URL
func (t *Task) URL() string {
	return t.url
}

// State returns the current state
func (t *Task) State() State {
	return State(t.state.Load())
}

// Done is closed when the task has finished
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the task has finished and returns its outcome
func (t *Task) Result() Result {
	<-t.done
	return t.result
}

func (t *Task) finish(res Result) {
	t.result = res
	if res.Applied {
		t.state.Store(int32(StateApplied))
	} else {
		t.state.Store(int32(StateFailed))
	}
	close(t.done)
}
