package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/mmynk/splitchat/internal/models"
)

// Flow names one of the two independent request flows.
type Flow string

const (
	FlowCommand Flow = "command"
	FlowVision  Flow = "vision"
)

// Outcome is the result of one finished round trip.
type Outcome struct {
	Flow Flow

	// Bill is the state right after the outcome was recorded.
	Bill models.BillState

	// Message is the reply or notice appended to the transcript.
	Message models.ChatMessage

	// Err is the recovered failure (*InterpretationError or *ExtractionError),
	// or nil if the result was applied. The bill is unchanged when Err is set.
	Err error
}

// Applied reports whether the result was merged without error. A merge
// that had nothing to change still counts.
func (o Outcome) Applied() bool {
	return o.Err == nil
}

// Task is the handle of one in-flight round trip.
type Task struct {
	flow    Flow
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

func newTask(flow Flow) *Task {
	return &Task{
		flow:    flow,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// Flow returns which flow the task belongs to.
func (t *Task) Flow() Flow { return t.flow }

// Started returns when the task was submitted.
func (t *Task) Started() time.Time { return t.started }

// Done is closed once the outcome has been recorded and the flow is idle again.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel abandons the external call. The task still completes, with the
// failure notice for its flow.
func (t *Task) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Wait blocks until the task finishes or ctx is done. Giving up on the wait
// does not cancel the task.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// gate allows at most one pending task per flow. It is a re-entrancy guard,
// not a queue.
type gate struct {
	mu   sync.Mutex
	task *Task
}

func (g *gate) acquire(t *Task) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.task != nil {
		return false
	}
	g.task = t
	return true
}

func (g *gate) release(t *Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.task == t {
		g.task = nil
	}
}

func (g *gate) current() *Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.task
}
