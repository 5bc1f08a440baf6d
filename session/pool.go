package session

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/kastheco/mountie/device"
	"github.com/kastheco/mountie/log"
)

// TaskFunc performs one background device operation.
type TaskFunc func(ctx context.Context) (device.Message, error)

// Task is one in-flight background operation.
type Task struct {
	ID    uint64
	Ref   device.Ref
	Label string

	done chan struct{}
	msg  device.Message
	err  error
}

// Result is a finished task.
type Result struct {
	TaskID uint64
	Ref    device.Ref
	Label  string
	Msg    device.Message
	Err    error
}

func (t *Task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task) result() Result {
	return Result{TaskID: t.ID, Ref: t.Ref, Label: t.Label, Msg: t.msg, Err: t.err}
}

// Pool tracks background operations. Spawn and Poll are called from the
// interactive loop only; tasks themselves run on their own goroutines and
// never touch session state.
type Pool struct {
	ctx    context.Context
	tasks  []*Task
	nextID uint64
}

// NewPool returns a pool whose tasks run with ctx. Tasks are not cancelled
// individually; ctx cancellation is only observed by the operations
// themselves.
func NewPool(ctx context.Context) *Pool {
	return &Pool{ctx: ctx}
}

// Spawn starts fn in the background and returns immediately.
func (p *Pool) Spawn(ref device.Ref, label string, fn TaskFunc) *Task {
	p.nextID++
	t := &Task{ID: p.nextID, Ref: ref, Label: label, done: make(chan struct{})}
	p.tasks = append(p.tasks, t)

	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				log.ErrorLog.Printf("task %q panicked: %v\n%s", label, r, debug.Stack())
				t.msg = nil
				t.err = fmt.Errorf("%s: panic: %v", label, r)
			}
		}()
		t.msg, t.err = fn(p.ctx)
	}()
	return t
}

// Len returns the number of outstanding tasks.
func (p *Pool) Len() int {
	return len(p.tasks)
}

// Poll scans the pool once in insertion order and returns the finished tasks
// in the order they were found. Unfinished tasks keep their relative order.
func (p *Pool) Poll() []Result {
	var results []Result
	kept := p.tasks[:0]
	for _, t := range p.tasks {
		if t.finished() {
			results = append(results, t.result())
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(p.tasks); i++ {
		p.tasks[i] = nil
	}
	p.tasks = kept
	return results
}

// Drain blocks until every outstanding task has finished and returns their
// results in insertion order.
func (p *Pool) Drain() []Result {
	results := make([]Result, 0, len(p.tasks))
	for _, t := range p.tasks {
		<-t.done
		results = append(results, t.result())
	}
	p.tasks = nil
	return results
}
