// Package tasks implements a single-consumer control-event dispatcher:
// external callers enqueue typed tasks, and one consumer goroutine runs
// registered handlers sequentially, in FIFO-per-enqueue order. Handlers are
// expected to be non-blocking; a handler's own Enqueue call is buffered and
// never executed reentrantly from within the same Run loop iteration.
package tasks

import (
	"reflect"
	"sync"
)

// Task is the marker interface implemented by every control-plane task.
type Task interface {
	isTask()
}

// Handler processes one Task. Handlers run on the Queue's single consumer
// goroutine and must not block.
type Handler func(Task)

// Queue is a single-producer/multi-producer, single-consumer FIFO of tasks
// keyed by concrete Task type.
type Queue struct {
	mu       sync.Mutex
	handlers map[string]Handler
	ch       chan Task
	closed   chan struct{}
	once     sync.Once
}

// New creates a Queue with the given buffer size for pending tasks.
func New(buffer int) *Queue {
	return &Queue{
		handlers: make(map[string]Handler),
		ch:       make(chan Task, buffer),
		closed:   make(chan struct{}),
	}
}

// Register binds a Handler to every Task of the concrete type T.
// Registration must happen before Run starts.
func Register[T Task](q *Queue, handler func(T)) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	q.mu.Lock()
	q.handlers[key.String()] = func(t Task) { handler(t.(T)) }
	q.mu.Unlock()
}

func typeName(t Task) string {
	return reflect.TypeOf(t).String()
}

// Enqueue appends task to the queue. It never runs the matching handler
// synchronously, preserving the no-reentrancy rule: a handler's own
// Enqueue calls are always processed on a later loop iteration.
func (q *Queue) Enqueue(task Task) {
	select {
	case <-q.closed:
		return
	default:
	}
	q.ch <- task
}

// Run drains the queue on the calling goroutine until Close is called and
// the queue drains empty. This is meant to be the engine's single logical
// control thread.
func (q *Queue) Run() {
	for {
		select {
		case t, ok := <-q.ch:
			if !ok {
				return
			}
			q.dispatch(t)
		case <-q.closed:
			// Drain remaining buffered tasks before exiting so that
			// in-flight Enqueue calls made just before Close still run.
			for {
				select {
				case t := <-q.ch:
					q.dispatch(t)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) dispatch(t Task) {
	q.mu.Lock()
	handler, ok := q.handlers[typeName(t)]
	q.mu.Unlock()
	if ok {
		handler(t)
	}
}

// Close stops Run once the queue has drained. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
}
