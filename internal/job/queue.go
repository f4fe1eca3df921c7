// ABOUTME: Single-worker job queue
// ABOUTME: Runs jobs off the caller's goroutine and streams progress events
package job

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is reported for jobs submitted after Close
var ErrQueueClosed = errors.New("job queue closed")

const progressBuffer = 64

type request struct {
	job  Job
	done chan Result
}

// Queue funnels jobs to one worker so encodes never overlap
type Queue struct {
	runner   *Runner
	jobs     chan request
	progress chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueue starts the worker. depth bounds pending submissions before
// Submit blocks.
func NewQueue(runner *Runner, depth int) *Queue {
	if depth < 1 {
		depth = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		runner:   runner,
		jobs:     make(chan request, depth),
		progress: make(chan Event, progressBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}

	q.wg.Add(1)
	go q.work()
	return q
}

// Submit enqueues j. The returned channel yields exactly one Result.
func (q *Queue) Submit(j Job) <-chan Result {
	done := make(chan Result, 1)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		done <- Result{JobID: j.ID, Err: ErrQueueClosed}
		close(done)
		return done
	}
	q.jobs <- request{job: j, done: done}
	return done
}

// Progress streams events for every job. Intermediate events are dropped
// when the consumer falls behind; a job's Done event waits for room until
// the queue is cancelled, so consumers must drain this channel or call
// Cancel. Closed once the worker exits.
func (q *Queue) Progress() <-chan Event {
	return q.progress
}

// Close stops accepting jobs and waits for queued ones to finish
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
}

// Cancel aborts the running job at its next source boundary and fails
// everything still queued, then closes the queue
func (q *Queue) Cancel() {
	q.cancel()
	q.Close()
}

func (q *Queue) work() {
	defer q.wg.Done()
	defer close(q.progress)

	for req := range q.jobs {
		res, _ := q.runner.run(q.ctx, req.job, q.emit)
		req.done <- res
		close(req.done)
	}
}

func (q *Queue) emit(ev Event) {
	if ev.Done {
		select {
		case q.progress <- ev:
		case <-q.ctx.Done():
		}
		return
	}

	select {
	case q.progress <- ev:
	default:
	}
}
