// Package taskrunner provides single-goroutine FIFO task queues. A Runner
// stands in for a thread: every task posted to it runs on the same goroutine,
// in the order it was posted.
package taskrunner

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// Runner executes posted tasks one at a time on a dedicated goroutine
type Runner struct {
	name string

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool

	goroutine atomic.Uint64
	done      chan struct{}
}

// New starts a runner
func New(name string) *Runner {
	r := &Runner{
		name: name,
		done: make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	started := make(chan struct{})
	go r.loop(started)
	<-started
	return r
}

func (r *Runner) Name() string {
	return r.name
}

func (r *Runner) loop(started chan struct{}) {
	r.goroutine.Store(goroutineID())
	close(started)
	defer close(r.done)

	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.stopped {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		task := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.run(task)
	}
}

func (r *Runner) run(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("task on %s runner panicked: %v", r.name, rec)
		}
	}()
	task()
}

// PostTask queues a task. It returns false if the runner has been stopped.
func (r *Runner) PostTask(task func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		logger.Tracef("dropped task posted to stopped %s runner", r.name)
		return false
	}
	r.queue = append(r.queue, task)
	r.cond.Signal()
	return true
}

// PostTaskAndReply runs task on r, then posts reply to replyTo
func (r *Runner) PostTaskAndReply(task func(), reply func(), replyTo *Runner) bool {
	return r.PostTask(func() {
		task()
		replyTo.PostTask(reply)
	})
}

// PostTaskAndReplyWithResult runs task on target and hands its result to
// reply on replyTo.
func PostTaskAndReplyWithResult[T any](target *Runner, task func() T, reply func(T), replyTo *Runner) bool {
	return target.PostTask(func() {
		result := task()
		replyTo.PostTask(func() {
			reply(result)
		})
	})
}

// RunAndWait runs fn on the runner and blocks until it returns. Calling it
// from the runner's own goroutine runs fn inline.
func (r *Runner) RunAndWait(fn func()) bool {
	if r.RunsTasksInCurrentSequence() {
		fn()
		return true
	}
	finished := make(chan struct{})
	if !r.PostTask(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	<-finished
	return true
}

// Flush blocks until every task posted before the call has run
func (r *Runner) Flush() bool {
	return r.RunAndWait(func() {})
}

// RunsTasksInCurrentSequence reports whether the caller is running on this runner
func (r *Runner) RunsTasksInCurrentSequence() bool {
	return goroutineID() == r.goroutine.Load()
}

// Stop rejects further tasks, runs those already queued and waits for the
// runner goroutine to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.cond.Signal()
	r.mu.Unlock()

	if !r.RunsTasksInCurrentSequence() {
		<-r.done
	}
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))
	if len(fields) == 0 {
		return 0
	}
	id, _ := strconv.ParseUint(fields[0], 10, 64)
	return id
}
