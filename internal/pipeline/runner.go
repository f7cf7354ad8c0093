package pipeline

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/internal/history"
)

// RunFunc is the unit the runner schedules; in production it is
// (*Pipeline).Run.
type RunFunc func(ctx context.Context, trig Trigger) (*history.Record, error)

// Runner detaches pipeline runs from the webhook request/response cycle
// while serializing runs per profile: two outcomes against the same
// profile never merge configuration concurrently, runs against distinct
// profiles proceed in parallel.
type Runner struct {
	run RunFunc

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	wg    sync.WaitGroup
}

func NewRunner(run RunFunc) *Runner {
	return &Runner{run: run, locks: make(map[string]*sync.Mutex)}
}

// Handle lets callers that want one (tests, the manual trigger endpoint)
// await a detached run. The webhook path just drops it.
type Handle struct {
	done chan struct{}
	rec  *history.Record
	err  error
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Result blocks until the run finishes.
func (h *Handle) Result() (*history.Record, error) {
	<-h.done
	return h.rec, h.err
}

// Enqueue starts the run in the background and returns immediately.
func (r *Runner) Enqueue(trig Trigger) *Handle {
	h := &Handle{done: make(chan struct{})}
	lock := r.profileLock(trig.ProfileID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		lock.Lock()
		defer lock.Unlock()
		h.rec, h.err = r.run(context.Background(), trig)
		close(h.done)
	}()
	return h
}

// Wait blocks until every enqueued run has finished. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) profileLock(profileID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[profileID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[profileID] = lock
	}
	return lock
}
