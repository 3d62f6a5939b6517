package tasksvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

// Runner executes submitted tasks on background goroutines.
// Stop waits for in-flight tasks to finish, bounded by the configured timeout.
type Runner struct {
	logger  core.Logger
	timeout time.Duration

	mu     sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

var _ core.TaskRunner = (*Runner)(nil)

func NewRunner(logger core.Logger, timeout time.Duration) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (r *Runner) Submit(name string, fn func(context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn(fmt.Sprintf("tasksvc: runner stopped, dropping task %q", name))
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				err := errors.Errorf("task %q panicked: %v", name, rec)
				r.logger.Error(err.Error(), err)
			}
		}()

		if err := fn(r.ctx); err != nil {
			r.logger.Error(fmt.Sprintf("task %q failed: %v", name, err), err)
		}
	}()
}

// Stop refuses new tasks and waits for running ones. Tasks still running
// after the timeout get their context canceled and are abandoned.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(r.timeout):
		r.logger.Warn("tasksvc: timed out waiting for tasks, canceling")
	}
	r.cancel()
}
