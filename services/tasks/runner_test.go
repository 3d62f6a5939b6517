package tasksvc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type captureLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *captureLogger) Debug(msg string, args ...interface{}) {}
func (l *captureLogger) Info(msg string, args ...interface{})  {}
func (l *captureLogger) Warn(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}
func (l *captureLogger) Error(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
func (l *captureLogger) Fatal(msg string, args ...interface{}) {}

func TestRunnerRunsSubmittedTasks(t *testing.T) {
	logger := new(captureLogger)
	runner := NewRunner(logger, time.Second)

	var mu sync.Mutex
	ran := make([]string, 0, 2)
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, name)
			return nil
		}
	}

	runner.Submit("first", record("first"))
	runner.Submit("second", record("second"))
	runner.Stop()

	assert.ElementsMatch(t, []string{"first", "second"}, ran)
	assert.Empty(t, logger.errors)
}

func TestRunnerLogsTaskError(t *testing.T) {
	logger := new(captureLogger)
	runner := NewRunner(logger, time.Second)

	runner.Submit("boom", func(context.Context) error {
		return errors.New("db gone")
	})
	runner.Stop()

	assert.Len(t, logger.errors, 1)
	assert.Contains(t, logger.errors[0], `task "boom" failed`)
}

func TestRunnerRecoversPanic(t *testing.T) {
	logger := new(captureLogger)
	runner := NewRunner(logger, time.Second)

	runner.Submit("panicky", func(context.Context) error {
		panic("nope")
	})
	runner.Stop()

	assert.Len(t, logger.errors, 1)
	assert.Contains(t, logger.errors[0], "panicked")
}

func TestRunnerDropsTasksAfterStop(t *testing.T) {
	logger := new(captureLogger)
	runner := NewRunner(logger, time.Second)
	runner.Stop()

	var ran bool
	runner.Submit("late", func(context.Context) error {
		ran = true
		return nil
	})

	assert.False(t, ran)
	assert.Len(t, logger.warns, 1)
}
