package core

import "context"

// TaskRunner runs named tasks in the background, decoupled from the
// request/response lifecycle that scheduled them. A task's failure
// must never surface to the caller that submitted it.
type TaskRunner interface {
	Submit(name string, fn func(context.Context) error)
}
