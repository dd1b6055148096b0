package bpl

import (
	"context"
	"time"

	"github.com/advdv/bproxy"
)

// DefaultDeadlineBuffer is the default time reserved before the Lambda deadline
// for cleanup and error responses.
const DefaultDeadlineBuffer = 500 * time.Millisecond

// WithInvocationDeadline returns middleware that shortens the invocation deadline by buffer. The Lambda runtime
// puts the invocation deadline on the context; handlers and downstream calls then stop early enough to still
// return a response. Without a deadline, or when the buffer does not fit into the remaining time, the context is
// passed through unchanged.
func WithInvocationDeadline(buffer time.Duration) bproxy.Middleware {
	if buffer <= 0 {
		buffer = DefaultDeadlineBuffer
	}

	return func(next bproxy.Invoker) bproxy.Invoker {
		return bproxy.InvokerFunc(func(ctx context.Context, req *bproxy.Request) bproxy.Response {
			if deadline, ok := ctx.Deadline(); ok {
				adjusted := deadline.Add(-buffer)
				if time.Until(adjusted) > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithDeadline(ctx, adjusted)
					defer cancel()
				}
			}

			return next.HandleRequest(ctx, req)
		})
	}
}

// RemainingTime returns the duration until the context deadline.
// Returns 0 if no deadline is set or if the deadline has passed.
func RemainingTime(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return max(time.Until(deadline), 0)
}
