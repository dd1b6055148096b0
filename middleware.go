package bproxy

import "context"

// Invoker turns a proxy request into exactly one response.
type Invoker interface {
	HandleRequest(ctx context.Context, req *Request) Response
}

// InvokerFunc allow casting a function to implement [Invoker].
type InvokerFunc func(context.Context, *Request) Response

// HandleRequest implements the [Invoker] interface.
func (f InvokerFunc) HandleRequest(ctx context.Context, req *Request) Response {
	return f(ctx, req)
}

// Middleware for cross-cutting concerns around an invoker.
type Middleware func(Invoker) Invoker

// Wrap takes the inner invoker and wraps it with middleware. The order is that of the Gorilla and Chi router. That
// is: the middleware provided first is called first and is the "outer" most wrapping, the middleware provided last
// will be the "inner most" wrapping (closest to the invoker).
func Wrap(inv Invoker, m ...Middleware) Invoker {
	if len(m) < 1 {
		return inv
	}

	wrapped := inv
	for i := len(m) - 1; i >= 0; i-- {
		wrapped = m[i](wrapped)
	}

	return wrapped
}
