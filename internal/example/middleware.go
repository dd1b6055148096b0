// Package example implements example handlers and middleware in an outside package.
package example

import (
	"context"

	"github.com/advdv/bproxy"
	"go.uber.org/zap"
)

// Middleware provides an example for middleware that adds a logger to the context.
func Middleware(logs *zap.Logger) bproxy.Middleware {
	return func(n bproxy.Invoker) bproxy.Invoker {
		return bproxy.InvokerFunc(func(ctx context.Context, req *bproxy.Request) bproxy.Response {
			logs := logs.With(zap.String("resource", req.Resource), zap.String("path", req.Path))

			return n.HandleRequest(bproxy.WithLog(ctx, logs), req)
		})
	}
}
