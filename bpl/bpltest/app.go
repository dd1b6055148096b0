// Package bpltest provides test helpers for bpl functions.
//
// It constructs the identical DI graph as [bpl.NewApp] but uses
// [fxtest.App] which fails the test immediately on DI errors.
//
// Example:
//
//	bpltest.SetBaseEnv(t)
//	app := bpltest.New[TestEnv](t, NewInvoker, bpl.WithAWSClient(...))
//	app.RequireStart()
//	t.Cleanup(app.RequireStop)
//
//	resp := app.Invoke(ctx, events.APIGatewayProxyRequest{HTTPMethod: "GET"})
package bpltest

import (
	"context"
	"testing"

	"github.com/advdv/bproxy/bpl"
	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// App embeds *fxtest.App for testing bpl functions.
type App struct {
	*fxtest.App
	t       testing.TB
	handler *bpl.Handler
}

// New creates a test app with the same DI graph as [bpl.NewApp]. Extra fx options, such as fx.Populate, can be
// passed with [bpl.WithFx].
func New[E bpl.Environment](t testing.TB, invoker any, opts ...bpl.Option) *App {
	t.Helper()
	a := &App{t: t}
	a.App = fxtest.New(t, append(bpl.FxOptions[E](invoker, opts...), fx.Populate(&a.handler))...)
	return a
}

// Handler returns the Lambda handler of the app.
func (a *App) Handler() *bpl.Handler {
	return a.handler
}

// Invoke calls the Lambda handler with the event, failing the test if it returns an error.
func (a *App) Invoke(ctx context.Context, ev events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	a.t.Helper()
	resp, err := a.handler.Invoke(ctx, ev)
	if err != nil {
		a.t.Fatalf("bpltest: invoke: %v", err)
	}
	return resp
}
