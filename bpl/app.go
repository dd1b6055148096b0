package bpl

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/advdv/bproxy"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// App wraps an fx.App for lifecycle management.
type App struct {
	app     *fx.App
	handler *Handler
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	FxOptions []fx.Option
}

// Option configures the App.
type Option func(*AppConfig)

// WithAWSClient registers an AWS SDK v2 client for dependency injection.
// Clients are injected directly into the invoker constructor via fx.
//
// By default, clients target the local region (AWS_REGION env var):
//
//	bpl.WithAWSClient(func(cfg aws.Config) *dynamodb.Client {
//	    return dynamodb.NewFromConfig(cfg)
//	})
//
// For the primary region, wrap with Primary[T] and use ForPrimaryRegion(). For a fixed region, wrap with
// InRegion[T] and use ForRegion().
func WithAWSClient[T any](factory func(aws.Config) T, opts ...ClientOption) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, AWSClientProvider(factory, opts...))
	}
}

// WithFx adds fx options for dependency injection.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// Handler adapts an [bproxy.Invoker] to the Lambda API Gateway proxy event. Every invocation is traced, logged
// with the request id, measured and given a deadline that leaves room to respond.
type Handler struct {
	invoker bproxy.Invoker
}

type handlerParams struct {
	fx.In

	Env        Environment
	Logger     *zap.Logger
	Tracer     trace.TracerProvider
	Propagator propagation.TextMapPropagator
	Metrics    *bproxy.Metrics
	Invoker    bproxy.Invoker
}

// NewHandler wraps the invoker with the invocation middleware.
func NewHandler(p handlerParams) *Handler {
	return &Handler{invoker: bproxy.Wrap(p.Invoker,
		withTracing(p.Tracer, p.Propagator),
		withLogger(p.Logger),
		p.Metrics.Middleware(),
		WithInvocationDeadline(p.Env.deadlineBuffer()),
	)}
}

// Invoke handles one proxy event. It never returns an error: failures are proxy responses.
func (h *Handler) Invoke(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ResponseToEvent(h.invoker.HandleRequest(ctx, RequestFromEvent(ev))), nil
}

// FxOptions returns the DI graph of [NewApp]. The invoker argument is a constructor, fx resolves its parameters,
// and it must return a [bproxy.Invoker] (optionally with an error).
func FxOptions[E Environment](invoker any, opts ...Option) []fx.Option {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	baseOpts := make([]fx.Option, 0, 16+len(cfg.FxOptions))
	baseOpts = append(baseOpts, []fx.Option{
		fx.NopLogger,
		fx.Provide(ParseEnv[E]()),
		fx.Provide(func(e E) Environment { return e }),
		fx.Provide(func(e E) (*zap.Logger, error) { return NewLogger(e) }),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Provide(provideAWSConfig),
		fx.Provide(func(cfg aws.Config) (SecretReader, error) {
			return NewAWSSecretReader(cfg)
		}),
		fx.Provide(NewHTTPTransport),
		fx.Provide(func(e E, sr SecretReader, tr http.RoundTripper) *Runtime[E] {
			return NewRuntime(e, RuntimeParams{SecretReader: sr, Transport: tr})
		}),
		fx.Provide(prometheus.NewRegistry),
		fx.Provide(func(reg *prometheus.Registry) prometheus.Registerer { return reg }),
		fx.Provide(func(reg *prometheus.Registry) prometheus.Gatherer { return reg }),
		fx.Provide(bproxy.NewMetrics),
		fx.Provide(fx.Annotate(invoker, fx.As(new(bproxy.Invoker)))),
		fx.Provide(NewHandler),
	}...)

	return append(baseOpts, cfg.FxOptions...)
}

// NewApp creates a batteries-included Lambda function with dependency injection.
//
// Example:
//
//	bpl.NewApp[Env](NewInvoker,
//	    bpl.WithAWSClient(func(cfg aws.Config) *dynamodb.Client {
//	        return dynamodb.NewFromConfig(cfg)
//	    }),
//	).Run()
func NewApp[E Environment](invoker any, opts ...Option) *App {
	a := &App{}
	a.app = fx.New(append(FxOptions[E](invoker, opts...), fx.Populate(&a.handler))...)
	return a
}

// Err returns the error that occurred while building the DI graph, if any.
func (a *App) Err() error {
	return a.app.Err()
}

// Run starts the application and serves Lambda invocations until SIGTERM. It exits the process on startup
// failures.
func (a *App) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), a.app.StartTimeout())
	defer cancel()

	if err := a.app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bpl: failed to start: %+v\n", err)
		os.Exit(1)
	}

	lambda.StartWithOptions(a.handler.Invoke, lambda.WithEnableSIGTERM(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), a.app.StopTimeout())
		defer cancel()
		_ = a.app.Stop(stopCtx)
	}))
}
