package bpl

import (
	"context"
	"net/http"
	"time"

	"github.com/advdv/bproxy"
	"github.com/aws-observability/aws-otel-go/exporters/xrayudp"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/detectors/aws/lambda"
	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

const (
	tracingInitTimeout = 5 * time.Second
	tracerName         = "github.com/advdv/bproxy/bpl"
)

// NewTracerProvider creates and configures the OpenTelemetry TracerProvider.
// Supported exporters via BP_OTEL_EXPORTER: "stdout" (default), "xrayudp" (Lambda).
// Shutdown is handled automatically via fx.Lifecycle.
func NewTracerProvider(lc fx.Lifecycle, env Environment) (trace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tracingInitTimeout)
	defer cancel()

	exporterType := env.otelExporter()

	exporter, err := newExporter(ctx, exporterType)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, exporterType, env.serviceName(), env.gatewayAccessLogGroup())
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	}
	if exporterType == "xrayudp" {
		opts = append(opts, sdktrace.WithIDGenerator(xray.NewIDGenerator()))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}

// NewPropagator creates a TextMapPropagator based on the exporter type.
// For xrayudp: uses X-Ray propagator for AWS Lambda environments.
// For stdout/default: uses W3C TraceContext + Baggage composite propagator.
func NewPropagator(env Environment) propagation.TextMapPropagator {
	if env.otelExporter() == "xrayudp" {
		return xray.Propagator{}
	}
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newExporter(ctx context.Context, exporterType string) (sdktrace.SpanExporter, error) {
	switch exporterType {
	case "stdout", "":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "xrayudp":
		return xrayudp.NewSpanExporter(ctx)
	default:
		return nil, errors.Newf("unsupported BP_OTEL_EXPORTER: %q (supported: stdout, xrayudp)", exporterType)
	}
}

// newResource describes the function. In Lambda (xrayudp) the resource is detected, locally the service name
// is used.
func newResource(ctx context.Context, exporterType, serviceName, gatewayAccessLogGroup string) (*resource.Resource, error) {
	if exporterType == "xrayudp" {
		lambdaRes, err := lambda.NewResourceDetector().Detect(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "detect lambda resource")
		}
		return withAdditionalLogGroups(ctx, lambdaRes, gatewayAccessLogGroup)
	}

	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	), nil
}

// withAdditionalLogGroups merges additional CloudWatch log groups into the resource
// for X-Ray log correlation. Empty log group names are filtered out.
func withAdditionalLogGroups(ctx context.Context, base *resource.Resource, logGroups ...string) (*resource.Resource, error) {
	filtered := lo.Compact(logGroups)
	if len(filtered) == 0 {
		return base, nil
	}

	customRes, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.StringSlice("aws.log.group.names", filtered),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(base, customRes)
}

// headerCarrier adapts request headers to a propagation.TextMapCarrier.
type headerCarrier bproxy.Headers

func (c headerCarrier) Get(key string) string { return bproxy.Headers(c).Get(key) }
func (c headerCarrier) Set(key, value string) { bproxy.Headers(c).Set(key, value) }
func (c headerCarrier) Keys() []string        { return lo.Keys(c) }

// withTracing starts a server span per invocation, continuing the trace found in the request headers. The
// TracerProvider and Propagator are explicitly injected to avoid global state.
func withTracing(tp trace.TracerProvider, prop propagation.TextMapPropagator) bproxy.Middleware {
	tracer := tp.Tracer(tracerName)

	return func(next bproxy.Invoker) bproxy.Invoker {
		return bproxy.InvokerFunc(func(ctx context.Context, req *bproxy.Request) bproxy.Response {
			ctx = prop.Extract(ctx, headerCarrier(bproxy.NewHeaders(req.Headers)))

			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(req.HTTPMethod),
				semconv.URLPath(req.Path),
				semconv.HTTPRoute(req.Resource),
			}
			if lc, ok := lambdacontext.FromContext(ctx); ok {
				attrs = append(attrs, semconv.FaaSInvocationID(lc.AwsRequestID))
			}

			ctx, span := tracer.Start(ctx, spanName(req),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...))
			defer span.End()

			resp := next.HandleRequest(ctx, req)

			span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode()))
			if resp.StatusCode() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(resp.StatusCode()))
			}

			return resp
		})
	}
}

func spanName(req *bproxy.Request) string {
	if req.Resource == "" {
		return req.HTTPMethod
	}
	return req.HTTPMethod + " " + req.Resource
}
