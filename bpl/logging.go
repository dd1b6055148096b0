package bpl

import (
	"context"

	"github.com/advdv/bproxy"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger configured from the environment.
// Uses JSON encoding suitable for CloudWatch.
func NewLogger(env Environment) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(env.logLevel())
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logs, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logs.With(zap.String("service", env.serviceName())), nil
}

// withLogger puts a logger into the invocation context that is correlated with the Lambda request and, when
// present, the active trace.
func withLogger(logs *zap.Logger) bproxy.Middleware {
	return func(next bproxy.Invoker) bproxy.Invoker {
		return bproxy.InvokerFunc(func(ctx context.Context, req *bproxy.Request) bproxy.Response {
			return next.HandleRequest(bproxy.WithLog(ctx, logs.With(invocationFields(ctx)...)), req)
		})
	}
}

func invocationFields(ctx context.Context) []zap.Field {
	fields := traceFields(ctx)
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		fields = append(fields,
			zap.String("aws_request_id", lc.AwsRequestID),
			zap.String("invoked_function_arn", lc.InvokedFunctionArn))
	}
	return fields
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
