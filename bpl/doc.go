// Package bpl runs a [bproxy.Invoker] as an AWS Lambda function behind an API Gateway proxy integration.
//
// [NewApp] builds an fx graph that parses the environment, configures a zap logger, an OpenTelemetry tracer
// provider and propagator, the AWS SDK config (instrumented with otelaws), a cached Secrets Manager reader, an
// instrumented HTTP transport and a Prometheus registry. The invoker constructor passed to NewApp can request
// any of these, plus AWS clients registered with [WithAWSClient]:
//
//	type Env struct {
//	    bpl.BaseEnvironment
//	    ConfigSecret string `env:"CONFIG_SECRET,required"`
//	}
//
//	func NewInvoker(rt *bpl.Runtime[Env], ddb *dynamodb.Client) bproxy.Invoker {
//	    return bproxy.NewDispatcherBuilder(
//	        bpl.SecretConfiguration[Config](rt.SecretReader(), rt.Env().ConfigSecret),
//	    ).RegisterMethodHandler("GET", newGetFactory(ddb)).Build()
//	}
//
//	func main() {
//	    bpl.NewApp[Env](NewInvoker, bpl.WithAWSClient(func(cfg aws.Config) *dynamodb.Client {
//	        return dynamodb.NewFromConfig(cfg)
//	    })).Run()
//	}
//
// Each invocation is converted from the proxy event with [RequestFromEvent], runs inside a server span, gets a
// logger carrying the Lambda request id and trace ids, is counted by [bproxy.Metrics] and gets a context deadline
// [BaseEnvironment.DeadlineBuffer] before the Lambda deadline.
//
// # Environment
//
//   - BP_SERVICE_NAME (required)
//   - AWS_REGION (required, set by Lambda)
//   - BP_PRIMARY_REGION (required)
//   - BP_LOG_LEVEL (default "info")
//   - BP_OTEL_EXPORTER: "stdout" (default) or "xrayudp"
//   - BP_GATEWAY_ACCESS_LOG_GROUP (optional)
//   - BP_DEADLINE_BUFFER (default 500ms)
package bpl
