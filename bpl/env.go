package bpl

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	serviceName() string
	logLevel() zapcore.Level
	otelExporter() string
	awsRegion() string
	primaryRegion() string
	gatewayAccessLogGroup() string
	deadlineBuffer() time.Duration
}

// BaseEnvironment contains the environment variables every function reads.
// Embed this in your custom environment struct.
type BaseEnvironment struct {
	ServiceName   string        `env:"BP_SERVICE_NAME,required"`
	LogLevel      zapcore.Level `env:"BP_LOG_LEVEL" envDefault:"info"`
	OtelExporter  string        `env:"BP_OTEL_EXPORTER" envDefault:"stdout"`
	AWSRegion     string        `env:"AWS_REGION,required"`
	PrimaryRegion string        `env:"BP_PRIMARY_REGION,required"`
	// GatewayAccessLogGroup is the CloudWatch Log Group name for API Gateway
	// access logs. When set, traces include this log group for X-Ray log
	// correlation.
	GatewayAccessLogGroup string `env:"BP_GATEWAY_ACCESS_LOG_GROUP"`
	// DeadlineBuffer is reserved before the invocation deadline so a response can still be returned.
	DeadlineBuffer time.Duration `env:"BP_DEADLINE_BUFFER" envDefault:"500ms"`
}

func (e BaseEnvironment) serviceName() string           { return e.ServiceName }
func (e BaseEnvironment) logLevel() zapcore.Level       { return e.LogLevel }
func (e BaseEnvironment) otelExporter() string          { return e.OtelExporter }
func (e BaseEnvironment) awsRegion() string             { return e.AWSRegion }
func (e BaseEnvironment) primaryRegion() string         { return e.PrimaryRegion }
func (e BaseEnvironment) gatewayAccessLogGroup() string { return e.GatewayAccessLogGroup }
func (e BaseEnvironment) deadlineBuffer() time.Duration { return e.DeadlineBuffer }

var _ Environment = BaseEnvironment{}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}
		return e, nil
	}
}
