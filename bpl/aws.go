package bpl

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

const awsConfigTimeout = 10 * time.Second

// Primary wraps an AWS client for the primary deployment region (BP_PRIMARY_REGION). Register it with
// [ForPrimaryRegion]:
//
//	bpl.WithAWSClient(func(cfg aws.Config) *bpl.Primary[ssm.Client] {
//	    return bpl.NewPrimary(ssm.NewFromConfig(cfg))
//	}, bpl.ForPrimaryRegion())
type Primary[T any] struct {
	Client *T
}

// NewPrimary creates a Primary wrapper for an AWS client configured for the primary region.
func NewPrimary[T any](client *T) *Primary[T] {
	return &Primary[T]{Client: client}
}

// InRegion wraps an AWS client configured for a specific fixed region. Register it with [ForRegion]:
//
//	bpl.WithAWSClient(func(cfg aws.Config) *bpl.InRegion[sqs.Client] {
//	    return bpl.NewInRegion(sqs.NewFromConfig(cfg), "eu-west-1")
//	}, bpl.ForRegion("eu-west-1"))
type InRegion[T any] struct {
	Client *T
	Region string
}

// NewInRegion creates an InRegion wrapper for an AWS client configured for a fixed region.
func NewInRegion[T any](client *T, region string) *InRegion[T] {
	return &InRegion[T]{Client: client, Region: region}
}

// Region represents a target AWS region for client creation.
type Region interface {
	resolve(env Environment) string
}

type (
	localRegion   struct{}
	primaryRegion struct{}
	fixedRegion   string
)

func (localRegion) resolve(env Environment) string   { return env.awsRegion() }
func (primaryRegion) resolve(env Environment) string { return env.primaryRegion() }
func (r fixedRegion) resolve(Environment) string     { return string(r) }

// LocalRegion returns a Region that uses the function's AWS_REGION.
func LocalRegion() Region { return localRegion{} }

// PrimaryRegion returns a Region that uses BP_PRIMARY_REGION.
func PrimaryRegion() Region { return primaryRegion{} }

// FixedRegion returns a Region that uses a specific region string.
func FixedRegion(region string) Region { return fixedRegion(region) }

type clientOptions struct {
	region Region
}

// ClientOption configures AWS client registration.
type ClientOption func(*clientOptions)

// ForPrimaryRegion configures the client to use BP_PRIMARY_REGION.
func ForPrimaryRegion() ClientOption {
	return func(o *clientOptions) {
		o.region = PrimaryRegion()
	}
}

// ForRegion configures the client to use a specific fixed region.
func ForRegion(region string) ClientOption {
	return func(o *clientOptions) {
		o.region = FixedRegion(region)
	}
}

// NewAWSConfig loads the default AWS SDK v2 configuration.
func NewAWSConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return cfg, errors.Wrap(err, "load aws config")
	}
	return cfg, nil
}

// provideAWSConfig loads the AWS config with a timeout and instruments it for tracing.
func provideAWSConfig(tp trace.TracerProvider, prop propagation.TextMapPropagator) (aws.Config, error) {
	ctx, cancel := context.WithTimeout(context.Background(), awsConfigTimeout)
	defer cancel()

	cfg, err := NewAWSConfig(ctx)
	if err != nil {
		return cfg, err
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions,
		otelaws.WithTracerProvider(tp),
		otelaws.WithTextMapPropagator(prop),
	)
	return cfg, nil
}

// AWSClientProvider creates an fx.Option that provides an AWS client for injection. The factory receives a copy
// of the aws.Config with the region already set, by default the local region.
func AWSClientProvider[T any](factory func(aws.Config) T, opts ...ClientOption) fx.Option {
	options := &clientOptions{region: LocalRegion()}
	for _, opt := range opts {
		opt(options)
	}

	return fx.Provide(func(cfg aws.Config, env Environment) T {
		awsCfg := cfg.Copy()
		if r := options.region.resolve(env); r != "" {
			awsCfg.Region = r
		}
		return factory(awsCfg)
	})
}
