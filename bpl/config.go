package bpl

import (
	"context"
	"encoding/json"

	"github.com/advdv/bproxy"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// SecretConfiguration resolves the request configuration from a JSON document stored in Secrets Manager. With a
// jsonPath only that part of the secret is decoded. The secret is read through the reader for every request, so
// rotation is picked up once the cache expires.
func SecretConfiguration[C any](reader SecretReader, secretID string, jsonPath ...string) bproxy.ConfigureFunc[C] {
	return func(ctx context.Context, _ *bproxy.Request) (cfg C, err error) {
		raw, err := secretFromReader(ctx, reader, secretID, jsonPath...)
		if err != nil {
			return cfg, err
		}

		return decodeConfiguration[C](raw, "secret "+secretID)
	}
}

// ParameterReader is the part of the SSM client that configuration needs.
type ParameterReader interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

var _ ParameterReader = (*ssm.Client)(nil)

// ParameterConfiguration resolves the request configuration from a JSON document stored in an SSM parameter.
// SecureString parameters are decrypted.
func ParameterConfiguration[C any](client ParameterReader, name string) bproxy.ConfigureFunc[C] {
	return func(ctx context.Context, _ *bproxy.Request) (cfg C, err error) {
		out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(name),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return cfg, errors.Wrapf(err, "failed to get parameter %q", name)
		}

		if out.Parameter == nil || out.Parameter.Value == nil {
			return cfg, errors.Newf("parameter %q has no value", name)
		}

		return decodeConfiguration[C](aws.ToString(out.Parameter.Value), "parameter "+name)
	}
}

func decodeConfiguration[C any](raw, source string) (cfg C, err error) {
	if !gjson.Valid(raw) {
		return cfg, errors.Newf("%s does not hold valid JSON", source)
	}

	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, errors.Wrapf(err, "decode configuration from %s", source)
	}

	return cfg, nil
}
