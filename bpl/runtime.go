package bpl

import (
	"context"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/cockroachdb/errors"
)

// Runtime provides access to app-scoped dependencies. Inject it into the invoker constructor, or into the
// constructors of handler factories, instead of reaching for globals.
//
//	func NewInvoker(rt *bpl.Runtime[Env], ddb *dynamodb.Client) bproxy.Invoker {
//	    return bproxy.NewDispatcherBuilder(
//	        bpl.SecretConfiguration[Config](rt.SecretReader(), rt.Env().ConfigSecret),
//	    ).RegisterMethodHandler("GET", func(cfg Config) bproxy.MethodHandler {
//	        return newGetHandler(cfg, ddb)
//	    }).Build()
//	}
type Runtime[E Environment] struct {
	env          E
	secretReader SecretReader
	transport    http.RoundTripper
}

// RuntimeParams holds optional dependencies for Runtime.
type RuntimeParams struct {
	SecretReader SecretReader
	Transport    http.RoundTripper
}

// NewRuntime creates a new Runtime with the given dependencies.
func NewRuntime[E Environment](env E, params RuntimeParams) *Runtime[E] {
	transport := params.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Runtime[E]{
		env:          env,
		secretReader: params.SecretReader,
		transport:    transport,
	}
}

// Env returns the environment configuration.
func (r *Runtime[E]) Env() E {
	return r.env
}

// SecretReader returns the reader used by [Runtime.Secret], for use with [SecretConfiguration].
func (r *Runtime[E]) SecretReader() SecretReader {
	return r.secretReader
}

// Secret retrieves a secret value from AWS Secrets Manager.
//
// If jsonPath is provided, the secret is parsed as JSON and the path is extracted
// using gjson syntax (e.g., "database.password", "api.keys.0").
// If jsonPath is omitted, the raw secret string is returned.
func (r *Runtime[E]) Secret(ctx context.Context, secretID string, jsonPath ...string) (string, error) {
	if r.secretReader == nil {
		return "", errors.New("bpl: secret reader not configured")
	}
	return secretFromReader(ctx, r.secretReader, secretID, jsonPath...)
}

// Request starts an outbound HTTP request whose spans join the invocation trace. Pass the invocation context to
// Fetch.
//
//	err := rt.Request().BaseURL("https://api.example.com/items").ToJSON(&items).Fetch(ctx)
func (r *Runtime[E]) Request() *requests.Builder {
	return newRequestBuilder(r.transport)
}
