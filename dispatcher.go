package bproxy

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	methodOptions          = "options"
	headerContentType      = "content-type"
	headerAccept           = "accept"
	headerACRequestMethod  = "access-control-request-method"
	headerACRequestHeaders = "access-control-request-headers"
	headerACAllowOrigin    = "Access-Control-Allow-Origin"
)

// ConfigureFunc resolves the request-scoped configuration. A failure means the service itself is mis-configured.
type ConfigureFunc[C any] func(ctx context.Context, req *Request) (C, error)

// StaticConfiguration returns a ConfigureFunc that always resolves to cfg.
func StaticConfiguration[C any](cfg C) ConfigureFunc[C] {
	return func(context.Context, *Request) (C, error) { return cfg, nil }
}

// HandlerFactory creates the method handler for a request given its configuration.
type HandlerFactory[C any] func(cfg C) MethodHandler

// DispatcherBuilder collects the method registrations for a [Dispatcher]. It is not safe for concurrent use.
type DispatcherBuilder[C any] struct {
	configure ConfigureFunc[C]
	factories map[string]HandlerFactory[C]
	methods   []string
	preflight bool
	logs      *zap.Logger
}

// NewDispatcherBuilder starts a dispatcher that resolves its configuration with configure.
func NewDispatcherBuilder[C any](configure ConfigureFunc[C]) *DispatcherBuilder[C] {
	return &DispatcherBuilder[C]{
		configure: configure,
		factories: map[string]HandlerFactory[C]{},
	}
}

// RegisterMethodHandler registers the factory for an http method. The method name is case-insensitive,
// registering it twice keeps the last factory.
func (b *DispatcherBuilder[C]) RegisterMethodHandler(method string, f HandlerFactory[C]) *DispatcherBuilder[C] {
	method = strings.ToLower(method)
	if _, exists := b.factories[method]; !exists {
		b.methods = append(b.methods, method)
	}

	b.factories[method] = f
	return b
}

// EnablePreflight makes the dispatcher answer OPTIONS requests with the preflight handshake. Responses of the
// method handlers then also carry Access-Control-Allow-Origin unless the handler set it.
func (b *DispatcherBuilder[C]) EnablePreflight() *DispatcherBuilder[C] {
	b.preflight = true
	return b
}

// WithLogger sets the logger. Without it the dispatcher uses the logger from the request context.
func (b *DispatcherBuilder[C]) WithLogger(logs *zap.Logger) *DispatcherBuilder[C] {
	b.logs = logs
	return b
}

// Build freezes the registrations into a dispatcher.
func (b *DispatcherBuilder[C]) Build() *Dispatcher[C] {
	return &Dispatcher[C]{
		configure: b.configure,
		factories: maps.Clone(b.factories),
		methods:   slices.Clone(b.methods),
		preflight: b.preflight,
		logs:      b.logs,
	}
}

// Dispatcher routes proxy requests to method handlers by http method. It is read-only after [DispatcherBuilder.Build]
// and safe for concurrent use.
type Dispatcher[C any] struct {
	configure ConfigureFunc[C]
	factories map[string]HandlerFactory[C]
	methods   []string
	preflight bool
	logs      *zap.Logger
}

var _ Invoker = (*Dispatcher[struct{}])(nil)

// Methods returns the lower-cased registered methods in registration order.
func (d *Dispatcher[C]) Methods() []string {
	return slices.Clone(d.methods)
}

// HandleRequest implements [Invoker]. It always produces a response: structured failures yield their carried
// response, other errors a 500 with message and cause, and panics a 500 without cause.
func (d *Dispatcher[C]) HandleRequest(ctx context.Context, req *Request) (resp Response) {
	logs := d.logs
	if logs == nil {
		logs = Log(ctx)
	}

	defer func() {
		if v := recover(); v != nil {
			logs.Error("recovered from panic while dispatching", zap.Any("panic", v), zap.Stack("stack"))
			resp = lastResortResponse(req)
		}

		logs.Info("completed response",
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("body_size", len(resp.Body())))
	}()

	resp, err := d.dispatch(WithLog(ctx, logs), logs, req)
	if err != nil {
		if rerr, ok := asError(err); ok {
			return rerr.Response()
		}

		logs.Error("unhandled dispatch error", zap.Error(err))
		return serverErrorResponse("", err)
	}

	return resp
}

func (d *Dispatcher[C]) dispatch(ctx context.Context, logs *zap.Logger, req *Request) (Response, error) {
	cfg, err := d.configure(ctx, req)
	if err != nil {
		logs.Error("failed to resolve configuration", zap.Error(err))
		return serverErrorResponse(misconfiguredMessage, err), nil
	}

	method := strings.ToLower(req.HTTPMethod)
	logs.Info("dispatching request", zap.String("method", method))

	if d.preflight && method == methodOptions {
		return d.handlePreflight(req, cfg)
	}

	factory, ok := d.factories[method]
	if !ok {
		return Response{}, unhandledMethodError(method)
	}

	mh := factory(cfg)

	headers := NewHeaders(req.Headers)
	for _, name := range []string{headerContentType, headerAccept} {
		if !headers.Has(name) {
			return Response{}, NewError(CodeUnsupportedMediaType, errors.Newf("No %s header", name))
		}
	}

	contentTypes, err := ParseMediaTypes(strings.ToLower(headers.Get(headerContentType)))
	if err != nil {
		return Response{}, malformedMediaTypeError(err)
	}

	accepts, err := ParseMediaTypes(strings.ToLower(headers.Get(headerAccept)))
	if err != nil {
		return Response{}, malformedMediaTypeError(err)
	}

	logs.Info("negotiating",
		mediaTypesField("content_type", contentTypes),
		mediaTypesField("accept", accepts))

	resp, err := mh.Handle(WithLog(ctx, logs.With(zap.String("method", method))), req, contentTypes, accepts)
	if err != nil || !d.preflight {
		return resp, err
	}

	if resp.Header(headerACAllowOrigin) != "" {
		return resp, nil
	}

	return NewResponseBuilder().
		WithStatusCode(resp.StatusCode()).
		WithHeaders(resp.Headers()).
		WithHeader(headerACAllowOrigin, "*").
		WithBody(resp.Body()).
		WithBase64Encoded(resp.IsBase64Encoded()).
		Build(), nil
}

// handlePreflight answers an OPTIONS request. It returns the OK response directly and fails with a structured
// response error when the handshake is not satisfied.
func (d *Dispatcher[C]) handlePreflight(req *Request, cfg C) (Response, error) {
	headers := NewHeaders(req.Headers)

	requested, ok := headers.Lookup(headerACRequestMethod)
	if !ok {
		return Response{}, NewError(CodeBadRequest,
			errors.Newf("Options method should include the %s header", headerACRequestMethod))
	}

	requested = strings.ToLower(requested)
	factory, ok := d.factories[requested]
	if !ok {
		return Response{}, unhandledMethodError(requested)
	}

	required := lo.Map(factory(cfg).RequiredHeaders(), func(h string, _ int) string { return strings.ToLower(h) })

	proposedValue, ok := headers.Lookup(headerACRequestHeaders)
	if len(required) > 0 && !ok {
		return Response{}, NewError(CodeBadRequest,
			errors.Newf("The required header(s) not present: %s", headerACRequestHeaders))
	}

	proposed := parseHeaderList(proposedValue)
	if missing := lo.Without(required, proposed...); len(missing) > 0 {
		return Response{}, NewError(CodeBadRequest,
			errors.Newf("The required header(s) not present: %s", strings.Join(required, ", ")))
	}

	return NewResponseBuilder().
		WithStatusCode(http.StatusOK).
		WithHeader(headerACAllowOrigin, "*").
		WithHeader("Access-Control-Allow-Headers", strings.Join(proposed, ", ")).
		WithHeader("Access-Control-Allow-Methods", strings.Join(d.methods, ", ")).
		Build(), nil
}

// parseHeaderList splits a comma separated list of header names, dropping all whitespace and lower-casing.
func parseHeaderList(s string) []string {
	s = strings.Join(strings.Fields(s), "")
	return lo.FilterMap(strings.Split(s, ","), func(h string, _ int) (string, bool) {
		return strings.ToLower(h), h != ""
	})
}

func unhandledMethodError(method string) *Error {
	return NewError(CodeBadRequest, errors.Newf("Lambda cannot handle the method %s", method))
}

func malformedMediaTypeError(err error) *Error {
	return NewError(CodeBadRequest, errors.Newf("Malformed media type. %s", err.Error()))
}
