package bproxy

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	// ErrNilInput is returned when an input converter produces a nil value.
	ErrNilInput = errors.New("bproxy: input converter returned nil")
	// ErrNilOutput is returned when the business logic produces a nil value.
	ErrNilOutput = errors.New("bproxy: handler returned nil output")
)

// MethodHandler serves the requests for a single http method once the dispatcher has parsed the negotiation
// headers.
type MethodHandler interface {
	Handle(ctx context.Context, req *Request, contentTypes, accepts []MediaType) (Response, error)
	RequiredHeaders() []string
}

// HandleFunc is the business logic of a method handler.
type HandleFunc[I, O any] func(ctx context.Context, in I) (O, error)

// InputConverter turns a request into the business input. The media type is the negotiated content type,
// including its parameters.
type InputConverter[I any] interface {
	ToInput(ctx context.Context, req *Request, mt MediaType) (I, error)
}

// InputConverterFunc allow casting a function to implement [InputConverter].
type InputConverterFunc[I any] func(context.Context, *Request, MediaType) (I, error)

// ToInput implements the [InputConverter] interface.
func (f InputConverterFunc[I]) ToInput(ctx context.Context, req *Request, mt MediaType) (I, error) {
	return f(ctx, req, mt)
}

// OutputConverter turns the business output into a response. The media type is the negotiated accept type,
// including its parameters.
type OutputConverter[O any] interface {
	ToResponse(ctx context.Context, out O, mt MediaType) (Response, error)
}

// OutputConverterFunc allow casting a function to implement [OutputConverter].
type OutputConverterFunc[O any] func(context.Context, O, MediaType) (Response, error)

// ToResponse implements the [OutputConverter] interface.
func (f OutputConverterFunc[O]) ToResponse(ctx context.Context, out O, mt MediaType) (Response, error) {
	return f(ctx, out, mt)
}

// ExceptionMapper turns a failure of a specific kind into a response.
type ExceptionMapper func(err error) Response

// HandlerBuilder collects the registrations for a [Handler]. It is not safe for concurrent use, call Build once
// setup is done.
type HandlerBuilder[I, O any] struct {
	logic    HandleFunc[I, O]
	required []string
	inputs   map[string]InputConverter[I]
	outputs  map[string]OutputConverter[O]
	mappers  map[Kind]ExceptionMapper
}

// NewHandlerBuilder starts a handler around the business logic. Required header names are lower-cased. A mapper
// for [KindResponse] that returns the carried response is pre-registered.
func NewHandlerBuilder[I, O any](logic HandleFunc[I, O], requiredHeaders ...string) *HandlerBuilder[I, O] {
	return &HandlerBuilder[I, O]{
		logic: logic,
		required: lo.Uniq(lo.Map(requiredHeaders, func(h string, _ int) string {
			return strings.ToLower(strings.TrimSpace(h))
		})),
		inputs:  map[string]InputConverter[I]{},
		outputs: map[string]OutputConverter[O]{},
		mappers: map[Kind]ExceptionMapper{
			KindResponse: responseOf,
		},
	}
}

// RegisterInputConverter registers c for requests whose content type matches mt. Parameters of mt are ignored,
// registering the same bare type twice keeps the last converter.
func (b *HandlerBuilder[I, O]) RegisterInputConverter(mt MediaType, c InputConverter[I]) *HandlerBuilder[I, O] {
	b.inputs[mt.Key()] = c
	return b
}

// RegisterOutputConverter registers c for requests that accept mt. Parameters of mt are ignored, registering the
// same bare type twice keeps the last converter.
func (b *HandlerBuilder[I, O]) RegisterOutputConverter(mt MediaType, c OutputConverter[O]) *HandlerBuilder[I, O] {
	b.outputs[mt.Key()] = c
	return b
}

// RegisterExceptionMapper maps failures of exactly kind k to a response.
func (b *HandlerBuilder[I, O]) RegisterExceptionMapper(k Kind, m ExceptionMapper) *HandlerBuilder[I, O] {
	b.mappers[k] = m
	return b
}

// Build freezes the registrations into a handler.
func (b *HandlerBuilder[I, O]) Build() *Handler[I, O] {
	return &Handler[I, O]{
		logic:    b.logic,
		required: slices.Clone(b.required),
		inputs:   maps.Clone(b.inputs),
		outputs:  maps.Clone(b.outputs),
		mappers:  maps.Clone(b.mappers),
	}
}

// Handler runs the negotiate, validate, convert, invoke, convert pipeline for one http method. It is read-only and
// safe for concurrent use.
type Handler[I, O any] struct {
	logic    HandleFunc[I, O]
	required []string
	inputs   map[string]InputConverter[I]
	outputs  map[string]OutputConverter[O]
	mappers  map[Kind]ExceptionMapper
}

// RequiredHeaders returns the lower-cased names of the headers every request must carry.
func (h *Handler[I, O]) RequiredHeaders() []string {
	return slices.Clone(h.required)
}

// Handle implements [MethodHandler]. Failures with a registered exception mapper become responses, all others
// are returned to the caller.
func (h *Handler[I, O]) Handle(
	ctx context.Context, req *Request, contentTypes, accepts []MediaType,
) (Response, error) {
	resp, err := h.handle(ctx, req, contentTypes, accepts)
	if err == nil {
		return resp, nil
	}

	kind := KindOf(err)
	if kind == KindUnknown {
		return Response{}, err
	}

	mapper, ok := h.mappers[kind]
	if !ok {
		return Response{}, err
	}

	Log(ctx).Debug("mapped failure to response", zap.String("kind", string(kind)), zap.Error(err))
	return mapper(err), nil
}

func (h *Handler[I, O]) handle(
	ctx context.Context, req *Request, contentTypes, accepts []MediaType,
) (Response, error) {
	logs := Log(ctx)

	contentType, input, err := negotiate(contentTypes, h.inputs, "Content-Types %s are not supported")
	if err != nil {
		return Response{}, err
	}
	logs.Debug("input converter found", zap.Stringer("content_type", contentType))

	accept, output, err := negotiate(accepts, h.outputs, "Accept types %s are not supported")
	if err != nil {
		return Response{}, err
	}
	logs.Debug("output converter found", zap.Stringer("accept", accept))

	if missing := h.missingHeaders(req.Headers); len(missing) > 0 {
		return Response{}, NewError(CodeBadRequest, errors.Newf(
			"The following required headers are not present: %s", strings.Join(missing, ", ")))
	}

	in, err := input.ToInput(ctx, req, contentType)
	if err != nil {
		return Response{}, err
	}
	if isNil(in) {
		return Response{}, errors.Wrapf(ErrNilInput, "content type %s", contentType)
	}

	out, err := h.logic(ctx, in)
	if err != nil {
		return Response{}, err
	}
	if isNil(out) {
		return Response{}, errors.WithStack(ErrNilOutput)
	}

	return output.ToResponse(ctx, out, accept)
}

// missingHeaders returns the required headers that are absent, in the order they were declared.
func (h *Handler[I, O]) missingHeaders(headers map[string]string) []string {
	present := make(map[string]struct{}, len(headers))
	for k := range headers {
		present[strings.ToLower(k)] = struct{}{}
	}

	return lo.Filter(h.required, func(name string, _ int) bool {
		_, ok := present[name]
		return !ok
	})
}

func responseOf(err error) Response {
	if rerr, ok := asError(err); ok {
		return rerr.Response()
	}
	return serverErrorResponse("", err)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
