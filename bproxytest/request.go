// Package bproxytest provides helpers for testing code built on bproxy.
package bproxytest

import (
	"maps"

	"github.com/advdv/bproxy"
)

// RequestBuilder builds proxy requests for tests. Every map field defaults to an empty, non-nil map and every
// string field to the empty string.
type RequestBuilder struct {
	req bproxy.Request
}

// NewRequest inits a builder with the given http method.
func NewRequest(method string) *RequestBuilder {
	return &RequestBuilder{req: bproxy.Request{
		HTTPMethod:            method,
		Headers:               bproxy.Headers{},
		QueryStringParameters: map[string]string{},
		PathParameters:        map[string]string{},
		StageVariables:        map[string]string{},
	}}
}

func (b *RequestBuilder) WithResource(resource string) *RequestBuilder {
	b.req.Resource = resource
	return b
}

func (b *RequestBuilder) WithPath(path string) *RequestBuilder {
	b.req.Path = path
	return b
}

func (b *RequestBuilder) WithHTTPMethod(method string) *RequestBuilder {
	b.req.HTTPMethod = method
	return b
}

// WithHeaders replaces all headers. Names keep the casing they are given.
func (b *RequestBuilder) WithHeaders(headers map[string]string) *RequestBuilder {
	b.req.Headers = bproxy.Headers(maps.Clone(headers))
	if b.req.Headers == nil {
		b.req.Headers = bproxy.Headers{}
	}
	return b
}

// WithHeader adds a single header, keeping the casing of name.
func (b *RequestBuilder) WithHeader(name, value string) *RequestBuilder {
	b.req.Headers[name] = value
	return b
}

// WithContentType is a shorthand for setting the Content-Type header.
func (b *RequestBuilder) WithContentType(value string) *RequestBuilder {
	return b.WithHeader("Content-Type", value)
}

// WithAccept is a shorthand for setting the Accept header.
func (b *RequestBuilder) WithAccept(value string) *RequestBuilder {
	return b.WithHeader("Accept", value)
}

func (b *RequestBuilder) WithQueryStringParameters(params map[string]string) *RequestBuilder {
	b.req.QueryStringParameters = nonNil(params)
	return b
}

func (b *RequestBuilder) WithPathParameters(params map[string]string) *RequestBuilder {
	b.req.PathParameters = nonNil(params)
	return b
}

func (b *RequestBuilder) WithStageVariables(vars map[string]string) *RequestBuilder {
	b.req.StageVariables = nonNil(vars)
	return b
}

func (b *RequestBuilder) WithBody(body string) *RequestBuilder {
	b.req.Body = body
	return b
}

func (b *RequestBuilder) WithBase64Encoded(encoded bool) *RequestBuilder {
	b.req.IsBase64Encoded = encoded
	return b
}

// Build returns a new request. The builder can be reused.
func (b *RequestBuilder) Build() *bproxy.Request {
	req := b.req
	req.Headers = bproxy.Headers(maps.Clone(map[string]string(b.req.Headers)))
	req.QueryStringParameters = maps.Clone(b.req.QueryStringParameters)
	req.PathParameters = maps.Clone(b.req.PathParameters)
	req.StageVariables = maps.Clone(b.req.StageVariables)
	return &req
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}
