package bproxy

import (
	"encoding/json"
	"maps"
	"net/http"
)

// Response is the outbound proxy response. It is immutable once built, use [ResponseBuilder] to create one.
type Response struct {
	statusCode      int
	headers         map[string]string
	body            string
	isBase64Encoded bool
}

func (r Response) StatusCode() int       { return r.statusCode }
func (r Response) Body() string          { return r.body }
func (r Response) IsBase64Encoded() bool { return r.isBase64Encoded }

// Headers returns a copy of the response headers.
func (r Response) Headers() map[string]string {
	if r.headers == nil {
		return map[string]string{}
	}
	return maps.Clone(r.headers)
}

// Header returns the value of a response header, looked up case-insensitively.
func (r Response) Header(name string) string {
	if v, ok := r.headers[name]; ok {
		return v
	}
	return NewHeaders(r.headers).Get(name)
}

// MarshalJSON writes the response in the API Gateway proxy integration shape.
func (r Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		StatusCode      int               `json:"statusCode"`
		Headers         map[string]string `json:"headers"`
		Body            string            `json:"body"`
		IsBase64Encoded bool              `json:"isBase64Encoded"`
	}{r.statusCode, r.Headers(), r.body, r.isBase64Encoded})
}

func (r Response) String() string {
	return http.StatusText(r.statusCode) + ": " + r.body
}

// ResponseBuilder accumulates the fields of a [Response].
type ResponseBuilder struct {
	statusCode      int
	headers         map[string]string
	body            string
	isBase64Encoded bool
}

// NewResponseBuilder inits a builder with a zero status, no headers, an empty body and no base64 flag.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{headers: map[string]string{}}
}

func (b *ResponseBuilder) WithStatusCode(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// WithHeaders replaces all headers.
func (b *ResponseBuilder) WithHeaders(headers map[string]string) *ResponseBuilder {
	b.headers = maps.Clone(headers)
	if b.headers == nil {
		b.headers = map[string]string{}
	}
	return b
}

// WithHeader sets a single header.
func (b *ResponseBuilder) WithHeader(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) WithBody(body string) *ResponseBuilder {
	b.body = body
	return b
}

func (b *ResponseBuilder) WithBase64Encoded(encoded bool) *ResponseBuilder {
	b.isBase64Encoded = encoded
	return b
}

// Build returns the response. The builder may be reused, later changes do not affect built responses.
func (b *ResponseBuilder) Build() Response {
	return Response{
		statusCode:      b.statusCode,
		headers:         maps.Clone(b.headers),
		body:            b.body,
		isBase64Encoded: b.isBase64Encoded,
	}
}
