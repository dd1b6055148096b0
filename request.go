package bproxy

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Headers maps header names to values. Keys are stored lower-case, every accessor normalizes the name it is
// given so lookups are case-insensitive.
type Headers map[string]string

// NewHeaders copies m into Headers with lower-cased keys.
func NewHeaders(m map[string]string) Headers {
	h := make(Headers, len(m))
	for k, v := range m {
		h[strings.ToLower(k)] = v
	}
	return h
}

// Get returns the value for name, or the empty string.
func (h Headers) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup returns the value for name and whether it is present.
func (h Headers) Lookup(name string) (string, bool) {
	v, ok := h[strings.ToLower(name)]
	return v, ok
}

// Has reports whether name is present.
func (h Headers) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

// Set stores value under the normalized name.
func (h Headers) Set(name, value string) {
	h[strings.ToLower(name)] = value
}

// Request is the normalized inbound proxy event.
type Request struct {
	Resource              string            `json:"resource"`
	Path                  string            `json:"path"`
	HTTPMethod            string            `json:"httpMethod"`
	Headers               Headers           `json:"headers"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
	PathParameters        map[string]string `json:"pathParameters"`
	StageVariables        map[string]string `json:"stageVariables"`
	Body                  string            `json:"body"`
	IsBase64Encoded       bool              `json:"isBase64Encoded"`
}

// DecodedBody returns the raw body bytes, decoding base64 when the request is flagged as such.
func (r *Request) DecodedBody() ([]byte, error) {
	if !r.IsBase64Encoded {
		return []byte(r.Body), nil
	}

	b, err := base64.StdEncoding.DecodeString(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "decode base64 body")
	}
	return b, nil
}

func (r *Request) String() string {
	return fmt.Sprintf("Request{resource=%q, path=%q, httpMethod=%q, headers=%v, queryStringParameters=%v, "+
		"pathParameters=%v, stageVariables=%v, body=%q, isBase64Encoded=%t}",
		r.Resource, r.Path, r.HTTPMethod, r.Headers, r.QueryStringParameters,
		r.PathParameters, r.StageVariables, r.Body, r.IsBase64Encoded)
}
