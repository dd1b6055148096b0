package bproxy

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Code is an error code that mirrors the http status codes. It is used to create structured response failures
// that travel from the method handler up to the dispatcher.
type Code int

const (
	CodeUnknown                      Code = 0
	CodeBadRequest                   Code = http.StatusBadRequest                   // RFC 9110, 15.5.1
	CodeUnauthorized                 Code = http.StatusUnauthorized                 // RFC 9110, 15.5.2
	CodePaymentRequired              Code = http.StatusPaymentRequired              // RFC 9110, 15.5.3
	CodeForbidden                    Code = http.StatusForbidden                    // RFC 9110, 15.5.4
	CodeNotFound                     Code = http.StatusNotFound                     // RFC 9110, 15.5.5
	CodeMethodNotAllowed             Code = http.StatusMethodNotAllowed             // RFC 9110, 15.5.6
	CodeNotAcceptable                Code = http.StatusNotAcceptable                // RFC 9110, 15.5.7
	CodeProxyAuthRequired            Code = http.StatusProxyAuthRequired            // RFC 9110, 15.5.8
	CodeRequestTimeout               Code = http.StatusRequestTimeout               // RFC 9110, 15.5.9
	CodeConflict                     Code = http.StatusConflict                     // RFC 9110, 15.5.10
	CodeGone                         Code = http.StatusGone                         // RFC 9110, 15.5.11
	CodeLengthRequired               Code = http.StatusLengthRequired               // RFC 9110, 15.5.12
	CodePreconditionFailed           Code = http.StatusPreconditionFailed           // RFC 9110, 15.5.13
	CodeRequestEntityTooLarge        Code = http.StatusRequestEntityTooLarge        // RFC 9110, 15.5.14
	CodeRequestURITooLong            Code = http.StatusRequestURITooLong            // RFC 9110, 15.5.15
	CodeUnsupportedMediaType         Code = http.StatusUnsupportedMediaType         // RFC 9110, 15.5.16
	CodeRequestedRangeNotSatisfiable Code = http.StatusRequestedRangeNotSatisfiable // RFC 9110, 15.5.17
	CodeExpectationFailed            Code = http.StatusExpectationFailed            // RFC 9110, 15.5.18
	CodeTeapot                       Code = http.StatusTeapot                       // RFC 9110, 15.5.19 (Unused)
	CodeMisdirectedRequest           Code = http.StatusMisdirectedRequest           // RFC 9110, 15.5.20
	CodeUnprocessableEntity          Code = http.StatusUnprocessableEntity          // RFC 9110, 15.5.21
	CodeLocked                       Code = http.StatusLocked                       // RFC 4918, 11.3
	CodeFailedDependency             Code = http.StatusFailedDependency             // RFC 4918, 11.4
	CodeTooEarly                     Code = http.StatusTooEarly                     // RFC 8470, 5.2.
	CodeUpgradeRequired              Code = http.StatusUpgradeRequired              // RFC 9110, 15.5.22
	CodePreconditionRequired         Code = http.StatusPreconditionRequired         // RFC 6585, 3
	CodeTooManyRequests              Code = http.StatusTooManyRequests              // RFC 6585, 4
	CodeRequestHeaderFieldsTooLarge  Code = http.StatusRequestHeaderFieldsTooLarge  // RFC 6585, 5
	CodeUnavailableForLegalReasons   Code = http.StatusUnavailableForLegalReasons   // RFC 7725, 3

	CodeInternalServerError           Code = http.StatusInternalServerError           // RFC 9110, 15.6.1
	CodeNotImplemented                Code = http.StatusNotImplemented                // RFC 9110, 15.6.2
	CodeBadGateway                    Code = http.StatusBadGateway                    // RFC 9110, 15.6.3
	CodeServiceUnavailable            Code = http.StatusServiceUnavailable            // RFC 9110, 15.6.4
	CodeGatewayTimeout                Code = http.StatusGatewayTimeout                // RFC 9110, 15.6.5
	CodeHTTPVersionNotSupported       Code = http.StatusHTTPVersionNotSupported       // RFC 9110, 15.6.6
	CodeVariantAlsoNegotiates         Code = http.StatusVariantAlsoNegotiates         // RFC 2295, 8.1
	CodeInsufficientStorage           Code = http.StatusInsufficientStorage           // RFC 4918, 11.5
	CodeLoopDetected                  Code = http.StatusLoopDetected                  // RFC 5842, 7.2
	CodeNotExtended                   Code = http.StatusNotExtended                   // RFC 2774, 7
	CodeNetworkAuthenticationRequired Code = http.StatusNetworkAuthenticationRequired // RFC 6585, 6
)

// Kind classifies a failure for exception mapping. Mappers are resolved by the exact kind of the failure value,
// the error chain is not inspected.
type Kind string

const (
	// KindUnknown is the kind of any error that does not declare one. It is never mapped.
	KindUnknown Kind = ""
	// KindResponse is the kind of [*Error], the structured response failure.
	KindResponse Kind = "response"
)

// KindOf returns the kind declared by err itself, or [KindUnknown].
func KindOf(err error) Kind {
	if k, ok := err.(interface{ Kind() Kind }); ok {
		return k.Kind()
	}
	return KindUnknown
}

// WithKind tags err with a kind so that a handler's exception mappers can pick it up.
func WithKind(err error, k Kind) error {
	if err == nil {
		return nil
	}
	return &kindError{err: err, kind: k}
}

type kindError struct {
	err  error
	kind Kind
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Kind() Kind    { return e.kind }

// Error is a failure that carries a ready-made response.
type Error struct {
	resp Response
	err  error
}

// NewError inits a new error given the error code. The underlying error's message becomes the response body.
func NewError(c Code, underlying error) *Error {
	return &Error{
		resp: NewResponseBuilder().
			WithStatusCode(int(c)).
			WithBody(underlying.Error()).
			Build(),
		err: underlying,
	}
}

// NewResponseError wraps a complete response as an error.
func NewResponseError(resp Response) *Error {
	return &Error{resp: resp}
}

func (e *Error) Code() Code         { return Code(e.resp.StatusCode()) }
func (e *Error) Response() Response { return e.resp }
func (e *Error) Kind() Kind         { return KindResponse }
func (e *Error) Unwrap() error      { return e.err }
func (e *Error) Error() string {
	status := http.StatusText(int(e.Code()))
	if status == "" {
		status = "Unknown"
	}

	msg := e.resp.Body()
	if e.err != nil {
		msg = e.err.Error()
	}

	return fmt.Sprintf("%s: %s", status, msg)
}

// CodeOf returns the error's status code if it is or wraps an [*Error] and
// [CodeUnknown] otherwise.
func CodeOf(err error) Code {
	if rerr, ok := asError(err); ok {
		return rerr.Code()
	}
	return CodeUnknown
}

// asError uses errors.As to unwrap any error and look for a *Error.
func asError(err error) (*Error, bool) {
	var rerr *Error
	ok := errors.As(err, &rerr)
	return rerr, ok
}
