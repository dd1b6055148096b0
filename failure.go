package bproxy

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const misconfiguredMessage = "This service is mis-configured. Please contact your system administrator."

// errorBody is the structured body of internal server error responses.
type errorBody struct {
	Message string `json:"message"`
	Cause   string `json:"cause"`
}

// serverErrorResponse renders err as a 500 with a message and the full cause trace. A non-empty base is put on
// its own line in front of the error message.
func serverErrorResponse(base string, err error) Response {
	msg := err.Error()
	if base != "" {
		msg = base + "\n" + msg
	}

	body, merr := json.Marshal(errorBody{Message: msg, Cause: fmt.Sprintf("%+v", err)})
	if merr != nil {
		body = []byte(http.StatusText(http.StatusInternalServerError))
	}

	return NewResponseBuilder().
		WithStatusCode(http.StatusInternalServerError).
		WithBody(string(body)).
		Build()
}

// lastResortResponse is produced when the dispatcher recovers from a panic. It has no cause field.
func lastResortResponse(req *Request) Response {
	return NewResponseBuilder().
		WithStatusCode(http.StatusInternalServerError).
		WithBody(fmt.Sprintf("Failed to parse: %s", req)).
		Build()
}
