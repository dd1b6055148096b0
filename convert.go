package bproxy

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// JSONInput returns an input converter that decodes the (possibly base64 encoded) body as JSON. A body that
// cannot be decoded is a bad request.
func JSONInput[I any]() InputConverter[I] {
	return InputConverterFunc[I](func(_ context.Context, req *Request, _ MediaType) (in I, err error) {
		body, err := req.DecodedBody()
		if err != nil {
			return in, NewError(CodeBadRequest, err)
		}

		if err := json.Unmarshal(body, &in); err != nil {
			return in, NewError(CodeBadRequest, errors.Wrap(err, "decode json body"))
		}

		return in, nil
	})
}

// JSONOutput returns an output converter that encodes the output as JSON with the given status code. The
// Content-Type header is set to the negotiated accept type, including its parameters.
func JSONOutput[O any](status int) OutputConverter[O] {
	return OutputConverterFunc[O](func(_ context.Context, out O, mt MediaType) (Response, error) {
		body, err := json.Marshal(out)
		if err != nil {
			return Response{}, errors.Wrap(err, "encode json body")
		}

		return NewResponseBuilder().
			WithStatusCode(status).
			WithHeader("Content-Type", mt.String()).
			WithBody(string(body)).
			Build(), nil
	})
}
