package bproxy

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ToStd converts an invoker into a standard library http.Handler so a dispatcher can be served locally without
// an API gateway in front of it. Request bodies larger than bodyLimit are rejected, a negative limit disables
// the check. Multi-value headers are joined with a comma and only the first value of each query parameter is
// kept, mirroring what the gateway passes in single-value mode.
func ToStd(inv Invoker, bodyLimit int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logs := Log(r.Context())

		req, err := requestFromStd(w, r, bodyLimit)
		if err != nil {
			logs.Info("failed to read request body", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}

		resp := inv.HandleRequest(r.Context(), req)
		if err := writeStd(w, resp); err != nil {
			logs.Error("failed to write response", zap.Error(err))
		}
	})
}

func requestFromStd(w http.ResponseWriter, r *http.Request, bodyLimit int64) (*Request, error) {
	body := r.Body
	if bodyLimit >= 0 {
		body = http.MaxBytesReader(w, r.Body, bodyLimit)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Resource:              r.URL.Path,
		Path:                  r.URL.Path,
		HTTPMethod:            r.Method,
		Headers:               Headers{},
		QueryStringParameters: map[string]string{},
		PathParameters:        map[string]string{},
		StageVariables:        map[string]string{},
		Body:                  string(data),
	}

	for name, values := range r.Header {
		req.Headers.Set(name, strings.Join(values, ","))
	}

	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			req.QueryStringParameters[name] = values[0]
		}
	}

	if !utf8.Valid(data) {
		req.Body, req.IsBase64Encoded = base64.StdEncoding.EncodeToString(data), true
	}

	return req, nil
}

func writeStd(w http.ResponseWriter, resp Response) error {
	body := []byte(resp.Body())
	if resp.IsBase64Encoded() {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body())
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return err
		}

		body = decoded
	}

	for name, value := range resp.Headers() {
		w.Header().Set(name, value)
	}

	status := resp.StatusCode()
	if status == 0 {
		status = http.StatusOK
	}

	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}
