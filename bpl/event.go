package bpl

import (
	"maps"
	"strings"

	"github.com/advdv/bproxy"
	"github.com/aws/aws-lambda-go/events"
)

// RequestFromEvent normalizes an API Gateway proxy event. Missing maps become empty maps. Values that the gateway
// only delivered in the multi-value maps are folded in: headers joined with a comma, query parameters by their
// first value.
func RequestFromEvent(ev events.APIGatewayProxyRequest) *bproxy.Request {
	req := &bproxy.Request{
		Resource:              ev.Resource,
		Path:                  ev.Path,
		HTTPMethod:            ev.HTTPMethod,
		Headers:               bproxy.NewHeaders(ev.Headers),
		QueryStringParameters: cloneOrEmpty(ev.QueryStringParameters),
		PathParameters:        cloneOrEmpty(ev.PathParameters),
		StageVariables:        cloneOrEmpty(ev.StageVariables),
		Body:                  ev.Body,
		IsBase64Encoded:       ev.IsBase64Encoded,
	}

	for name, values := range ev.MultiValueHeaders {
		if !req.Headers.Has(name) && len(values) > 0 {
			req.Headers.Set(name, strings.Join(values, ","))
		}
	}

	for name, values := range ev.MultiValueQueryStringParameters {
		if _, ok := req.QueryStringParameters[name]; !ok && len(values) > 0 {
			req.QueryStringParameters[name] = values[0]
		}
	}

	return req
}

// ResponseToEvent turns a response into the proxy integration result.
func ResponseToEvent(resp bproxy.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode:      resp.StatusCode(),
		Headers:         resp.Headers(),
		Body:            resp.Body(),
		IsBase64Encoded: resp.IsBase64Encoded(),
	}
}

func cloneOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}
