package example

import (
	"context"
	"net/http"
	"strings"

	"github.com/advdv/bproxy"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// KindValidation tags input that decoded fine but is not acceptable to the business logic.
const KindValidation bproxy.Kind = "validation"

// Config is the request-scoped configuration of the greeter.
type Config struct {
	Salutation string `json:"salutation"`
}

// Greeting is the greeter input.
type Greeting struct {
	Name string `json:"name"`
}

// Reply is the greeter output.
type Reply struct {
	Message string `json:"message"`
}

var (
	JSON      = bproxy.MustParseMediaType("application/json")
	PlainText = bproxy.MustParseMediaType("text/plain")
)

// NewGreeter builds the greeter method handler. Requests must carry the X-Api-Key header, the input is read as
// JSON or plain text and the reply is written as JSON or plain text.
func NewGreeter(cfg Config) *bproxy.Handler[*Greeting, *Reply] {
	return bproxy.NewHandlerBuilder(func(ctx context.Context, in *Greeting) (*Reply, error) {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, bproxy.WithKind(errors.New("name must not be empty"), KindValidation)
		}

		bproxy.Log(ctx).Info("greeting", zap.String("name", name))
		return &Reply{Message: cfg.Salutation + ", " + name}, nil
	}, "X-Api-Key").
		RegisterInputConverter(JSON, bproxy.JSONInput[*Greeting]()).
		RegisterInputConverter(PlainText, bproxy.InputConverterFunc[*Greeting](
			func(_ context.Context, req *bproxy.Request, _ bproxy.MediaType) (*Greeting, error) {
				body, err := req.DecodedBody()
				if err != nil {
					return nil, bproxy.NewError(bproxy.CodeBadRequest, err)
				}
				return &Greeting{Name: string(body)}, nil
			})).
		RegisterOutputConverter(JSON, bproxy.JSONOutput[*Reply](http.StatusOK)).
		RegisterOutputConverter(PlainText, bproxy.OutputConverterFunc[*Reply](
			func(_ context.Context, out *Reply, mt bproxy.MediaType) (bproxy.Response, error) {
				return bproxy.NewResponseBuilder().
					WithStatusCode(http.StatusOK).
					WithHeader("Content-Type", mt.String()).
					WithBody(out.Message).
					Build(), nil
			})).
		RegisterExceptionMapper(KindValidation, func(err error) bproxy.Response {
			return bproxy.NewResponseBuilder().
				WithStatusCode(http.StatusUnprocessableEntity).
				WithBody(err.Error()).
				Build()
		}).
		Build()
}

// NewDispatcher registers the greeter for POST and PUT with preflight support.
func NewDispatcher(configure bproxy.ConfigureFunc[Config]) *bproxy.Dispatcher[Config] {
	greeter := func(cfg Config) bproxy.MethodHandler { return NewGreeter(cfg) }

	return bproxy.NewDispatcherBuilder(configure).
		RegisterMethodHandler(http.MethodPost, greeter).
		RegisterMethodHandler(http.MethodPut, greeter).
		EnablePreflight().
		Build()
}
