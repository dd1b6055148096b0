// Package bproxy dispatches API gateway proxy requests to typed, per-method handlers.
//
// # Overview
//
// A serverless function behind a proxy integration receives every http method of a resource in one event.
// bproxy routes that event by method, negotiates the request and response formats from the Content-Type and
// Accept headers, converts the body into a typed input, invokes the business logic and converts the typed
// output back into a response. Every request produces exactly one [Response], failures included.
//
// A minimal example:
//
//	greet := bproxy.NewHandlerBuilder(func(ctx context.Context, in *Greeting) (*Reply, error) {
//	    return &Reply{Message: "hello " + in.Name}, nil
//	}).
//	    RegisterInputConverter(bproxy.MustParseMediaType("application/json"), bproxy.JSONInput[*Greeting]()).
//	    RegisterOutputConverter(bproxy.MustParseMediaType("application/json"), bproxy.JSONOutput[*Reply](200)).
//	    Build()
//
//	disp := bproxy.NewDispatcherBuilder(bproxy.StaticConfiguration(cfg)).
//	    RegisterMethodHandler("POST", func(Config) bproxy.MethodHandler { return greet }).
//	    EnablePreflight().
//	    Build()
//
//	resp := disp.HandleRequest(ctx, req)
//
// # Media type negotiation
//
// The Content-Type and Accept values are lower-cased and split on commas into an ordered candidate list. Each
// candidate is parsed into a [MediaType]. The first candidate whose bare type/subtype has a registered converter
// wins, parameters never influence the match but the winning candidate is passed to the converter with its
// parameters. The header quality factor "q" is treated as an ordinary parameter.
//
// # Failures
//
// Failures are plain Go errors. An [*Error] carries a complete response and is returned as-is by the
// [Dispatcher]. Failures tagged with a [Kind] (see [WithKind]) can be mapped to a response per handler with
// [HandlerBuilder.RegisterExceptionMapper]; the kind is matched exactly. Any other failure becomes a 500
// response whose JSON body holds the message and the full cause trace. A panic becomes a 500 whose body
// reads "Failed to parse: " followed by the request.
//
// # Preflight
//
// With [DispatcherBuilder.EnablePreflight] an OPTIONS request is answered with the CORS handshake: the target
// method from Access-Control-Request-Method must be registered and every header it requires must be listed in
// Access-Control-Request-Headers.
//
// # Middleware
//
// [Invoker] is the unit of composition. [Wrap] applies [Middleware] in the order of the chi router, see
// [Metrics.Middleware] for an example. [ToStd] exposes any invoker as an http.Handler for local development.
package bproxy
