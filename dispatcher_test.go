package bproxy_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/advdv/bproxy"
	"github.com/advdv/bproxy/bproxytest"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testConfig struct{ Name string }

// stubHandler records what the dispatcher hands it and returns a canned outcome.
type stubHandler struct {
	required []string
	resp     bproxy.Response
	err      error
	panicV   any

	mu           sync.Mutex
	contentTypes []bproxy.MediaType
	accepts      []bproxy.MediaType
}

func (h *stubHandler) Handle(
	_ context.Context, _ *bproxy.Request, contentTypes, accepts []bproxy.MediaType,
) (bproxy.Response, error) {
	h.mu.Lock()
	h.contentTypes, h.accepts = contentTypes, accepts
	h.mu.Unlock()

	if h.panicV != nil {
		panic(h.panicV)
	}
	return h.resp, h.err
}

func (h *stubHandler) RequiredHeaders() []string { return h.required }

func okResponse() bproxy.Response {
	return bproxy.NewResponseBuilder().WithStatusCode(200).WithHeader("someHeader", "someValue").Build()
}

func newDispatcher(t *testing.T, preflight bool, mhs map[string]bproxy.MethodHandler) *bproxy.Dispatcher[testConfig] {
	t.Helper()

	bldr := bproxy.NewDispatcherBuilder(bproxy.StaticConfiguration(testConfig{Name: "test"}))
	for method, mh := range mhs {
		bldr.RegisterMethodHandler(method, func(testConfig) bproxy.MethodHandler { return mh })
	}
	if preflight {
		bldr.EnablePreflight()
	}
	return bldr.Build()
}

func TestDispatcherRouting(t *testing.T) {
	for _, preflight := range []bool{true, false} {
		t.Run(fmt.Sprintf("unregistered method preflight=%t", preflight), func(t *testing.T) {
			disp := newDispatcher(t, preflight, nil)
			resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("GET").Build())

			require.Equal(t, 400, resp.StatusCode())
			require.Equal(t, "Lambda cannot handle the method get", resp.Body())
		})

		t.Run(fmt.Sprintf("missing content type preflight=%t", preflight), func(t *testing.T) {
			disp := newDispatcher(t, preflight, map[string]bproxy.MethodHandler{"GET": &stubHandler{resp: okResponse()}})
			resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("GET").Build())

			require.Equal(t, 415, resp.StatusCode())
			require.Equal(t, "No content-type header", resp.Body())
		})

		t.Run(fmt.Sprintf("missing accept preflight=%t", preflight), func(t *testing.T) {
			disp := newDispatcher(t, preflight, map[string]bproxy.MethodHandler{"GET": &stubHandler{resp: okResponse()}})
			resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("get").
				WithHeader("cOnTeNt-TyPe", "application/contenttype1").Build())

			require.Equal(t, 415, resp.StatusCode())
			require.Equal(t, "No accept header", resp.Body())
		})

		t.Run(fmt.Sprintf("malformed media type preflight=%t", preflight), func(t *testing.T) {
			disp := newDispatcher(t, preflight, map[string]bproxy.MethodHandler{"GET": &stubHandler{resp: okResponse()}})
			resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("GET").
				WithContentType("MalformedContentType").
				WithAccept("application/accepttype1").Build())

			require.Equal(t, 400, resp.StatusCode())
			require.True(t, strings.HasPrefix(resp.Body(), "Malformed media type. "))
		})

		t.Run(fmt.Sprintf("handler response passes through preflight=%t", preflight), func(t *testing.T) {
			stub := &stubHandler{resp: okResponse()}
			disp := newDispatcher(t, preflight, map[string]bproxy.MethodHandler{"GET": stub})
			resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("GET").
				WithContentType("APPLICATION/ContentType1").
				WithAccept("application/accepttype1").
				WithHeader("someHeader", "someValue").Build())

			require.Equal(t, 200, resp.StatusCode())
			require.Empty(t, resp.Body())
			require.Equal(t, "someValue", resp.Header("someHeader"))
			require.Equal(t, []bproxy.MediaType{ct1}, stub.contentTypes)
			require.Equal(t, []bproxy.MediaType{at1}, stub.accepts)
		})
	}
}

func TestDispatcherCandidateLists(t *testing.T) {
	stub := &stubHandler{resp: okResponse()}
	disp := newDispatcher(t, false, map[string]bproxy.MethodHandler{"GET": stub})

	disp.HandleRequest(t.Context(), bproxytest.NewRequest("GET").
		WithContentType("application/contenttype1;q=0.9;b=hello, application/contenttype2").
		WithAccept("application/accepttype1, application/accepttype2").Build())

	exp := []bproxy.MediaType{
		{Type: "application", Subtype: "contenttype1", Params: []bproxy.Param{{Key: "q", Value: "0.9"}, {Key: "b", Value: "hello"}}},
		ct2,
	}
	if diff := cmp.Diff(exp, stub.contentTypes); diff != "" {
		t.Fatalf("content types mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bproxy.MediaType{at1, at2}, stub.accepts); diff != "" {
		t.Fatalf("accepts mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcherMisconfigured(t *testing.T) {
	disp := bproxy.NewDispatcherBuilder(func(context.Context, *bproxy.Request) (testConfig, error) {
		return testConfig{}, errors.New("no configuration for you")
	}).
		RegisterMethodHandler("GET", func(testConfig) bproxy.MethodHandler { return &stubHandler{} }).
		Build()

	resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("GET").Build())
	require.Equal(t, 500, resp.StatusCode())

	body := gjson.Parse(resp.Body())
	require.Equal(t,
		"This service is mis-configured. Please contact your system administrator.\nno configuration for you",
		body.Get("message").String())
	require.Contains(t, body.Get("cause").String(), "TestDispatcherMisconfigured")
}

func TestDispatcherUnhandledFailure(t *testing.T) {
	stub := &stubHandler{err: errors.New("Some message")}
	disp := newDispatcher(t, false, map[string]bproxy.MethodHandler{"GET": stub})

	resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("GET").
		WithContentType("application/contenttype1").
		WithAccept("application/accepttype1").Build())

	require.Equal(t, 500, resp.StatusCode())
	body := gjson.Parse(resp.Body())
	require.Equal(t, "Some message", body.Get("message").String())
	require.Contains(t, body.Get("cause").String(), "TestDispatcherUnhandledFailure")
	require.Contains(t, body.Get("cause").String(), "dispatcher_test.go")
}

func TestDispatcherStructuredFailure(t *testing.T) {
	stub := &stubHandler{err: errors.Wrap(bproxy.NewError(bproxy.CodeForbidden, errors.New("nope")), "wrapped")}
	disp := newDispatcher(t, false, map[string]bproxy.MethodHandler{"GET": stub})

	resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("GET").
		WithContentType("application/contenttype1").
		WithAccept("application/accepttype1").Build())

	require.Equal(t, 403, resp.StatusCode())
	require.Equal(t, "nope", resp.Body())
}

func TestDispatcherPanic(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	stub := &stubHandler{panicV: "boom"}
	disp := bproxy.NewDispatcherBuilder(bproxy.StaticConfiguration(testConfig{})).
		RegisterMethodHandler("GET", func(testConfig) bproxy.MethodHandler { return stub }).
		WithLogger(zap.New(core)).
		Build()

	req := bproxytest.NewRequest("GET").
		WithContentType("application/contenttype1").
		WithAccept("application/accepttype1").Build()
	resp := disp.HandleRequest(t.Context(), req)

	require.Equal(t, 500, resp.StatusCode())
	require.Equal(t, "Failed to parse: "+req.String(), resp.Body())
	require.False(t, gjson.Valid(resp.Body()))

	require.Equal(t, 1, logs.FilterMessage("recovered from panic while dispatching").Len())
	completed := logs.FilterMessage("completed response").All()
	require.Len(t, completed, 1)
	require.Equal(t, int64(500), completed[0].ContextMap()["status_code"])
}

func TestDispatcherPreflight(t *testing.T) {
	greeter := func(required ...string) *bproxy.Handler[int, int] {
		var seen bproxy.MediaType
		return newIntHandler(double, &seen, required...).Build()
	}

	newPreflight := func(required ...string) *bproxy.Dispatcher[testConfig] {
		return bproxy.NewDispatcherBuilder(bproxy.StaticConfiguration(testConfig{})).
			RegisterMethodHandler("GET", func(testConfig) bproxy.MethodHandler { return greeter(required...) }).
			RegisterMethodHandler("post", func(testConfig) bproxy.MethodHandler { return greeter(required...) }).
			EnablePreflight().
			Build()
	}

	t.Run("ok", func(t *testing.T) {
		disp := newPreflight("Header1", "HEADER2")
		resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("OPTIONS").
			WithHeader("Access-Control-Request-Method", "GET").
			WithHeader("Access-Control-Request-Headers", "hEaDeR2, header1 , Header3").Build())

		require.Equal(t, 200, resp.StatusCode())
		require.Equal(t, "*", resp.Header("Access-Control-Allow-Origin"))
		require.Equal(t, "header2, header1, header3", resp.Header("Access-Control-Allow-Headers"))
		require.Equal(t, "get, post", resp.Header("Access-Control-Allow-Methods"))
		require.Empty(t, resp.Body())
	})

	t.Run("missing request method", func(t *testing.T) {
		disp := newPreflight("header1")
		resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("OPTIONS").
			WithHeader("Access-Control-Request-Headers", "header1").Build())

		require.Equal(t, 400, resp.StatusCode())
		require.Equal(t, "Options method should include the access-control-request-method header", resp.Body())
	})

	t.Run("unregistered method", func(t *testing.T) {
		disp := newPreflight()
		resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("OPTIONS").
			WithHeader("Access-Control-Request-Method", "DELETE").Build())

		require.Equal(t, 400, resp.StatusCode())
		require.Equal(t, "Lambda cannot handle the method delete", resp.Body())
	})

	t.Run("missing request headers", func(t *testing.T) {
		disp := newPreflight("header1")
		resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("OPTIONS").
			WithHeader("Access-Control-Request-Method", "GET").Build())

		require.Equal(t, 400, resp.StatusCode())
		require.Equal(t, "The required header(s) not present: access-control-request-headers", resp.Body())
	})

	t.Run("required headers not proposed", func(t *testing.T) {
		disp := newPreflight("Header1", "header2")
		resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("OPTIONS").
			WithHeader("Access-Control-Request-Method", "GET").
			WithHeader("Access-Control-Request-Headers", "").Build())

		require.Equal(t, 400, resp.StatusCode())
		require.Equal(t, "The required header(s) not present: header1, header2", resp.Body())
	})

	t.Run("nothing required nothing proposed", func(t *testing.T) {
		disp := newPreflight()
		resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("OPTIONS").
			WithHeader("Access-Control-Request-Method", "post").Build())

		require.Equal(t, 200, resp.StatusCode())
		require.Empty(t, resp.Header("Access-Control-Allow-Headers"))
	})

	t.Run("options without preflight is a normal method", func(t *testing.T) {
		disp := newDispatcher(t, false, nil)
		resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("OPTIONS").
			WithHeader("Access-Control-Request-Method", "GET").Build())

		require.Equal(t, 400, resp.StatusCode())
		require.Equal(t, "Lambda cannot handle the method options", resp.Body())
	})

	t.Run("method responses carry allow origin", func(t *testing.T) {
		disp := newPreflight()
		resp := disp.HandleRequest(t.Context(), bproxytest.NewRequest("POST").
			WithContentType("application/contenttype1").
			WithAccept("application/accepttype1").
			WithBody("4").Build())

		require.Equal(t, 200, resp.StatusCode())
		require.Equal(t, "8", resp.Body())
		require.Equal(t, "*", resp.Header("Access-Control-Allow-Origin"))
	})
}

func TestDispatcherMethods(t *testing.T) {
	disp := bproxy.NewDispatcherBuilder(bproxy.StaticConfiguration(testConfig{})).
		RegisterMethodHandler(http.MethodPut, func(testConfig) bproxy.MethodHandler { return &stubHandler{} }).
		RegisterMethodHandler(http.MethodGet, func(testConfig) bproxy.MethodHandler { return &stubHandler{} }).
		RegisterMethodHandler("put", func(testConfig) bproxy.MethodHandler { return &stubHandler{} }).
		Build()

	require.Equal(t, []string{"put", "get"}, disp.Methods())
}

func TestDispatcherConcurrent(t *testing.T) {
	hdlr := bproxy.NewHandlerBuilder(double).
		RegisterInputConverter(ct1, bproxy.JSONInput[int]()).
		RegisterOutputConverter(at1, itoaOutput("at1")).
		Build()

	disp := bproxy.NewDispatcherBuilder(bproxy.StaticConfiguration(testConfig{})).
		RegisterMethodHandler("POST", func(testConfig) bproxy.MethodHandler { return hdlr }).
		Build()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := disp.HandleRequest(context.Background(), bproxytest.NewRequest("POST").
				WithContentType("application/contenttype1").
				WithAccept("application/accepttype1").
				WithBody("3").Build())
			assert.Equal(t, "6", resp.Body())
		}()
	}
	wg.Wait()
}
