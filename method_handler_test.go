package bproxy_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/advdv/bproxy"
	"github.com/advdv/bproxy/bproxytest"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

var (
	ct1 = bproxy.MustParseMediaType("application/contenttype1")
	ct2 = bproxy.MustParseMediaType("application/contenttype2")
	at1 = bproxy.MustParseMediaType("application/accepttype1")
	at2 = bproxy.MustParseMediaType("application/accepttype2")
)

// atoiInput parses the body as an integer and records the content type it was given.
func atoiInput(seen *bproxy.MediaType) bproxy.InputConverter[int] {
	return bproxy.InputConverterFunc[int](func(_ context.Context, req *bproxy.Request, mt bproxy.MediaType) (int, error) {
		*seen = mt
		n, err := strconv.Atoi(req.Body)
		if err != nil {
			return 0, bproxy.NewError(bproxy.CodeBadRequest, err)
		}
		return n, nil
	})
}

// itoaOutput renders the integer as the body and tags the response with a header naming the accept type.
func itoaOutput(name string) bproxy.OutputConverter[int] {
	return bproxy.OutputConverterFunc[int](func(_ context.Context, out int, mt bproxy.MediaType) (bproxy.Response, error) {
		return bproxy.NewResponseBuilder().
			WithStatusCode(200).
			WithHeader("X-Converter", name).
			WithHeader("Content-Type", mt.String()).
			WithBody(strconv.Itoa(out)).
			Build(), nil
	})
}

func double(_ context.Context, in int) (int, error) { return in * 2, nil }

func newIntHandler(
	logic bproxy.HandleFunc[int, int], seen *bproxy.MediaType, required ...string,
) *bproxy.HandlerBuilder[int, int] {
	return bproxy.NewHandlerBuilder(logic, required...).
		RegisterInputConverter(ct1, atoiInput(seen)).
		RegisterInputConverter(ct2, atoiInput(seen)).
		RegisterOutputConverter(at1, itoaOutput("at1")).
		RegisterOutputConverter(at2, itoaOutput("at2"))
}

func TestHandlerNegotiation(t *testing.T) {
	var seen bproxy.MediaType
	hdlr := newIntHandler(double, &seen).Build()
	req := bproxytest.NewRequest("POST").WithBody("21").Build()

	t.Run("first supported candidate wins", func(t *testing.T) {
		contentTypes, err := bproxy.ParseMediaTypes("application/unknown, application/contenttype2;q=0.9;b=hello, application/contenttype1")
		require.NoError(t, err)
		accepts, err := bproxy.ParseMediaTypes("application/accepttype2;v=1, application/accepttype1")
		require.NoError(t, err)

		resp, err := hdlr.Handle(t.Context(), req, contentTypes, accepts)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode())
		require.Equal(t, "42", resp.Body())
		require.Equal(t, "at2", resp.Header("X-Converter"))
		require.Equal(t, "application/accepttype2; v=1", resp.Header("Content-Type"))

		require.True(t, seen.BareEqual(ct2))
		q, _ := seen.Param("q")
		require.Equal(t, "0.9", q)
	})

	t.Run("unsupported content type", func(t *testing.T) {
		contentTypes, _ := bproxy.ParseMediaTypes("application/x, application/y")
		_, err := hdlr.Handle(t.Context(), req, contentTypes, []bproxy.MediaType{at1})

		require.Equal(t, bproxy.CodeUnsupportedMediaType, bproxy.CodeOf(err))
		var rerr *bproxy.Error
		require.True(t, errors.As(err, &rerr))
		require.Equal(t, "Content-Types [application/x, application/y] are not supported", rerr.Response().Body())
	})

	t.Run("unsupported accept", func(t *testing.T) {
		accepts, _ := bproxy.ParseMediaTypes("application/x")
		_, err := hdlr.Handle(t.Context(), req, []bproxy.MediaType{ct1}, accepts)

		var rerr *bproxy.Error
		require.True(t, errors.As(err, &rerr))
		require.Equal(t, 415, rerr.Response().StatusCode())
		require.Equal(t, "Accept types [application/x] are not supported", rerr.Response().Body())
	})

	t.Run("content type is checked before accept", func(t *testing.T) {
		_, err := hdlr.Handle(t.Context(), req,
			[]bproxy.MediaType{bproxy.MustParseMediaType("a/b")},
			[]bproxy.MediaType{bproxy.MustParseMediaType("c/d")})
		require.ErrorContains(t, err, "Content-Types [a/b] are not supported")
	})
}

func TestHandlerRequiredHeaders(t *testing.T) {
	var seen bproxy.MediaType
	hdlr := newIntHandler(double, &seen, "Header1", "header2", "HEADER1").Build()
	require.Equal(t, []string{"header1", "header2"}, hdlr.RequiredHeaders())

	t.Run("missing in declared order", func(t *testing.T) {
		req := bproxytest.NewRequest("POST").WithHeader("other", "x").WithBody("1").Build()
		_, err := hdlr.Handle(t.Context(), req, []bproxy.MediaType{ct1}, []bproxy.MediaType{at1})

		var rerr *bproxy.Error
		require.True(t, errors.As(err, &rerr))
		require.Equal(t, 400, rerr.Response().StatusCode())
		require.Equal(t, "The following required headers are not present: header1, header2", rerr.Response().Body())
	})

	t.Run("present with different casing", func(t *testing.T) {
		req := bproxytest.NewRequest("POST").
			WithHeader("HEADER1", "a").
			WithHeader("hEaDeR2", "b").
			WithBody("1").Build()
		resp, err := hdlr.Handle(t.Context(), req, []bproxy.MediaType{ct1}, []bproxy.MediaType{at1})
		require.NoError(t, err)
		require.Equal(t, "2", resp.Body())
	})

	t.Run("negotiation fails before header check", func(t *testing.T) {
		req := bproxytest.NewRequest("POST").Build()
		_, err := hdlr.Handle(t.Context(), req, []bproxy.MediaType{ct1}, []bproxy.MediaType{ct1})
		require.Equal(t, bproxy.CodeUnsupportedMediaType, bproxy.CodeOf(err))
	})
}

func TestHandlerExceptionMapping(t *testing.T) {
	const (
		kindMapped   bproxy.Kind = "mapped"
		kindUnmapped bproxy.Kind = "unmapped"
	)

	var seen bproxy.MediaType
	logic := func(_ context.Context, in int) (int, error) {
		switch in {
		case 1:
			return 0, bproxy.WithKind(errors.New("mapped failure"), kindMapped)
		case 2:
			return 0, bproxy.WithKind(errors.New("unmapped failure"), kindUnmapped)
		case 3:
			return 0, errors.Wrap(bproxy.WithKind(errors.New("wrapped"), kindMapped), "outer")
		case 4:
			return 0, bproxy.NewError(bproxy.CodeConflict, errors.New("already exists"))
		default:
			return in, nil
		}
	}

	hdlr := newIntHandler(logic, &seen).
		RegisterExceptionMapper(kindMapped, func(err error) bproxy.Response {
			return bproxy.NewResponseBuilder().WithStatusCode(418).WithBody("mapped: " + err.Error()).Build()
		}).
		Build()

	handle := func(t *testing.T, body string) (bproxy.Response, error) {
		t.Helper()
		req := bproxytest.NewRequest("POST").WithBody(body).Build()
		return hdlr.Handle(t.Context(), req, []bproxy.MediaType{ct1}, []bproxy.MediaType{at1})
	}

	t.Run("exact kind is mapped", func(t *testing.T) {
		resp, err := handle(t, "1")
		require.NoError(t, err)
		require.Equal(t, 418, resp.StatusCode())
		require.Equal(t, "mapped: mapped failure", resp.Body())
	})

	t.Run("unregistered kind propagates", func(t *testing.T) {
		_, err := handle(t, "2")
		require.EqualError(t, err, "unmapped failure")
	})

	t.Run("wrapped kind is not matched", func(t *testing.T) {
		_, err := handle(t, "3")
		require.ErrorContains(t, err, "outer")
	})

	t.Run("structured failure yields its response", func(t *testing.T) {
		resp, err := handle(t, "4")
		require.NoError(t, err)
		require.Equal(t, 409, resp.StatusCode())
		require.Equal(t, "already exists", resp.Body())
	})

	t.Run("converter structured failure", func(t *testing.T) {
		resp, err := handle(t, "not a number")
		require.NoError(t, err)
		require.Equal(t, 400, resp.StatusCode())
	})
}

func TestHandlerNilValues(t *testing.T) {
	nilInput := bproxy.NewHandlerBuilder(func(_ context.Context, in *int) (*int, error) { return in, nil }).
		RegisterInputConverter(ct1, bproxy.InputConverterFunc[*int](
			func(context.Context, *bproxy.Request, bproxy.MediaType) (*int, error) { return nil, nil })).
		RegisterOutputConverter(at1, bproxy.JSONOutput[*int](200)).
		Build()

	req := bproxytest.NewRequest("POST").Build()
	_, err := nilInput.Handle(t.Context(), req, []bproxy.MediaType{ct1}, []bproxy.MediaType{at1})
	require.ErrorIs(t, err, bproxy.ErrNilInput)

	nilOutput := bproxy.NewHandlerBuilder(func(context.Context, int) (*int, error) { return nil, nil }).
		RegisterInputConverter(ct1, bproxy.JSONInput[int]()).
		RegisterOutputConverter(at1, bproxy.JSONOutput[*int](200)).
		Build()

	req = bproxytest.NewRequest("POST").WithBody("5").Build()
	_, err = nilOutput.Handle(t.Context(), req, []bproxy.MediaType{ct1}, []bproxy.MediaType{at1})
	require.ErrorIs(t, err, bproxy.ErrNilOutput)
}

func TestHandlerBuildIsolation(t *testing.T) {
	var seen bproxy.MediaType
	bldr := newIntHandler(double, &seen)
	hdlr := bldr.Build()

	bldr.RegisterInputConverter(bproxy.MustParseMediaType("application/late"), atoiInput(&seen))

	req := bproxytest.NewRequest("POST").WithBody("1").Build()
	_, err := hdlr.Handle(t.Context(), req,
		[]bproxy.MediaType{bproxy.MustParseMediaType("application/late")}, []bproxy.MediaType{at1})
	require.Equal(t, bproxy.CodeUnsupportedMediaType, bproxy.CodeOf(err))
}
