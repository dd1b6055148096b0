package bproxy

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"golang.org/x/net/http/httpguts"
)

// Param is a single media type parameter.
type Param struct {
	Key   string
	Value string
}

// MediaType is a type/subtype pair with its parameters in the order they were encountered.
type MediaType struct {
	Type    string
	Subtype string
	Params  []Param
}

// MalformedMediaTypeError is returned when a value cannot be parsed as type/subtype[;key=value]*.
type MalformedMediaTypeError struct {
	Value  string
	Reason string
}

func (e *MalformedMediaTypeError) Error() string {
	return fmt.Sprintf("%q is not a valid media type: %s", e.Value, e.Reason)
}

// ParseMediaTypes parses a Content-Type or Accept header value into its ordered candidate sequence. The whole
// value is lower-cased. Any malformed element fails the whole value.
func ParseMediaTypes(s string) ([]MediaType, error) {
	parts := strings.Split(s, ",")
	mts := make([]MediaType, 0, len(parts))
	for _, part := range parts {
		mt, err := ParseMediaType(part)
		if err != nil {
			return nil, err
		}
		mts = append(mts, mt)
	}
	return mts, nil
}

// ParseMediaType parses a single lower-cased media type.
func ParseMediaType(s string) (MediaType, error) {
	raw := strings.TrimSpace(s)
	malformed := func(reason string, args ...any) error {
		return errors.WithStack(&MalformedMediaTypeError{Value: raw, Reason: fmt.Sprintf(reason, args...)})
	}

	if raw == "" {
		return MediaType{}, malformed("empty media type")
	}

	segs := strings.Split(strings.ToLower(raw), ";")
	typ, sub, ok := strings.Cut(strings.TrimSpace(segs[0]), "/")
	switch {
	case !ok:
		return MediaType{}, malformed("missing subtype")
	case typ == "" || sub == "":
		return MediaType{}, malformed("empty type or subtype")
	case !isToken(typ) || !isToken(sub):
		return MediaType{}, malformed("invalid character in %q", typ+"/"+sub)
	}

	mt := MediaType{Type: typ, Subtype: sub}
	for _, seg := range segs[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}

		key, val, ok := strings.Cut(seg, "=")
		if !ok {
			return MediaType{}, malformed("parameter %q has no value", seg)
		}

		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !isToken(key) {
			return MediaType{}, malformed("invalid parameter name %q", key)
		}

		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		} else if !isToken(val) {
			return MediaType{}, malformed("invalid value for parameter %q", key)
		}

		mt.Params = append(mt.Params, Param{Key: key, Value: val})
	}

	return mt, nil
}

// MustParseMediaType is like [ParseMediaType] but panics on malformed input. Intended for registration code.
func MustParseMediaType(s string) MediaType {
	mt, err := ParseMediaType(s)
	if err != nil {
		panic("bproxy: " + err.Error())
	}
	return mt
}

// Key returns the bare, lower-cased "type/subtype" used for negotiation-table lookups.
func (m MediaType) Key() string {
	return strings.ToLower(m.Type + "/" + m.Subtype)
}

// Bare returns the media type without parameters.
func (m MediaType) Bare() MediaType {
	return MediaType{Type: m.Type, Subtype: m.Subtype}
}

// Param returns the value of the parameter named key.
func (m MediaType) Param(key string) (string, bool) {
	for _, p := range m.Params {
		if strings.EqualFold(p.Key, key) {
			return p.Value, true
		}
	}
	return "", false
}

// BareEqual compares type and subtype only.
func (m MediaType) BareEqual(o MediaType) bool {
	return m.Key() == o.Key()
}

// Equal compares type, subtype and the set of parameters. Parameter order is not significant.
func (m MediaType) Equal(o MediaType) bool {
	if !m.BareEqual(o) || len(m.Params) != len(o.Params) {
		return false
	}
	for _, p := range m.Params {
		if v, ok := o.Param(p.Key); !ok || v != p.Value {
			return false
		}
	}
	return true
}

func (m MediaType) String() string {
	var b strings.Builder
	b.WriteString(m.Key())
	for _, p := range m.Params {
		b.WriteString("; ")
		b.WriteString(p.Key)
		b.WriteByte('=')
		if isToken(p.Value) {
			b.WriteString(p.Value)
		} else {
			fmt.Fprintf(&b, "%q", p.Value)
		}
	}
	return b.String()
}

// negotiate returns the first candidate, in the given order, that has an entry in table. Parameters are ignored
// for the lookup but the returned candidate keeps them. If nothing matches it fails with an unsupported media type
// error whose body is format applied to the candidate list.
func negotiate[T any](candidates []MediaType, table map[string]T, format string) (MediaType, T, error) {
	for _, c := range candidates {
		if v, ok := table[c.Key()]; ok {
			return c, v, nil
		}
	}

	var zero T
	return MediaType{}, zero, NewError(CodeUnsupportedMediaType, errors.Newf(format, formatMediaTypes(candidates)))
}

func formatMediaTypes(mts []MediaType) string {
	return "[" + strings.Join(lo.Map(mts, func(mt MediaType, _ int) string { return mt.String() }), ", ") + "]"
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !httpguts.IsTokenRune(r) {
			return false
		}
	}
	return true
}
