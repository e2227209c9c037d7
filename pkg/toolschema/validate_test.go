package toolschema

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func integerSchema() *Descriptor {
	return Translate("inc", map[string]any{
		"properties": map[string]any{"x": map[string]any{"type": "integer"}},
		"required":   []any{"x"},
	})
}

func TestDecodeRequiredInteger(t *testing.T) {
	t.Parallel()

	d := integerSchema()

	args, err := d.Decode([]byte(`{"x":5}`))
	if err != nil {
		t.Fatalf("valid body rejected: %v", err)
	}
	if args["x"] != int64(5) {
		t.Fatalf("x = %#v", args["x"])
	}

	_, err = d.Decode([]byte(`{}`))
	verr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !reflect.DeepEqual(verr.FieldNames(), []string{"x"}) || verr.Fields[0].Type != "missing" {
		t.Fatalf("missing x not reported: %+v", verr.Fields)
	}
	if !reflect.DeepEqual(verr.Fields[0].Loc, []string{"body", "x"}) {
		t.Fatalf("loc = %v", verr.Fields[0].Loc)
	}

	_, err = d.Decode([]byte(`{"x":"a"}`))
	verr, ok = AsValidationError(err)
	if !ok || verr.Fields[0].Type != "int_type" {
		t.Fatalf("expected int_type error, got %v", err)
	}
}

func TestDecodeIntegerAcceptsIntegralFloats(t *testing.T) {
	t.Parallel()

	d := integerSchema()
	args, err := d.Decode([]byte(`{"x":5.0}`))
	if err != nil || args["x"] != int64(5) {
		t.Fatalf("5.0 should decode to 5: %v %v", args, err)
	}
	if _, err := d.Decode([]byte(`{"x":5.5}`)); err == nil {
		t.Fatalf("5.5 should not be an integer")
	}
	if _, err := d.Decode([]byte(`{"x":"5"}`)); err == nil {
		t.Fatalf("numeric strings should be rejected")
	}
}

func TestDecodeIntegerRange(t *testing.T) {
	t.Parallel()

	d := integerSchema()
	for _, body := range []string{`{"x":9223372036854775808}`, `{"x":9.3e18}`, `{"x":-9.3e18}`} {
		if args, err := d.Decode([]byte(body)); err == nil {
			t.Fatalf("%s should be out of range, got %v", body, args["x"])
		}
	}
	args, err := d.Decode([]byte(`{"x":-9223372036854775808}`))
	if err != nil || args["x"] != int64(math.MinInt64) {
		t.Fatalf("min int64 should decode exactly: %v %v", args, err)
	}
	args, err = d.Decode([]byte(`{"x":1e18}`))
	if err != nil || args["x"] != int64(1e18) {
		t.Fatalf("1e18 should decode to an integer: %v %v", args, err)
	}
}

func TestDecodeOmitsAbsentAndKeepsExplicitNull(t *testing.T) {
	t.Parallel()

	d := Translate("opt", map[string]any{
		"properties": map[string]any{
			"a": map[string]any{"type": "string"},
			"b": map[string]any{"type": "string", "default": "dflt"},
			"c": map[string]any{"type": "integer"},
		},
	})
	args, err := d.Decode([]byte(`{"a":null,"extra":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, ok := args["a"]; !ok || v != nil {
		t.Fatalf("explicit null should be forwarded, got %#v (present=%v)", v, ok)
	}
	if _, ok := args["b"]; ok {
		t.Fatalf("defaults must not be injected")
	}
	if _, ok := args["c"]; ok {
		t.Fatalf("absent field forwarded")
	}
	if _, ok := args["extra"]; ok {
		t.Fatalf("unknown field forwarded")
	}
}

func TestDecodeRequiredNullIsTypeError(t *testing.T) {
	t.Parallel()

	_, err := integerSchema().Decode([]byte(`{"x":null}`))
	verr, ok := AsValidationError(err)
	if !ok || verr.Fields[0].Type != "int_type" {
		t.Fatalf("expected int_type for null, got %v", err)
	}
}

func TestDecodeStructuralKinds(t *testing.T) {
	t.Parallel()

	d := Translate("all", map[string]any{
		"properties": map[string]any{
			"s": map[string]any{"type": "string"},
			"b": map[string]any{"type": "boolean"},
			"n": map[string]any{"type": "number"},
			"o": map[string]any{"type": "object"},
			"a": map[string]any{"type": "array"},
		},
		"required": []any{"s", "b", "n", "o", "a"},
	})

	args, err := d.Decode([]byte(`{"s":"x","b":true,"n":1.25,"o":{"k":1},"a":[1,"two"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if args["n"] != json.Number("1.25") {
		t.Fatalf("number = %#v", args["n"])
	}
	if args["b"] != true || args["s"] != "x" {
		t.Fatalf("args = %#v", args)
	}
	if len(args["a"].([]any)) != 2 {
		t.Fatalf("array = %#v", args["a"])
	}

	_, err = d.Decode([]byte(`{"s":1,"b":"yes","n":"1","o":[],"a":{}}`))
	verr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	got := map[string]string{}
	for _, f := range verr.Fields {
		got[f.Loc[1]] = f.Type
	}
	want := map[string]string{"s": "string_type", "b": "bool_type", "n": "float_type", "o": "dict_type", "a": "list_type"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("errors = %v, want %v", got, want)
	}
}

func TestDecodeNestedErrorsCarryPath(t *testing.T) {
	t.Parallel()

	d := Translate("create_user", map[string]any{
		"properties": map[string]any{"user": map[string]any{"$ref": "#/definitions/User"}},
		"required":   []any{"user"},
		"definitions": map[string]any{
			"User": map[string]any{
				"properties": map[string]any{"name": map[string]any{"type": "string"}},
				"required":   []any{"name"},
			},
		},
	})
	_, err := d.Decode([]byte(`{"user":{}}`))
	verr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !reflect.DeepEqual(verr.Fields[0].Loc, []string{"body", "user", "name"}) {
		t.Fatalf("loc = %v", verr.Fields[0].Loc)
	}
}

func TestDecodeRejectsNonObjectBodies(t *testing.T) {
	t.Parallel()

	d := integerSchema()
	for _, body := range []string{`[1]`, `"x"`, `{"x":1} {}`, `{`} {
		if _, err := d.Decode([]byte(body)); err == nil {
			t.Fatalf("body %q should be rejected", body)
		}
	}
	if _, err := Translate("empty", map[string]any{"properties": map[string]any{}}).Decode(nil); err != nil {
		t.Fatalf("empty body should decode as {}: %v", err)
	}
}
