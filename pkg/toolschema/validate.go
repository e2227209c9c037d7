package toolschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// FieldError reports one validation failure. Loc is the path to the failing
// value, starting with "body".
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError collects every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(f.Loc, "."), f.Msg))
	}
	return "toolschema: validation failed: " + strings.Join(parts, "; ")
}

// FieldNames returns the names of the failing leaf fields.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if len(f.Loc) > 0 {
			names = append(names, f.Loc[len(f.Loc)-1])
		}
	}
	return names
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// Decode validates a raw JSON request body against d and returns the cleaned
// argument map. Only fields the caller supplied are present in the result, so
// "absent" and "explicit null" stay distinguishable. Fields unknown to the
// descriptor are dropped. An empty body is treated as an empty object.
func (d *Descriptor) Decode(body []byte) (map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, invalidJSON(err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, invalidJSON(fmt.Errorf("unexpected data after top-level value"))
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &ValidationError{Fields: []FieldError{{
			Loc:  []string{"body"},
			Msg:  "Input should be a valid dictionary or object",
			Type: "model_type",
		}}}
	}
	var errs []FieldError
	out := d.validate(obj, []string{"body"}, &errs)
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	return out, nil
}

func (d *Descriptor) validate(obj map[string]any, loc []string, errs *[]FieldError) map[string]any {
	out := make(map[string]any, len(obj))
	if d == nil {
		return out
	}
	for _, f := range d.Fields {
		path := appendLoc(loc, f.Name)
		value, present := obj[f.Name]
		if !present {
			if f.Required {
				*errs = append(*errs, FieldError{Loc: path, Msg: "Field required", Type: "missing"})
			}
			continue
		}
		if value == nil {
			if f.Required && !f.Nullable {
				*errs = append(*errs, typeError(path, f.Kind))
				continue
			}
			out[f.Name] = nil
			continue
		}
		coerced, ok := coerce(f, value, path, errs)
		if ok {
			out[f.Name] = coerced
		}
	}
	return out
}

func coerce(f Field, value any, path []string, errs *[]FieldError) (any, bool) {
	switch f.Kind {
	case KindString:
		if s, ok := value.(string); ok {
			return s, true
		}
	case KindBoolean:
		if b, ok := value.(bool); ok {
			return b, true
		}
	case KindInteger:
		if n, ok := value.(json.Number); ok {
			if i, ok := integerOf(n); ok {
				return i, true
			}
		}
	case KindNumber:
		if n, ok := value.(json.Number); ok {
			if _, err := n.Float64(); err == nil {
				return n, true
			}
		}
	case KindArray:
		if a, ok := value.([]any); ok {
			return a, true
		}
	case KindObject:
		if m, ok := value.(map[string]any); ok {
			if f.Nested == nil {
				return m, true
			}
			before := len(*errs)
			nested := f.Nested.validate(m, path, errs)
			return nested, len(*errs) == before
		}
	}
	*errs = append(*errs, typeError(path, f.Kind))
	return nil, false
}

func integerOf(n json.Number) (int64, bool) {
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	fl, err := n.Float64()
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if err != nil || fl != math.Trunc(fl) || fl >= 1<<63 || fl < -(1<<63) {
		return 0, false
	}
	return int64(fl), true
}

func typeError(path []string, kind Kind) FieldError {
	switch kind {
	case KindInteger:
		return FieldError{Loc: path, Msg: "Input should be a valid integer", Type: "int_type"}
	case KindNumber:
		return FieldError{Loc: path, Msg: "Input should be a valid number", Type: "float_type"}
	case KindBoolean:
		return FieldError{Loc: path, Msg: "Input should be a valid boolean", Type: "bool_type"}
	case KindObject:
		return FieldError{Loc: path, Msg: "Input should be a valid dictionary", Type: "dict_type"}
	case KindArray:
		return FieldError{Loc: path, Msg: "Input should be a valid list", Type: "list_type"}
	default:
		return FieldError{Loc: path, Msg: "Input should be a valid string", Type: "string_type"}
	}
}

func invalidJSON(err error) *ValidationError {
	return &ValidationError{Fields: []FieldError{{
		Loc:  []string{"body"},
		Msg:  "JSON decode error: " + err.Error(),
		Type: "json_invalid",
	}}}
}

func appendLoc(loc []string, name string) []string {
	out := make([]string, len(loc), len(loc)+1)
	copy(out, loc)
	return append(out, name)
}
