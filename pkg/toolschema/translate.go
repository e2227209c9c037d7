package toolschema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Kind is the primitive kind of a descriptor field.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindNumber  Kind = "number"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Field describes one top-level property of a tool schema.
type Field struct {
	Name        string
	Kind        Kind
	Required    bool
	Nullable    bool
	Default     json.RawMessage
	Description string
	// Ref is the original "$ref" of the property, if any. Nested is set when
	// the reference points at a local definition.
	Ref    string
	Nested *Descriptor
}

// HasDefault reports whether the schema declared a default for the field.
func (f Field) HasDefault() bool { return len(f.Default) > 0 }

// Descriptor is a validator for one JSON object shape.
type Descriptor struct {
	// Name identifies the shape; nested descriptors are named after their
	// owning descriptor and definition so names stay unique per tool.
	Name        string
	Description string
	Fields      []Field
	// Malformed is set when the source fragment could not be parsed or had no
	// "properties"; the descriptor then has zero fields.
	Malformed bool

	index map[string]int
}

// Field looks up a field by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	if d == nil {
		return Field{}, false
	}
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

// Translate converts a tool schema fragment into a descriptor named name.
// The fragment may be a *jsonschema.Schema, raw JSON, or any value that
// marshals to a JSON Schema object (the go-sdk hands client-side schemas over
// as map[string]any). It never fails: unparseable input yields a zero-field
// descriptor with Malformed set.
func Translate(name string, fragment any) *Descriptor {
	root, err := parseSchema(fragment)
	if err != nil || root == nil || root.Properties == nil {
		return newDescriptor(name, root, nil, true)
	}
	t := &translator{
		prefix: name,
		defs:   collectDefinitions(root),
		memo:   make(map[string]*Descriptor),
		names:  map[string]bool{name: true},
	}
	return t.object(name, root)
}

// TranslateOutput converts an optional output schema. A nil fragment means
// the tool's output is untyped and nil is returned.
func TranslateOutput(name string, fragment any) *Descriptor {
	if absent(fragment) {
		return nil
	}
	return Translate(name, fragment)
}

func absent(fragment any) bool {
	switch v := fragment.(type) {
	case nil:
		return true
	case *jsonschema.Schema:
		return v == nil
	case json.RawMessage:
		trimmed := strings.TrimSpace(string(v))
		return trimmed == "" || trimmed == "null"
	case map[string]any:
		return v == nil
	}
	return false
}

type translator struct {
	prefix string
	defs   map[string]*jsonschema.Schema
	memo   map[string]*Descriptor
	names  map[string]bool
}

func (t *translator) uniqueName(name string) string {
	candidate := name
	for i := 2; t.names[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d", name, i)
	}
	t.names[candidate] = true
	return candidate
}

// ComponentName maps s onto the characters OpenAPI allows in component
// names, replacing everything else with '_'.
func ComponentName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

func (t *translator) object(name string, s *jsonschema.Schema) *Descriptor {
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	names := make([]string, 0, len(s.Properties))
	for prop := range s.Properties {
		names = append(names, prop)
	}
	sort.Strings(names)

	d := newDescriptor(name, s, nil, false)
	fields := make([]Field, 0, len(names))
	for _, prop := range names {
		fields = append(fields, t.field(prop, s.Properties[prop], required[prop]))
	}
	d.setFields(fields)
	return d
}

func (t *translator) field(name string, s *jsonschema.Schema, required bool) Field {
	f := Field{Name: name, Required: required, Kind: KindString}
	if s == nil {
		return f
	}
	f.Description = s.Description
	f.Default = defaultOf(s)

	kind, ref, nullable := kindOf(s)
	f.Nullable = nullable
	if kind != "" {
		f.Kind = kind
	}
	if ref != "" {
		f.Ref = ref
		def := t.definition(ref)
		if kind == "" {
			defKind, defNullable := t.refKind(def)
			f.Kind = defKind
			f.Nullable = f.Nullable || defNullable
		}
		if f.Kind == KindObject {
			// Objects without properties pass through unvalidated.
			if nested := t.resolve(ref); nested != nil && !nested.Malformed {
				f.Nested = nested
			}
		}
		if f.Description == "" && def != nil {
			f.Description = def.Description
		}
	}
	return f
}

// definition returns the local definition ref points at, or nil.
func (t *translator) definition(ref string) *jsonschema.Schema {
	name, ok := definitionName(ref)
	if !ok {
		return nil
	}
	return t.defs[name]
}

// refKind is the kind of a referenced definition. Chains of references are
// followed a few levels deep; unknown targets are treated as objects.
func (t *translator) refKind(def *jsonschema.Schema) (Kind, bool) {
	nullable := false
	for depth := 0; def != nil && depth < 8; depth++ {
		kind, ref, null := kindOf(def)
		nullable = nullable || null
		switch {
		case kind != "":
			return kind, nullable
		case def.Properties != nil || def.AdditionalProperties != nil:
			return KindObject, nullable
		case len(def.Enum) > 0 || def.Const != nil:
			return KindString, nullable
		case ref == "":
			return KindString, nullable
		}
		def = t.definition(ref)
	}
	return KindObject, nullable
}

// resolve returns the descriptor for a local definition reference, building
// it on first use. Recursive definitions resolve to the same descriptor.
func (t *translator) resolve(ref string) *Descriptor {
	if d, ok := t.memo[ref]; ok {
		return d
	}
	name, _ := definitionName(ref)
	def := t.definition(ref)
	if def == nil {
		return nil
	}
	qualified := t.uniqueName(t.prefix + "__" + ComponentName(name))
	if def.Properties == nil {
		d := newDescriptor(qualified, def, nil, true)
		t.memo[ref] = d
		return d
	}
	d := newDescriptor(qualified, def, nil, false)
	t.memo[ref] = d
	built := t.object(qualified, def)
	d.Fields, d.index = built.Fields, built.index
	return d
}

func newDescriptor(name string, s *jsonschema.Schema, fields []Field, malformed bool) *Descriptor {
	d := &Descriptor{Name: name, Malformed: malformed}
	if s != nil {
		d.Description = s.Description
	}
	d.setFields(fields)
	return d
}

func (d *Descriptor) setFields(fields []Field) {
	d.Fields = fields
	d.index = make(map[string]int, len(fields))
	for i, f := range fields {
		d.index[f.Name] = i
	}
}

// kindOf maps a schema's declared type to a Kind, also reporting the local
// reference and nullability. "anyOf" unions such as [T, null] are unwrapped.
// An empty Kind means the schema declared no usable type; unrecognized type
// names degrade to string.
func kindOf(s *jsonschema.Schema) (kind Kind, ref string, nullable bool) {
	ref = s.Ref
	types := s.Types
	if s.Type != "" {
		types = []string{s.Type}
	}
	if len(types) == 0 {
		for _, branch := range s.AnyOf {
			switch {
			case branch == nil:
			case branch.Type != "":
				types = append(types, branch.Type)
			case len(branch.Types) > 0:
				types = append(types, branch.Types...)
			case branch.Ref != "" && ref == "":
				ref = branch.Ref
			}
		}
	}
	for _, typ := range types {
		if typ == "null" {
			nullable = true
			continue
		}
		if kind == "" {
			kind = kindFromName(typ)
		}
	}
	return kind, ref, nullable
}

func kindFromName(name string) Kind {
	switch Kind(name) {
	case KindString, KindInteger, KindBoolean, KindNumber, KindObject, KindArray:
		return Kind(name)
	default:
		return KindString
	}
}

func defaultOf(s *jsonschema.Schema) json.RawMessage {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var probe struct {
		Default json.RawMessage `json:"default"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || len(probe.Default) == 0 {
		return nil
	}
	return probe.Default
}

func collectDefinitions(root *jsonschema.Schema) map[string]*jsonschema.Schema {
	defs := make(map[string]*jsonschema.Schema, len(root.Definitions)+len(root.Defs))
	for name, def := range root.Definitions {
		defs[name] = def
	}
	for name, def := range root.Defs {
		defs[name] = def
	}
	return defs
}

func definitionName(ref string) (string, bool) {
	for _, prefix := range []string{"#/definitions/", "#/$defs/"} {
		if strings.HasPrefix(ref, prefix) {
			name := strings.TrimPrefix(ref, prefix)
			return name, name != ""
		}
	}
	return "", false
}

func parseSchema(fragment any) (*jsonschema.Schema, error) {
	var data []byte
	switch v := fragment.(type) {
	case nil:
		return nil, fmt.Errorf("toolschema: nil schema")
	case *jsonschema.Schema:
		if v == nil {
			return nil, fmt.Errorf("toolschema: nil schema")
		}
		return v, nil
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("toolschema: encode schema: %w", err)
		}
		data = encoded
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("toolschema: decode schema: %w", err)
	}
	return &s, nil
}
