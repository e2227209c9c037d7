package toolschema

import "encoding/json"

// Document renders d back into a JSON Schema object suitable for OpenAPI
// documentation. Nested descriptors are written once into defs (keyed by
// descriptor name) and referenced as refBase+name, which keeps recursive
// definitions finite.
func (d *Descriptor) Document(refBase string, defs map[string]any) map[string]any {
	doc := map[string]any{"type": "object", "title": d.Name}
	if d.Description != "" {
		doc["description"] = d.Description
	}
	props := make(map[string]any, len(d.Fields))
	var required []string
	for _, f := range d.Fields {
		props[f.Name] = f.document(refBase, defs)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc["properties"] = props
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func (f Field) document(refBase string, defs map[string]any) map[string]any {
	var doc map[string]any
	if f.Nested != nil {
		if _, seen := defs[f.Nested.Name]; !seen {
			defs[f.Nested.Name] = map[string]any{}
			defs[f.Nested.Name] = f.Nested.Document(refBase, defs)
		}
		doc = map[string]any{"$ref": refBase + f.Nested.Name}
		if f.Nullable || f.Description != "" {
			doc = map[string]any{"allOf": []any{doc}}
		}
	} else {
		typ := any(string(f.Kind))
		if f.Nullable {
			typ = []string{string(f.Kind), "null"}
		}
		doc = map[string]any{"type": typ}
	}
	if f.Description != "" {
		doc["description"] = f.Description
	}
	if f.HasDefault() {
		var def any
		if err := json.Unmarshal(f.Default, &def); err == nil {
			doc["default"] = def
		}
	}
	return doc
}
