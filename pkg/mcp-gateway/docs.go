package mcpgateway

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
)

const (
	openAPIVersion = "3.1.0"
	schemaRefBase  = "#/components/schemas/"
)

// validationErrorSchemas mirror the 422 body the tool handlers write.
var validationErrorSchemas = map[string]any{
	"ValidationError": map[string]any{
		"type":     "object",
		"title":    "ValidationError",
		"required": []string{"loc", "msg", "type"},
		"properties": map[string]any{
			"loc": map[string]any{
				"type":  "array",
				"title": "Location",
				"items": map[string]any{"anyOf": []any{
					map[string]any{"type": "string"},
					map[string]any{"type": "integer"},
				}},
			},
			"msg":  map[string]any{"type": "string", "title": "Message"},
			"type": map[string]any{"type": "string", "title": "Error Type"},
		},
	},
	"HTTPValidationError": map[string]any{
		"type":  "object",
		"title": "HTTPValidationError",
		"properties": map[string]any{
			"detail": map[string]any{
				"type":  "array",
				"title": "Detail",
				"items": map[string]any{"$ref": schemaRefBase + "ValidationError"},
			},
		},
	},
}

// openAPIDocument renders the OpenAPI description of a node's bindings.
// serverURL, when set, becomes the document's single server entry so that
// "try it out" requests from a mounted node's docs reach the mount.
func openAPIDocument(meta Metadata, serverURL string, bindings []*Binding, secured bool) map[string]any {
	schemas := make(map[string]any)
	for name, s := range validationErrorSchemas {
		schemas[name] = s
	}
	paths := make(map[string]any, len(bindings))
	for _, b := range bindings {
		paths["/"+b.Tool] = map[string]any{"post": operation(b, schemas, secured)}
	}

	doc := map[string]any{
		"openapi": openAPIVersion,
		"info": map[string]any{
			"title":       meta.Title,
			"description": meta.Description,
			"version":     meta.Version,
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": schemas,
		},
	}
	if serverURL != "" {
		doc["servers"] = []any{map[string]any{"url": serverURL}}
	}
	if secured {
		doc["components"].(map[string]any)["securitySchemes"] = map[string]any{
			"HTTPBearer": map[string]any{"type": "http", "scheme": "bearer"},
		}
	}
	return doc
}

func operation(b *Binding, schemas map[string]any, secured bool) map[string]any {
	if _, seen := schemas[b.Input.Name]; !seen {
		schemas[b.Input.Name] = map[string]any{}
		schemas[b.Input.Name] = b.Input.Document(schemaRefBase, schemas)
	}
	items := map[string]any{}
	if b.Output != nil {
		if _, seen := schemas[b.Output.Name]; !seen {
			schemas[b.Output.Name] = map[string]any{}
			schemas[b.Output.Name] = b.Output.Document(schemaRefBase, schemas)
		}
		items = map[string]any{"anyOf": []any{
			map[string]any{"$ref": schemaRefBase + b.Output.Name},
			map[string]any{},
		}}
	}

	op := map[string]any{
		"summary":     b.Summary,
		"operationId": b.OperationID,
		"requestBody": map[string]any{
			"required": hasRequired(b),
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"$ref": schemaRefBase + b.Input.Name},
				},
			},
		},
		"responses": map[string]any{
			"200": map[string]any{
				"description": "Successful Response",
				"content": map[string]any{
					"application/json": map[string]any{
						"schema": map[string]any{"type": "array", "title": "Response", "items": items},
					},
				},
			},
			"422": map[string]any{
				"description": "Validation Error",
				"content": map[string]any{
					"application/json": map[string]any{
						"schema": map[string]any{"$ref": schemaRefBase + "HTTPValidationError"},
					},
				},
			},
		},
	}
	if b.Description != "" {
		op["description"] = b.Description
	}
	if secured {
		op["security"] = []any{map[string]any{"HTTPBearer": []string{}}}
	}
	return op
}

func hasRequired(b *Binding) bool {
	for _, f := range b.Input.Fields {
		if f.Required {
			return true
		}
	}
	return false
}

// rootDescription appends a docs link per mounted server to description.
func rootDescription(description string, mounts []mountInfo) string {
	var sb strings.Builder
	sb.WriteString(description)
	if len(mounts) > 0 {
		sb.WriteString("\n\n### Tool servers\n")
		for _, m := range mounts {
			fmt.Fprintf(&sb, "- [%s](%s/docs)\n", m.Name, m.Path)
		}
	}
	return sb.String()
}

var swaggerPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html>
<head>
<link type="text/css" rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
<title>{{.Title}} - Swagger UI</title>
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
const ui = SwaggerUIBundle({
  url: {{.SpecURL}},
  dom_id: "#swagger-ui",
  layout: "BaseLayout",
  deepLinking: true,
  persistAuthorization: true,
  presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
})
</script>
</body>
</html>
`))

func serveSwaggerUI(w http.ResponseWriter, title, specURL string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = swaggerPage.Execute(w, struct{ Title, SpecURL string }{title, specURL})
}
