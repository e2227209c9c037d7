// Package toolschema turns the JSON Schema fragments advertised by MCP tools
// into validator descriptors: a flat, ordered list of fields with a primitive
// kind, a required flag, an optional default, and an optional nested
// descriptor for referenced definitions. A single generic routine
// (Descriptor.Decode) interprets any descriptor, so the gateway never needs to
// synthesize Go types at runtime.
//
// Translation is deliberately forgiving. Unknown kinds degrade to strings and
// fragments without "properties" produce a zero-field descriptor, so one
// malformed tool cannot prevent the rest of a server's tools from being
// exposed.
package toolschema
