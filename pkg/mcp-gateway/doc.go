// Package mcpgateway serves the tools of MCP tool servers as plain HTTP
// endpoints. Each configured server gets a Node whose routes are synthesized
// from the server's tool list once its session is ready: one POST /{tool}
// operation per tool, plus GET /openapi.json, GET /docs and GET /health.
//
// Compose builds either a single node served at the root or one node per
// named server mounted under a shared prefix, with a root listing of the
// mounted servers. A shared-secret gate protects tool endpoints, or every
// request when strict.
package mcpgateway
