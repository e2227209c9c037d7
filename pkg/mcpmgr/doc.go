// Package mcpmgr owns the client side of the gateway: how a configured tool
// server is reached and how long its session lives.
//
// # Core entry points
//
//   - ServerConfig (StdioServerConfig / HTTPServerConfig) declares how a tool
//     server is launched or contacted.
//   - Dialer implements Connector on top of the modelcontextprotocol/go-sdk
//     client: it builds the transport, runs the initialize handshake and
//     returns a live Session.
//   - Lifecycle drives one server through UNSTARTED, CONNECTING, READY,
//     CLOSING and CLOSED (or FAILED), releasing the transport exactly once.
//   - ShutdownStack collects release functions as sessions open so a partial
//     startup still unwinds every session that was opened, in reverse order.
package mcpmgr
