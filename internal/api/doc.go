// Package api implements the HTTP surface of the bridge.
//
// This package provides:
//   - The controller command endpoint GET /{name}/{value}
//   - JSON endpoints for status, mapping, detected items, targets and logs
//   - Virtual input/output templates for the controller configuration tool
//   - A WebSocket hub that relays status changes and health reports to live clients
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Command responses
//
// The controller only looks at the status code, so command responses are
// short plain-text bodies: "OK", "Recorded" for unknown names, "Read-only"
// for sensors and buttons, "Not Configured" while no Hue bridge is set up,
// and "Seq for N" when a bulk sequence was started.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Graceful Degradation
//
// The server runs without a Hue bridge. Reads keep working and commands
// answer 503 until the bridge is configured.
package api
