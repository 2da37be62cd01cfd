// Package device emulates the embedded display that turnlink drives.
//
// The simulator accepts step messages the same two ways the hardware does
// and records everything it receives so tests and the `turnlink device`
// command can inspect it.
//
// # Endpoints
//
//   - GET / (websocket upgrade) - persistent step channel, one JSON message per frame
//   - POST /step - one-shot fallback delivery of a single JSON message
//   - GET /health - liveness plus received and connection counts
//   - GET /last - the most recently received message
package device
