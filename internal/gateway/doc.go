// Package gateway is the wire-protocol adapter for the remote AI gateway's
// OpenAI-compatible chat completion API.
//
// # Modes
//
// One Client serves both exchange modes:
//
//   - Send: whole-response completion, returns the final text.
//   - SendStream: SSE-framed streaming; Stream.Recv yields one content
//     fragment per frame until io.EOF.
//
// # Wire contract
//
// POST {base}/v1/chat/completions with {model, messages, user, stream?}.
// Requests carry a bearer token, the recipient-agent header, and a channel
// header. When the target agent has a system prompt it is prepended as a
// single system message; the gateway owns all server-side memory.
//
// # Failure taxonomy
//
//   - *GatewayError: HTTP status was not 2xx (status code attached).
//   - *NetworkError: the transport failed, no status available.
//
// Ping is exempt: it swallows everything and reports a boolean.
package gateway
