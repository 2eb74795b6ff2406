// Package session coordinates one conversation context between UI intent,
// the gateway client, and the conversation store.
//
// # State machine
//
// A coordinator is Idle or Awaiting. Send/SendStreaming move Idle to
// Awaiting by appending the user message (persisted immediately) and an
// assistant placeholder (in-memory only), then:
//
//   - success finalizes the placeholder and persists it once;
//   - failure discards the placeholder entirely and records the error;
//     the user's message stays so a retry needs no retyping.
//
// A second send while Awaiting is rejected with ErrSendInFlight. Distinct
// contexts (distinct agent ids) are fully independent.
//
// # Streaming
//
// Fragments append to the placeholder in receipt order and notify
// subscribers per chunk; durable storage sees exactly one write for the
// assistant turn, at finalization.
//
// # Subscriptions
//
// Subscribe returns a nudge channel; receivers call Snapshot to re-render.
// Publishing never blocks the exchange path.
package session
