// Package daily syncs local conversation history back to the gateway for
// server-side summarization. Conversations touched today are rendered as
// truncated "[role]: content" digests and submitted to the main agent over
// the sync channel. Success is the HEARTBEAT_OK token in the reply text,
// not the HTTP status.
package daily
