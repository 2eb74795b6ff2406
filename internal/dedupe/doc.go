// Package dedupe provides a TTL-based seen-key cache. The daily syncer
// uses it to avoid re-submitting a conversation digest that has not
// changed since the last sync within the same day.
package dedupe
