// Package shipper writes finished session summaries to the store without
// holding up the WebSocket connection that produced them.
//
// Ship is non-blocking: jobs go into a bounded channel, and when it is full
// the oldest job is evicted so the newest summaries survive a slow
// database. Run saves jobs one at a time, retrying failures with truncated
// exponential backoff (200ms up to 10s, ±25% jitter, five attempts). Each
// job's Done callback receives the final outcome, which the live channel
// relays to the client as session_saved.
//
// On shutdown Run makes one last attempt for every queued job.
package shipper
