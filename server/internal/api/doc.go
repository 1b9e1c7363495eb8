// Package api implements the HTTP REST API of the health mirror server.
//
// New(cfg, deps) returns an http.Handler that serves:
//
//	GET  /api/v1/dashboard  team aggregate (X-Team-ID)
//	GET  /api/v1/history    caller's latest session summaries (X-User-ID)
//	POST /api/v1/sessions   persist a session summary (X-User-ID, X-Team-ID)
//	GET  /api/v1/alerts     team's firing and recently resolved alerts
//	GET  /api/v1/status     ok|degraded, live sessions, counters
//
// All endpoints respond with Content-Type: application/json, return 405
// for other methods and 400 when a required identity header is missing.
// No external HTTP framework is used.
package api
