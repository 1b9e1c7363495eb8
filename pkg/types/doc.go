// Package types defines the JSON shapes shared by the analyzer, the live
// WebSocket channel, the persistence layer and the dashboard API.
//
// Two wire quirks are preserved for existing clients: health scores and
// session averages are either an integer or the string "N/A" (see Score),
// and the hourly fatigue histogram is keyed by hour as a JSON object.
package types
