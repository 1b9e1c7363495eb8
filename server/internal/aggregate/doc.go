// Package aggregate turns stored session summaries into the team dashboard.
//
// Records are raw JSON payloads as clients submitted them, so anything can
// be in there. A payload that is not a JSON object, or whose fatigueEvents
// is present but not an integer, is logged and skipped. A well-formed
// payload counts only if dominantEmotion is one of the seven emotion labels
// and avgScore is an integer; otherwise it is dropped silently.
//
// Day and hour buckets use the persistence timestamp in the configured
// location. Daily averages round half to even. The hourly histogram always
// carries all 24 hours.
package aggregate
