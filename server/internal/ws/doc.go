// Package ws implements the live monitoring channel of the health mirror
// server, mounted at /ws/monitor.
//
// Each connection is one monitoring session: the hub opens an analyzer in
// the session registry on connect and closes it on disconnect. The caller's
// user and team come from the identity headers of the upgrade request.
//
// Every message in either direction is an envelope:
//
//	{"event": "frame", "data": "data:image/jpeg;base64,..."}
//
// Client events:
//
//	frame         data URL of one webcam frame
//	save_session  session summary object; empty or null saves the
//	              server-side tally of the session instead
//
// Server events:
//
//	analysis_results  one AnalysisResult per frame
//	session_saved     {"status": "success"|"failure", "message": ...}
//	alert             an alert rule fired for this session
//	error             a message could not be handled
//
// Frames of one connection are processed strictly in order on its read
// goroutine. Writes go through a buffered channel drained by a write pump
// that also keeps the connection alive with pings.
package ws
