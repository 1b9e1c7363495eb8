// Package auth resolves the caller's identity for the HTTP and WebSocket
// surfaces.
//
// Authentication itself happens upstream: a proxy authenticates the user
// and forwards trusted user and team headers (X-User-ID and X-Team-ID by
// default, configurable under server.identity). Require rejects requests
// missing a needed header with 400 and stores the Identity in the request
// context for handlers to read with FromContext.
package auth
