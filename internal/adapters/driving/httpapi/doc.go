// Package httpapi exposes the answer and ingest services over HTTP.
//
// Routes are served by gorilla/mux behind a negroni middleware chain
// (panic recovery, access logging, request ids). Errors are returned as
// {"error": {"code", "message", "detail"}} with the status derived from
// domain.ErrorCode.
package httpapi
