package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/negroni"
)

// Tracing headers read from requests and echoed on responses.
const (
	HeaderRequestID     = "X-Request-Id"
	HeaderCorrelationID = "X-Correlation-Id"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	correlationIDKey
)

// RequestID returns the request id stored by the request id middleware.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// CorrelationID returns the correlation id, which defaults to the request id.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return RequestID(ctx)
}

// requestIDs resolves the ids for an incoming request. A caller supplied
// correlation id is also used as the request id.
func requestIDs(r *http.Request) (requestID, correlationID string) {
	correlationID = strings.TrimSpace(r.Header.Get(HeaderCorrelationID))
	requestID = correlationID
	if requestID == "" {
		requestID = strings.TrimSpace(r.Header.Get(HeaderRequestID))
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if correlationID == "" {
		correlationID = requestID
	}
	return requestID, correlationID
}

// requestIDMiddleware stores the ids in the request context and sets them
// on the response before the handler writes.
func requestIDMiddleware() negroni.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		requestID, correlationID := requestIDs(r)
		rw.Header().Set(HeaderRequestID, requestID)
		rw.Header().Set(HeaderCorrelationID, correlationID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = context.WithValue(ctx, correlationIDKey, correlationID)
		next(rw, r.WithContext(ctx))
	}
}
