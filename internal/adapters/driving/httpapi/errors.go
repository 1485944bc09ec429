package httpapi

import (
	"net/http"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

var errorMessages = map[string]string{
	domain.CodeValidation:   "Invalid request payload",
	domain.CodeConfig:       "Service is not configured for this request",
	domain.CodeIndexBackend: "Vector index request failed",
	domain.CodeEmbedding:    "Embedding request failed",
	domain.CodeGeneration:   "Answer generation failed",
	domain.CodeTimeout:      "Upstream timeout",
	domain.CodeNotFound:     "Not found",
	domain.CodeInternal:     "Internal server error",
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case domain.CodeValidation, domain.CodeConfig:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeIndexBackend, domain.CodeEmbedding, domain.CodeGeneration:
		return http.StatusBadGateway
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes its error response.
func writeError(w http.ResponseWriter, r *http.Request, route string, err error) {
	code := domain.ErrorCode(err)
	status := StatusFor(code)
	if domain.IsClientError(err) {
		logger.Warn("[%s] %s %s: %v", RequestID(r.Context()), route, code, err)
	} else {
		logger.Error("[%s] %s %s: %v", RequestID(r.Context()), route, code, err)
	}

	body := ErrorBody{Code: code, Message: errorMessages[code], Detail: err.Error()}
	writeJSON(w, status, errorResponse{Error: body})
}

// writeCodedError writes an error response without an underlying error value.
func writeCodedError(w http.ResponseWriter, code, message string) {
	writeJSON(w, StatusFor(code), errorResponse{Error: ErrorBody{Code: code, Message: message}})
}
