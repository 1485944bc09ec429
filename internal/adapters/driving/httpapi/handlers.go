package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

const serviceName = "sercha-rag"

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type envCheckResponse struct {
	RequestID string `json:"requestId"`
	driving.Diagnostics
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: serviceName})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.ports.Ingest == nil {
		writeError(w, r, "rag_ingest", fmt.Errorf("%w: ingest is not enabled", domain.ErrConfiguration))
		return
	}

	var req domain.IngestRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, "rag_ingest", err)
		return
	}
	logger.Info("[%s][corr:%s] rag_ingest source=%q", RequestID(ctx), CorrelationID(ctx), req.Source)

	resp, err := s.ports.Ingest.IngestText(ctx, req)
	if err != nil {
		writeError(w, r, "rag_ingest", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.AnswerRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, "rag_answer", err)
		return
	}
	logger.Info("[rag-answer] corr=%s query=%q source=%q tenant=%q",
		CorrelationID(ctx), preview(req.Query+req.Question, 80), req.Source, req.TenantID)

	answer, err := s.ports.Answer.Answer(ctx, req, CorrelationID(ctx))
	if err != nil {
		writeError(w, r, "rag_answer", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleEnvCheck(w http.ResponseWriter, r *http.Request) {
	if !s.debug {
		writeCodedError(w, domain.CodeNotFound, "Endpoint not available")
		return
	}
	if s.ports.Diagnostics == nil {
		writeError(w, r, "env_check", fmt.Errorf("%w: diagnostics are not enabled", domain.ErrConfiguration))
		return
	}
	writeJSON(w, http.StatusOK, envCheckResponse{
		RequestID:   RequestID(r.Context()),
		Diagnostics: s.ports.Diagnostics.Check(r.Context()),
	})
}

// decodeJSON reads a single JSON object from the body. Decoding failures
// wrap domain.ErrInvalidInput.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON object", domain.ErrInvalidInput)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response: %v", err)
	}
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
