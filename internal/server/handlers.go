package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/electwix/tsql2snow/internal/analytics"
	"github.com/electwix/tsql2snow/internal/cache"
	"github.com/electwix/tsql2snow/internal/chat"
	"github.com/electwix/tsql2snow/internal/lint"
)

// ConvertRequest is the /convert body.
type ConvertRequest struct {
	TSQL string `json:"tsql"`
}

// ConvertResponse is the /convert result.
type ConvertResponse struct {
	SnowflakeSQL string   `json:"snowflake_sql"`
	Using        string   `json:"using"`
	Statements   int      `json:"statements"`
	Warnings     []string `json:"warnings"`
}

// ChatRequest is the /chat body.
type ChatRequest struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if !s.decode(w, r, &req) {
		return
	}
	tsql := strings.TrimSpace(req.TSQL)
	if tsql == "" {
		writeError(w, http.StatusBadRequest, "Provide 'tsql' in the body.")
		return
	}

	key := cache.ComputeKeyWithPrefix("convert", []byte(tsql))
	if resp, ok := s.cache.Get(r.Context(), key); ok {
		w.Header().Set("X-Cache", "hit")
		writeJSON(w, http.StatusOK, resp)
		return
	}

	res := s.converter.ConvertDetailed(tsql)
	resp := ConvertResponse{
		SnowflakeSQL: res.SQL,
		Using:        "rules",
		Statements:   res.Statements,
		Warnings:     []string{},
	}
	for _, f := range lint.Check(res.SQL) {
		resp.Warnings = append(resp.Warnings, f.String())
	}
	s.cache.Set(r.Context(), key, resp, s.plan.CacheTTL)

	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	user := strings.TrimSpace(req.User)
	if user == "" {
		user = "user"
	}
	reply := chat.Answer(req.Message)
	s.logger.Debug("chat", "user", user, "using", reply.Using, "request_id", requestID(r.Context()))
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleAnalyticsMeta(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	meta, err := s.store.Meta(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleAnalyticsRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var q analytics.Query
	if !s.decode(w, r, &q) {
		return
	}
	report, err := s.store.Run(r.Context(), q)
	if errors.Is(err, analytics.ErrInvalidDate) {
		writeError(w, http.StatusBadRequest, "Invalid date format.")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsReload(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.Seed(r.Context(), s.seed); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Samples reloaded."})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Analytics store unavailable.")
		return false
	}
	return true
}

// decode reads a JSON body bounded by MaxBodyBytes. An empty body decodes to
// the zero value.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.plan.MaxBodyBytes)
	err := json.NewDecoder(body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large.")
		return false
	}
	writeError(w, http.StatusBadRequest, "Invalid JSON body.")
	return false
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "request_id", requestID(r.Context()), "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error.")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
