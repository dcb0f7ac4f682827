package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/olive/internal/chat"
	apperrors "github.com/JonMunkholm/olive/internal/errors"
	"github.com/JonMunkholm/olive/internal/observability"
	"github.com/JonMunkholm/olive/internal/pipeline"
	"github.com/JonMunkholm/olive/internal/rowstore"
)

type errorResponse struct {
	Error string `json:"error"`
}

type questionRequest struct {
	UserInput string `json:"userInput"`
	TableName string `json:"tableName"`
	URL       string `json:"url"`
	Key       string `json:"key"`
	SessionID string `json:"sessionId,omitempty"`
}

func (q questionRequest) target() rowstore.Target {
	return rowstore.Target{Endpoint: q.URL, AccessKey: q.Key, Table: q.TableName}
}

type generateSQLResponse struct {
	SQL string `json:"sql"`
}

func (s *Server) handleGenerateSQL(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.UserInput) == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "userInput is required"})
		return
	}

	q, err := s.pipeline.GenerateSQL(r.Context(), req.target(), req.UserInput)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, generateSQLResponse{SQL: q.RawText})
}

type askResponse struct {
	SessionID string           `json:"sessionId"`
	Turn      chat.Turn        `json:"turn"`
	Answer    *pipeline.Answer `json:"answer,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// handleAsk runs the whole pipeline and records the exchange as one turn of
// the caller's session.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.UserInput) == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "userInput is required"})
		return
	}

	sessionID, log := s.sessions.Get(req.SessionID)
	turnID := log.Begin(req.UserInput)

	answer, err := s.pipeline.Ask(r.Context(), req.target(), req.UserInput)
	if err != nil {
		msg := apperrors.Message(err)
		s.resolve(log, turnID, msg, true)
		turn, _ := log.Turn(turnID)
		respondJSON(w, statusFor(err), askResponse{SessionID: sessionID, Turn: turn, Error: msg})
		return
	}

	s.resolve(log, turnID, answer.SQL, false)
	turn, _ := log.Turn(turnID)
	respondJSON(w, http.StatusOK, askResponse{SessionID: sessionID, Turn: turn, Answer: &answer})
}

func (s *Server) resolve(log *chat.Log, turnID, text string, failed bool) {
	if err := log.Resolve(turnID, text, failed); err != nil {
		s.logger.Warn("resolve chat turn", slog.String("turn_id", turnID), slog.String("error", err.Error()))
	}
}

type sessionResponse struct {
	SessionID string      `json:"sessionId"`
	Turns     []chat.Turn `json:"turns"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log, err := s.sessions.Lookup(id)
	if err != nil {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{SessionID: id, Turns: log.Turns()})
}

type tableResponse struct {
	Table      string         `json:"table"`
	Columns    []string       `json:"columns"`
	Rows       []rowstore.Row `json:"rows"`
	Count      int            `json:"count"`
	DurationMs int64          `json:"durationMs"`
}

// handleTable returns the rows of a table. Credentials arrive in the query
// string, so only the path is ever logged.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	target := rowstore.Target{
		Endpoint:  query.Get("url"),
		AccessKey: query.Get("key"),
		Table:     query.Get("table"),
	}

	var limit *int
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
			return
		}
		n = clampLimit(n)
		limit = &n
	}

	start := time.Now()
	rows, err := s.pipeline.Rows(r.Context(), target, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, tableResponse{
		Table:      target.Table,
		Columns:    columnsOf(rows),
		Rows:       rows,
		Count:      len(rows),
		DurationMs: time.Since(start).Milliseconds(),
	})
}

type connectRequest struct {
	TableName string `json:"tableName"`
	URL       string `json:"url"`
	Key       string `json:"key"`
}

// handleConnect checks that a table is reachable with the given credentials.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	target := rowstore.Target{Endpoint: req.URL, AccessKey: req.Key, Table: req.TableName}

	one := 1
	rows, err := s.pipeline.Rows(r.Context(), target, &one)
	if err != nil {
		if apperrors.Is(err, apperrors.InvalidTarget) {
			s.respondError(w, r, err)
			return
		}
		s.logger.InfoContext(r.Context(), "connect failed",
			slog.String("table", req.TableName),
			slog.String("endpoint", observability.MaskURL(req.URL)),
			slog.String("key", observability.MaskKey(req.Key)),
			slog.String("kind", string(apperrors.KindOf(err))),
		)
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("Error querying table %q. Please check your credentials or table name.", req.TableName),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"table": req.TableName, "columns": columnsOf(rows)})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	target := rowstore.Target{Endpoint: req.URL, AccessKey: req.Key, Table: req.TableName}

	rows, err := s.pipeline.Rows(r.Context(), target, nil)
	if err != nil {
		http.Error(w, apperrors.Message(err), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(req.TableName, time.Now())))

	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	columns := columnsOf(rows)
	if err := csvWriter.Write(columns); err != nil {
		return
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			v, _ := row.Get(col)
			record[i] = formatCSVValue(v)
		}
		if err := csvWriter.Write(record); err != nil {
			return
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("kind", string(apperrors.KindOf(err))),
			slog.Int("status", status),
		)
	}
	respondJSON(w, status, errorResponse{Error: apperrors.Message(err)})
}

func statusFor(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.UnsupportedStatement, apperrors.InvalidTarget:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func columnsOf(rows []rowstore.Row) []string {
	if len(rows) == 0 {
		return []string{}
	}
	return rows[0].Keys()
}

func exportFilename(table string, now time.Time) string {
	var b strings.Builder
	for _, r := range table {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		name = "export"
	}
	return fmt.Sprintf("%s_%s.csv", name, now.Format("2006-01-02"))
}

func formatCSVValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case string:
		return val
	case map[string]any, []any:
		out, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(out)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
