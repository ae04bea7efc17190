package server

import (
	"encoding/json"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/malbeclabs/budgetquery/pkg/export"
	"github.com/malbeclabs/budgetquery/pkg/feedback"
	"github.com/malbeclabs/budgetquery/pkg/pipeline"
)

const maxRequestBytes = 1 << 20

type InterpretRequest struct {
	Query         string `json:"query"`
	Clarification string `json:"clarification,omitempty"`
}

type ExecuteRequest struct {
	SQL string `json:"sql"`
}

type ExecuteResponse struct {
	Status        string   `json:"status"`
	SQL           string   `json:"sql"`
	CSVData       string   `json:"csv_data"`
	Columns       []string `json:"columns"`
	RowCount      int      `json:"row_count"`
	DownloadToken string   `json:"download_token"`
}

type ObservationsRequest struct {
	Query   string `json:"query"`
	CSVData string `json:"csv_data"`
}

type ObservationsResponse struct {
	Observations string `json:"observations"`
}

type DownloadRequest struct {
	TrueSQL  string `json:"true_sql"`
	SQL      string `json:"sql,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type FeedbackRequest struct {
	Query        string `json:"query"`
	ThumbsUp     *bool  `json:"thumbs_up"`
	FeedbackText string `json:"feedback_text"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) handleInterpret(w http.ResponseWriter, r *http.Request) {
	var req InterpretRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "No query provided")
		return
	}

	interpretation, err := s.cfg.Pipeline.Interpret(r.Context(), req.Query, req.Clarification)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, interpretation)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		s.writeError(w, http.StatusBadRequest, "No sql provided")
		return
	}

	exec, err := s.cfg.Pipeline.Execute(r.Context(), req.SQL)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ExecuteResponse{
		Status:        "success",
		SQL:           exec.SQL,
		CSVData:       exec.CSV,
		Columns:       exec.Result.Columns,
		RowCount:      len(exec.Result.Rows),
		DownloadToken: s.downloads.put(exec),
	})
}

func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	var req ObservationsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CSVData) == "" {
		s.writeError(w, http.StatusBadRequest, "No data provided")
		return
	}

	text, err := s.cfg.Pipeline.Observe(r.Context(), req.Query, req.CSVData)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ObservationsResponse{Observations: text})
}

// handleDownload runs the statement again through the gated path and returns the workbook.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if !s.decode(w, r, &req) {
		return
	}
	sql := req.TrueSQL
	if sql == "" {
		sql = req.SQL
	}

	data, err := s.cfg.Pipeline.Spreadsheet(r.Context(), sql)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeAttachment(w, req.Filename, data)
}

func (s *Server) handleDownloadToken(w http.ResponseWriter, r *http.Request) {
	exec, ok := s.downloads.get(chi.URLParam(r, "token"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "download not found or expired")
		return
	}

	data, err := pipeline.SpreadsheetFor(exec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeAttachment(w, r.URL.Query().Get("filename"), data)
}

func (s *Server) writeAttachment(w http.ResponseWriter, filename string, data []byte) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = export.DefaultFileName
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Error("server: failed to write attachment", "error", err)
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Feedback == nil {
		s.writeError(w, http.StatusServiceUnavailable, "feedback log not configured")
		return
	}
	var req FeedbackRequest
	if !s.decode(w, r, &req) {
		return
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if err := s.cfg.Feedback.Append(feedback.Entry{
		IPAddress:     ip,
		OriginalQuery: req.Query,
		ThumbsUp:      req.ThumbsUp,
		FeedbackText:  req.FeedbackText,
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}
