package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/callsense/callsense/apimodels"
	"github.com/callsense/callsense/internal/orchestrator"
	"github.com/callsense/callsense/internal/transcribe"
)

func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req apimodels.TextAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	result, err := s.orchestrator.Analyze(r.Context(), apimodels.AnalyzeRequest{
		Transcript: req.Text,
		SessionID:  req.SessionID,
	})
	if err != nil {
		s.writeAnalyzeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnalyzeAudio(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid upload: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		http.Error(w, "upload dir unavailable", http.StatusInternalServerError)
		return
	}
	path := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s", sessionID, filepath.Base(header.Filename)))
	dst, err := os.Create(path)
	if err != nil {
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	dst.Close()

	result, err := s.orchestrator.Analyze(r.Context(), apimodels.AnalyzeRequest{
		AudioFile: path,
		SessionID: sessionID,
	})
	if err != nil {
		s.writeAnalyzeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, err := s.store.GetCall(r.Context(), sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to load call", "session_id", sessionID, "error", err)
		http.Error(w, "failed to load call", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		slog.Error("Failed to compute stats", "error", err)
		http.Error(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAnalyzeError maps boundary failures onto HTTP statuses. Everything
// else the orchestrator degrades internally, so a plain error here is
// unexpected.
func (s *Server) writeAnalyzeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrNoInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, transcribe.ErrAudioNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		slog.Error("Analysis request failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
