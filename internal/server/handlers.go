package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jatinpathak/Truth-Spectrogram/apimodels"
	"github.com/jatinpathak/Truth-Spectrogram/internal/detection"
	"github.com/jatinpathak/Truth-Spectrogram/internal/history"
	"github.com/jatinpathak/Truth-Spectrogram/internal/intake"
	"github.com/jatinpathak/Truth-Spectrogram/internal/session"
)

// maxUploadMemory bounds how much of a multipart upload stays in memory.
const maxUploadMemory = 32 << 20

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.fileFromRequest(r)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, apimodels.ErrorResponse{Error: err.Error()})
		return
	}

	if err := s.session.SelectFile(file); err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, s.session.Snapshot())
}

// fileFromRequest stages the uploaded audio: multipart form uploads carry the
// bytes directly, JSON bodies carry them base64 encoded, optionally behind a
// data URI prefix.
func (s *Server) fileFromRequest(r *http.Request) (intake.SelectedFile, error) {
	defer r.Body.Close()

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return intake.SelectedFile{}, fmt.Errorf("parsing upload: %w", err)
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			return intake.SelectedFile{}, fmt.Errorf("reading audio field: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return intake.SelectedFile{}, fmt.Errorf("reading upload: %w", err)
		}
		return intake.FromBytes(header.Filename, header.Header.Get("Content-Type"), data), nil
	}

	var req apimodels.SelectFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return intake.SelectedFile{}, fmt.Errorf("invalid request: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(intake.TrimDataURIPrefix(req.AudioBase64))
	if err != nil {
		return intake.SelectedFile{}, fmt.Errorf("invalid base64 audio: %w", err)
	}
	return intake.FromBytes(req.FileName, req.MediaType, data), nil
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req apimodels.SetLanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, apimodels.ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	if err := s.session.SetLanguage(req.Language); err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req apimodels.SetCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, apimodels.ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	// The snapshot only ever reports presence, never the key itself.
	s.session.SetCredential(req.APIKey)
	s.respondJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	slog.Info("Handling analyze request")

	result, err := s.session.Analyze(r.Context())
	if err != nil {
		slog.Error("Analysis request failed", "error", err)
		s.respondError(w, err)
		return
	}

	s.recordAnalysis(r.Context(), result)
	s.respondJSON(w, http.StatusOK, s.session.Snapshot())
}

// recordAnalysis appends a successful run to the local history. History is
// bookkeeping; its failures never fail the analysis that already succeeded.
func (s *Server) recordAnalysis(ctx context.Context, result *apimodels.AnalysisResult) {
	if s.store == nil {
		return
	}

	// The result names the file its run dispatched; the session's current
	// selection may have moved on by now.
	_, err := s.store.Insert(ctx, history.Record{
		FileName:        result.FileName,
		Language:        result.Language,
		Classification:  result.Classification,
		ConfidenceScore: result.ConfidenceScore,
		Explanation:     result.Explanation,
	})
	if err != nil {
		slog.Error("Failed to record analysis", "error", err)
	}
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	langs := detection.Languages()
	out := make([]string, len(langs))
	for i, lang := range langs {
		out[i] = string(lang)
	}
	s.respondJSON(w, http.StatusOK, apimodels.LanguagesResponse{Languages: out})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondJSON(w, http.StatusBadRequest, apimodels.ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	// A server running without a store has nothing recorded.
	if s.store == nil {
		s.respondJSON(w, http.StatusOK, []apimodels.HistoryEntry{})
		return
	}

	records, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list history", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, apimodels.ErrorResponse{Error: "could not load history"})
		return
	}

	entries := make([]apimodels.HistoryEntry, len(records))
	for i, rec := range records {
		entries[i] = apimodels.HistoryEntry{
			ID:              rec.ID,
			FileName:        rec.FileName,
			Language:        rec.Language,
			Classification:  rec.Classification,
			ConfidenceScore: rec.ConfidenceScore,
			Explanation:     rec.Explanation,
			CreatedAt:       rec.CreatedAt,
		}
	}
	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.prober.Health(r.Context()); err != nil {
		slog.Error("Voice detection service health check failed", "error", err)
		s.respondJSON(w, http.StatusBadGateway, apimodels.ErrorResponse{Error: "voice detection service is unreachable"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status, resp := errorStatus(err)
	s.respondJSON(w, status, resp)
}

// errorStatus maps workflow errors onto HTTP statuses: refused concurrent
// runs are conflicts, bad inputs are client errors, local IO problems are
// ours, and everything the remote leg causes is a bad gateway.
func errorStatus(err error) (int, apimodels.ErrorResponse) {
	if errors.Is(err, session.ErrAnalysisInFlight) {
		return http.StatusConflict, apimodels.ErrorResponse{Error: err.Error()}
	}

	var failure *session.Failure
	if errors.As(err, &failure) {
		status := http.StatusBadGateway
		switch failure.Kind {
		case session.FailureValidation:
			status = http.StatusBadRequest
		case session.FailureIO:
			status = http.StatusInternalServerError
		}
		return status, apimodels.ErrorResponse{Error: failure.Message, Kind: string(failure.Kind)}
	}

	return http.StatusInternalServerError, apimodels.ErrorResponse{Error: err.Error()}
}
