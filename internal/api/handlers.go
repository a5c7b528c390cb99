// Package api provides HTTP handlers for the interview service endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/Crisp/internal/dashboard"
	"github.com/BTreeMap/Crisp/internal/extract"
	"github.com/BTreeMap/Crisp/internal/models"
	"github.com/BTreeMap/Crisp/internal/session"
)

// sessionPayload is the response body for session-mutating endpoints: the
// updated candidate plus the live countdown value.
type sessionPayload struct {
	Candidate     models.Candidate `json:"candidate"`
	TimeRemaining int              `json:"time_remaining"`
}

type answerRequest struct {
	Text string `json:"text"`
}

type tabRequest struct {
	Tab string `json:"tab"`
}

func (s *Server) payload(c models.Candidate) sessionPayload {
	return sessionPayload{Candidate: c, TimeRemaining: s.engine.Remaining(c.ID)}
}

// writeSessionError maps engine errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrCandidateNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Candidate not found"))
	case errors.Is(err, session.ErrEvaluationInFlight):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case errors.Is(err, session.ErrSessionCompleted):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	default:
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("service healthy", nil))
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.AppState()
	if err != nil {
		slog.Error("Server.stateHandler: failed to load state", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load application state"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.startSessionHandler: processing resume upload")
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		slog.Warn("Server.startSessionHandler: failed to parse multipart form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid multipart upload"))
		return
	}
	file, header, err := r.FormFile("resume")
	if err != nil {
		slog.Warn("Server.startSessionHandler: missing resume file", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required file field: resume"))
		return
	}
	defer file.Close()

	if !extract.Supported(header.Filename) {
		slog.Warn("Server.startSessionHandler: unsupported file type", "filename", header.Filename)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(extract.ErrUnsupportedFileType.Error()))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to read upload", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read upload"))
		return
	}
	text, err := extract.Text(header.Filename, data)
	if err != nil {
		slog.Warn("Server.startSessionHandler: extraction failed", "filename", header.Filename, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	cand, err := s.engine.StartSession(r.Context(), text)
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to start session", "error", err)
		writeSessionError(w, err)
		return
	}
	slog.Info("Server.startSessionHandler: session started", "candidate_id", cand.ID)
	writeJSONResponse(w, http.StatusCreated, models.Success(s.payload(cand)))
}

func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := chi.URLParam(r, "id")
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.answerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	cand, err := s.engine.Submit(r.Context(), id, req.Text)
	if err != nil {
		slog.Warn("Server.answerHandler: submit failed", "candidate_id", id, "error", err)
		writeSessionError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.payload(cand)))
}

func (s *Server) pauseHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.Pause(id); err != nil {
		slog.Warn("Server.pauseHandler: pause failed", "candidate_id", id, "error", err)
		writeSessionError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session paused",
		map[string]int{"time_remaining": s.engine.Remaining(id)}))
}

func (s *Server) resumeHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cand, err := s.engine.Resume(r.Context(), id)
	if err != nil {
		slog.Warn("Server.resumeHandler: resume failed", "candidate_id", id, "error", err)
		writeSessionError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.payload(cand)))
}

func (s *Server) endHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cand, err := s.engine.EndSession(r.Context(), id)
	if err != nil {
		slog.Warn("Server.endHandler: end failed", "candidate_id", id, "error", err)
		writeSessionError(w, err)
		return
	}
	slog.Info("Server.endHandler: session ended", "candidate_id", id)
	writeJSONResponse(w, http.StatusOK, models.Success(s.payload(cand)))
}

func (s *Server) unfinishedHandler(w http.ResponseWriter, r *http.Request) {
	cand, err := s.store.FindUnfinished()
	if err != nil {
		if errors.Is(err, models.ErrCandidateNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("No unfinished session"))
			return
		}
		slog.Error("Server.unfinishedHandler: lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(*cand))
}

// matchUnfinished confirms the path id refers to the stored unfinished
// session before the engine acts on it.
func (s *Server) matchUnfinished(w http.ResponseWriter, id string) bool {
	cand, err := s.store.FindUnfinished()
	if err != nil {
		if errors.Is(err, models.ErrCandidateNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("No unfinished session"))
			return false
		}
		slog.Error("Server.matchUnfinished: lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return false
	}
	if cand.ID != id {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No unfinished session with that id"))
		return false
	}
	return true
}

func (s *Server) resumeSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.matchUnfinished(w, id) {
		return
	}
	cand, err := s.engine.ResumeUnfinished(r.Context())
	if err != nil {
		slog.Error("Server.resumeSessionHandler: resume failed", "candidate_id", id, "error", err)
		writeSessionError(w, err)
		return
	}
	slog.Info("Server.resumeSessionHandler: session restored", "candidate_id", cand.ID)
	writeJSONResponse(w, http.StatusOK, models.Success(s.payload(cand)))
}

func (s *Server) discardHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.matchUnfinished(w, id) {
		return
	}
	if err := s.engine.DiscardUnfinished(r.Context()); err != nil {
		slog.Error("Server.discardHandler: discard failed", "candidate_id", id, "error", err)
		writeSessionError(w, err)
		return
	}
	slog.Info("Server.discardHandler: session discarded", "candidate_id", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session discarded", nil))
}

func (s *Server) listCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	completed, err := s.store.ListCompleted()
	if err != nil {
		slog.Error("Server.listCandidatesHandler: failed to list candidates", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list candidates"))
		return
	}
	q := r.URL.Query()
	filtered := dashboard.Filter(completed, q.Get("search"))
	sorted := dashboard.Sort(filtered, dashboard.ParseSortKey(q.Get("sort")), dashboard.ParseOrder(q.Get("order")))
	writeJSONResponse(w, http.StatusOK, models.Success(sorted))
}

func (s *Server) getCandidateHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cand, err := s.store.GetCandidate(id)
	if err != nil {
		if errors.Is(err, models.ErrCandidateNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Candidate not found"))
			return
		}
		slog.Error("Server.getCandidateHandler: lookup failed", "candidate_id", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(*cand))
}

func (s *Server) setTabHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req tabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.setTabHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := s.store.SetActiveTab(models.TabType(req.Tab)); err != nil {
		if errors.Is(err, models.ErrInvalidTab) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.setTabHandler: failed to set tab", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Active tab updated", nil))
}
