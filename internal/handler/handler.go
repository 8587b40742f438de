// Package handler exposes the session-facing API over HTTP as JSON.
// Rendering is the frontend's concern; these handlers only move
// entities in and out of the engine and the stores.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mrab/sscprep/internal/history"
	"github.com/mrab/sscprep/internal/i18n"
	"github.com/mrab/sscprep/internal/model"
	"github.com/mrab/sscprep/internal/oracle"
	"github.com/mrab/sscprep/internal/session"
	"github.com/mrab/sscprep/internal/store"
)

// recentResults is how many latest results the dashboard shows.
const recentResults = 3

// trendLength is how many sessions the performance trend covers.
const trendLength = 7

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	engine   *session.Engine
	history  *history.Store
	store    *store.Store
	validate *validator.Validate

	mu      sync.Mutex
	profile model.UserProfile
}

// New creates a Handler and loads the persisted profile snapshot.
func New(e *session.Engine, h *history.Store, s *store.Store) (*Handler, error) {
	profile, err := s.LoadProfile()
	if err != nil {
		return nil, err
	}
	return &Handler{
		engine:   e,
		history:  h,
		store:    s,
		validate: validator.New(),
		profile:  profile,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/practice/start", h.handleStartPractice)
	r.Post("/api/board/start", h.handleStartBoard)
	r.Get("/api/session", h.handleSession)
	r.Post("/api/session/answer/{questionID}", h.handleAnswer)
	r.Post("/api/session/advance", h.handleAdvance)
	r.Post("/api/session/finish", h.handleFinish)
	r.Post("/api/session/dismiss", h.handleDismiss)
	r.Get("/api/results", h.handleResults)
	r.Get("/api/dashboard", h.handleDashboard)
	r.Get("/api/profile", h.handleGetProfile)
	r.Put("/api/profile", h.handlePutProfile)
	r.Put("/api/profile/goals", h.handlePutGoals)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}

// writeEngineError maps engine/oracle errors onto API responses. The
// taxonomy is deliberate: an empty generation result is a
// distinguishable outcome the caller may choose to surface, not a
// swallowed no-op.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyGeneration):
		respondError(w, http.StatusUnprocessableEntity, "empty_generation", i18n.T(r.Context(), "ErrGenerationFailed"))
	case errors.Is(err, oracle.ErrUnavailable):
		respondError(w, http.StatusBadGateway, "oracle_unavailable", i18n.T(r.Context(), "ErrGenerationFailed"))
	case errors.Is(err, session.ErrSessionActive):
		respondError(w, http.StatusConflict, "session_active", err.Error())
	case errors.Is(err, session.ErrFinishInFlight):
		respondError(w, http.StatusConflict, "finish_in_flight", err.Error())
	case errors.Is(err, session.ErrSessionState):
		respondError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, session.ErrNoSession):
		respondError(w, http.StatusNotFound, "no_session", err.Error())
	default:
		slog.Error("internal error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, "validation", err.Error())
		return false
	}
	return true
}

type startPracticeRequest struct {
	Subject  model.Subject      `json:"subject" validate:"required"`
	Chapter  string             `json:"chapter" validate:"required"`
	Type     model.QuestionKind `json:"type" validate:"required,oneof=MCQ CQ"`
	Count    int                `json:"count" validate:"omitempty,gte=1,lte=50"`
	Language model.Language     `json:"language" validate:"required,oneof=bn en"`
}

func (h *Handler) handleStartPractice(w http.ResponseWriter, r *http.Request) {
	var req startPracticeRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.engine.StartPractice(r.Context(), req.Subject, req.Chapter, req.Type, req.Count, req.Language)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

type startBoardRequest struct {
	Subject  model.Subject  `json:"subject" validate:"required"`
	Language model.Language `json:"language" validate:"required,oneof=bn en"`
}

func (h *Handler) handleStartBoard(w http.ResponseWriter, r *http.Request) {
	var req startBoardRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.engine.StartBoardExam(r.Context(), req.Subject, req.Language)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

type sessionStatus struct {
	Session *model.ExamSession `json:"session"`
	Cursor  int                `json:"cursor"`
	Timer   *timerStatus       `json:"timer,omitempty"`
}

type timerStatus struct {
	Display   string `json:"display"`
	Remaining int    `json:"remainingSeconds"`
	Low       bool   `json:"low"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := h.engine.Session()
	if sess == nil {
		respondError(w, http.StatusNotFound, "no_session", "no session in progress")
		return
	}
	status := sessionStatus{Session: sess, Cursor: h.engine.Cursor()}
	if clock := h.engine.Clock(); clock != nil && sess.State == model.StateActive {
		status.Timer = &timerStatus{
			Display:   clock.Display(),
			Remaining: clock.Remaining(),
			Low:       clock.Low(),
		}
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "questionID")
	var ans model.Answer
	if err := json.NewDecoder(r.Body).Decode(&ans); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid answer body: "+err.Error())
		return
	}
	if err := h.engine.RecordAnswer(questionID, ans); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type advanceRequest struct {
	Delta int `json:"delta" validate:"required"`
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	cursor, err := h.engine.Advance(req.Delta)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"cursor": cursor})
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	results, err := h.engine.Finish(r.Context())
	if err != nil {
		if errors.Is(err, oracle.ErrUnavailable) {
			respondError(w, http.StatusBadGateway, "oracle_unavailable", i18n.T(r.Context(), "ErrGradingFailed"))
			return
		}
		h.writeEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Dismiss(); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	sess := h.engine.Session()
	if sess == nil || !sess.IsCompleted {
		respondError(w, http.StatusNotFound, "no_results", "no completed session")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session": sess,
		"results": h.engine.Results(),
	})
}

type dashboardResponse struct {
	Profile  model.UserProfile      `json:"profile"`
	Progress history.GoalProgress   `json:"progress"`
	Trend    []history.TrendPoint   `json:"trend"`
	Recent   []model.SessionHistory `json:"recent"`
	Sessions int                    `json:"sessions"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	profile := h.profile
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, dashboardResponse{
		Profile:  profile,
		Progress: h.history.GoalProgress(profile.Goals),
		Trend:    h.history.RecentTrend(trendLength),
		Recent:   h.history.Recent(recentResults),
		Sessions: h.history.Len(),
	})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	profile := h.profile
	h.mu.Unlock()
	respondJSON(w, http.StatusOK, profile)
}

type profileRequest struct {
	Name  string          `json:"name"`
	Age   string          `json:"age"`
	Track model.Track     `json:"bibhag" validate:"required"`
	Goals model.UserGoals `json:"goals"`
}

func (h *Handler) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !h.decode(w, r, &req) {
		return
	}
	profile := model.UserProfile{Name: req.Name, Age: req.Age, Track: req.Track, Goals: req.Goals}

	h.mu.Lock()
	h.profile = profile
	h.mu.Unlock()

	if err := h.store.SaveProfile(profile); err != nil {
		respondError(w, http.StatusInternalServerError, "persist", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *Handler) handlePutGoals(w http.ResponseWriter, r *http.Request) {
	var goals model.UserGoals
	if !h.decode(w, r, &goals) {
		return
	}

	h.mu.Lock()
	h.profile.Goals = goals
	profile := h.profile
	h.mu.Unlock()

	if err := h.store.SaveProfile(profile); err != nil {
		respondError(w, http.StatusInternalServerError, "persist", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
