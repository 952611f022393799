// Package api provides HTTP handlers for KissOn endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/morgen873/kisson/internal/models"
	"github.com/morgen873/kisson/internal/recipe"
	"github.com/morgen873/kisson/internal/session"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// createSessionHandler starts a fresh kiosk session on the intro hero step.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	ctrl := s.sessions.Create()
	slog.Info("Server.createSessionHandler: session created", "session_id", ctrl.ID())
	writeJSONResponse(w, http.StatusCreated, models.Success(ctrl.CurrentView()))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(ctrl.CurrentView()))
}

// actionHandler dispatches one wizard action against a session. Action
// rejections caused by in-flight transitions or submissions come back as
// 409 so the kiosk frontend can simply ignore them.
func (s *Server) actionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.actionHandler: processing action request", "method", r.Method, "path", r.URL.Path)
	ctrl, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var a models.Action
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		slog.Warn("Server.actionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if a.Type == models.ActionSetCustomAnswer && s.filter.Contains(a.Text) {
		slog.Warn("Server.actionHandler: custom answer rejected by word filter", "session_id", ctrl.ID())
		writeJSONResponse(w, http.StatusBadRequest, models.Error("That text can't be used here"))
		return
	}

	view, err := ctrl.Dispatch(a)
	if err != nil {
		status := statusForDispatchError(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Server.actionHandler: dispatch failed", "error", err, "session_id", ctrl.ID(), "action", a.Type)
		} else {
			slog.Debug("Server.actionHandler: action rejected", "error", err, "session_id", ctrl.ID(), "action", a.Type)
		}
		writeJSONResponse(w, status, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(view))
}

// mediaEventHandler receives playback notifications from the kiosk frontend.
// The frontend owns the <video> element; the transition orchestrator only
// learns about load and playback outcomes through this endpoint.
func (s *Server) mediaEventHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	ctrl, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var body struct {
		Event models.MediaEventType `json:"event"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("Server.mediaEventHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	switch body.Event {
	case models.MediaEventReady, models.MediaEventError, models.MediaEventEnded:
	default:
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown media event"))
		return
	}
	ctrl.MediaEvent(body.Event)
	writeJSONResponse(w, http.StatusAccepted, models.Accepted(nil))
}

func (s *Server) getRecipeHandler(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecipe(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(rec))
}

// recipeLabelHandler renders the printable text label with the QR code for
// the recipe's share link.
func (s *Server) recipeLabelHandler(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecipe(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	recipe.RenderLabel(&buf, rec)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Server.recipeLabelHandler: failed to write label", "error", err)
	}
}

// shareRecipeHandler texts the recipe share link to a visitor's phone.
func (s *Server) shareRecipeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if s.sender == nil {
		writeJSONResponse(w, http.StatusNotImplemented, models.Error("SMS sharing is not configured"))
		return
	}
	rec, ok := s.lookupRecipe(w, r)
	if !ok {
		return
	}
	var body struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("Server.shareRecipeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	to := strings.TrimSpace(body.To)
	if to == "" || !strings.HasPrefix(to, "+") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Recipient must be a phone number in +E.164 format"))
		return
	}

	msg := "Your KissOn recipe \"" + rec.Title + "\" is ready: " + rec.QRData
	if err := s.sender.SendMessage(context.Background(), to, msg); err != nil {
		slog.Error("Server.shareRecipeHandler: failed to send share", "error", err, "recipe_id", rec.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send message"))
		return
	}
	slog.Info("Server.shareRecipeHandler: share sent", "recipe_id", rec.ID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Share sent", nil))
}

// videoStatusHandler reports the background video job for a recipe. While a
// poller is still running the job stays in pending.
func (s *Server) videoStatusHandler(w http.ResponseWriter, r *http.Request) {
	if s.videos == nil {
		writeJSONResponse(w, http.StatusNotImplemented, models.Error("Video generation is not configured"))
		return
	}
	id := r.PathValue("id")
	job, err := s.videos.Job(id)
	if err != nil {
		slog.Error("Server.videoStatusHandler: failed to load video job", "error", err, "recipe_id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load video status"))
		return
	}
	if job == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No video job for recipe"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(job))
}

// lookupSession resolves the {id} path value to a live controller, falling
// back to the mirrored answer store for sessions that predate a restart.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	id := r.PathValue("id")
	ctrl, ok := s.sessions.Get(id)
	if !ok {
		ctrl, ok = s.sessions.Recover(id)
	}
	if !ok {
		slog.Debug("Server.lookupSession: session not found", "session_id", id)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return nil, false
	}
	return ctrl, true
}

func (s *Server) lookupRecipe(w http.ResponseWriter, r *http.Request) (*models.RecipeResult, bool) {
	id := r.PathValue("id")
	rec, err := s.st.GetRecipe(id)
	if err != nil {
		slog.Error("Server.lookupRecipe: failed to load recipe", "error", err, "recipe_id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load recipe"))
		return nil, false
	}
	if rec == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Recipe not found"))
		return nil, false
	}
	return rec, true
}

// statusForDispatchError maps controller sentinel errors onto HTTP statuses.
func statusForDispatchError(err error) int {
	switch {
	case errors.Is(err, models.ErrTransitionInFlight),
		errors.Is(err, models.ErrSubmissionPending):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnknownStep),
		errors.Is(err, models.ErrInvalidAction),
		errors.Is(err, models.ErrInvalidOptionIndex),
		errors.Is(err, models.ErrValidationBlocked),
		errors.Is(err, models.ErrNotTimelineStep),
		errors.Is(err, models.ErrCustomAnswerTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
