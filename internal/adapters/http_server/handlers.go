package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"recipe_feedback/internal/app"
	"recipe_feedback/internal/domain"
)

type Handlers struct{ Svc *app.FeedbackService }

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Post("/v1/feedbacks", h.createFeedback)
	s.mux.Get("/v1/feedbacks", h.listFeedbacks)
	s.mux.Get("/v1/feedbacks/{id}", h.getFeedback)
	s.mux.Put("/v1/feedbacks/{id}", h.updateFeedback)
	s.mux.Delete("/v1/feedbacks/{id}", h.deleteFeedback)

	s.mux.Get("/v1/users/{userId}/feedbacks", h.listByAuthor)
	s.mux.Get("/v1/recipes/{recipeId}/feedbacks", h.listBySubject)
	s.mux.Get("/v1/recipes/{recipeId}/rating", h.averageRating)

	s.mux.Post("/v1/recommendations/forward", h.forwardRecent)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	p := problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Errors: fields}
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the service error taxonomy onto transport status codes.
func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeProblem(w, http.StatusBadRequest, "Validation Failed", "one or more fields are invalid", verr.Fields)
		return
	}
	var rerr *domain.ReferenceNotFoundError
	if errors.As(err, &rerr) {
		writeProblem(w, http.StatusBadRequest, "Referenced Entity Not Found", rerr.Error(), nil)
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "feedback not found", nil)
		return
	}
	var derr *domain.DownstreamError
	if errors.As(err, &derr) {
		writeProblem(w, http.StatusServiceUnavailable, "Downstream Unavailable", derr.Error(), nil)
		return
	}
	log.Error().Err(err).Msg("unhandled service error")
	writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error", nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func (h *Handlers) createFeedback(w http.ResponseWriter, r *http.Request) {
	var req app.CreateFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON", nil)
		return
	}
	f, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app.ToResponse(f))
}

func (h *Handlers) listFeedbacks(w http.ResponseWriter, r *http.Request) {
	fs, err := h.Svc.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.ToResponseList(fs))
}

func (h *Handlers) getFeedback(w http.ResponseWriter, r *http.Request) {
	f, err := h.Svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.ToResponse(f))
}

func (h *Handlers) updateFeedback(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON", nil)
		return
	}
	f, err := h.Svc.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.ToResponse(f))
}

func (h *Handlers) deleteFeedback(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) listByAuthor(w http.ResponseWriter, r *http.Request) {
	fs, err := h.Svc.ListByAuthor(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.ToResponseList(fs))
}

func (h *Handlers) listBySubject(w http.ResponseWriter, r *http.Request) {
	fs, err := h.Svc.ListBySubject(r.Context(), chi.URLParam(r, "recipeId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.ToResponseList(fs))
}

func (h *Handlers) averageRating(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Svc.AverageRating(r.Context(), chi.URLParam(r, "recipeId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) forwardRecent(w http.ResponseWriter, r *http.Request) {
	count, err := h.Svc.ForwardRecent(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"forwarded": count})
}
