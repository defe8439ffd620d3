package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andres10976/certwatch/internal/repository"
	"github.com/andres10976/certwatch/internal/service/feed"
)

type sessionView interface {
	ID() string
	State() feed.State
	Stats() feed.Stats
}

type totalsStore interface {
	Count(ctx context.Context) (repository.Totals, error)
}

type MonitorHandler struct {
	session sessionView
	repo    totalsStore
}

func NewMonitorHandler(session sessionView, repo totalsStore) *MonitorHandler {
	return &MonitorHandler{session: session, repo: repo}
}

func (h *MonitorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/monitor/status", h.Status)
}

func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	totals, err := h.repo.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get monitor status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": h.session.ID(),
		"state":      h.session.State(),
		"stats":      h.session.Stats(),
		"store":      totals,
	})
}
