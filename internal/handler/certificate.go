package handler

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andres10976/certwatch/internal/model"
	"github.com/andres10976/certwatch/internal/repository"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type certificateStore interface {
	Recent(ctx context.Context, limit int, matchedOnly bool) ([]model.StoredCertificate, error)
	Unprocessed(ctx context.Context, limit int) ([]model.StoredCertificate, error)
	MarkProcessed(ctx context.Context, certIndex int64) error
}

type CertificateHandler struct {
	repo certificateStore
}

func NewCertificateHandler(repo certificateStore) *CertificateHandler {
	return &CertificateHandler{repo: repo}
}

func (h *CertificateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/certificates/recent", h.Recent)
	r.Get("/certificates/unprocessed", h.Unprocessed)
	r.Get("/certificates/export", h.Export)
	r.Post("/certificates/{certIndex}/processed", h.MarkProcessed)
}

func (h *CertificateHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultLimit, maxLimit)
	matchedOnly, _ := strconv.ParseBool(r.URL.Query().Get("matched"))

	certs, err := h.repo.Recent(r.Context(), limit, matchedOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list certificates")
		return
	}
	if certs == nil {
		certs = []model.StoredCertificate{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"certificates": certs,
		"limit":        limit,
		"matched_only": matchedOnly,
	})
}

func (h *CertificateHandler) Unprocessed(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultLimit, maxLimit)

	certs, err := h.repo.Unprocessed(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list unprocessed certificates")
		return
	}
	if certs == nil {
		certs = []model.StoredCertificate{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"certificates": certs,
		"limit":        limit,
	})
}

func (h *CertificateHandler) MarkProcessed(w http.ResponseWriter, r *http.Request) {
	certIndex, err := strconv.ParseInt(chi.URLParam(r, "certIndex"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid certificate index")
		return
	}

	if err := h.repo.MarkProcessed(r.Context(), certIndex); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "certificate not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to mark certificate processed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cert_index": certIndex, "processed": true})
}

// Export streams the most recent matched certificates as CSV.
func (h *CertificateHandler) Export(w http.ResponseWriter, r *http.Request) {
	certs, err := h.repo.Recent(r.Context(), queryLimit(r, maxLimit, maxLimit), true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export certificates")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="matched_certificates.csv"`)

	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write([]string{
		"cert_index", "domains", "serial_number", "issuer",
		"seen", "matched_pattern", "processed", "stored_at",
	})

	for _, c := range certs {
		pattern := ""
		if c.MatchedPattern != nil {
			pattern = *c.MatchedPattern
		}
		writer.Write([]string{
			strconv.FormatInt(c.CertIndex, 10),
			strings.Join(c.Domains, ";"),
			c.SerialNumber,
			c.Issuer,
			strconv.FormatFloat(c.SeenAt, 'f', -1, 64),
			pattern,
			strconv.FormatBool(c.Processed),
			c.StoredAt.UTC().Format(time.RFC3339),
		})
	}
}
