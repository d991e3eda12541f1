package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/itemtally/itemtally/internal/core"
	"github.com/itemtally/itemtally/internal/core/store"
	apperrors "github.com/itemtally/itemtally/internal/errors"
)

// ResumeReader is the read side of a resume backend.
type ResumeReader interface {
	LoadResume(ctx context.Context, collection string) (core.ResumeRecord, bool, error)
	ListResume(ctx context.Context, q store.ResumeQuery) ([]core.ResumeRecord, error)
}

// ResumeListResponse is the body of GET /resume.
type ResumeListResponse struct {
	Count   int                 `json:"count"`
	Records []core.ResumeRecord `json:"records"`
}

// ResumeHandlers exposes stored resume pages read-only.
type ResumeHandlers struct {
	Reader ResumeReader
}

// List serves every record, or those under ?prefix=.
func (h *ResumeHandlers) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Reader == nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewServiceUnavailableError("resume store is not configured"))
		return
	}

	query := store.ResumeQuery{All: true}
	if prefix := strings.TrimSpace(r.URL.Query().Get("prefix")); prefix != "" {
		query = store.ResumeQuery{Prefix: prefix}
	}

	records, err := h.Reader.ListResume(r.Context(), query)
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to list resume pages"))
		return
	}
	writeJSON(w, http.StatusOK, ResumeListResponse{Count: len(records), Records: records})
}

// Get serves the record for one collection.
func (h *ResumeHandlers) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Reader == nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewServiceUnavailableError("resume store is not configured"))
		return
	}

	collection := strings.TrimSpace(chi.URLParam(r, "collection"))
	if collection == "" {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewInvalidInputError("collection is required"))
		return
	}

	record, ok, err := h.Reader.LoadResume(r.Context(), collection)
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to load resume page"))
		return
	}
	if !ok {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewNotFoundError("no resume page for "+collection))
		return
	}
	writeJSON(w, http.StatusOK, record)
}
