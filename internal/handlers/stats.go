package handlers

import (
	"net/http"

	"studyloop-backend/internal/middleware"
	"studyloop-backend/internal/repository"
)

type StatsHandler struct {
	contentRepo *repository.ContentRepo
}

func NewStatsHandler(contentRepo *repository.ContentRepo) *StatsHandler {
	return &StatsHandler{contentRepo: contentRepo}
}

// Overview rolls up the caller's whole collection. A brand-new user gets
// zeroes, not an error.
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	stats, err := h.contentRepo.Statistics(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute statistics", r))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
