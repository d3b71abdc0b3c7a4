package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"studyloop-backend/internal/middleware"
	"studyloop-backend/internal/models"
	"studyloop-backend/internal/repository"
)

type FlashcardHandler struct {
	flashRepo   *repository.FlashcardRepo
	contentRepo *repository.ContentRepo
	jobRepo     *repository.JobRepo
	redis       *redis.Client
}

func NewFlashcardHandler(flashRepo *repository.FlashcardRepo, contentRepo *repository.ContentRepo, jobRepo *repository.JobRepo, redisClient *redis.Client) *FlashcardHandler {
	return &FlashcardHandler{
		flashRepo:   flashRepo,
		contentRepo: contentRepo,
		jobRepo:     jobRepo,
		redis:       redisClient,
	}
}

// flashcardView decorates a card with its mastery read-outs. Mastery is
// derived from the review history on every read, never persisted.
type flashcardView struct {
	*models.Flashcard
	MasteryScore float64 `json:"mastery_score"`
	MasteryLevel string  `json:"mastery_level"`
}

func viewOf(card *models.Flashcard) flashcardView {
	return flashcardView{
		Flashcard:    card,
		MasteryScore: card.MasteryScore(),
		MasteryLevel: card.MasteryLevel(),
	}
}

func viewsOf(cards []*models.Flashcard) []flashcardView {
	views := make([]flashcardView, len(cards))
	for i, c := range cards {
		views[i] = viewOf(c)
	}
	return views
}

func (h *FlashcardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateFlashcardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.ContentID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "content_id is required", r))
		return
	}
	if req.NumCards <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "num_cards must be greater than 0", r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	content, err := h.contentRepo.GetByID(r.Context(), req.ContentID)
	if err != nil || content.UserID != userID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Content not found", r))
		return
	}

	if content.Status != "completed" {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Content is still being processed", r))
		return
	}

	configBytes, _ := json.Marshal(req)
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        "flashcard-generation",
		ReferenceID: content.ID,
		ConfigJSON:  configBytes,
	}

	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	jobBytes, _ := json.Marshal(job)
	h.redis.LPush(r.Context(), "queue:flashcard-generation", string(jobBytes))

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": job.ID})
}

func (h *FlashcardHandler) ListByContent(w http.ResponseWriter, r *http.Request) {
	content, ok := h.ownedContentParam(w, r)
	if !ok {
		return
	}

	filter := models.ListFlashcardsFilter{}
	if d := r.URL.Query().Get("difficulty"); d != "" {
		if !models.ValidDifficulty(d) {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "difficulty must be easy, medium or hard", r))
			return
		}
		filter.Difficulty = &d
	}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Tags = append(filter.Tags, t)
			}
		}
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		filter.Limit = v
	}

	cards, err := h.flashRepo.ListByContent(r.Context(), content.ID, filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch flashcards", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"flashcards": viewsOf(cards)})
}

// ListDue returns the cards waiting for review, oldest review first with
// never-reviewed cards ahead of everything.
func (h *FlashcardHandler) ListDue(w http.ResponseWriter, r *http.Request) {
	content, ok := h.ownedContentParam(w, r)
	if !ok {
		return
	}

	limit := models.DefaultDueLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	cards, err := h.flashRepo.ListDue(r.Context(), content.ID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch due flashcards", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"flashcards": viewsOf(cards)})
}

func (h *FlashcardHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid flashcard ID", r))
		return
	}

	card, err := h.flashRepo.GetByID(r.Context(), id)
	if err != nil || card.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Flashcard not found", r))
		return
	}

	updated, err := h.flashRepo.MarkReviewed(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Flashcard not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record review", r))
		return
	}

	writeJSON(w, http.StatusOK, viewOf(updated))
}

func (h *FlashcardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	content, ok := h.ownedContentParam(w, r)
	if !ok {
		return
	}

	stats, err := h.flashRepo.Stats(r.Context(), content.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch flashcard stats", r))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *FlashcardHandler) ownedContentParam(w http.ResponseWriter, r *http.Request) (*models.Content, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid content ID", r))
		return nil, false
	}

	// Missing and not-owned rows both read as 404.
	content, err := h.contentRepo.GetByID(r.Context(), id)
	if err != nil || content.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Content not found", r))
		return nil, false
	}

	return content, true
}
