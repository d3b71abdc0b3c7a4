package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyloop-backend/internal/middleware"
	"studyloop-backend/internal/models"
	"studyloop-backend/internal/repository"
	"studyloop-backend/internal/services"
)

type ChatHandler struct {
	contentRepo   *repository.ContentRepo
	geminiService *services.GeminiService
}

func NewChatHandler(contentRepo *repository.ContentRepo, geminiService *services.GeminiService) *ChatHandler {
	return &ChatHandler{
		contentRepo:   contentRepo,
		geminiService: geminiService,
	}
}

func (h *ChatHandler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	contentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid content ID", r))
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	content, err := h.contentRepo.GetByID(r.Context(), contentID)
	if err != nil || content.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Content not found", r))
		return
	}

	if (content.RawText == nil || *content.RawText == "") && (content.Summary == nil || *content.Summary == "") {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Content has no text to chat about yet", r))
		return
	}

	reply, err := h.geminiService.ChatWithContent(r.Context(), content, req.Message, req.History)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("AI_ERROR", "Failed to get AI response", r))
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}
