package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"studyloop-backend/internal/models"
	"studyloop-backend/internal/services"
)

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestHandleServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"email": "Invalid"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "already exists"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "missing"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "nope"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "denied"}, http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Error.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestErrorResp_CarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")

	resp := errorResp("NOT_FOUND", "gone", req)
	if resp.Error.RequestID != "req-abc-123" {
		t.Fatalf("expected request ID to be echoed, got %q", resp.Error.RequestID)
	}
}

func TestAuthHandler_RequestValidation(t *testing.T) {
	h := NewAuthHandler(nil)

	tests := []struct {
		name      string
		call      func(w http.ResponseWriter, r *http.Request)
		target    string
		body      string
		wantField string
	}{
		{"refresh without token", h.Refresh, "/api/v1/auth/refresh", `{}`, "refresh_token"},
		{"logout without token", h.Logout, "/api/v1/auth/logout", `{"refresh_token": ""}`, "refresh_token"},
		{"resend with blank email", h.ResendVerification, "/api/v1/auth/resend-verification", `{"email": "   "}`, "email"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.target, strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			tc.call(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Error.Fields[tc.wantField] == "" {
				t.Fatalf("expected a field error for %q, got %v", tc.wantField, resp.Error.Fields)
			}
		})
	}
}

func TestVerifyEmail_MissingToken(t *testing.T) {
	h := NewAuthHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email", nil)
	rr := httptest.NewRecorder()

	h.VerifyEmail(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestFlashcardGenerate_Validation(t *testing.T) {
	h := NewFlashcardHandler(nil, nil, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing content_id", `{"num_cards": 10}`},
		{"zero cards", `{"content_id": "7b6d6c1e-5f4a-4b5e-9d3f-0a1b2c3d4e5f", "num_cards": 0}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/flashcards/generate", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			h.Generate(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Error.Code != "VALIDATION_ERROR" {
				t.Fatalf("expected VALIDATION_ERROR, got %q", resp.Error.Code)
			}
		})
	}
}

func TestQuizGenerate_Validation(t *testing.T) {
	h := NewQuizHandler(nil, nil, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing content_id", `{"num_questions": 5}`},
		{"zero questions", `{"content_id": "7b6d6c1e-5f4a-4b5e-9d3f-0a1b2c3d4e5f", "num_questions": 0}`},
		{"passing score above 100", `{"content_id": "7b6d6c1e-5f4a-4b5e-9d3f-0a1b2c3d4e5f", "num_questions": 5, "passing_score": 150}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/generate", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			h.Generate(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestCreateNote_FieldErrors(t *testing.T) {
	h := NewContentHandler(nil, nil, nil, "")

	body, _ := json.Marshal(map[string]string{"title": "", "text": "  "})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/note", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.CreateNote(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Error.Fields["title"] == "" || resp.Error.Fields["text"] == "" {
		t.Fatalf("expected field errors for title and text, got %v", resp.Error.Fields)
	}
}

func TestAddVideo_RejectsNonYouTubeURL(t *testing.T) {
	h := NewContentHandler(nil, nil, nil, "")

	body, _ := json.Marshal(map[string]string{"url": "https://vimeo.com/12345678"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/video", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.AddVideo(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAddArticle_RejectsNonHTTPURL(t *testing.T) {
	h := NewContentHandler(nil, nil, nil, "")

	body, _ := json.Marshal(map[string]string{"url": "ftp://example.com/doc"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/article", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.AddArticle(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestReview_InvalidID(t *testing.T) {
	h := NewFlashcardHandler(nil, nil, nil, nil)

	r := chi.NewRouter()
	r.Post("/flashcards/{id}/review", h.Review)

	req := httptest.NewRequest(http.MethodPost, "/flashcards/not-a-uuid/review", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestChatAskQuestion_InvalidContentID(t *testing.T) {
	h := NewChatHandler(nil, nil)

	r := chi.NewRouter()
	r.Post("/content/{id}/chat", h.AskQuestion)

	req := httptest.NewRequest(http.MethodPost, "/content/nope/chat", strings.NewReader(`{"message":"hi"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestQuizView_DerivedFields(t *testing.T) {
	quiz := &models.Quiz{
		Questions: []models.Question{
			{ID: "a", Points: 1},
			{ID: "b", Points: 3},
			{ID: "c", Points: 2},
		},
	}

	view := quizViewOf(quiz)
	if view.TotalPoints != 6 {
		t.Fatalf("expected total points 6, got %d", view.TotalPoints)
	}
	if view.EstimatedTimeMinutes != 6 {
		t.Fatalf("expected estimated time 6 minutes, got %d", view.EstimatedTimeMinutes)
	}
}

func TestFlashcardView_DerivedMastery(t *testing.T) {
	card := &models.Flashcard{Difficulty: "hard", ReviewCount: 5}

	view := viewOf(card)
	if view.MasteryScore != 100 {
		t.Fatalf("expected mastery score 100, got %v", view.MasteryScore)
	}
	if view.MasteryLevel != "mastered" {
		t.Fatalf("expected level mastered, got %q", view.MasteryLevel)
	}
}
