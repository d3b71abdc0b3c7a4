package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyloop-backend/internal/middleware"
	"studyloop-backend/internal/models"
)

// fakeQuizStore backs the quiz handlers in tests. Like the real store, it has
// no operation that modifies a stored attempt; the history only grows.
type fakeQuizStore struct {
	quiz     *models.Quiz
	attempts []models.QuizAttempt
	addCalls int
	countErr error
}

func (f *fakeQuizStore) Create(_ context.Context, q *models.Quiz) error {
	q.ID = uuid.New()
	f.quiz = q
	return nil
}

func (f *fakeQuizStore) GetByID(_ context.Context, id uuid.UUID) (*models.Quiz, error) {
	if f.quiz == nil || f.quiz.ID != id {
		return nil, errors.New("no rows in result set")
	}
	return f.quiz, nil
}

func (f *fakeQuizStore) ListByContent(_ context.Context, _ uuid.UUID) ([]*models.Quiz, error) {
	if f.quiz == nil {
		return nil, nil
	}
	return []*models.Quiz{f.quiz}, nil
}

func (f *fakeQuizStore) Delete(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeQuizStore) AddAttempt(_ context.Context, a *models.QuizAttempt) error {
	f.addCalls++
	a.ID = uuid.New()
	a.CompletedAt = time.Now()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeQuizStore) CountAttempts(_ context.Context, _ uuid.UUID) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.attempts), nil
}

func (f *fakeQuizStore) ListAttempts(_ context.Context, _ uuid.UUID) ([]models.QuizAttempt, error) {
	return f.attempts, nil
}

func (f *fakeQuizStore) Stats(_ context.Context, _ uuid.UUID) (*models.QuizStats, error) {
	return &models.QuizStats{}, nil
}

func quizFixture(owner uuid.UUID) (*fakeQuizStore, *models.Quiz) {
	quiz := &models.Quiz{
		ID:           uuid.New(),
		ContentID:    uuid.New(),
		UserID:       owner,
		Title:        "Cell Biology Checkpoint",
		PassingScore: 70,
		Questions: []models.Question{
			{ID: "q1", Question: "What is the smallest unit of life?", Type: "short_answer", CorrectAnswer: "cell", Points: 1},
			{ID: "q2", Question: "Mitochondria produce ATP.", Type: "true_false", Options: []string{"True", "False"}, CorrectAnswer: "True", Points: 3},
		},
	}
	return &fakeQuizStore{quiz: quiz}, quiz
}

func submitAttempt(t *testing.T, h *QuizHandler, quizID, userID uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	r := chi.NewRouter()
	r.Post("/quizzes/{id}/attempts", h.SubmitAttempt)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/quizzes/%s/attempts", quizID), bytes.NewReader(payload))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSubmitAttempt_AppendOnly(t *testing.T) {
	owner := uuid.New()
	store, quiz := quizFixture(owner)
	h := NewQuizHandler(store, nil, nil, nil)

	first := submitAttempt(t, h, quiz.ID, owner, models.RecordAttemptRequest{
		Answers: []models.AttemptAnswer{
			{QuestionID: "q2", Answer: "True", IsCorrect: true},
		},
		TimeSpentSeconds: 30,
	})
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}

	var resp1 map[string]interface{}
	if err := json.NewDecoder(first.Body).Decode(&resp1); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got := resp1["score"].(float64); got != 75 {
		t.Fatalf("expected score 75 (3 of 4 points), got %v", got)
	}
	if got := resp1["total_attempts"].(float64); got != 1 {
		t.Fatalf("expected total_attempts 1, got %v", got)
	}

	second := submitAttempt(t, h, quiz.ID, owner, models.RecordAttemptRequest{
		Answers: []models.AttemptAnswer{
			{QuestionID: "q1", Answer: "cell", IsCorrect: true},
			{QuestionID: "q2", Answer: "True", IsCorrect: true},
		},
		TimeSpentSeconds: 45,
	})
	if second.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", second.Code, second.Body.String())
	}

	var resp2 map[string]interface{}
	if err := json.NewDecoder(second.Body).Decode(&resp2); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got := resp2["score"].(float64); got != 100 {
		t.Fatalf("expected score 100, got %v", got)
	}
	if got := resp2["total_attempts"].(float64); got != 2 {
		t.Fatalf("expected total_attempts 2, got %v", got)
	}

	if store.addCalls != 2 {
		t.Fatalf("expected exactly one insert per submission, got %d", store.addCalls)
	}
	if len(store.attempts) != 2 {
		t.Fatalf("expected 2 stored attempts, got %d", len(store.attempts))
	}
	if store.attempts[0].Score != 75 {
		t.Fatalf("first attempt's score changed after second submission: got %d, want 75", store.attempts[0].Score)
	}
	if store.attempts[0].TimeSpentSeconds != 30 {
		t.Fatalf("first attempt's time changed after second submission: got %d, want 30", store.attempts[0].TimeSpentSeconds)
	}
}

func TestSubmitAttempt_CountFailureOmitsTotal(t *testing.T) {
	owner := uuid.New()
	store, quiz := quizFixture(owner)
	store.countErr = errors.New("connection reset by peer")
	h := NewQuizHandler(store, nil, nil, nil)

	rr := submitAttempt(t, h, quiz.ID, owner, models.RecordAttemptRequest{
		Answers: []models.AttemptAnswer{
			{QuestionID: "q2", Answer: "True", IsCorrect: true},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite count failure, got %d", rr.Code)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, present := resp["total_attempts"]; present {
		t.Fatal("expected total_attempts to be omitted when the count is unavailable")
	}
	if got := resp["score"].(float64); got != 75 {
		t.Fatalf("expected score 75, got %v", got)
	}
}

func TestQuizOwnership_ReadsAsNotFound(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	store, quiz := quizFixture(owner)
	h := NewQuizHandler(store, nil, nil, nil)

	r := chi.NewRouter()
	r.Get("/quizzes/{id}", h.Get)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/quizzes/%s", quiz.ID), nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, stranger))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected another user's quiz to read as 404, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %q", resp.Error.Code)
	}
}
