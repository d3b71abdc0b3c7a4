package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyloop-backend/internal/middleware"
	"studyloop-backend/internal/models"
	"studyloop-backend/internal/repository"
)

// quizStore is the persistence surface the quiz handlers need. It carries no
// operation that rewrites an existing attempt: once AddAttempt lands a row,
// nothing in this handler can touch it again.
type quizStore interface {
	Create(ctx context.Context, q *models.Quiz) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	ListByContent(ctx context.Context, contentID uuid.UUID) ([]*models.Quiz, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddAttempt(ctx context.Context, a *models.QuizAttempt) error
	CountAttempts(ctx context.Context, quizID uuid.UUID) (int, error)
	ListAttempts(ctx context.Context, quizID uuid.UUID) ([]models.QuizAttempt, error)
	Stats(ctx context.Context, contentID uuid.UUID) (*models.QuizStats, error)
}

type contentGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Content, error)
}

type QuizHandler struct {
	quizRepo    quizStore
	contentRepo contentGetter
	jobRepo     *repository.JobRepo
	redis       *redis.Client
}

func NewQuizHandler(quizRepo quizStore, contentRepo contentGetter, jobRepo *repository.JobRepo, redisClient *redis.Client) *QuizHandler {
	return &QuizHandler{
		quizRepo:    quizRepo,
		contentRepo: contentRepo,
		jobRepo:     jobRepo,
		redis:       redisClient,
	}
}

// quizView decorates a quiz with its derived read-outs.
type quizView struct {
	*models.Quiz
	TotalPoints          int `json:"total_points"`
	EstimatedTimeMinutes int `json:"estimated_time_minutes"`
}

func quizViewOf(q *models.Quiz) quizView {
	return quizView{
		Quiz:                 q,
		TotalPoints:          q.TotalPoints(),
		EstimatedTimeMinutes: q.EstimatedTimeMinutes(),
	}
}

func (h *QuizHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.ContentID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "content_id is required", r))
		return
	}
	if req.NumQuestions <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "num_questions must be greater than 0", r))
		return
	}
	if req.PassingScore < 0 || req.PassingScore > 100 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "passing_score must be between 0 and 100", r))
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

	title := req.Title
	if title == "" {
		title = "Quiz: " + content.Title
	}
	passingScore := req.PassingScore
	if passingScore == 0 {
		passingScore = 70
	}

	// Placeholder row first; the worker fills in questions.
	quiz := &models.Quiz{
		ContentID:    content.ID,
		UserID:       userID,
		Title:        title,
		TimeLimit:    req.TimeLimit,
		PassingScore: passingScore,
	}

	if err := h.quizRepo.Create(r.Context(), quiz); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create quiz", r))
		return
	}

	configBytes, _ := json.Marshal(req)
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        "quiz-generation",
		ReferenceID: quiz.ID,
		ConfigJSON:  configBytes,
	}

	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	jobBytes, _ := json.Marshal(job)
	h.redis.LPush(r.Context(), "queue:quiz-generation", string(jobBytes))

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.ID,
		"quiz_id": quiz.ID,
	})
}

func (h *QuizHandler) ListByContent(w http.ResponseWriter, r *http.Request) {
	contentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid content ID", r))
		return
	}

	content, err := h.contentRepo.GetByID(r.Context(), contentID)
	if err != nil || content.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Content not found", r))
		return
	}

	quizzes, err := h.quizRepo.ListByContent(r.Context(), contentID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch quizzes", r))
		return
	}

	views := make([]quizView, len(quizzes))
	for i, q := range quizzes {
		views[i] = quizViewOf(q)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": views})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownedQuiz(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, quizViewOf(quiz))
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownedQuiz(w, r)
	if !ok {
		return
	}

	if err := h.quizRepo.Delete(r.Context(), quiz.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete quiz", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Quiz deleted"})
}

// SubmitAttempt grades a submission and appends it to the attempt history.
// The stored score never changes after this point.
func (h *QuizHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownedQuiz(w, r)
	if !ok {
		return
	}

	var req models.RecordAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.TimeSpentSeconds < 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"time_spent_seconds": "Must not be negative"}, r))
		return
	}

	if len(quiz.Questions) == 0 {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Quiz has no questions yet", r))
		return
	}

	graded, score := models.GradeAnswers(quiz.Questions, req.Answers)

	attempt := &models.QuizAttempt{
		QuizID:           quiz.ID,
		UserID:           quiz.UserID,
		Answers:          graded,
		Score:            score,
		TimeSpentSeconds: req.TimeSpentSeconds,
	}

	if err := h.quizRepo.AddAttempt(r.Context(), attempt); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record attempt", r))
		return
	}

	resp := map[string]interface{}{
		"attempt": attempt,
		"score":   score,
		"passed":  score >= quiz.PassingScore,
	}

	// The attempt is already durable at this point; if the count query fails,
	// drop the field rather than report a number we can't stand behind.
	if total, err := h.quizRepo.CountAttempts(r.Context(), quiz.ID); err != nil {
		log.Printf("quiz %s: attempt count unavailable: %v", quiz.ID, err)
	} else {
		resp["total_attempts"] = total
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *QuizHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownedQuiz(w, r)
	if !ok {
		return
	}

	attempts, err := h.quizRepo.ListAttempts(r.Context(), quiz.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch attempts", r))
		return
	}

	resp := map[string]interface{}{
		"attempts":        attempts,
		"average_score":   models.AverageScore(attempts),
		"completion_rate": models.CompletionRate(attempts, quiz.PassingScore),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *QuizHandler) StatsByContent(w http.ResponseWriter, r *http.Request) {
	contentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid content ID", r))
		return
	}

	content, err := h.contentRepo.GetByID(r.Context(), contentID)
	if err != nil || content.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Content not found", r))
		return
	}

	stats, err := h.quizRepo.Stats(r.Context(), contentID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch quiz stats", r))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ownedQuiz resolves {id} to a quiz owned by the caller. Missing and
// not-owned quizzes both read as 404.
func (h *QuizHandler) ownedQuiz(w http.ResponseWriter, r *http.Request) (*models.Quiz, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid quiz ID", r))
		return nil, false
	}

	quiz, err := h.quizRepo.GetByID(r.Context(), id)
	if err != nil || quiz.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Quiz not found", r))
		return nil, false
	}

	return quiz, true
}
