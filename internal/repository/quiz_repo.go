package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyloop-backend/internal/models"
)

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

func (r *QuizRepo) Create(ctx context.Context, q *models.Quiz) error {
	q.ID = uuid.New()
	if q.Questions == nil {
		q.Questions = []models.Question{}
	}
	questionsBytes, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}

	query := `INSERT INTO quizzes (id, content_id, user_id, title, questions_json, time_limit, passing_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		q.ID, q.ContentID, q.UserID, q.Title, questionsBytes, q.TimeLimit, q.PassingScore,
	).Scan(&q.CreatedAt)
}

func (r *QuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q := &models.Quiz{}
	var questionsBytes []byte

	query := `SELECT id, content_id, user_id, title, questions_json, time_limit, passing_score, created_at
		FROM quizzes WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&q.ID, &q.ContentID, &q.UserID, &q.Title, &questionsBytes, &q.TimeLimit, &q.PassingScore, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questionsBytes, &q.Questions); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *QuizRepo) ListByContent(ctx context.Context, contentID uuid.UUID) ([]*models.Quiz, error) {
	query := `SELECT id, content_id, user_id, title, questions_json, time_limit, passing_score, created_at
		FROM quizzes WHERE content_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []*models.Quiz
	for rows.Next() {
		q := &models.Quiz{}
		var questionsBytes []byte
		err := rows.Scan(&q.ID, &q.ContentID, &q.UserID, &q.Title, &questionsBytes, &q.TimeLimit, &q.PassingScore, &q.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(questionsBytes, &q.Questions); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (r *QuizRepo) UpdateQuestions(ctx context.Context, id uuid.UUID, questions []models.Question) error {
	questionsBytes, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, "UPDATE quizzes SET questions_json = $1 WHERE id = $2", questionsBytes, id)
	return err
}

func (r *QuizRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM quizzes WHERE id = $1", id)
	return err
}

// Quiz attempts. Rows are append-only: they are inserted once at submission
// and never updated afterwards.

func (r *QuizRepo) AddAttempt(ctx context.Context, a *models.QuizAttempt) error {
	a.ID = uuid.New()
	a.CompletedAt = time.Now()
	if a.Answers == nil {
		a.Answers = []models.AttemptAnswer{}
	}
	answersBytes, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}

	query := `INSERT INTO quiz_attempts (id, quiz_id, user_id, answers_json, score, time_spent_seconds, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.pool.Exec(ctx, query,
		a.ID, a.QuizID, a.UserID, answersBytes, a.Score, a.TimeSpentSeconds, a.CompletedAt,
	)
	return err
}

func (r *QuizRepo) ListAttempts(ctx context.Context, quizID uuid.UUID) ([]models.QuizAttempt, error) {
	query := `SELECT id, quiz_id, user_id, answers_json, score, time_spent_seconds, completed_at
		FROM quiz_attempts WHERE quiz_id = $1 ORDER BY completed_at DESC`

	rows, err := r.pool.Query(ctx, query, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.QuizAttempt
	for rows.Next() {
		a := models.QuizAttempt{}
		var answersBytes []byte
		err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &answersBytes, &a.Score, &a.TimeSpentSeconds, &a.CompletedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answersBytes, &a.Answers); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *QuizRepo) CountAttempts(ctx context.Context, quizID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1", quizID).Scan(&count)
	return count, err
}

func (r *QuizRepo) Stats(ctx context.Context, contentID uuid.UUID) (*models.QuizStats, error) {
	stats := &models.QuizStats{}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(jsonb_array_length(questions_json)), 0)
		FROM quizzes WHERE content_id = $1
	`, contentID).Scan(&stats.TotalQuizzes, &stats.TotalQuestions)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(ROUND(AVG(a.score)::numeric, 2), 0)
		FROM quiz_attempts a
		JOIN quizzes q ON q.id = a.quiz_id
		WHERE q.content_id = $1
	`, contentID).Scan(&stats.TotalAttempts, &stats.AvgScore)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
