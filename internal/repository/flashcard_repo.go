package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyloop-backend/internal/models"
)

type FlashcardRepo struct {
	pool *pgxpool.Pool
}

func NewFlashcardRepo(pool *pgxpool.Pool) *FlashcardRepo {
	return &FlashcardRepo{pool: pool}
}

const flashcardColumns = `id, content_id, user_id, question, answer, difficulty, tags, review_count, last_reviewed, created_at`

func scanFlashcard(row interface{ Scan(...any) error }) (*models.Flashcard, error) {
	f := &models.Flashcard{}
	err := row.Scan(
		&f.ID, &f.ContentID, &f.UserID, &f.Question, &f.Answer, &f.Difficulty,
		&f.Tags, &f.ReviewCount, &f.LastReviewed, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *FlashcardRepo) CreateCards(ctx context.Context, contentID, userID uuid.UUID, cards []models.Flashcard) error {
	for i := range cards {
		cards[i].ID = uuid.New()
		cards[i].ContentID = contentID
		cards[i].UserID = userID
		if cards[i].Tags == nil {
			cards[i].Tags = []string{}
		}

		err := r.pool.QueryRow(ctx,
			`INSERT INTO flashcards (id, content_id, user_id, question, answer, difficulty, tags)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
			cards[i].ID, contentID, userID, cards[i].Question, cards[i].Answer,
			cards[i].Difficulty, cards[i].Tags,
		).Scan(&cards[i].CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *FlashcardRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Flashcard, error) {
	query := `SELECT ` + flashcardColumns + ` FROM flashcards WHERE id = $1`
	return scanFlashcard(r.pool.QueryRow(ctx, query, id))
}

// ListByContent applies each set filter field as one condition.
func (r *FlashcardRepo) ListByContent(ctx context.Context, contentID uuid.UUID, filter models.ListFlashcardsFilter) ([]*models.Flashcard, error) {
	args := []interface{}{contentID}
	argIdx := 2

	where := "WHERE content_id = $1"
	if filter.Difficulty != nil {
		where += fmt.Sprintf(" AND difficulty = $%d", argIdx)
		args = append(args, *filter.Difficulty)
		argIdx++
	}
	if len(filter.Tags) > 0 {
		where += fmt.Sprintf(" AND tags && $%d", argIdx)
		args = append(args, filter.Tags)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultDueLimit
	}

	query := fmt.Sprintf("SELECT %s FROM flashcards %s ORDER BY created_at ASC LIMIT $%d",
		flashcardColumns, where, argIdx)
	args = append(args, limit)

	return r.queryCards(ctx, query, args...)
}

// ListDue returns cards eligible for review: never reviewed, or last reviewed
// more than one interval ago. Never-reviewed cards sort first, then the
// stalest reviews, ties broken by fewest reviews.
func (r *FlashcardRepo) ListDue(ctx context.Context, contentID uuid.UUID, limit int) ([]*models.Flashcard, error) {
	if limit <= 0 {
		limit = models.DefaultDueLimit
	}

	cutoff := time.Now().Add(-models.ReviewIntervalFirst)

	query := fmt.Sprintf(`SELECT %s FROM flashcards
		WHERE content_id = $1
		  AND (last_reviewed IS NULL OR last_reviewed < $2)
		ORDER BY last_reviewed ASC NULLS FIRST, review_count ASC
		LIMIT $3`, flashcardColumns)

	return r.queryCards(ctx, query, contentID, cutoff, limit)
}

// MarkReviewed bumps the review count and stamps last_reviewed in a single
// atomic update, returning the new state. pgx.ErrNoRows surfaces when the
// card does not exist.
func (r *FlashcardRepo) MarkReviewed(ctx context.Context, id uuid.UUID) (*models.Flashcard, error) {
	query := `UPDATE flashcards
		SET review_count = review_count + 1, last_reviewed = NOW()
		WHERE id = $1
		RETURNING ` + flashcardColumns

	return scanFlashcard(r.pool.QueryRow(ctx, query, id))
}

func (r *FlashcardRepo) Stats(ctx context.Context, contentID uuid.UUID) (*models.FlashcardStats, error) {
	stats := &models.FlashcardStats{}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(review_count), 0),
		       COUNT(*) FILTER (WHERE difficulty = 'easy'),
		       COUNT(*) FILTER (WHERE difficulty = 'medium'),
		       COUNT(*) FILTER (WHERE difficulty = 'hard')
		FROM flashcards WHERE content_id = $1
	`, contentID).Scan(
		&stats.Total, &stats.TotalReviews, &stats.EasyCount, &stats.MediumCount, &stats.HardCount,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// DueReminderRecipient pairs a verified user with their current due-card
// count, for the reminder scheduler.
type DueReminderRecipient struct {
	UserID   uuid.UUID
	Email    string
	FullName string
	DueCards int
}

func (r *FlashcardRepo) DueCountsByUser(ctx context.Context) ([]DueReminderRecipient, error) {
	cutoff := time.Now().Add(-models.ReviewIntervalFirst)

	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, u.full_name, COUNT(f.id)
		FROM flashcards f
		JOIN users u ON u.id = f.user_id
		WHERE u.is_verified = TRUE
		  AND (f.last_reviewed IS NULL OR f.last_reviewed < $1)
		GROUP BY u.id, u.email, u.full_name
		HAVING COUNT(f.id) > 0
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []DueReminderRecipient
	for rows.Next() {
		var rec DueReminderRecipient
		if err := rows.Scan(&rec.UserID, &rec.Email, &rec.FullName, &rec.DueCards); err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *FlashcardRepo) queryCards(ctx context.Context, query string, args ...interface{}) ([]*models.Flashcard, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*models.Flashcard
	for rows.Next() {
		f, err := scanFlashcard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, f)
	}
	return cards, rows.Err()
}
