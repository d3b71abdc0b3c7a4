package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyloop-backend/internal/models"
)

type ContentRepo struct {
	pool *pgxpool.Pool
}

func NewContentRepo(pool *pgxpool.Pool) *ContentRepo {
	return &ContentRepo{pool: pool}
}

const contentColumns = `id, user_id, type, status, title, source_url, file_path, raw_text, summary, subject, tags, metadata_json, created_at`

func scanContent(row interface{ Scan(...any) error }) (*models.Content, error) {
	c := &models.Content{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.Type, &c.Status, &c.Title, &c.SourceURL, &c.FilePath,
		&c.RawText, &c.Summary, &c.Subject, &c.Tags, &c.MetadataJSON, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ContentRepo) Create(ctx context.Context, c *models.Content) error {
	c.ID = uuid.New()
	if c.MetadataJSON == nil {
		c.MetadataJSON = []byte("{}")
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}

	query := `INSERT INTO content (id, user_id, type, status, title, source_url, file_path, raw_text, tags, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		c.ID, c.UserID, c.Type, c.Status, c.Title, c.SourceURL, c.FilePath,
		c.RawText, c.Tags, c.MetadataJSON,
	).Scan(&c.CreatedAt)
}

func (r *ContentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM content WHERE id = $1`
	return scanContent(r.pool.QueryRow(ctx, query, id))
}

func (r *ContentRepo) ListByUser(ctx context.Context, userID uuid.UUID, search, sortBy string, limit, offset int) ([]*models.Content, int, error) {
	var args []interface{}
	argIdx := 1

	where := fmt.Sprintf("WHERE user_id = $%d", argIdx)
	args = append(args, userID)
	argIdx++

	if search != "" {
		where += fmt.Sprintf(" AND title ILIKE $%d", argIdx)
		args = append(args, "%"+search+"%")
		argIdx++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM content " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy := "created_at DESC"
	switch sortBy {
	case "title":
		orderBy = "title ASC"
	case "oldest":
		orderBy = "created_at ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM content %s ORDER BY %s LIMIT $%d OFFSET $%d",
		contentColumns, where, orderBy, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*models.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}

func (r *ContentRepo) UpdateRawText(ctx context.Context, id uuid.UUID, rawText string) error {
	_, err := r.pool.Exec(ctx, "UPDATE content SET raw_text = $1, status = 'completed' WHERE id = $2", rawText, id)
	return err
}

func (r *ContentRepo) UpdateSummary(ctx context.Context, id uuid.UUID, summary string, subject *string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	_, err := r.pool.Exec(ctx,
		"UPDATE content SET summary = $1, subject = $2, tags = $3 WHERE id = $4",
		summary, subject, tags, id,
	)
	return err
}

func (r *ContentRepo) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	_, err := r.pool.Exec(ctx, `UPDATE content SET title = $2 WHERE id = $1`, id, title)
	return err
}

func (r *ContentRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `UPDATE content SET metadata_json = $2 WHERE id = $1`, id, metadata)
	return err
}

func (r *ContentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE content SET status = $1 WHERE id = $2", status, id)
	return err
}

// Delete removes a content item. Flashcards, quizzes, and attempts under it
// go with it via the schema's cascade rules.
func (r *ContentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM content WHERE id = $1", id)
	return err
}

// Statistics aggregates one user's collection for the dashboard. Word counts
// are whitespace-token counts of the stored text, computed on read so they
// can never drift from the source field. A user with no content gets the
// zero-valued struct.
func (r *ContentRepo) Statistics(ctx context.Context, userID uuid.UUID) (*models.ContentStatistics, error) {
	stats := &models.ContentStatistics{}

	rows, err := r.pool.Query(ctx, "SELECT type, raw_text FROM content WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c := models.Content{}
		if err := rows.Scan(&c.Type, &c.RawText); err != nil {
			return nil, err
		}

		stats.TotalContent++
		stats.TotalWords += c.WordCount()
		switch c.Type {
		case "document":
			stats.DocumentCount++
		case "video":
			stats.VideoCount++
		case "article":
			stats.ArticleCount++
		case "note":
			stats.NoteCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM flashcards WHERE user_id = $1", userID).Scan(&stats.TotalFlashcards)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM quizzes WHERE user_id = $1", userID).Scan(&stats.TotalQuizzes)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		"SELECT COALESCE(ROUND(AVG(score)::numeric, 2), 0) FROM quiz_attempts WHERE user_id = $1",
		userID).Scan(&stats.AvgQuizScore)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
