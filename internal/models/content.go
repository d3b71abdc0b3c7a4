package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Content struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"`   // "document" | "video" | "article" | "note"
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	Title        string          `json:"title"`
	SourceURL    *string         `json:"source_url"`
	FilePath     *string         `json:"file_path"`
	RawText      *string         `json:"raw_text"`
	Summary      *string         `json:"summary"`
	Subject      *string         `json:"subject"`
	Tags         []string        `json:"tags"`
	MetadataJSON json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
}

// WordCount is the whitespace-token count of the extracted text. Derived on
// read, never stored.
func (c *Content) WordCount() int {
	if c.RawText == nil {
		return 0
	}
	return len(strings.Fields(*c.RawText))
}

// ValidContentType guards the four-value type enum.
func ValidContentType(t string) bool {
	switch t {
	case "document", "video", "article", "note":
		return true
	}
	return false
}

type AddArticleRequest struct {
	URL string `json:"url"`
}

type AddVideoRequest struct {
	URL string `json:"url"`
}

type CreateNoteRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type VideoMetadata struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	ChannelName  string `json:"channel_name"`
	ThumbnailURL string `json:"thumbnail_url"`
	Duration     int    `json:"duration_seconds"`
}

// Chat about a piece of content. The conversation history rides in the
// request; nothing is stored server-side.

type ChatMessage struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

type ChatRequest struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

// ContentStatistics is the dashboard roll-up over one user's collection. A
// user with no content gets the zero value, not an error.
type ContentStatistics struct {
	TotalContent    int     `json:"total_content"`
	TotalWords      int     `json:"total_words"`
	DocumentCount   int     `json:"document_count"`
	VideoCount      int     `json:"video_count"`
	ArticleCount    int     `json:"article_count"`
	NoteCount       int     `json:"note_count"`
	TotalFlashcards int     `json:"total_flashcards"`
	TotalQuizzes    int     `json:"total_quizzes"`
	AvgQuizScore    float64 `json:"avg_quiz_score"`
}
