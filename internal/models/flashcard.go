package models

import (
	"time"

	"github.com/google/uuid"
)

// Review intervals for the spaced-repetition ladder. Only the first step is
// wired into the due query today; the later rungs are reserved for graduated
// scheduling.
const (
	ReviewIntervalFirst  = 24 * time.Hour
	ReviewIntervalSecond = 3 * 24 * time.Hour
	ReviewIntervalThird  = 7 * 24 * time.Hour
)

// DefaultDueLimit caps a due-review queue when the caller does not supply one.
const DefaultDueLimit = 20

type Flashcard struct {
	ID           uuid.UUID  `json:"id"`
	ContentID    uuid.UUID  `json:"content_id"`
	UserID       uuid.UUID  `json:"user_id"`
	Question     string     `json:"question"`
	Answer       string     `json:"answer"`
	Difficulty   string     `json:"difficulty"` // "easy" | "medium" | "hard"
	Tags         []string   `json:"tags"`
	ReviewCount  int        `json:"review_count"`
	LastReviewed *time.Time `json:"last_reviewed"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ListFlashcardsFilter narrows a flashcard listing. Nil/empty fields are
// ignored; each set field is applied as one named condition.
type ListFlashcardsFilter struct {
	Difficulty *string
	Tags       []string
	Limit      int
}

type GenerateFlashcardsRequest struct {
	ContentID uuid.UUID `json:"content_id"`
	NumCards  int       `json:"num_cards"`
	Focus     []string  `json:"focus"`
}

type FlashcardStats struct {
	Total        int `json:"total"`
	TotalReviews int `json:"total_reviews"`
	EasyCount    int `json:"easy_count"`
	MediumCount  int `json:"medium_count"`
	HardCount    int `json:"hard_count"`
}

func difficultyMultiplier(difficulty string) float64 {
	switch difficulty {
	case "hard":
		return 2
	case "medium":
		return 1.5
	default:
		return 1
	}
}

// MasteryScore is review_count × 10 × difficulty multiplier (easy 1,
// medium 1.5, hard 2). Recomputed on every read, never persisted.
func (f *Flashcard) MasteryScore() float64 {
	return float64(f.ReviewCount) * 10 * difficultyMultiplier(f.Difficulty)
}

// MasteryLevel buckets MasteryScore into a qualitative band.
func (f *Flashcard) MasteryLevel() string {
	score := f.MasteryScore()
	switch {
	case score >= 100:
		return "mastered"
	case score >= 50:
		return "proficient"
	case score >= 20:
		return "learning"
	default:
		return "new"
	}
}

// IsDue reports whether the card is eligible for review at the given time:
// never reviewed, or last reviewed at least one full interval ago.
func (f *Flashcard) IsDue(now time.Time) bool {
	if f.LastReviewed == nil {
		return true
	}
	return now.Sub(*f.LastReviewed) >= ReviewIntervalFirst
}

// ValidDifficulty guards the three-level difficulty enum.
func ValidDifficulty(d string) bool {
	return d == "easy" || d == "medium" || d == "hard"
}
