package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Quiz struct {
	ID           uuid.UUID  `json:"id"`
	ContentID    uuid.UUID  `json:"content_id"`
	UserID       uuid.UUID  `json:"user_id"`
	Title        string     `json:"title"`
	Questions    []Question `json:"questions"`
	TimeLimit    *int       `json:"time_limit"` // minutes
	PassingScore int        `json:"passing_score"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Question struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Type          string   `json:"type"` // "multiple_choice" | "true_false" | "short_answer"
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Points        int      `json:"points"`
}

// QuizAttempt is one user's graded submission. Attempts are append-only; the
// score is fixed at submission time and never recomputed, even if the quiz's
// questions change afterwards.
type QuizAttempt struct {
	ID               uuid.UUID       `json:"id"`
	QuizID           uuid.UUID       `json:"quiz_id"`
	UserID           uuid.UUID       `json:"user_id"`
	Answers          []AttemptAnswer `json:"answers"`
	Score            int             `json:"score"` // percent, 0-100
	TimeSpentSeconds int             `json:"time_spent_seconds"`
	CompletedAt      time.Time       `json:"completed_at"`
}

type AttemptAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
	IsCorrect  bool   `json:"is_correct"`
	Points     int    `json:"points"` // points awarded, not the question weight
}

type GenerateQuizRequest struct {
	ContentID    uuid.UUID `json:"content_id"`
	Title        string    `json:"title"`
	NumQuestions int       `json:"num_questions"`
	Difficulty   string    `json:"difficulty"`
	TimeLimit    *int      `json:"time_limit"`
	PassingScore int       `json:"passing_score"`
}

type RecordAttemptRequest struct {
	Answers          []AttemptAnswer `json:"answers"`
	TimeSpentSeconds int             `json:"time_spent_seconds"`
}

type QuizStats struct {
	TotalQuizzes   int     `json:"total_quizzes"`
	TotalAttempts  int     `json:"total_attempts"`
	TotalQuestions int     `json:"total_questions"`
	AvgScore       float64 `json:"avg_score"`
}

// GradeAnswers scores a submission against the quiz's question set. Each
// question is matched to a submitted answer by question ID; an answer flagged
// correct earns that question's point weight. The result is the per-question
// award records and the percentage score rounded to the nearest integer. A
// quiz whose questions carry zero total points grades to 0.
func GradeAnswers(questions []Question, answers []AttemptAnswer) ([]AttemptAnswer, int) {
	byQuestion := make(map[string]AttemptAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	graded := make([]AttemptAnswer, 0, len(questions))
	earned, total := 0, 0
	for _, q := range questions {
		total += q.Points
		rec := AttemptAnswer{QuestionID: q.ID}
		if a, ok := byQuestion[q.ID]; ok {
			rec.Answer = a.Answer
			rec.IsCorrect = a.IsCorrect
			if a.IsCorrect {
				rec.Points = q.Points
				earned += q.Points
			}
		}
		graded = append(graded, rec)
	}

	if total == 0 {
		return graded, 0
	}
	return graded, int(math.Round(float64(earned) / float64(total) * 100))
}

// TotalPoints is the sum of question weights.
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// EstimatedTimeMinutes is a static two-minutes-per-question heuristic.
func (q *Quiz) EstimatedTimeMinutes() int {
	return 2 * len(q.Questions)
}

// AverageScore is the mean attempt score rounded to two decimals, or nil when
// there are no attempts.
func AverageScore(attempts []QuizAttempt) *float64 {
	if len(attempts) == 0 {
		return nil
	}
	sum := 0
	for _, a := range attempts {
		sum += a.Score
	}
	avg := math.Round(float64(sum)/float64(len(attempts))*100) / 100
	return &avg
}

// CompletionRate is the percentage of attempts at or above the passing score.
func CompletionRate(attempts []QuizAttempt, passingScore int) float64 {
	if len(attempts) == 0 {
		return 0
	}
	passed := 0
	for _, a := range attempts {
		if a.Score >= passingScore {
			passed++
		}
	}
	return float64(passed) / float64(len(attempts)) * 100
}
