package models

import (
	"testing"

	"github.com/google/uuid"
)

func twoQuestionQuiz() []Question {
	return []Question{
		{ID: "q1", Question: "1+1?", Type: "multiple_choice", Options: []string{"1", "2"}, CorrectAnswer: "2", Points: 1},
		{ID: "q2", Question: "Capital of France?", Type: "short_answer", CorrectAnswer: "Paris", Points: 3},
	}
}

func TestGradeAnswers_WeightedPartialCredit(t *testing.T) {
	// Correct only on the 3-point question: round(3/4*100) = 75.
	answers := []AttemptAnswer{
		{QuestionID: "q1", Answer: "1", IsCorrect: false},
		{QuestionID: "q2", Answer: "Paris", IsCorrect: true},
	}

	graded, score := GradeAnswers(twoQuestionQuiz(), answers)
	if score != 75 {
		t.Errorf("score = %d, want 75", score)
	}
	if len(graded) != 2 {
		t.Fatalf("graded %d answers, want 2", len(graded))
	}
	if graded[0].Points != 0 {
		t.Errorf("incorrect answer awarded %d points", graded[0].Points)
	}
	if graded[1].Points != 3 {
		t.Errorf("correct answer awarded %d points, want 3", graded[1].Points)
	}
}

func TestGradeAnswers_AllCorrect(t *testing.T) {
	answers := []AttemptAnswer{
		{QuestionID: "q1", Answer: "2", IsCorrect: true},
		{QuestionID: "q2", Answer: "Paris", IsCorrect: true},
	}

	_, score := GradeAnswers(twoQuestionQuiz(), answers)
	if score != 100 {
		t.Errorf("score = %d, want 100", score)
	}
}

func TestGradeAnswers_ZeroTotalPoints(t *testing.T) {
	questions := []Question{
		{ID: "q1", Question: "Free question", Type: "true_false", CorrectAnswer: "true", Points: 0},
	}
	answers := []AttemptAnswer{{QuestionID: "q1", Answer: "true", IsCorrect: true}}

	_, score := GradeAnswers(questions, answers)
	if score != 0 {
		t.Errorf("zero-point quiz scored %d, want 0", score)
	}
}

func TestGradeAnswers_MissingAnswersEarnNothing(t *testing.T) {
	graded, score := GradeAnswers(twoQuestionQuiz(), nil)
	if score != 0 {
		t.Errorf("score = %d, want 0", score)
	}
	for _, g := range graded {
		if g.IsCorrect || g.Points != 0 {
			t.Errorf("unanswered question graded as %+v", g)
		}
	}
}

func TestGradeAnswers_IgnoresUnknownQuestionIDs(t *testing.T) {
	answers := []AttemptAnswer{
		{QuestionID: "ghost", Answer: "42", IsCorrect: true},
	}
	_, score := GradeAnswers(twoQuestionQuiz(), answers)
	if score != 0 {
		t.Errorf("answer to unknown question scored %d, want 0", score)
	}
}

func TestGradeAnswers_LaterGradingLeavesEarlierRecordsAlone(t *testing.T) {
	questions := twoQuestionQuiz()

	firstGraded, firstScore := GradeAnswers(questions, []AttemptAnswer{
		{QuestionID: "q2", Answer: "Paris", IsCorrect: true},
	})
	history := []QuizAttempt{{Answers: firstGraded, Score: firstScore}}

	secondGraded, secondScore := GradeAnswers(questions, []AttemptAnswer{
		{QuestionID: "q1", Answer: "2", IsCorrect: true},
		{QuestionID: "q2", Answer: "Paris", IsCorrect: true},
	})
	history = append(history, QuizAttempt{Answers: secondGraded, Score: secondScore})

	if len(history) != 2 {
		t.Fatalf("history grew to %d, want 2", len(history))
	}
	if history[0].Score != 75 {
		t.Errorf("earlier attempt's score = %d after regrading, want 75", history[0].Score)
	}
	if history[1].Score != 100 {
		t.Errorf("later attempt's score = %d, want 100", history[1].Score)
	}
	if got := history[0].Answers[1].Points; got != 3 {
		t.Errorf("earlier attempt's award records changed: q2 points = %d, want 3", got)
	}
	if history[0].Answers[0].IsCorrect {
		t.Error("earlier attempt's q1 flipped to correct after a later grading")
	}
}

func TestQuizDerivedFields(t *testing.T) {
	q := &Quiz{ID: uuid.New(), Questions: twoQuestionQuiz()}

	if got := q.TotalPoints(); got != 4 {
		t.Errorf("TotalPoints() = %d, want 4", got)
	}
	if got := q.EstimatedTimeMinutes(); got != 4 {
		t.Errorf("EstimatedTimeMinutes() = %d, want 4", got)
	}
}

func TestAverageScore(t *testing.T) {
	if AverageScore(nil) != nil {
		t.Error("AverageScore(nil) should be nil")
	}

	attempts := []QuizAttempt{{Score: 75}, {Score: 80}, {Score: 100}}
	got := AverageScore(attempts)
	if got == nil || *got != 85 {
		t.Errorf("AverageScore = %v, want 85", got)
	}

	// Rounded to two decimals.
	attempts = []QuizAttempt{{Score: 50}, {Score: 50}, {Score: 51}}
	got = AverageScore(attempts)
	if got == nil || *got != 50.33 {
		t.Errorf("AverageScore = %v, want 50.33", got)
	}
}

func TestCompletionRate(t *testing.T) {
	attempts := []QuizAttempt{{Score: 90}, {Score: 70}, {Score: 40}, {Score: 70}}

	if got := CompletionRate(attempts, 70); got != 75 {
		t.Errorf("CompletionRate = %v, want 75", got)
	}
	if got := CompletionRate(nil, 70); got != 0 {
		t.Errorf("CompletionRate(no attempts) = %v, want 0", got)
	}
}
