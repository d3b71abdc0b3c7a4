package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"google.golang.org/api/option"

	"studyloop-backend/internal/models"
	"studyloop-backend/internal/repository"
)

type GeminiService struct {
	client      *genai.Client
	model       *genai.GenerativeModel
	contentRepo *repository.ContentRepo
	quizRepo    *repository.QuizRepo
	flashRepo   *repository.FlashcardRepo
	jobRepo     *repository.JobRepo
	redis       *redis.Client
	rateChan    chan struct{} // Token bucket
}

func NewGeminiService(
	apiKey string,
	concurrentReqs int,
	contentRepo *repository.ContentRepo,
	quizRepo *repository.QuizRepo,
	flashRepo *repository.FlashcardRepo,
	jobRepo *repository.JobRepo,
	redisClient *redis.Client,
) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:      client,
		model:       model,
		contentRepo: contentRepo,
		quizRepo:    quizRepo,
		flashRepo:   flashRepo,
		jobRepo:     jobRepo,
		redis:       redisClient,
		rateChan:    rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// PublishUpdate sends a WebSocket update via Redis pub/sub
func (s *GeminiService) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	s.redis.Publish(ctx, fmt.Sprintf("user_updates:%s", userID.String()), string(data))
}

// GenerateSummary summarizes a content item's extracted text and stores the
// result on the content row along with a detected subject and tags.
func (s *GeminiService) GenerateSummary(ctx context.Context, job *models.Job, content *models.Content) error {
	if err := s.acquireRate(ctx); err != nil {
		return err
	}
	defer s.releaseRate()

	if content.RawText == nil || strings.TrimSpace(*content.RawText) == "" {
		return fmt.Errorf("content %s has no extracted text to summarize", content.ID)
	}
	sourceText := *content.RawText

	s.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID: job.ID, Step: 1, StepName: "Generating Summary",
			EstimatedSecondsRemaining: 30,
		},
	})

	prompt := buildSummaryPrompt(content.Type, sourceText)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	summaryText := strings.TrimSpace(extractText(resp))
	if summaryText == "" {
		return fmt.Errorf("Gemini returned empty summary")
	}

	// Second call: classify subject and tags from the finished summary
	s.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID: job.ID, Step: 2, StepName: "Classifying",
			EstimatedSecondsRemaining: 5,
		},
	})

	metaPrompt := fmt.Sprintf(`Given this study summary, return ONLY a valid JSON object with these fields:
{"subject": "one academic subject, e.g. Biology", "tags": ["tag1","tag2","tag3","tag4","tag5"]}

Summary:
%s`, summaryText[:min(len(summaryText), 2000)])

	var subject *string
	var tags []string

	metaResp, err := s.model.GenerateContent(ctx, genai.Text(metaPrompt))
	if err == nil {
		var meta struct {
			Subject string   `json:"subject"`
			Tags    []string `json:"tags"`
		}
		if json.Unmarshal([]byte(stripJSONFence(extractText(metaResp))), &meta) == nil {
			if meta.Subject != "" {
				subject = &meta.Subject
			}
			tags = meta.Tags
		}
	}

	return s.contentRepo.UpdateSummary(ctx, content.ID, summaryText, subject, tags)
}

// GenerateFlashcards produces a card set for a content item and persists it.
func (s *GeminiService) GenerateFlashcards(ctx context.Context, job *models.Job, content *models.Content) error {
	if err := s.acquireRate(ctx); err != nil {
		return err
	}
	defer s.releaseRate()

	var config models.GenerateFlashcardsRequest
	json.Unmarshal(job.ConfigJSON, &config)
	if config.NumCards <= 0 {
		config.NumCards = 10
	}

	prompt := buildFlashcardPrompt(config, studySource(content))

	s.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID: job.ID, Step: 1, StepName: "Creating Flashcards",
			EstimatedSecondsRemaining: 15,
		},
	})

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return fmt.Errorf("Gemini API error: %w", err)
	}

	type cardJSON struct {
		Question   string   `json:"question"`
		Answer     string   `json:"answer"`
		Difficulty string   `json:"difficulty"`
		Tags       []string `json:"tags"`
	}

	var raw []cardJSON
	if err := decodeJSONArray(extractText(resp), &raw); err != nil {
		return fmt.Errorf("failed to parse flashcards from Gemini: %w", err)
	}

	var cards []models.Flashcard
	for _, c := range raw {
		if strings.TrimSpace(c.Question) == "" || strings.TrimSpace(c.Answer) == "" {
			continue
		}
		if !models.ValidDifficulty(c.Difficulty) {
			c.Difficulty = "medium"
		}
		cards = append(cards, models.Flashcard{
			Question:   c.Question,
			Answer:     c.Answer,
			Difficulty: c.Difficulty,
			Tags:       c.Tags,
		})
	}

	if len(cards) == 0 {
		return fmt.Errorf("Gemini returned no usable flashcards")
	}

	return s.flashRepo.CreateCards(ctx, content.ID, job.UserID, cards)
}

// GenerateQuiz fills a placeholder quiz with generated questions.
func (s *GeminiService) GenerateQuiz(ctx context.Context, job *models.Job, quiz *models.Quiz, content *models.Content) error {
	if err := s.acquireRate(ctx); err != nil {
		return err
	}
	defer s.releaseRate()

	var config models.GenerateQuizRequest
	json.Unmarshal(job.ConfigJSON, &config)
	if config.NumQuestions <= 0 {
		config.NumQuestions = 5
	}
	if config.Difficulty == "" {
		config.Difficulty = "medium"
	}

	prompt := buildQuizPrompt(config, studySource(content))

	s.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID: job.ID, Step: 1, StepName: "Generating Questions",
			EstimatedSecondsRemaining: 20,
		},
	})

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return fmt.Errorf("Gemini API error: %w", err)
	}

	var questions []models.Question
	if err := decodeJSONArray(extractText(resp), &questions); err != nil {
		return fmt.Errorf("failed to parse quiz questions from Gemini: %w", err)
	}

	valid := validateQuizQuestions(questions)
	if len(valid) == 0 {
		return fmt.Errorf("Gemini returned no usable quiz questions")
	}

	return s.quizRepo.UpdateQuestions(ctx, quiz.ID, valid)
}

// ChatWithContent answers a question grounded in one content item. The prior
// turns are replayed into the model session so follow-ups keep their context.
func (s *GeminiService) ChatWithContent(ctx context.Context, content *models.Content, message string, history []models.ChatMessage) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	session := s.model.StartChat()

	systemTurn := fmt.Sprintf(`You are a study assistant. Answer questions using ONLY the study material below. If the material does not cover the question, say so instead of guessing.

---MATERIAL START---
%s
---MATERIAL END---`, studySource(content))

	session.History = []*genai.Content{
		{Role: "user", Parts: []genai.Part{genai.Text(systemTurn)}},
		{Role: "model", Parts: []genai.Part{genai.Text("Understood. I will answer questions based on this material.")}},
	}

	for _, m := range history {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("Gemini chat error: %w", err)
	}

	reply := strings.TrimSpace(extractText(resp))
	if reply == "" {
		return "", fmt.Errorf("Gemini returned empty chat reply")
	}

	return reply, nil
}

// Helper functions

// studySource prefers the full extracted text, falls back to the summary.
func studySource(content *models.Content) string {
	if content.RawText != nil && strings.TrimSpace(*content.RawText) != "" {
		return *content.RawText
	}
	if content.Summary != nil {
		return *content.Summary
	}
	return ""
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeJSONArray unmarshals a JSON array out of a model response, tolerating
// preamble text around the brackets.
func decodeJSONArray(raw string, v interface{}) error {
	cleaned := stripJSONFence(raw)

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start >= 0 && end > start {
		return json.Unmarshal([]byte(cleaned[start:end+1]), v)
	}

	return fmt.Errorf("no JSON array found in response")
}

func buildSummaryPrompt(contentType, sourceText string) string {
	var b strings.Builder

	b.WriteString("You are an expert educational content analyst. Create a structured study summary of the following material.\n\n")

	switch contentType {
	case "video":
		b.WriteString("The material is a video transcript. Ignore filler speech and reconstruct the lecture's actual structure.\n\n")
	case "article":
		b.WriteString("The material is a web article. Ignore navigation fragments or boilerplate that survived extraction.\n\n")
	}

	sourceWords := len(strings.Fields(sourceText))
	targetWords := sourceWords / 4
	if targetWords < 100 {
		targetWords = 100
	}
	b.WriteString(fmt.Sprintf("Length: approximately %d words.\n", targetWords))
	b.WriteString("Format: markdown with ## section headings and bullet points for key facts. Open with a one-paragraph overview.\n\n")

	b.WriteString("---MATERIAL START---\n")
	b.WriteString(sourceText)
	b.WriteString("\n---MATERIAL END---\n")

	return b.String()
}

func buildFlashcardPrompt(config models.GenerateFlashcardsRequest, sourceText string) string {
	var b strings.Builder

	b.WriteString("You are an expert flashcard creator. Generate high-quality flashcards from the content below.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(fmt.Sprintf("Generate exactly %d flashcards.\n\n", config.NumCards))

	for _, area := range config.Focus {
		b.WriteString(fmt.Sprintf("Priority: cover %s.\n", area))
	}
	if len(config.Focus) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(`Rules:
- Question must be under 15 words
- Answer must be under 60 words and self-contained
- No two cards may test the same concept
- Rate difficulty honestly: "easy" for direct recall, "medium" for applied concepts, "hard" for synthesis

JSON schema per card:
{"question": "string", "answer": "string", "difficulty": "easy"|"medium"|"hard", "tags": ["string"]}
`)

	b.WriteString("\n---CONTENT---\n")
	b.WriteString(sourceText)
	b.WriteString("\n---END---\n")

	return b.String()
}

func buildQuizPrompt(config models.GenerateQuizRequest, sourceText string) string {
	var b strings.Builder

	b.WriteString("You are an expert educational assessor. Generate quiz questions based on the following content.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")

	b.WriteString(fmt.Sprintf("Generate exactly %d questions.\n", config.NumQuestions))
	b.WriteString(fmt.Sprintf("Difficulty: %s\n", config.Difficulty))

	switch config.Difficulty {
	case "easy":
		b.WriteString("Easy = direct recall from text.\n")
	case "medium":
		b.WriteString("Medium = application of concepts.\n")
	case "hard":
		b.WriteString("Hard = analysis, synthesis, or inference beyond what is explicitly stated.\n")
	}

	b.WriteString(`
JSON schema per question:
{"question": "string", "type": "multiple_choice"|"true_false"|"short_answer", "options": ["string"], "correct_answer": "string", "explanation": "string", "points": int}

For multiple_choice: exactly 4 options, correct_answer must match one option verbatim.
For true_false: exactly 2 options ["True", "False"].
For short_answer: empty options array, correct_answer is the expected phrase.
Points: 1 for recall, 2 for application, 3 for analysis.
`)

	b.WriteString("\n---CONTENT---\n")
	b.WriteString(sourceText)
	b.WriteString("\n---END---\n")

	return b.String()
}

func validateQuizQuestions(questions []models.Question) []models.Question {
	var valid []models.Question
	for _, q := range questions {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.CorrectAnswer) == "" {
			continue
		}

		switch q.Type {
		case "multiple_choice":
			if len(q.Options) < 2 {
				continue
			}
			if !containsOption(q.Options, q.CorrectAnswer) {
				continue
			}
		case "true_false":
			q.Options = []string{"True", "False"}
			if !containsOption(q.Options, q.CorrectAnswer) {
				continue
			}
		case "short_answer":
			q.Options = nil
		default:
			continue
		}

		if q.Points < 1 {
			q.Points = 1
		}
		if q.ID == "" {
			q.ID = uuid.New().String()
		}
		valid = append(valid, q)
	}
	return valid
}

func containsOption(options []string, answer string) bool {
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(answer)) {
			return true
		}
	}
	return false
}
