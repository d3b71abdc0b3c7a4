package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	urlpkg "net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyloop-backend/internal/models"
	"studyloop-backend/internal/repository"
	"studyloop-backend/internal/services"
)

type Pool struct {
	redis       *redis.Client
	gemini      *services.GeminiService
	youtube     *services.YouTubeService
	extractor   *services.ExtractorService
	scraper     *services.ScraperService
	jobRepo     *repository.JobRepo
	contentRepo *repository.ContentRepo
	quizRepo    *repository.QuizRepo
	flashRepo   *repository.FlashcardRepo
	storagePath string
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	gemini *services.GeminiService,
	youtube *services.YouTubeService,
	extractor *services.ExtractorService,
	scraper *services.ScraperService,
	jobRepo *repository.JobRepo,
	contentRepo *repository.ContentRepo,
	quizRepo *repository.QuizRepo,
	flashRepo *repository.FlashcardRepo,
	storagePath string,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		gemini:      gemini,
		youtube:     youtube,
		extractor:   extractor,
		scraper:     scraper,
		jobRepo:     jobRepo,
		contentRepo: contentRepo,
		quizRepo:    quizRepo,
		flashRepo:   flashRepo,
		storagePath: storagePath,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{
		"queue:content-extraction",
		"queue:summary-generation",
		"queue:quiz-generation",
		"queue:flashcard-generation",
	}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Job lock keeps a double-delivered message from running twice
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

		p.jobRepo.UpdateStatus(ctx, job.ID, "processing")

		p.gemini.PublishUpdate(ctx, job.UserID, models.WSMessage{
			Type: "status_update",
			Payload: models.StatusUpdate{
				JobID:    job.ID,
				Step:     0,
				StepName: "Starting",
			},
		})

		var processErr error
		switch job.Type {
		case "content-extraction":
			processErr = p.processExtraction(ctx, &job)
		case "summary-generation":
			processErr = p.processSummary(ctx, &job)
		case "quiz-generation":
			processErr = p.processQuiz(ctx, &job)
		case "flashcard-generation":
			processErr = p.processFlashcards(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			p.handleSuccess(ctx, &job)
		}

		p.redis.Del(ctx, lockKey)
	}
}

// processExtraction turns a content source into raw text: file parsing for
// documents, caption fetch for videos, page scrape for articles. On success
// a summary job is chained automatically.
func (p *Pool) processExtraction(ctx context.Context, job *models.Job) error {
	content, err := p.contentRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}

	p.contentRepo.UpdateStatus(ctx, content.ID, "processing")

	p.gemini.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			Step:     1,
			StepName: "Extracting text",
		},
	})

	switch content.Type {
	case "document":
		if content.FilePath == nil || *content.FilePath == "" {
			return fmt.Errorf("document content has no file path")
		}

		fullPath := filepath.Join(p.storagePath, *content.FilePath)
		extracted, err := p.extractor.ExtractTextFromPath(fullPath)
		if err != nil {
			return fmt.Errorf("failed to extract file text from %s: %w", fullPath, err)
		}

		if err := p.contentRepo.UpdateRawText(ctx, content.ID, extracted); err != nil {
			return fmt.Errorf("failed to save extracted text: %w", err)
		}
		log.Printf("Extracted file text for content %s (%d chars)", content.ID, len(extracted))

	case "video":
		if content.SourceURL == nil {
			return fmt.Errorf("video content has no source URL")
		}

		videoID := extractVideoID(*content.SourceURL)
		if videoID == "" {
			return fmt.Errorf("invalid YouTube URL: %s", *content.SourceURL)
		}

		transcript, err := p.youtube.GetTranscript(videoID)
		if err != nil {
			return fmt.Errorf("transcript extraction failed for video %s: %w", videoID, err)
		}

		if err := p.contentRepo.UpdateRawText(ctx, content.ID, transcript); err != nil {
			return fmt.Errorf("failed to save transcript: %w", err)
		}
		log.Printf("Fetched transcript for video %s (%d chars)", videoID, len(transcript))

		// Best effort: fill in duration the oEmbed lookup couldn't provide
		if meta, metaErr := p.youtube.GetVideoMetadata(videoID); metaErr == nil {
			if metaBytes, marshalErr := json.Marshal(meta); marshalErr == nil {
				p.contentRepo.UpdateMetadata(ctx, content.ID, metaBytes)
			}
		}

	case "article":
		if content.SourceURL == nil {
			return fmt.Errorf("article content has no source URL")
		}

		title, text, err := p.scraper.FetchArticle(*content.SourceURL)
		if err != nil {
			return fmt.Errorf("article scrape failed: %w", err)
		}

		if err := p.contentRepo.UpdateRawText(ctx, content.ID, text); err != nil {
			return fmt.Errorf("failed to save article text: %w", err)
		}
		if title != "" && content.Title == *content.SourceURL {
			p.contentRepo.UpdateTitle(ctx, content.ID, title)
		}
		log.Printf("Scraped article for content %s (%d chars)", content.ID, len(text))

	case "note":
		// Notes arrive with their text; nothing to extract.

	default:
		return fmt.Errorf("unsupported content type for extraction: %s", content.Type)
	}

	// Chain: freshly extracted text goes straight to summarization
	p.enqueueChained(ctx, job.UserID, content.ID, "summary-generation")

	return nil
}

func (p *Pool) processSummary(ctx context.Context, job *models.Job) error {
	content, err := p.contentRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}

	// A summary job queued alongside extraction may land first
	if content.RawText == nil || *content.RawText == "" {
		content, err = p.waitForContentReady(ctx, content.ID, 60*time.Second)
		if err != nil {
			return err
		}
	}

	return p.gemini.GenerateSummary(ctx, job, content)
}

func (p *Pool) processQuiz(ctx context.Context, job *models.Job) error {
	quiz, err := p.quizRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	content, err := p.contentRepo.GetByID(ctx, quiz.ContentID)
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}

	return p.gemini.GenerateQuiz(ctx, job, quiz, content)
}

func (p *Pool) processFlashcards(ctx context.Context, job *models.Job) error {
	content, err := p.contentRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}

	return p.gemini.GenerateFlashcards(ctx, job, content)
}

func (p *Pool) waitForContentReady(ctx context.Context, contentID uuid.UUID, timeout time.Duration) (*models.Content, error) {
	deadline := time.Now().Add(timeout)

	for {
		content, err := p.contentRepo.GetByID(ctx, contentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get content: %w", err)
		}

		if content.RawText != nil && *content.RawText != "" {
			return content, nil
		}

		if content.Status == "failed" {
			return nil, fmt.Errorf("content extraction failed")
		}

		if content.Status == "completed" {
			return nil, fmt.Errorf("content completed without text")
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("content text not ready yet (status: %s)", content.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (p *Pool) enqueueChained(ctx context.Context, userID, referenceID uuid.UUID, jobType string) {
	chained := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        jobType,
		ReferenceID: referenceID,
	}

	if err := p.jobRepo.Create(ctx, chained); err != nil {
		log.Printf("failed to create chained %s job for %s: %v", jobType, referenceID, err)
		return
	}

	jobBytes, _ := json.Marshal(chained)
	if err := p.redis.LPush(ctx, jobQueueName(jobType), string(jobBytes)).Err(); err != nil {
		log.Printf("failed to enqueue chained %s job for %s: %v", jobType, referenceID, err)
	}
}

func extractVideoID(url string) string {
	parsed, err := urlpkg.Parse(url)
	if err == nil {
		host := strings.ToLower(parsed.Host)
		path := strings.Trim(parsed.Path, "/")

		// youtube.com/watch?v=VIDEO_ID
		if strings.Contains(host, "youtube.com") {
			if v := parsed.Query().Get("v"); len(v) == 11 {
				return v
			}

			parts := strings.Split(path, "/")
			if len(parts) >= 2 {
				switch parts[0] {
				case "shorts", "embed", "v":
					if len(parts[1]) == 11 {
						return parts[1]
					}
				}
			}
		}

		// youtu.be/VIDEO_ID
		if strings.Contains(host, "youtu.be") {
			if len(path) >= 11 {
				candidate := strings.Split(path, "/")[0]
				if len(candidate) == 11 {
					return candidate
				}
			}
		}
	}

	// Fallback regex for unusual URL forms
	re := regexp.MustCompile(`(?:v=|\/v\/|youtu\.be\/|embed\/|shorts\/)([a-zA-Z0-9_-]{11})`)
	if m := re.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}

	return ""
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.UpdateStatus(ctx, job.ID, "completed")

	p.gemini.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   job.ReferenceID,
			ResultType: getResultType(job.Type),
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < job.MaxRetries {
		log.Printf("Job %s failed (attempt %d): %s -- retrying", job.ID, job.RetryCount, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		// Re-queue after backoff
		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), jobQueueName(job.Type), string(jobBytes))
		})
	} else {
		log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "failed")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
		if job.Type == "content-extraction" {
			p.contentRepo.UpdateStatus(ctx, job.ReferenceID, "failed")
		}

		p.gemini.PublishUpdate(ctx, job.UserID, models.WSMessage{
			Type: "error",
			Payload: models.ErrorEvent{
				JobID:        job.ID,
				ErrorCode:    "JOB_FAILED",
				ErrorMessage: errMsg,
			},
		})
	}
}

func jobQueueName(jobType string) string {
	return "queue:" + jobType
}

func getResultType(jobType string) string {
	switch jobType {
	case "summary-generation":
		return "summary"
	case "quiz-generation":
		return "quiz"
	case "flashcard-generation":
		return "flashcards"
	default:
		return "content"
	}
}
