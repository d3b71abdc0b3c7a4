package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyloop-backend/internal/repository"
)

const (
	reviewReminderInterval = 72 * time.Hour
	reminderPollInterval   = 1 * time.Hour
)

// ReviewReminderScheduler periodically emails users who have flashcards
// waiting for review. Last-sent stamps live in Redis so restarts don't
// re-send within the interval.
type ReviewReminderScheduler struct {
	flashRepo *repository.FlashcardRepo
	email     *EmailService
	redis     *redis.Client
	stopChan  chan struct{}
}

func NewReviewReminderScheduler(flashRepo *repository.FlashcardRepo, email *EmailService, redisClient *redis.Client) *ReviewReminderScheduler {
	return &ReviewReminderScheduler{
		flashRepo: flashRepo,
		email:     email,
		redis:     redisClient,
		stopChan:  make(chan struct{}),
	}
}

func (s *ReviewReminderScheduler) Start() {
	if s.flashRepo == nil || s.email == nil || s.redis == nil {
		return
	}

	go s.loop()

	log.Printf("Review reminder scheduler started")
}

func (s *ReviewReminderScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *ReviewReminderScheduler) loop() {
	// Run on startup as well as by interval.
	s.sendReviewReminders(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(reminderPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sendReviewReminders(context.Background(), time.Now().UTC())
		}
	}
}

func (s *ReviewReminderScheduler) sendReviewReminders(ctx context.Context, now time.Time) {
	recipients, err := s.flashRepo.DueCountsByUser(ctx)
	if err != nil {
		log.Printf("review reminders: failed to list recipients: %v", err)
		return
	}

	for _, recipient := range recipients {
		lastSentRaw, _ := s.redis.Get(ctx, reminderLastSentKey(recipient.UserID)).Result()
		if !shouldSendByLastSent(lastSentRaw, reviewReminderInterval, now) {
			continue
		}

		if err := s.email.SendReviewReminderEmail(recipient.Email, recipient.FullName, recipient.DueCards); err != nil {
			log.Printf("review reminders: failed to send to %s: %v", recipient.Email, err)
			continue
		}

		if err := s.redis.Set(ctx, reminderLastSentKey(recipient.UserID), now.Format(time.RFC3339), 0).Err(); err != nil {
			log.Printf("review reminders: failed to persist last sent at for user %s: %v", recipient.UserID, err)
		}
	}
}

func reminderLastSentKey(userID uuid.UUID) string {
	return fmt.Sprintf("review_reminder_last_sent:%s", userID.String())
}

func shouldSendByLastSent(lastSentRaw string, minInterval time.Duration, now time.Time) bool {
	if lastSentRaw == "" {
		return true
	}

	lastSentAt, err := time.Parse(time.RFC3339, lastSentRaw)
	if err != nil {
		return true
	}

	return now.Sub(lastSentAt) >= minInterval
}
