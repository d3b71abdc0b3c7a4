package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyloop-backend/internal/middleware"
	"studyloop-backend/internal/models"
	"studyloop-backend/internal/repository"
)

type ContentHandler struct {
	contentRepo *repository.ContentRepo
	jobRepo     *repository.JobRepo
	redis       *redis.Client
	storagePath string
}

func NewContentHandler(contentRepo *repository.ContentRepo, jobRepo *repository.JobRepo, redisClient *redis.Client, storagePath string) *ContentHandler {
	return &ContentHandler{
		contentRepo: contentRepo,
		jobRepo:     jobRepo,
		redis:       redisClient,
		storagePath: storagePath,
	}
}

var youtubeRegex = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|embed/|shorts/)|youtu\.be/)([\w-]{11})`)

// enqueueJob persists a job row and pushes it onto the worker queue for its
// type. The queue name is derived from the job type.
func (h *ContentHandler) enqueueJob(r *http.Request, userID, referenceID uuid.UUID, jobType string, config interface{}) (*models.Job, error) {
	var configJSON json.RawMessage
	if config != nil {
		configJSON, _ = json.Marshal(config)
	}

	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        jobType,
		ReferenceID: referenceID,
		ConfigJSON:  configJSON,
		CreatedAt:   time.Now(),
	}

	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		return nil, err
	}

	jobBytes, _ := json.Marshal(job)
	if err := h.redis.LPush(r.Context(), "queue:"+jobType, string(jobBytes)).Err(); err != nil {
		log.Printf("failed to enqueue job %s: %v", job.ID, err)
		return nil, err
	}

	return job, nil
}

func (h *ContentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > 50*1024*1024 { // 50MB
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 50MB limit", r))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 50*1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	// Read first 512 bytes for magic byte check
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	buf = buf[:n]

	mimeType := http.DetectContentType(buf)
	if !isAllowedMimeType(mimeType, header.Filename) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "File type not supported", r))
		return
	}

	// Reset file reader
	file.Seek(0, io.SeekStart)

	userID := middleware.GetUserID(r.Context())
	fileID := uuid.New().String()
	ext := getExtension(header.Filename)
	relPath := filepath.Join("users", userID.String(), "uploads", fileID+ext)
	absPath := filepath.Join(h.storagePath, relPath)

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}

	dst, err := os.Create(absPath)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}

	content := &models.Content{
		UserID:   userID,
		Type:     "document",
		Status:   "pending",
		FilePath: &relPath,
		Title:    header.Filename,
	}

	if err := h.contentRepo.Create(r.Context(), content); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create content record", r))
		return
	}

	job, err := h.enqueueJob(r, userID, content.ID, "content-extraction", nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue extraction", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"content_id": content.ID,
		"job_id":     job.ID,
		"filename":   header.Filename,
		"mime_type":  mimeType,
	})
}

func (h *ContentHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	var req models.AddVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	matches := youtubeRegex.FindStringSubmatch(req.URL)
	if len(matches) < 2 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid YouTube URL", r))
		return
	}

	videoID := matches[1]
	userID := middleware.GetUserID(r.Context())

	// oEmbed gives a fast title/channel without a full player request; the
	// worker fills in duration later.
	oembedURL := "https://www.youtube.com/oembed?url=https://www.youtube.com/watch?v=" + videoID + "&format=json"
	resp, err := http.Get(oembedURL)
	var oembed struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}

	if err == nil && resp.StatusCode == http.StatusOK {
		defer resp.Body.Close()
		json.NewDecoder(resp.Body).Decode(&oembed)
	}

	if oembed.Title == "" {
		oembed.Title = "YouTube Video"
	}
	if oembed.AuthorName == "" {
		oembed.AuthorName = "YouTube Channel"
	}
	if oembed.ThumbnailURL == "" {
		oembed.ThumbnailURL = "https://img.youtube.com/vi/" + videoID + "/maxresdefault.jpg"
	}

	metadata := models.VideoMetadata{
		VideoID:      videoID,
		Title:        oembed.Title,
		ChannelName:  oembed.AuthorName,
		ThumbnailURL: oembed.ThumbnailURL,
	}
	metaBytes, _ := json.Marshal(metadata)

	content := &models.Content{
		UserID:       userID,
		Type:         "video",
		Status:       "pending",
		SourceURL:    &req.URL,
		Title:        oembed.Title,
		MetadataJSON: metaBytes,
	}

	if err := h.contentRepo.Create(r.Context(), content); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create content record", r))
		return
	}

	job, err := h.enqueueJob(r, userID, content.ID, "content-extraction", nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue extraction", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"content_id": content.ID,
		"job_id":     job.ID,
		"video_id":   videoID,
		"metadata":   metadata,
	})
}

func (h *ContentHandler) AddArticle(w http.ResponseWriter, r *http.Request) {
	var req models.AddArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Article URL must be http or https", r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	content := &models.Content{
		UserID:    userID,
		Type:      "article",
		Status:    "pending",
		SourceURL: &req.URL,
		Title:     req.URL,
	}

	if err := h.contentRepo.Create(r.Context(), content); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create content record", r))
		return
	}

	job, err := h.enqueueJob(r, userID, content.ID, "content-extraction", nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue extraction", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"content_id": content.ID,
		"job_id":     job.ID,
	})
}

func (h *ContentHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fields := map[string]string{}
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "Title is required"
	}
	if strings.TrimSpace(req.Text) == "" {
		fields["text"] = "Text is required"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	// Notes skip extraction; the text is already here.
	content := &models.Content{
		UserID:  userID,
		Type:    "note",
		Status:  "completed",
		Title:   req.Title,
		RawText: &req.Text,
	}

	if err := h.contentRepo.Create(r.Context(), content); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create content record", r))
		return
	}

	job, err := h.enqueueJob(r, userID, content.ID, "summary-generation", nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue summary", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"content_id": content.ID,
		"job_id":     job.ID,
	})
}

func (h *ContentHandler) ListContent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	search := r.URL.Query().Get("search")
	sortBy := r.URL.Query().Get("sort")

	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}

	items, total, err := h.contentRepo.ListByUser(r.Context(), userID, search, sortBy, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list content", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	content, ok := h.ownedContent(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, content)
}

func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	content, ok := h.ownedContent(w, r)
	if !ok {
		return
	}

	// Flashcards, quizzes and attempts go with it via FK cascade.
	if err := h.contentRepo.Delete(r.Context(), content.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete content", r))
		return
	}

	if content.FilePath != nil {
		if err := os.Remove(filepath.Join(h.storagePath, *content.FilePath)); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove stored file for content %s: %v", content.ID, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Content deleted"})
}

// Summarize re-queues summary generation for content that already has text.
func (h *ContentHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	content, ok := h.ownedContent(w, r)
	if !ok {
		return
	}

	if content.RawText == nil || strings.TrimSpace(*content.RawText) == "" {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Content has no extracted text yet", r))
		return
	}

	job, err := h.enqueueJob(r, content.UserID, content.ID, "summary-generation", nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue summary", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": job.ID})
}

func (h *ContentHandler) SupportedFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"formats": []map[string]string{
			{"extension": ".pdf", "mime_type": "application/pdf", "description": "PDF Document"},
			{"extension": ".docx", "mime_type": "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "description": "Word Document"},
			{"extension": ".txt", "mime_type": "text/plain", "description": "Plain Text"},
		},
	})
}

// ownedContent resolves the {id} URL param to a content row owned by the
// caller. Rows owned by someone else read as 404, same as missing rows, so
// the response never confirms another user's content exists.
func (h *ContentHandler) ownedContent(w http.ResponseWriter, r *http.Request) (*models.Content, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid content ID", r))
		return nil, false
	}

	content, err := h.contentRepo.GetByID(r.Context(), id)
	if err != nil || content.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Content not found", r))
		return nil, false
	}

	return content, true
}

func isAllowedMimeType(mime, filename string) bool {
	allowed := map[string]bool{
		"application/pdf":          true,
		"text/plain":               true,
		"application/zip":          true, // docx
		"application/octet-stream": true,
	}
	if allowed[mime] || strings.HasPrefix(mime, "text/plain") {
		return true
	}
	// Check by extension as fallback
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".docx") ||
		strings.HasSuffix(lower, ".txt")
}

func getExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return filename[idx:]
}
