package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"resuchain/resume-pipeline/internal/apperror"
	"resuchain/resume-pipeline/internal/models"
	"resuchain/resume-pipeline/internal/repositories"
)

type ResumeService interface {
	Upload(ctx context.Context, ownerID, fileName string, data []byte) (*models.ResumeRecord, error)
	Process(ctx context.Context, resumeID uuid.UUID) error
	UpdateProgress(ctx context.Context, resumeID uuid.UUID, value int) (*models.ResumeRecord, error)
	GetOne(ctx context.Context, ownerID string, resumeID uuid.UUID) (*models.ResumeRecord, error)
	ListAll(ctx context.Context, ownerID string) ([]models.ResumeRecord, error)
	Delete(ctx context.Context, ownerID string, resumeID uuid.UUID) error
	Stats(ctx context.Context, ownerID string) (*models.StatsResponse, error)
	Search(ctx context.Context, ownerID, query string, limit int) ([]models.SearchHit, error)
	SetDispatcher(dispatcher Dispatcher)
}

// Dispatcher schedules Process for a record outside the caller's request.
// Enqueue reports false when the id was not accepted.
type Dispatcher interface {
	Enqueue(resumeID uuid.UUID) bool
}

// failureWriteTimeout bounds the FAILED write, which runs detached from a
// job context that may already be expired.
const failureWriteTimeout = 10 * time.Second

type resumeService struct {
	resumeRepo repositories.ResumeRepository
	storage    StorageGateway
	extractor  TextExtractor
	parser     Parser
	publisher  StatusPublisher
	index      ResumeIndex
	dispatcher Dispatcher
	locks      *recordLocks
	now        func() time.Time
}

func NewResumeService(
	resumeRepo repositories.ResumeRepository,
	storage StorageGateway,
	extractor TextExtractor,
	parser Parser,
	publisher StatusPublisher,
	index ResumeIndex,
) ResumeService {
	if publisher == nil {
		publisher = NewNoopPublisher()
	}
	if index == nil {
		index = NewDisabledIndex()
	}

	s := &resumeService{
		resumeRepo: resumeRepo,
		storage:    storage,
		extractor:  extractor,
		parser:     parser,
		publisher:  publisher,
		index:      index,
		locks:      newRecordLocks(),
		now:        time.Now,
	}
	s.dispatcher = &goroutineDispatcher{process: s.Process}

	return s
}

// SetDispatcher implements ResumeService.
func (s *resumeService) SetDispatcher(dispatcher Dispatcher) {
	if dispatcher != nil {
		s.dispatcher = dispatcher
	}
}

// Upload implements ResumeService.
func (s *resumeService) Upload(ctx context.Context, ownerID, fileName string, data []byte) (*models.ResumeRecord, error) {
	if len(data) == 0 {
		return nil, apperror.EmptyFile()
	}

	format, err := FormatFromFilename(fileName)
	if err != nil {
		return nil, err
	}

	locator, err := s.storage.Store(ctx, fileName, data)
	if err != nil {
		return nil, err
	}

	blob, err := s.storage.Read(ctx, locator)
	if err != nil {
		return nil, err
	}

	text, err := s.extractor.Extract(blob, format)
	if err != nil {
		// The stored blob is intentionally left in place on this path.
		log.Printf("⚠️  Extraction failed for %s, blob %s left in storage: %v\n", fileName, locator, err)
		return nil, err
	}

	resume := &models.ResumeRecord{
		OwnerID:              ownerID,
		FileName:             fileName,
		FilePath:             locator,
		RawText:              strings.ReplaceAll(text, "\x00", ""),
		ProcessingStatus:     models.StatusPending,
		VerificationProgress: 0,
	}

	if err := s.resumeRepo.Create(ctx, resume); err != nil {
		if delErr := s.storage.Delete(ctx, locator); delErr != nil {
			log.Printf("⚠️  Failed to clean up blob %s: %v\n", locator, delErr)
		}
		return nil, err
	}

	log.Printf("📄 Resume %s uploaded by %s (%s)\n", resume.ID, ownerID, fileName)
	s.publish(ctx, resume)

	if !s.dispatcher.Enqueue(resume.ID) {
		log.Printf("⚠️  Resume %s not dispatched, left for the pending poller\n", resume.ID)
	}

	return resume, nil
}

// Process implements ResumeService. Every failure after the PROCESSING
// transition is recorded as FAILED on the record; the returned error is
// only for the caller's logs.
func (s *resumeService) Process(ctx context.Context, resumeID uuid.UUID) error {
	resume, err := s.startProcessing(ctx, resumeID)
	if err != nil || resume == nil {
		return err
	}

	log.Printf("🔄 Parsing resume %s\n", resumeID)

	result, err := s.parser.Parse(ctx, resume.RawText)
	if err != nil {
		s.markFailed(ctx, resumeID, err)
		return fmt.Errorf("failed to parse resume %s: %w", resumeID, err)
	}

	skills, education, experience, err := serializeParseResult(result)
	if err != nil {
		s.markFailed(ctx, resumeID, err)
		return fmt.Errorf("failed to store parse result for %s: %w", resumeID, err)
	}

	completed, err := s.complete(ctx, resumeID, skills, education, experience)
	if err != nil {
		s.markFailed(ctx, resumeID, err)
		return fmt.Errorf("failed to complete resume %s: %w", resumeID, err)
	}

	log.Printf("✅ Resume %s parsed successfully\n", completed.ID)

	s.indexCompleted(ctx, resumeID)

	return nil
}

// indexCompleted indexes the record only if it still exists and is
// COMPLETED, so a concurrent Delete cannot leave orphan points behind.
func (s *resumeService) indexCompleted(ctx context.Context, resumeID uuid.UUID) {
	unlock := s.locks.Lock(resumeID)
	defer unlock()

	resume, err := s.resumeRepo.FindByID(ctx, resumeID)
	if err != nil {
		log.Printf("⏭️  Resume %s not indexed: %v\n", resumeID, err)
		return
	}
	if resume.ProcessingStatus != models.StatusCompleted {
		return
	}

	if err := s.index.Index(ctx, resume); err != nil {
		log.Printf("⚠️  Failed to index resume %s: %v\n", resumeID, err)
	}
}

// startProcessing claims a PENDING record for this caller. The claim is a
// conditional write in the store, so only one process across replicas
// wins it. It returns a nil record when the record has already left PENDING.
func (s *resumeService) startProcessing(ctx context.Context, resumeID uuid.UUID) (*models.ResumeRecord, error) {
	unlock := s.locks.Lock(resumeID)
	defer unlock()

	claimed, err := s.resumeRepo.ClaimPending(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim resume %s: %w", resumeID, err)
	}

	resume, err := s.resumeRepo.FindByID(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resume %s: %w", resumeID, err)
	}

	if !claimed {
		log.Printf("⏭️  Resume %s is %s, skipping\n", resumeID, resume.ProcessingStatus)
		return nil, nil
	}

	s.publish(ctx, resume)

	return resume, nil
}

func (s *resumeService) complete(ctx context.Context, resumeID uuid.UUID, skills, education, experience datatypes.JSON) (*models.ResumeRecord, error) {
	unlock := s.locks.Lock(resumeID)
	defer unlock()

	resume, err := s.resumeRepo.FindByID(ctx, resumeID)
	if err != nil {
		return nil, err
	}

	processedAt := s.now()
	resume.ParsedSkills = skills
	resume.ParsedEducation = education
	resume.ParsedExperience = experience
	resume.ProcessingStatus = models.StatusCompleted
	resume.ProcessedAt = &processedAt
	resume.VerificationProgress = models.ParsedProgress

	if err := s.resumeRepo.Update(ctx, resume); err != nil {
		return nil, err
	}
	s.publish(ctx, resume)

	return resume, nil
}

func (s *resumeService) markFailed(ctx context.Context, resumeID uuid.UUID, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	unlock := s.locks.Lock(resumeID)
	defer unlock()

	log.Printf("❌ Resume %s failed: %v\n", resumeID, cause)

	resume, err := s.resumeRepo.FindByID(ctx, resumeID)
	if err != nil {
		log.Printf("❌ Failed to load resume %s to mark it failed: %v\n", resumeID, err)
		return
	}

	resume.ProcessingStatus = models.StatusFailed
	resume.ParsedSkills = nil
	resume.ParsedEducation = nil
	resume.ParsedExperience = nil
	resume.ProcessedAt = nil

	if err := s.resumeRepo.Update(ctx, resume); err != nil {
		log.Printf("❌ Failed to mark resume %s failed: %v\n", resumeID, err)
		return
	}
	s.publish(ctx, resume)
}

func serializeParseResult(result *models.ParseResult) (skills, education, experience datatypes.JSON, err error) {
	if result == nil {
		return nil, nil, nil, apperror.Serialization("empty parse result", nil)
	}

	sections := []struct {
		name string
		raw  json.RawMessage
		dst  *datatypes.JSON
	}{
		{"skills", result.Skills, &skills},
		{"education", result.Education, &education},
		{"experience", result.Experience, &experience},
	}

	for _, section := range sections {
		raw := section.raw
		if len(raw) == 0 {
			raw = json.RawMessage(emptySection)
		}
		if !json.Valid(raw) {
			return nil, nil, nil, apperror.Serialization(fmt.Sprintf("section %s is not valid JSON", section.name), nil)
		}
		*section.dst = datatypes.JSON(raw)
	}

	return skills, education, experience, nil
}

// UpdateProgress implements ResumeService. Values above 100 are capped;
// there is no lower clamp.
func (s *resumeService) UpdateProgress(ctx context.Context, resumeID uuid.UUID, value int) (*models.ResumeRecord, error) {
	unlock := s.locks.Lock(resumeID)
	defer unlock()

	resume, err := s.resumeRepo.FindByID(ctx, resumeID)
	if err != nil {
		return nil, err
	}

	resume.VerificationProgress = models.ClampProgress(value)
	if err := s.resumeRepo.Update(ctx, resume); err != nil {
		return nil, err
	}
	s.publish(ctx, resume)

	return resume, nil
}

// GetOne implements ResumeService.
func (s *resumeService) GetOne(ctx context.Context, ownerID string, resumeID uuid.UUID) (*models.ResumeRecord, error) {
	return s.resumeRepo.FindByOwnerAndID(ctx, ownerID, resumeID)
}

// ListAll implements ResumeService.
func (s *resumeService) ListAll(ctx context.Context, ownerID string) ([]models.ResumeRecord, error) {
	return s.resumeRepo.ListByOwner(ctx, ownerID)
}

// Delete implements ResumeService. Blob and index cleanup are best-effort;
// the record is removed even when they fail.
func (s *resumeService) Delete(ctx context.Context, ownerID string, resumeID uuid.UUID) error {
	unlock := s.locks.Lock(resumeID)
	defer unlock()

	resume, err := s.resumeRepo.FindByOwnerAndID(ctx, ownerID, resumeID)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, resume.FilePath); err != nil {
		log.Printf("⚠️  Failed to delete blob %s for resume %s: %v\n", resume.FilePath, resumeID, err)
	}

	if err := s.index.Remove(ctx, resumeID); err != nil {
		log.Printf("⚠️  Failed to remove resume %s from index: %v\n", resumeID, err)
	}

	if err := s.resumeRepo.Delete(ctx, resume); err != nil {
		return err
	}

	log.Printf("🗑️  Resume %s deleted by %s\n", resumeID, ownerID)
	return nil
}

// Stats implements ResumeService.
func (s *resumeService) Stats(ctx context.Context, ownerID string) (*models.StatsResponse, error) {
	resumes, err := s.resumeRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	stats := &models.StatsResponse{TotalResumes: len(resumes)}
	if len(resumes) == 0 {
		return stats, nil
	}

	total := 0
	for _, r := range resumes {
		if r.ProcessingStatus == models.StatusCompleted {
			stats.CompletedResumes++
		}
		total += r.VerificationProgress
	}
	stats.AverageProgress = float64(total) / float64(len(resumes))

	return stats, nil
}

// Search implements ResumeService.
func (s *resumeService) Search(ctx context.Context, ownerID, query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.index.Search(ctx, ownerID, query, limit)
}

func (s *resumeService) publish(ctx context.Context, resume *models.ResumeRecord) {
	if err := s.publisher.Publish(ctx, resume); err != nil {
		log.Printf("⚠️  Failed to publish status of resume %s: %v\n", resume.ID, err)
	}
}

// goroutineDispatcher runs Process on its own goroutine with a background
// context. It is the fallback when no worker pool is attached.
type goroutineDispatcher struct {
	process func(ctx context.Context, resumeID uuid.UUID) error
}

func (d *goroutineDispatcher) Enqueue(resumeID uuid.UUID) bool {
	go func() {
		if err := d.process(context.Background(), resumeID); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("❌ Background processing of resume %s failed: %v\n", resumeID, err)
		}
	}()
	return true
}
