package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"resuchain/resume-pipeline/internal/apperror"
	"resuchain/resume-pipeline/internal/models"
)

type ResumeRepository interface {
	Create(ctx context.Context, resume *models.ResumeRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ResumeRecord, error)
	FindByOwnerAndID(ctx context.Context, ownerID string, id uuid.UUID) (*models.ResumeRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.ResumeRecord, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	Update(ctx context.Context, resume *models.ResumeRecord) error
	ClaimPending(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, resume *models.ResumeRecord) error
	FindPending(ctx context.Context, limit int) ([]models.ResumeRecord, error)
	Ping(ctx context.Context) error
}

type resumeRepository struct {
	db *gorm.DB
}

func NewResumeRepository(db *gorm.DB) ResumeRepository {
	return &resumeRepository{db: db}
}

// Create implements ResumeRepository.
func (r *resumeRepository) Create(ctx context.Context, resume *models.ResumeRecord) error {
	if err := r.db.WithContext(ctx).Create(resume).Error; err != nil {
		return fmt.Errorf("failed to create resume: %w", err)
	}
	return nil
}

// FindByID implements ResumeRepository.
func (r *resumeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ResumeRecord, error) {
	var resume models.ResumeRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&resume).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(err)
		}
		return nil, fmt.Errorf("failed to find resume: %w", err)
	}
	return &resume, nil
}

// FindByOwnerAndID implements ResumeRepository. A record owned by someone
// else is reported exactly like a missing one.
func (r *resumeRepository) FindByOwnerAndID(ctx context.Context, ownerID string, id uuid.UUID) (*models.ResumeRecord, error) {
	var resume models.ResumeRecord
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&resume).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(err)
		}
		return nil, fmt.Errorf("failed to find resume: %w", err)
	}
	return &resume, nil
}

// ListByOwner implements ResumeRepository.
func (r *resumeRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ResumeRecord, error) {
	var resumes []models.ResumeRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("uploaded_at DESC").
		Find(&resumes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	return resumes, nil
}

// CountByOwner implements ResumeRepository.
func (r *resumeRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ResumeRecord{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count resumes: %w", err)
	}
	return count, nil
}

// Update implements ResumeRepository. Every mutable column is overwritten
// with the value held by resume.
func (r *resumeRepository) Update(ctx context.Context, resume *models.ResumeRecord) error {
	result := r.db.WithContext(ctx).
		Model(&models.ResumeRecord{}).
		Where("id = ?", resume.ID).
		Updates(map[string]interface{}{
			"file_name":             resume.FileName,
			"file_path":             resume.FilePath,
			"raw_text":              resume.RawText,
			"parsed_skills":         resume.ParsedSkills,
			"parsed_education":      resume.ParsedEducation,
			"parsed_experience":     resume.ParsedExperience,
			"processing_status":     resume.ProcessingStatus,
			"verification_progress": resume.VerificationProgress,
			"processed_at":          resume.ProcessedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update resume: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperror.NotFound(nil)
	}

	return nil
}

// ClaimPending implements ResumeRepository. It moves the record from
// PENDING to PROCESSING in one conditional statement and reports whether
// this caller won the transition.
func (r *resumeRepository) ClaimPending(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ResumeRecord{}).
		Where("id = ? AND processing_status = ?", id, models.StatusPending).
		Update("processing_status", models.StatusProcessing)

	if result.Error != nil {
		return false, fmt.Errorf("failed to claim resume: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// Delete implements ResumeRepository.
func (r *resumeRepository) Delete(ctx context.Context, resume *models.ResumeRecord) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", resume.ID, resume.OwnerID).
		Delete(&models.ResumeRecord{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete resume: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperror.NotFound(nil)
	}

	return nil
}

// FindPending implements ResumeRepository.
func (r *resumeRepository) FindPending(ctx context.Context, limit int) ([]models.ResumeRecord, error) {
	var resumes []models.ResumeRecord
	err := r.db.WithContext(ctx).
		Select("id", "owner_id", "processing_status", "uploaded_at").
		Where("processing_status = ?", models.StatusPending).
		Order("uploaded_at ASC").
		Limit(limit).
		Find(&resumes).Error

	if err != nil {
		return nil, fmt.Errorf("failed to find pending resumes: %w", err)
	}

	return resumes, nil
}

// Ping implements ResumeRepository.
func (r *resumeRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
