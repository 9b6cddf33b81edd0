package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "PENDING"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusCompleted  ProcessingStatus = "COMPLETED"
	StatusFailed     ProcessingStatus = "FAILED"
)

// IsTerminal reports whether no further automatic transition can happen.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	MaxVerificationProgress = 100
	// ParsedProgress is the progress assigned once the initial parse completes.
	ParsedProgress = 25
)

type ResumeRecord struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID              string           `gorm:"type:text;not null;index" json:"owner_id"`
	FileName             string           `gorm:"type:text;not null" json:"file_name"`
	FilePath             string           `gorm:"type:text;not null;uniqueIndex" json:"file_path"`
	RawText              string           `gorm:"type:text" json:"raw_text"`
	ParsedSkills         datatypes.JSON   `json:"parsed_skills,omitempty"`
	ParsedEducation      datatypes.JSON   `json:"parsed_education,omitempty"`
	ParsedExperience     datatypes.JSON   `json:"parsed_experience,omitempty"`
	ProcessingStatus     ProcessingStatus `gorm:"type:text;not null;default:'PENDING';index" json:"processing_status"`
	VerificationProgress int              `gorm:"not null;default:0" json:"verification_progress"`
	UploadedAt           time.Time        `gorm:"not null;index;<-:create" json:"uploaded_at"`
	ProcessedAt          *time.Time       `json:"processed_at,omitempty"`
}

func (ResumeRecord) TableName() string {
	return "resumes"
}

func (r *ResumeRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.UploadedAt.IsZero() {
		r.UploadedAt = time.Now()
	}
	if r.ProcessingStatus == "" {
		r.ProcessingStatus = StatusPending
	}
	return nil
}

// ClampProgress caps value at MaxVerificationProgress. There is no lower clamp.
func ClampProgress(value int) int {
	if value > MaxVerificationProgress {
		return MaxVerificationProgress
	}
	return value
}
