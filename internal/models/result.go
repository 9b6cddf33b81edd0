package models

import (
	"time"

	"gorm.io/datatypes"
)

type UploadResponse struct {
	Message  string           `json:"message"`
	ResumeID string           `json:"resumeId"`
	Status   ProcessingStatus `json:"status"`
}

type ResumeResponse struct {
	ID                   string           `json:"id"`
	FileName             string           `json:"fileName"`
	RawText              string           `json:"rawText"`
	ParsedSkills         datatypes.JSON   `json:"parsedSkills"`
	ParsedEducation      datatypes.JSON   `json:"parsedEducation"`
	ParsedExperience     datatypes.JSON   `json:"parsedExperience"`
	ProcessingStatus     ProcessingStatus `json:"processingStatus"`
	VerificationProgress int              `json:"verificationProgress"`
	UploadedAt           time.Time        `json:"uploadedAt"`
	ProcessedAt          *time.Time       `json:"processedAt"`
}

func NewResumeResponse(r *ResumeRecord) ResumeResponse {
	return ResumeResponse{
		ID:                   r.ID.String(),
		FileName:             r.FileName,
		RawText:              r.RawText,
		ParsedSkills:         r.ParsedSkills,
		ParsedEducation:      r.ParsedEducation,
		ParsedExperience:     r.ParsedExperience,
		ProcessingStatus:     r.ProcessingStatus,
		VerificationProgress: r.VerificationProgress,
		UploadedAt:           r.UploadedAt,
		ProcessedAt:          r.ProcessedAt,
	}
}

type StatsResponse struct {
	TotalResumes     int     `json:"totalResumes"`
	CompletedResumes int     `json:"completedResumes"`
	AverageProgress  float64 `json:"averageProgress"`
}

type SearchHit struct {
	ResumeID string  `json:"resumeId"`
	FileName string  `json:"fileName"`
	Score    float32 `json:"score"`
	Snippet  string  `json:"snippet"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
