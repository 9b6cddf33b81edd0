package handlers

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"resuchain/resume-pipeline/internal/middleware"
	"resuchain/resume-pipeline/internal/models"
	"resuchain/resume-pipeline/internal/services"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type ResumeHandler struct {
	resumeService services.ResumeService
	maxFileSize   int64
}

func NewResumeHandler(resumeService services.ResumeService, maxFileSize int64) *ResumeHandler {
	return &ResumeHandler{
		resumeService: resumeService,
		maxFileSize:   maxFileSize,
	}
}

// Register mounts the resume routes on router. Static segments come before
// the :id routes.
func (h *ResumeHandler) Register(router fiber.Router, uploadLimiter fiber.Handler) {
	resumes := router.Group("/resumes")
	if uploadLimiter != nil {
		resumes.Post("/upload", uploadLimiter, h.HandleUpload)
	} else {
		resumes.Post("/upload", h.HandleUpload)
	}
	resumes.Get("/", h.HandleList)
	resumes.Get("/stats", h.HandleStats)
	resumes.Get("/search", h.HandleSearch)
	resumes.Get("/:id", h.HandleGet)
	resumes.Put("/:id/progress", h.HandleUpdateProgress)
	resumes.Delete("/:id", h.HandleDelete)
}

func (h *ResumeHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "multipart field 'file' is required")
	}

	if h.maxFileSize > 0 && file.Size > h.maxFileSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("file too large. Max size: %d bytes", h.maxFileSize),
		})
	}

	src, err := file.Open()
	if err != nil {
		return badRequest(c, "failed to read uploaded file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return badRequest(c, "failed to read uploaded file")
	}

	resume, err := h.resumeService.Upload(c.UserContext(), middleware.UserID(c), file.Filename, data)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.UploadResponse{
		Message:  "Resume uploaded successfully",
		ResumeID: resume.ID.String(),
		Status:   resume.ProcessingStatus,
	})
}

func (h *ResumeHandler) HandleList(c *fiber.Ctx) error {
	resumes, err := h.resumeService.ListAll(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}

	response := make([]models.ResumeResponse, 0, len(resumes))
	for i := range resumes {
		response = append(response, models.NewResumeResponse(&resumes[i]))
	}

	return c.JSON(response)
}

func (h *ResumeHandler) HandleGet(c *fiber.Ctx) error {
	resumeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid resume id")
	}

	resume, err := h.resumeService.GetOne(c.UserContext(), middleware.UserID(c), resumeID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(models.NewResumeResponse(resume))
}

func (h *ResumeHandler) HandleUpdateProgress(c *fiber.Ctx) error {
	resumeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid resume id")
	}

	progress, err := strconv.Atoi(strings.TrimSpace(c.Query("progress")))
	if err != nil {
		return badRequest(c, "query parameter 'progress' must be an integer")
	}

	// Only the owner may change progress through the API.
	if _, err := h.resumeService.GetOne(c.UserContext(), middleware.UserID(c), resumeID); err != nil {
		return respondError(c, err)
	}

	resume, err := h.resumeService.UpdateProgress(c.UserContext(), resumeID, progress)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(models.NewResumeResponse(resume))
}

func (h *ResumeHandler) HandleDelete(c *fiber.Ctx) error {
	resumeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid resume id")
	}

	if err := h.resumeService.Delete(c.UserContext(), middleware.UserID(c), resumeID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(models.MessageResponse{Message: "Resume deleted successfully"})
}

func (h *ResumeHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.resumeService.Stats(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(stats)
}

func (h *ResumeHandler) HandleSearch(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return badRequest(c, "query parameter 'q' is required")
	}

	limit := c.QueryInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	hits, err := h.resumeService.Search(c.UserContext(), middleware.UserID(c), query, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"query":   query,
		"results": hits,
	})
}
