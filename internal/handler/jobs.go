package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/affirmstudio/api/internal/middleware"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/service"
	"github.com/affirmstudio/api/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewJobHandler(svc *service.JobService, v *validator.Validate) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/jobs
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req model.JobCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Create(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return writeError(c, err)
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/jobs/:jobId
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Status(c.UserContext(), middleware.GetUserID(c), jobID)
	if err != nil {
		return writeError(c, err)
	}

	return response.OK(c, result)
}

// Download handles GET /api/jobs/:jobId/result
func (h *JobHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	deleteAfter := c.QueryBool("delete_after_download", true)
	result, err := h.service.Download(c.UserContext(), middleware.GetUserID(c), jobID, deleteAfter)
	if err != nil {
		return writeError(c, err)
	}

	return sendAudio(c, result, true)
}

// AuthorizeWatch lets only the job's owner subscribe to its progress.
func (h *JobHandler) AuthorizeWatch(c *fiber.Ctx) error {
	if err := h.service.Authorize(c.UserContext(), middleware.GetUserID(c), c.Params("jobId")); err != nil {
		return writeError(c, err)
	}
	return c.Next()
}
