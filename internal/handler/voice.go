package handler

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/affirmstudio/api/internal/middleware"
	"github.com/affirmstudio/api/internal/service"
	"github.com/affirmstudio/api/pkg/response"
)

type VoiceHandler struct {
	service *service.VoiceService
}

func NewVoiceHandler(svc *service.VoiceService) *VoiceHandler {
	return &VoiceHandler{service: svc}
}

// Upload handles POST /api/voice-samples (multipart: file, consent)
func (h *VoiceHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return response.ServiceError(c, "Failed to read uploaded file")
	}

	result, err := h.service.Upload(c.UserContext(), middleware.GetUserID(c), &service.VoiceUpload{
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Data:        data,
		Consent:     parseConsent(c.FormValue("consent")),
	})
	if err != nil {
		return writeError(c, err)
	}

	return response.Created(c, result)
}

// Latest handles GET /api/voice-samples/latest
func (h *VoiceHandler) Latest(c *fiber.Ctx) error {
	result, err := h.service.Latest(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	if result == nil {
		return response.NotFound(c, "No voice sample uploaded")
	}
	return response.OK(c, result)
}

func parseConsent(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
