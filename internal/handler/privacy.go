package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/affirmstudio/api/internal/middleware"
	"github.com/affirmstudio/api/internal/service"
	"github.com/affirmstudio/api/pkg/response"
)

type PrivacyHandler struct {
	service     *service.RetentionService
	defaultDays int
}

func NewPrivacyHandler(svc *service.RetentionService, defaultDays int) *PrivacyHandler {
	return &PrivacyHandler{
		service:     svc,
		defaultDays: defaultDays,
	}
}

// DeleteVoice handles DELETE /api/privacy/voice
func (h *PrivacyHandler) DeleteVoice(c *fiber.Ctx) error {
	result, err := h.service.DeleteVoice(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, result)
}

// DeleteAudio handles DELETE /api/privacy/audio
func (h *PrivacyHandler) DeleteAudio(c *fiber.Ctx) error {
	result, err := h.service.DeleteAudio(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, result)
}

// Cleanup handles POST /api/privacy/cleanup?days=N
func (h *PrivacyHandler) Cleanup(c *fiber.Ctx) error {
	days := c.QueryInt("days", h.defaultDays)
	result, err := h.service.Sweep(c.UserContext(), days)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, result)
}
