package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/service"
	"github.com/affirmstudio/api/pkg/response"
)

type CatalogHandler struct {
	catalog  *catalog.Catalog
	previews *service.PreviewService
}

func NewCatalogHandler(cat *catalog.Catalog, previews *service.PreviewService) *CatalogHandler {
	return &CatalogHandler{catalog: cat, previews: previews}
}

// Music handles GET /api/music
func (h *CatalogHandler) Music(c *fiber.Ctx) error {
	tracks := h.catalog.Tracks()
	for i := range tracks {
		tracks[i].PreviewURL = "/api/music/" + tracks[i].ID + "/preview"
	}
	return response.OK(c, tracks)
}

// Voices handles GET /api/voices
func (h *CatalogHandler) Voices(c *fiber.Ctx) error {
	voices := h.catalog.Voices()
	for i := range voices {
		voices[i].PreviewURL = "/api/voices/" + voices[i].ID + "/preview"
	}
	return response.OK(c, voices)
}

// MusicPreview handles GET /api/music/:trackId/preview?duration_sec=10
func (h *CatalogHandler) MusicPreview(c *fiber.Ctx) error {
	result, err := h.previews.Music(c.UserContext(), c.Params("trackId"), c.QueryInt("duration_sec", service.PreviewDefaultSec))
	if err != nil {
		return writeError(c, err)
	}
	return sendAudio(c, result, false)
}

// VoicePreview handles GET /api/voices/:voiceId/preview?lang=ru
func (h *CatalogHandler) VoicePreview(c *fiber.Ctx) error {
	result, err := h.previews.Voice(c.UserContext(), c.Params("voiceId"), c.Query("lang", "ru"))
	if err != nil {
		return writeError(c, err)
	}
	return sendAudio(c, result, false)
}

// sendAudio writes an mp3 body, as a download when attachment is set.
func sendAudio(c *fiber.Ctx, result *model.JobResult, attachment bool) error {
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`%s; filename="%s"`, disposition, result.Filename))
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(result.Data)
}
