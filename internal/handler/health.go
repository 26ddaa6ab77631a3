package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Components describes which collaborators this process was started with.
type Components struct {
	Database string `json:"database"`
	Storage  string `json:"storage"`
	Queue    bool   `json:"queue"`
	Events   bool   `json:"events"`
	Auth     bool   `json:"auth"`
}

type HealthHandler struct {
	components Components
}

func NewHealthHandler(components Components) *HealthHandler {
	return &HealthHandler{components: components}
}

// Root handles GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"timestamp": time.Now().Unix(),
	})
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"services": h.components,
	})
}
