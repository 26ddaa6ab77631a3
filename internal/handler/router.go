package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/affirmstudio/api/internal/config"
	"github.com/affirmstudio/api/internal/middleware"
	ws "github.com/affirmstudio/api/internal/websocket"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Health   *HealthHandler
	Auth     *AuthHandler
	Jobs     *JobHandler
	Billing  *BillingHandler
	Projects *ProjectHandler
	Voice    *VoiceHandler
	Privacy  *PrivacyHandler
	Catalog  *CatalogHandler
}

// Register mounts the public, gateway and API routes. A nil hub leaves /ws unmounted.
func Register(app *fiber.App, h Handlers, authenticate fiber.Handler, limiter *middleware.RateLimiter, limits config.RateLimitConfig, hub *ws.Hub) {
	app.Get("/", h.Health.Root)
	app.Get("/health", h.Health.Health)

	// ForwardAuth verification endpoint (called by the gateway)
	app.Get("/auth/verify", h.Auth.Verify)

	api := app.Group("/api", authenticate)

	api.Get("/music", h.Catalog.Music)
	api.Get("/music/:trackId/preview", h.Catalog.MusicPreview)
	api.Get("/voices", h.Catalog.Voices)
	api.Get("/voices/:voiceId/preview", h.Catalog.VoicePreview)
	api.Get("/limits", h.Billing.Limits)

	api.Post("/projects", h.Projects.Create)
	api.Get("/projects", h.Projects.List)

	jobs := api.Group("/jobs")
	jobs.Post("/", limiter.JobsLimit(limits.JobsPerHour), h.Jobs.Create)
	jobs.Get("/:jobId", h.Jobs.Status)
	jobs.Get("/:jobId/result", h.Jobs.Download)

	billing := api.Group("/billing")
	billing.Get("/packages", h.Billing.Packages)
	billing.Get("/purchases", h.Billing.ListPurchases)
	billing.Post("/purchases", h.Billing.CreatePurchase)
	billing.Post("/purchases/:purchaseId/confirm", h.Billing.ConfirmPurchase)
	billing.Post("/purchases/:purchaseId/expire", h.Billing.ExpirePurchase)

	voice := api.Group("/voice-samples")
	voice.Post("/", limiter.UploadLimit(limits.UploadPerHour), h.Voice.Upload)
	voice.Get("/latest", h.Voice.Latest)

	privacy := api.Group("/privacy")
	privacy.Delete("/voice", h.Privacy.DeleteVoice)
	privacy.Delete("/audio", h.Privacy.DeleteAudio)
	privacy.Post("/cleanup", h.Privacy.Cleanup)

	if hub == nil {
		return
	}

	// Progress push for the job's owner; polling GET /api/jobs/:jobId stays authoritative
	wsGroup := app.Group("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, middleware.UpgradeQueryToken(), authenticate)
	wsGroup.Get("/jobs/:jobId", h.Jobs.AuthorizeWatch, websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))
}
