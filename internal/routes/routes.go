package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/gastos-backend/internal/config"
	"github.com/Ananth-NQI/gastos-backend/internal/handlers"
	"github.com/Ananth-NQI/gastos-backend/internal/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, whatsapp *handlers.WhatsAppHandler, health *handlers.HealthHandler) {
	app.Get("/", health.Root)
	app.Get("/health", health.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	if cfg.DisableWebhookValidation {
		slog.Warn("webhook signature validation DISABLED")
		webhooks.Post("/whatsapp", whatsapp.HandleTwilioWebhook)
		webhooks.Post("/meta", whatsapp.HandleMetaWebhook)
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(cfg.TwilioAuthToken), whatsapp.HandleTwilioWebhook)
		webhooks.Post("/meta", middleware.ValidateMetaSignature(cfg.AppSecret), whatsapp.HandleMetaWebhook)
	}
	webhooks.Get("/meta", whatsapp.VerifyMetaWebhook)

	// ========== TEST ROUTES (Development Only) ==========
	if !cfg.IsProduction() {
		app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)
	}
}
