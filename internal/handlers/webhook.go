package handlers

import (
	"log"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/repoviral/backend/internal/config"
	"github.com/repoviral/backend/internal/services"
)

type WebhookHandler struct {
	cfg           *config.Config
	subscriptions *services.SubscriptionService
}

func NewWebhookHandler(cfg *config.Config, subscriptions *services.SubscriptionService) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, subscriptions: subscriptions}
}

// Gumroad handles subscription events. Everything except a signature or
// parse failure is answered with 200 - Gumroad retries are useless for
// already-processed or ignored events.
func (h *WebhookHandler) Gumroad(c *fiber.Ctx) error {
	body := c.Body()

	if h.cfg.GumroadSecret != "" {
		signature := c.Get("X-Gumroad-Signature")
		if signature == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Missing X-Gumroad-Signature header",
			})
		}
		if !services.VerifySignature(h.cfg.GumroadSecret, signature, body) {
			log.Printf("gumroad webhook rejected: invalid signature")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Invalid signature",
			})
		}
	} else {
		log.Println("GUMROAD_COMMUNICATION_SECRET is not set. Skipping verification (unsafe in prod).")
	}

	// Gumroad sends application/x-www-form-urlencoded
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Malformed payload",
		})
	}

	event := services.SubscriptionEvent{
		Kind:             services.ParseEventKind(values.Get("resource_name")),
		Email:            values.Get("email"),
		ProductPermalink: values.Get("product_permalink"),
		SubscriptionID:   values.Get("subscription_id"),
		LicenseKey:       values.Get("license_key"),
	}

	outcome, err := h.subscriptions.Handle(event)
	if err != nil {
		// Store faults are logged but still acknowledged - the event is
		// not recoverable by a retry from the provider side.
		log.Printf("gumroad event failed (kind=%d email=%s): %v", event.Kind, event.Email, err)
		return c.JSON(fiber.Map{"status": "failed"})
	}

	if outcome.Applied {
		return c.JSON(fiber.Map{"status": "success"})
	}
	return c.JSON(fiber.Map{"status": "ignored", "reason": outcome.Reason})
}
