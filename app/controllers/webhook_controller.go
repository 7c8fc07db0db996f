package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/applitrack/AppliTrack/app/models"
	"github.com/applitrack/AppliTrack/internal/pkg/applications"
	"github.com/applitrack/AppliTrack/internal/pkg/billing"
	"github.com/applitrack/AppliTrack/internal/pkg/metrics/counter"
	"github.com/applitrack/AppliTrack/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

const (
	webhookSignatureHeader = "X-Webhook-Signature"
	webhookTimeout         = 15 * time.Second
)

var (
	paymentService     *billing.Service
	applicationService *applications.Service
)

// SetWebhookServices wires the shared pipeline services into the HTTP
// handlers. Called once during startup, before routes are served.
func SetWebhookServices(payment *billing.Service, application *applications.Service) {
	paymentService = payment
	applicationService = application
}

// HandlePaymentWebhook receives payment-provider events (checkout
// completions, subscription updates and cancellations).
func HandlePaymentWebhook(c *fiber.Ctx) error {
	if paymentService == nil {
		return encodeWebhookError(c, webhook.ErrConfiguration)
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get(webhookSignatureHeader)

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	result, err := paymentService.ProcessPaymentEvent(ctx, rawBody, signature)
	recordDeliveryMetric(models.WebhookSourcePayment, result, err)
	if err != nil {
		return encodeWebhookError(c, err)
	}
	return encodeWebhookResult(c, result)
}

// HandleApplicationWebhook receives database-change notifications for
// job application records and queues the downstream forward.
func HandleApplicationWebhook(c *fiber.Ctx) error {
	if applicationService == nil {
		return encodeWebhookError(c, webhook.ErrConfiguration)
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get(webhookSignatureHeader)

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	result, err := applicationService.ProcessChangeEvent(ctx, rawBody, signature)
	recordDeliveryMetric(models.WebhookSourceApplication, result, err)
	if err != nil {
		return encodeWebhookError(c, err)
	}
	return encodeWebhookResult(c, result)
}

// recordDeliveryMetric bumps the per-source outcome counter. Best
// effort; a cache outage must not affect the acknowledgment.
func recordDeliveryMetric(source string, result *billing.Result, err error) {
	outcome := "error"
	if err == nil && result != nil {
		outcome = result.Outcome
	}
	if cerr := counter.AddDelivery(source, outcome); cerr != nil {
		log.Debugf("[Webhook] Delivery counter update failed: %v", cerr)
	}
}

func encodeWebhookResult(c *fiber.Ctx, result *billing.Result) error {
	resp := fiber.Map{"success": true}
	if result.Duplicate {
		resp["duplicate"] = true
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// encodeWebhookError maps pipeline errors onto HTTP acknowledgments.
// Providers retry on non-2xx, so the status codes matter: 401 and 400
// mark deliveries that will never succeed, 500 asks for a retry.
func encodeWebhookError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, webhook.ErrAuthenticationFailed):
		return webhookErrorResponse(c, fiber.StatusUnauthorized, "authentication failed")
	case errors.Is(err, webhook.ErrMalformedPayload):
		return webhookErrorResponse(c, fiber.StatusBadRequest, "malformed payload")
	case errors.Is(err, webhook.ErrReferenceNotFound):
		return webhookErrorResponse(c, fiber.StatusBadRequest, "referenced record not found")
	case errors.Is(err, webhook.ErrConfiguration):
		log.Errorf("[Webhook] configuration error: %v", err)
		return webhookErrorResponse(c, fiber.StatusInternalServerError, "server configuration error")
	default:
		log.Errorf("[Webhook] processing failed: %v", err)
		return webhookErrorResponse(c, fiber.StatusInternalServerError, "temporary processing failure")
	}
}

func webhookErrorResponse(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": fiber.Map{"message": message}})
}
