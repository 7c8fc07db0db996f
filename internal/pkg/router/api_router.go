package router

import (
	"github.com/applitrack/AppliTrack/app/controllers"
	"github.com/applitrack/AppliTrack/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
)

type ApiRouter struct {
}

// InstallRouter registers the inbound webhook endpoints.
func (h ApiRouter) InstallRouter(app *fiber.App) {
	webhooks := app.Group(constants.WebhooksRoute)
	webhooks.Post(constants.PaymentWebhookRoute, controllers.HandlePaymentWebhook)
	webhooks.Post(constants.ApplicationWebhookRoute, controllers.HandleApplicationWebhook)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
