package constants

// Static route constants
const (
	HealthzRoute            = "/healthz"
	MetricsRoute            = "/metrics"
	WebhooksRoute           = "/webhooks"
	PaymentWebhookRoute     = "/payment"
	ApplicationWebhookRoute = "/application"
)
