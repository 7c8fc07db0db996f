package webhook

import "errors"

// Failure taxonomy for the webhook pipeline. Handlers map these onto
// HTTP statuses; log output distinguishes attack attempts (bad
// signature) from misconfiguration from transient outages.
var (
	// ErrAuthenticationFailed: the payload's signature is missing or
	// does not match the shared secret.
	ErrAuthenticationFailed = errors.New("webhook signature verification failed")

	// ErrConfiguration: a required process-level setting (secret,
	// forward URL, mailer credential) is absent.
	ErrConfiguration = errors.New("webhook configuration missing")

	// ErrMalformedPayload: the body is not JSON-shaped or lacks
	// required fields for its declared kind.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrReferenceNotFound: the event references an account or
	// subscription this database does not know.
	ErrReferenceNotFound = errors.New("referenced entity not found")

	// ErrDispatchFailure: a side effect (mail, downstream forward)
	// could not be delivered.
	ErrDispatchFailure = errors.New("side effect dispatch failed")

	// ErrTransientStore: the backing store was unavailable; safe to
	// retry on redelivery.
	ErrTransientStore = errors.New("backing store unavailable")
)
