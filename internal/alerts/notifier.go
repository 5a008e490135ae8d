// Package alerts posts the bot's lifecycle events to an external webhook,
// ported from the original core/alerts.py's `notify(event_type, payload)`.
// This is deliberately thin: the spec's alerting webhook is an external
// collaborator, not a feature this bot owns the semantics of.
package alerts

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// EventType names one of the alert events spec.md's external interface
// table defines.
type EventType string

const (
	EventMirrorOpen       EventType = "mirror_open"
	EventMirrorUpdate     EventType = "mirror_update"
	EventMirrorClose      EventType = "mirror_close"
	EventSlippageRejected EventType = "slippage_rejected"
	EventSubmissionFailed EventType = "submission_failed"
)

type payload struct {
	EventType EventType `json:"event_type"`
	Payload   any       `json:"payload"`
}

// Notifier posts alert events to a configured webhook URL.
type Notifier struct {
	client *resty.Client
	url    string
}

// New builds a Notifier posting to url. An empty url disables delivery
// (Notify becomes a no-op), which keeps the bot runnable without the
// external collaborator configured.
func New(url string) *Notifier {
	return &Notifier{client: resty.New(), url: url}
}

// Notify posts a single alert event. Delivery failures are logged, never
// returned: a webhook outage must not block trading.
func (n *Notifier) Notify(ctx context.Context, eventType EventType, body any) {
	if n.url == "" {
		return
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload{EventType: eventType, Payload: body}).
		Post(n.url)
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(eventType)).Msg("alerts: webhook delivery failed")
		return
	}
	if resp.IsError() {
		log.Warn().Str("event_type", string(eventType)).Int("status", resp.StatusCode()).Msg("alerts: webhook rejected event")
	}
}
