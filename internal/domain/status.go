package domain

// Status severities.
const (
	StatusOK   = "ok"
	StatusDown = "down"
)

// Components a status event may be tagged with.
const (
	ComponentSetup         = "setup"
	ComponentWebhook       = "webhook"
	ComponentInbound       = "inbound"
	ComponentOutbound      = "outbound"
	ComponentOutboundMedia = "outbound_media"
	ComponentCallbackReply = "callback_query_reply"
	ComponentInlineReply   = "inline_query_reply"
)

// StatusEvent is advisory telemetry for an external status aggregator.
// It never blocks or alters delivery decisions.
type StatusEvent struct {
	Status    string         `json:"status"`
	Component string         `json:"component"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
