package telegram

import (
	"log/slog"

	"tgbridge/internal/bus"
	"tgbridge/internal/domain"
)

// Reporter turns delivery verdicts into exactly one ack or nack plus
// exactly one status event. Status events are advisory telemetry: they
// never block or alter the ack/nack decision.
type Reporter struct {
	events *bus.EventBus
	source string
	logger *slog.Logger
}

func NewReporter(events *bus.EventBus, source string, logger *slog.Logger) *Reporter {
	return &Reporter{events: events, source: source, logger: logger}
}

// Ack reports a successful delivery of the given message.
func (r *Reporter) Ack(messageID string) {
	r.events.Emit(bus.Event{
		Type:   bus.EventDeliveryAck,
		Source: r.source,
		Payload: map[string]any{
			"message_id":      messageID,
			"sent_message_id": messageID,
		},
	})
}

// Nack reports a failed delivery with a human-readable reason.
func (r *Reporter) Nack(messageID, reason string) {
	r.events.Emit(bus.Event{
		Type:   bus.EventDeliveryNack,
		Source: r.source,
		Payload: map[string]any{
			"message_id": messageID,
			"reason":     reason,
		},
	})
}

// Status emits one health-status event for the external aggregator.
func (r *Reporter) Status(ev domain.StatusEvent) {
	r.events.Emit(bus.Event{
		Type:   bus.EventStatus,
		Source: r.source,
		Payload: map[string]any{
			"status":    ev.Status,
			"component": ev.Component,
			"type":      ev.Type,
			"message":   ev.Message,
			"details":   ev.Details,
		},
	})
}

// Report resolves one outbound delivery: ack plus an ok status on
// success, nack plus a down status on failure. Failure details are
// enriched with the query id for query replies so the producer can
// correlate.
func (r *Reporter) Report(msg domain.NormalizedMessage, call APICall, verdict domain.Verdict) {
	if verdict.Success {
		r.Ack(msg.MessageID)
		r.Status(domain.StatusEvent{
			Status:    domain.StatusOK,
			Component: call.Component,
			Type:      goodStatusType(call.Kind),
			Message:   "Outbound request successful",
		})
		return
	}

	human := failurePrefix(call.Kind) + verdict.Message
	details := verdict.Details
	if details == nil {
		details = map[string]any{}
	}
	if msg.Transport.Details != nil {
		switch call.Kind {
		case OutboundCallbackReply:
			details["callback_query_id"] = msg.Transport.Details.CallbackQueryID
		case OutboundInlineReply:
			details["inline_query_id"] = msg.Transport.Details.InlineQueryID
		}
	}

	r.logger.Warn("outbound delivery failed",
		"message_id", msg.MessageID,
		"endpoint", call.Endpoint,
		"reason", verdict.Reason,
		"err", verdict.Message,
	)

	r.Nack(msg.MessageID, human)
	r.Status(domain.StatusEvent{
		Status:    domain.StatusDown,
		Component: call.Component,
		Type:      verdict.Reason,
		Message:   human,
		Details:   details,
	})
}

// MissingResults nacks an inline query reply that carried no results
// and reports the inline reply component down. No upstream call was
// made.
func (r *Reporter) MissingResults(messageID string) {
	const human = "Inline query reply not sent: results field missing"

	r.logger.Info(human, "message_id", messageID)
	r.Nack(messageID, human)
	r.Status(domain.StatusEvent{
		Status:    domain.StatusDown,
		Component: domain.ComponentInlineReply,
		Type:      "bad_inline_query_reply",
		Message:   human,
		Details: map[string]any{
			"error": "Received an outbound inline query reply without any " +
				"results. Check that your application is configured to reply " +
				"to inline queries. If you're not supporting inline queries, " +
				"you should disable your bot's inline mode.",
		},
	})
}

func goodStatusType(kind OutboundKind) string {
	switch kind {
	case OutboundMediaMessage:
		return "good_outbound_media_message"
	case OutboundCallbackReply:
		return "good_callback_query_reply"
	case OutboundInlineReply:
		return "good_inline_query_reply"
	default:
		return "good_outbound_request"
	}
}

func failurePrefix(kind OutboundKind) string {
	switch kind {
	case OutboundMediaMessage:
		return "Media message not sent: "
	case OutboundCallbackReply:
		return "Callback query reply not sent: "
	case OutboundInlineReply:
		return "Inline query reply not sent: "
	default:
		return "Message not sent: "
	}
}
