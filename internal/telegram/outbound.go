package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"tgbridge/internal/bus"
	"tgbridge/internal/domain"
	"tgbridge/internal/metrics"
)

// mediaEndpoints maps an attachment kind to the Bot API send method.
var mediaEndpoints = map[string]string{
	"photo":    "sendPhoto",
	"document": "sendDocument",
	"contact":  "sendContact",
	"venue":    "sendVenue",
	"location": "sendLocation",
}

var (
	// ErrMissingResults means an inline query reply arrived without the
	// results the answer requires. A half-answered inline query is worse
	// than none, so no upstream call is made.
	ErrMissingResults = errors.New("inline query reply missing results")

	// ErrUnsupportedAttachment means the attachment kind has no send
	// endpoint. Attachments are best-effort: the message is dropped,
	// logged, and neither acked nor nacked.
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")
)

// OutboundKind is the outbound classification: which upstream call a
// normalized message maps to.
type OutboundKind int

const (
	OutboundTextMessage OutboundKind = iota
	OutboundMediaMessage
	OutboundCallbackReply
	OutboundInlineReply
)

// APICall is exactly one upstream request: a Bot API endpoint, its JSON
// payload, and the status component the outcome is reported under.
type APICall struct {
	Kind      OutboundKind
	Endpoint  string
	Payload   map[string]any
	Component string
}

// BuildAPICall classifies a normalized outbound message and constructs
// its upstream request. First match wins: inline query reply, callback
// query reply, media attachment, plain text.
func BuildAPICall(msg domain.NormalizedMessage) (APICall, error) {
	switch {
	case msg.Transport.Type == domain.TypeInlineQuery:
		return buildInlineReply(msg)
	case msg.Transport.Type == domain.TypeCallbackQuery:
		return buildCallbackReply(msg), nil
	case msg.Helper.Attachment != nil:
		return buildMediaMessage(msg)
	default:
		return buildTextMessage(msg), nil
	}
}

// buildInlineReply answers an inline query. The results must come from
// the producing application; the bridge cannot invent them.
func buildInlineReply(msg domain.NormalizedMessage) (APICall, error) {
	if len(msg.Helper.Results) == 0 {
		return APICall{}, ErrMissingResults
	}

	var queryID string
	if msg.Transport.Details != nil {
		queryID = msg.Transport.Details.InlineQueryID
	}

	return APICall{
		Kind:     OutboundInlineReply,
		Endpoint: "answerInlineQuery",
		Payload: map[string]any{
			"inline_query_id": queryID,
			"results":         msg.Helper.Results,
		},
		Component: domain.ComponentInlineReply,
	}, nil
}

// buildCallbackReply answers a callback query. This must happen after
// every callback query, even without a visible reply, or the user is
// stuck with a progress bar. Extra answer options in helper details are
// merged without a fixed schema.
func buildCallbackReply(msg domain.NormalizedMessage) APICall {
	var queryID string
	if msg.Transport.Details != nil {
		queryID = msg.Transport.Details.CallbackQueryID
	}

	payload := map[string]any{
		"callback_query_id": queryID,
		"text":              msg.Content,
	}
	for k, v := range msg.Helper.Details {
		payload[k] = v
	}

	return APICall{
		Kind:      OutboundCallbackReply,
		Endpoint:  "answerCallbackQuery",
		Payload:   payload,
		Component: domain.ComponentCallbackReply,
	}
}

// buildMediaMessage sends an attachment. The attachment's kind selects
// the endpoint; its remaining fields become the payload as-is.
func buildMediaMessage(msg domain.NormalizedMessage) (APICall, error) {
	att := msg.Helper.Attachment
	endpoint, ok := mediaEndpoints[att.Kind]
	if !ok {
		return APICall{}, ErrUnsupportedAttachment
	}

	payload := map[string]any{
		"chat_id": chatID(msg.ToAddr),
	}
	for k, v := range att.Fields {
		payload[k] = v
	}
	addReplyTarget(payload, msg)

	return APICall{
		Kind:      OutboundMediaMessage,
		Endpoint:  endpoint,
		Payload:   payload,
		Component: domain.ComponentOutboundMedia,
	}, nil
}

// buildTextMessage sends plain text, merging any formatting options
// (parse mode, markup) the application supplied. Options are passed
// through opaquely.
func buildTextMessage(msg domain.NormalizedMessage) APICall {
	payload := map[string]any{
		"chat_id": chatID(msg.ToAddr),
		"text":    msg.Content,
	}
	addReplyTarget(payload, msg)
	for k, v := range msg.Helper.Options {
		payload[k] = v
	}

	return APICall{
		Kind:      OutboundTextMessage,
		Endpoint:  "sendMessage",
		Payload:   payload,
		Component: domain.ComponentOutbound,
	}
}

// addReplyTarget sets reply_to_message_id when the message is a direct
// reply and the inbound update recorded a true upstream message id.
func addReplyTarget(payload map[string]any, msg domain.NormalizedMessage) {
	if msg.InReplyTo != "" && msg.Transport.TelegramMsgID != 0 {
		payload["reply_to_message_id"] = msg.Transport.TelegramMsgID
	}
}

// chatID passes numeric chat ids as numbers, everything else (e.g.
// @channelusername) as strings. The Bot API accepts both.
func chatID(addr string) any {
	if n, err := strconv.ParseInt(addr, 10, 64); err == nil {
		return n
	}
	return addr
}

// Dispatcher maps outbound bus messages onto upstream calls and reports
// each outcome.
type Dispatcher struct {
	client   *Client
	reporter *Reporter
	events   *bus.EventBus
	logger   *slog.Logger
}

func NewDispatcher(client *Client, reporter *Reporter, events *bus.EventBus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:   client,
		reporter: reporter,
		events:   events,
		logger:   logger,
	}
}

// Dispatch handles one outbound message end to end: classify, call
// upstream, report. Construction failures resolve locally; upstream
// failures surface as a nack so the producer can decide on retry.
func (d *Dispatcher) Dispatch(ctx context.Context, msg domain.NormalizedMessage) {
	call, err := BuildAPICall(msg)
	switch {
	case errors.Is(err, ErrUnsupportedAttachment):
		d.logger.Info("unsupported attachment type, message dropped",
			"message_id", msg.MessageID,
			"attachment_type", msg.Helper.Attachment.Kind,
		)
		metrics.OutboundDropped.Inc()
		d.events.Emit(bus.Event{
			Type:   bus.EventUpdateDropped,
			Source: d.reporter.source,
			Payload: map[string]any{
				"message_id":      msg.MessageID,
				"attachment_type": msg.Helper.Attachment.Kind,
			},
		})
		return
	case errors.Is(err, ErrMissingResults):
		d.reporter.MissingResults(msg.MessageID)
		metrics.OutboundFailures.Inc()
		return
	}

	countOutbound(call.Kind)
	verdict := d.client.Post(ctx, call.Endpoint, call.Payload)
	if !verdict.Success {
		metrics.OutboundFailures.Inc()
	}
	d.reporter.Report(msg, call, verdict)
}

func countOutbound(kind OutboundKind) {
	switch kind {
	case OutboundTextMessage:
		metrics.OutboundText.Inc()
	case OutboundMediaMessage:
		metrics.OutboundMedia.Inc()
	case OutboundCallbackReply:
		metrics.OutboundCallback.Inc()
	case OutboundInlineReply:
		metrics.OutboundInline.Inc()
	}
}
