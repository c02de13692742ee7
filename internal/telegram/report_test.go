package telegram

import (
	"strings"
	"testing"

	"tgbridge/internal/bus"
	"tgbridge/internal/domain"
)

func newTestReporter(t *testing.T) (*Reporter, *eventRecorder) {
	t.Helper()
	logger := testLogger()
	events := bus.NewEventBus(logger)
	rec := recordEvents(events)
	return NewReporter(events, "telegram", logger), rec
}

func TestReport_SuccessPerKind(t *testing.T) {
	tests := []struct {
		kind       OutboundKind
		statusType string
	}{
		{OutboundTextMessage, "good_outbound_request"},
		{OutboundMediaMessage, "good_outbound_media_message"},
		{OutboundCallbackReply, "good_callback_query_reply"},
		{OutboundInlineReply, "good_inline_query_reply"},
	}

	for _, tt := range tests {
		reporter, rec := newTestReporter(t)
		msg := domain.NormalizedMessage{MessageID: "m-1"}
		reporter.Report(msg, APICall{Kind: tt.kind}, domain.Verdict{Success: true})

		if n := len(rec.byType(bus.EventDeliveryAck)); n != 1 {
			t.Errorf("kind %v: got %d acks, want 1", tt.kind, n)
		}
		statuses := rec.byType(bus.EventStatus)
		if len(statuses) != 1 {
			t.Fatalf("kind %v: got %d status events, want 1", tt.kind, len(statuses))
		}
		if statuses[0].Payload["type"] != tt.statusType {
			t.Errorf("kind %v: status type = %v, want %q", tt.kind, statuses[0].Payload["type"], tt.statusType)
		}
	}
}

func TestReport_FailurePrefixPerKind(t *testing.T) {
	tests := []struct {
		kind   OutboundKind
		prefix string
	}{
		{OutboundTextMessage, "Message not sent: "},
		{OutboundMediaMessage, "Media message not sent: "},
		{OutboundCallbackReply, "Callback query reply not sent: "},
		{OutboundInlineReply, "Inline query reply not sent: "},
	}

	for _, tt := range tests {
		reporter, rec := newTestReporter(t)
		msg := domain.NormalizedMessage{MessageID: "m-2"}
		reporter.Report(msg, APICall{Kind: tt.kind}, domain.Verdict{
			Reason:  domain.ReasonBadResponse,
			Message: "bad response from Telegram",
		})

		nacks := rec.byType(bus.EventDeliveryNack)
		if len(nacks) != 1 {
			t.Fatalf("kind %v: got %d nacks, want 1", tt.kind, len(nacks))
		}
		reason, _ := nacks[0].Payload["reason"].(string)
		if !strings.HasPrefix(reason, tt.prefix) {
			t.Errorf("kind %v: nack reason = %q, want prefix %q", tt.kind, reason, tt.prefix)
		}
	}
}

func TestReport_FailureEnrichesQueryID(t *testing.T) {
	reporter, rec := newTestReporter(t)
	msg := domain.NormalizedMessage{
		MessageID: "m-3",
		Transport: domain.TransportMeta{
			Type:    domain.TypeCallbackQuery,
			Details: &domain.QueryDetails{CallbackQueryID: "cbq-44"},
		},
	}
	reporter.Report(msg, APICall{Kind: OutboundCallbackReply}, domain.Verdict{
		Reason:  domain.ReasonBadResponse,
		Message: "bad response from Telegram",
	})

	statuses := rec.byType(bus.EventStatus)
	if len(statuses) != 1 {
		t.Fatalf("got %d status events, want 1", len(statuses))
	}
	details, _ := statuses[0].Payload["details"].(map[string]any)
	if details == nil || details["callback_query_id"] != "cbq-44" {
		t.Errorf("details = %v, want callback_query_id", statuses[0].Payload["details"])
	}
}

func TestReport_ExactlyOneResolutionEach(t *testing.T) {
	reporter, rec := newTestReporter(t)
	msg := domain.NormalizedMessage{MessageID: "m-4"}

	reporter.Report(msg, APICall{Kind: OutboundTextMessage}, domain.Verdict{Success: true})
	reporter.Report(msg, APICall{Kind: OutboundTextMessage}, domain.Verdict{
		Reason: domain.ReasonRequestRedirected, Message: "request redirected",
	})

	acks := len(rec.byType(bus.EventDeliveryAck))
	nacks := len(rec.byType(bus.EventDeliveryNack))
	statuses := len(rec.byType(bus.EventStatus))
	if acks != 1 || nacks != 1 || statuses != 2 {
		t.Errorf("acks=%d nacks=%d statuses=%d, want 1/1/2", acks, nacks, statuses)
	}
}

func TestMissingResults(t *testing.T) {
	reporter, rec := newTestReporter(t)
	reporter.MissingResults("m-5")

	nacks := rec.byType(bus.EventDeliveryNack)
	if len(nacks) != 1 {
		t.Fatalf("got %d nacks, want 1", len(nacks))
	}
	statuses := rec.byType(bus.EventStatus)
	if len(statuses) != 1 {
		t.Fatalf("got %d status events, want 1", len(statuses))
	}
	p := statuses[0].Payload
	if p["component"] != domain.ComponentInlineReply {
		t.Errorf("component = %v", p["component"])
	}
	if p["status"] != domain.StatusDown {
		t.Errorf("status = %v", p["status"])
	}
	details, _ := p["details"].(map[string]any)
	errText, _ := details["error"].(string)
	if !strings.Contains(errText, "disable your bot's inline mode") {
		t.Errorf("details error should explain the misconfiguration, got %q", errText)
	}
}
