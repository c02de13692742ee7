package bus

import (
	"log/slog"
	"os"
	"testing"

	"tgbridge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	b.Publish(domain.NormalizedMessage{MessageID: "a", Content: "one"})
	b.Publish(domain.NormalizedMessage{MessageID: "b", Content: "two"})

	got := <-b.Subscribe()
	if got.MessageID != "a" {
		t.Errorf("first message = %q, want a", got.MessageID)
	}
	got = <-b.Subscribe()
	if got.MessageID != "b" {
		t.Errorf("second message = %q, want b", got.MessageID)
	}
}

func TestSendOutboundRoutesByTransport(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	var telegramGot, otherGot []string
	b.OnOutbound("telegram", func(msg domain.NormalizedMessage) {
		telegramGot = append(telegramGot, msg.MessageID)
	})
	b.OnOutbound("irc", func(msg domain.NormalizedMessage) {
		otherGot = append(otherGot, msg.MessageID)
	})

	b.SendOutbound(domain.NormalizedMessage{MessageID: "t1", TransportName: "telegram"})
	b.SendOutbound(domain.NormalizedMessage{MessageID: "i1", TransportName: "irc"})
	b.SendOutbound(domain.NormalizedMessage{MessageID: "x1", TransportName: "unknown"})

	if len(telegramGot) != 1 || telegramGot[0] != "t1" {
		t.Errorf("telegram handler got %v", telegramGot)
	}
	if len(otherGot) != 1 || otherGot[0] != "i1" {
		t.Errorf("irc handler got %v", otherGot)
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New(10, testLogger())
	b.Close()

	// Must not panic on the closed channel.
	b.Publish(domain.NormalizedMessage{MessageID: "late"})
}

func TestCloseIdempotent(t *testing.T) {
	b := New(10, testLogger())
	b.Close()
	b.Close()
}
