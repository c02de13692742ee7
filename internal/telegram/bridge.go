package telegram

import (
	"context"
	"log/slog"
	"time"

	"tgbridge/internal/bus"
	"tgbridge/internal/domain"
)

// TransportName is the routing key the bridge registers on the bus.
const TransportName = "telegram"

// BridgeConfig carries everything the bridge needs to talk upstream and
// listen for deliveries.
type BridgeConfig struct {
	BotUsername    string
	BotToken       string
	BaseURL        string        // outbound Bot API prefix
	InboundURL     string        // public URL registered via setWebhook
	RequestTimeout time.Duration // per upstream call

	Webhook WebhookConfig

	Logger *slog.Logger
}

// Bridge connects the Telegram Bot API to the message bus: updates in,
// API calls out, acks/nacks and statuses alongside.
type Bridge struct {
	cfg        BridgeConfig
	client     *Client
	translator *Translator
	dispatcher *Dispatcher
	reporter   *Reporter
	webhook    *WebhookServer
	logger     *slog.Logger
}

func NewBridge(cfg BridgeConfig, messageBus domain.MessageBus, events *bus.EventBus, store domain.DedupStore) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Webhook.Logger = logger

	client := NewClient(cfg.BaseURL, cfg.BotToken, cfg.RequestTimeout, logger)
	translator := NewTranslator(TransportName, cfg.BotUsername, logger)
	reporter := NewReporter(events, TransportName, logger)
	dispatcher := NewDispatcher(client, reporter, events, logger)
	webhook := NewWebhookServer(cfg.Webhook, translator, store, messageBus, reporter)

	return &Bridge{
		cfg:        cfg,
		client:     client,
		translator: translator,
		dispatcher: dispatcher,
		reporter:   reporter,
		webhook:    webhook,
		logger:     logger,
	}
}

func (b *Bridge) Name() string { return TransportName }

// Start registers the outbound handler, points Telegram's webhook at
// the inbound URL, and serves update deliveries until ctx is done.
// Each outbound message is handled on its own goroutine; ordering
// across messages is not guaranteed and not needed.
func (b *Bridge) Start(ctx context.Context, messageBus domain.MessageBus) error {
	b.reporter.Status(domain.StatusEvent{
		Status:    domain.StatusDown,
		Component: domain.ComponentSetup,
		Type:      "starting",
		Message:   "Telegram bridge starting...",
	})

	messageBus.OnOutbound(TransportName, func(msg domain.NormalizedMessage) {
		go b.dispatcher.Dispatch(ctx, msg)
	})

	b.setupWebhook(ctx)

	b.reporter.Status(domain.StatusEvent{
		Status:    domain.StatusOK,
		Component: domain.ComponentSetup,
		Type:      "started",
		Message:   "Telegram bridge set up",
	})

	return b.webhook.Start(ctx)
}

// setupWebhook tells Telegram where to deliver updates. A failure is
// reported but not fatal: the webhook may already be registered from a
// previous run, and the operator can re-run setwebhook.
func (b *Bridge) setupWebhook(ctx context.Context) {
	verdict := b.client.SetWebhook(ctx, b.cfg.InboundURL)
	if verdict.Success {
		b.logger.Info("webhook registered", "url", b.cfg.InboundURL)
		b.reporter.Status(domain.StatusEvent{
			Status:    domain.StatusOK,
			Component: domain.ComponentWebhook,
			Type:      "webhook_setup_success",
			Message:   "Webhook setup successful",
			Details:   map[string]any{"webhook_url": b.cfg.InboundURL},
		})
		return
	}

	b.logger.Warn("webhook setup failed", "url", b.cfg.InboundURL, "err", verdict.Message)
	b.reporter.Status(domain.StatusEvent{
		Status:    domain.StatusDown,
		Component: domain.ComponentWebhook,
		Type:      verdict.Reason,
		Message:   "Webhook setup failed: " + verdict.Message,
		Details:   verdict.Details,
	})
}
