package bus

import (
	"log/slog"
	"sync"
	"time"

	"tgbridge/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based message bus for in-process use.
// It stands in for the platform's real bus transport, which is wired
// in at the edge of the process.
type InMemoryBus struct {
	inbound  chan domain.NormalizedMessage
	handlers map[string]func(domain.NormalizedMessage)
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates an InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound:  make(chan domain.NormalizedMessage, bufferSize),
		handlers: make(map[string]func(domain.NormalizedMessage)),
		logger:   logger,
	}
}

// Publish delivers an inbound message to subscribers. Blocks up to 10
// seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(msg domain.NormalizedMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus", "message_id", msg.MessageID)
		return
	}

	select {
	case b.inbound <- msg:
	default:
		b.logger.Warn("inbound bus full, waiting...", "message_id", msg.MessageID, "from", msg.FromAddr)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- msg:
			b.logger.Info("message delivered after wait", "message_id", msg.MessageID)
		case <-timer.C:
			b.logger.Error("message dropped: bus full for 10s",
				"message_id", msg.MessageID,
				"from", msg.FromAddr,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.NormalizedMessage {
	return b.inbound
}

// SendOutbound routes an outbound message to the handler registered for
// its transport name. Handlers run on the caller's goroutine.
func (b *InMemoryBus) SendOutbound(msg domain.NormalizedMessage) {
	b.mu.RLock()
	handler, ok := b.handlers[msg.TransportName]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no outbound handler registered",
			"transport", msg.TransportName,
			"message_id", msg.MessageID,
		)
		return
	}

	handler(msg)
}

func (b *InMemoryBus) OnOutbound(channelName string, handler func(domain.NormalizedMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channelName] = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
