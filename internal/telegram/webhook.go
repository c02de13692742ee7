package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgbridge/internal/domain"
	"tgbridge/internal/metrics"
)

const maxUpdateBytes = 1 << 20

// WebhookConfig configures the webhook HTTP server.
type WebhookConfig struct {
	Host            string
	Port            int
	Path            string // update delivery path (default: /updates)
	MetricsEndpoint string // serve Prometheus metrics here when non-empty
	Logger          *slog.Logger
}

// WebhookServer receives Telegram update deliveries, deduplicates them,
// and publishes normalized messages to the bus.
type WebhookServer struct {
	host            string
	port            int
	path            string
	metricsEndpoint string

	translator *Translator
	store      domain.DedupStore
	bus        domain.MessageBus
	reporter   *Reporter
	logger     *slog.Logger
	server     *http.Server
}

func NewWebhookServer(cfg WebhookConfig, translator *Translator, store domain.DedupStore, messageBus domain.MessageBus, reporter *Reporter) *WebhookServer {
	if cfg.Path == "" {
		cfg.Path = "/updates"
	}
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	return &WebhookServer{
		host:            cfg.Host,
		port:            cfg.Port,
		path:            cfg.Path,
		metricsEndpoint: cfg.MetricsEndpoint,
		translator:      translator,
		store:           store,
		bus:             messageBus,
		reporter:        reporter,
		logger:          cfg.Logger,
	}
}

// Start runs the webhook server until ctx is done, then shuts it down
// gracefully.
func (s *WebhookServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleUpdate)
	if s.metricsEndpoint != "" {
		mux.HandleFunc(s.metricsEndpoint, metrics.Collector.Handler())
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting", "addr", s.server.Addr, "path", s.path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

// handleUpdate processes one webhook delivery. The update id is claimed
// before translation, so a crash mid-translation cannot cause a second
// publish when Telegram redelivers; a duplicate delivery is the cheaper
// failure.
func (s *WebhookServer) handleUpdate(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	metrics.WebhookInFlight.Inc()
	defer metrics.WebhookInFlight.Dec()
	metrics.UpdatesReceived.Inc()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		s.rejectMalformed(rw, err, body)
		return
	}

	// Claim under the request context: a client disconnect before the
	// claim completes must not have claimed the id.
	claimed, err := s.store.Claim(r.Context(), int64(update.UpdateID))
	if err != nil {
		s.logger.Error("dedup claim failed", "update_id", update.UpdateID, "err", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !claimed {
		s.logger.Info("duplicate update suppressed", "update_id", update.UpdateID)
		metrics.UpdatesDuplicate.Inc()
		rw.WriteHeader(http.StatusOK)
		return
	}

	// Past the claim, processing runs to completion even if the client
	// goes away; a partial publish is worse than a late response.
	s.process(update)
	rw.WriteHeader(http.StatusOK)
}

func (s *WebhookServer) process(update tgbotapi.Update) {
	cu := s.translator.Classify(update)
	if cu.Kind == UpdateUnsupported {
		s.logger.Info("ignoring inbound update",
			"update_id", update.UpdateID,
			"reason", cu.Ignore,
		)
		metrics.UpdatesIgnored.Inc()
		return
	}

	s.bus.Publish(cu.Message)
	metrics.MessagesPublished.Inc()

	s.reporter.Status(domain.StatusEvent{
		Status:    domain.StatusOK,
		Component: domain.ComponentInbound,
		Type:      "good_inbound",
		Message:   "Good inbound request",
	})
}

// rejectMalformed answers a 400 with the parse error and the offending
// body echoed back, and reports the inbound component down. The update
// id is never claimed here; there may not even be one.
func (s *WebhookServer) rejectMalformed(rw http.ResponseWriter, parseErr error, body []byte) {
	s.logger.Warn("inbound update in unexpected format", "err", parseErr)
	metrics.UpdatesMalformed.Inc()

	s.reporter.Status(domain.StatusEvent{
		Status:    domain.StatusDown,
		Component: domain.ComponentInbound,
		Type:      "unexpected_update_format",
		Message:   "Inbound update in unexpected format",
		Details: map[string]any{
			"error":       parseErr.Error(),
			"req_content": string(body),
		},
	})

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(rw).Encode(map[string]string{
		"error":       parseErr.Error(),
		"req_content": string(body),
	})
}
