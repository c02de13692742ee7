package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tgbridge/internal/bus"
	"tgbridge/internal/config"
	"tgbridge/internal/dedup"
	"tgbridge/internal/domain"
	"tgbridge/internal/telegram"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "tgbridge",
		Short:   "tgbridge: Telegram Bot API to message bus bridge",
		Long:    "tgbridge receives Telegram webhook updates, normalizes them onto a message bus, and delivers outbound bus messages back through the Bot API.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.tgbridge/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(bridgeCmd())
	root.AddCommand(setWebhookCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// newLogger builds the process logger from config: level, and an
// optional log file alongside stderr.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		if f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			w = io.MultiWriter(os.Stderr, f)
		} else {
			logger.Warn("cannot open log file, logging to stderr only", "path", cfg.General.LogFile, "err", err)
		}
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			fmt.Printf("Edit %s and set telegram.botToken, telegram.botUsername, and telegram.inboundUrl.\n", cfgPath)
			return nil
		},
	}
}

func bridgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bridge",
		Short: "Run the bridge (webhook server + outbound dispatcher)",
		Long:  "Registers the webhook with Telegram, serves update deliveries, and dispatches outbound bus messages. Press Ctrl+C to stop.",
		RunE:  runBridge,
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.botToken is not set in %s", cfgPath)
	}
	if cfg.Telegram.InboundURL == "" {
		return fmt.Errorf("telegram.inboundUrl is not set in %s", cfgPath)
	}

	logger = newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(cfg.Bus.BufferSize, logger)
	defer messageBus.Close()

	events := bus.NewEventBus(logger)

	// Status events are advisory; with no aggregator attached in-process
	// they are logged for the operator.
	events.On(bus.EventStatus, func(e bus.Event) {
		logger.Info("status",
			"status", e.Payload["status"],
			"component", e.Payload["component"],
			"type", e.Payload["type"],
			"message", e.Payload["message"],
		)
	})
	events.On(bus.EventDeliveryNack, func(e bus.Event) {
		logger.Warn("delivery nack",
			"message_id", e.Payload["message_id"],
			"reason", e.Payload["reason"],
		)
	})

	store, err := newDedupStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dedup store: %w", err)
	}
	defer store.Close()

	retention := time.Duration(cfg.Dedup.RetentionSeconds) * time.Second
	bridge := telegram.NewBridge(telegram.BridgeConfig{
		BotUsername:    cfg.Telegram.BotUsername,
		BotToken:       cfg.Telegram.BotToken,
		BaseURL:        cfg.Telegram.BaseURL,
		InboundURL:     cfg.Telegram.InboundURL,
		RequestTimeout: time.Duration(cfg.Telegram.RequestTimeoutSeconds) * time.Second,
		Webhook:        webhookConfig(cfg),
		Logger:         logger,
	}, messageBus, events, store)

	logger.Info("bridge starting",
		"bot", cfg.Telegram.BotUsername,
		"inbound_url", cfg.Telegram.InboundURL,
		"dedup_retention", retention,
	)

	return bridge.Start(ctx, messageBus)
}

func webhookConfig(cfg *config.Config) telegram.WebhookConfig {
	wc := telegram.WebhookConfig{
		Host: cfg.Telegram.Webhook.Host,
		Port: cfg.Telegram.Webhook.Port,
		Path: cfg.Telegram.Webhook.Path,
	}
	if cfg.Metrics.Enabled {
		wc.MetricsEndpoint = cfg.Metrics.Endpoint
	}
	return wc
}

// newDedupStore picks the claim store from config: SQLite when a path
// is set, in-memory otherwise. The purge loop stops with ctx.
func newDedupStore(ctx context.Context, cfg *config.Config) (domain.DedupStore, error) {
	retention := time.Duration(cfg.Dedup.RetentionSeconds) * time.Second
	if cfg.Dedup.DBPath == "" {
		logger.Warn("dedup.dbPath empty, using in-memory claim store (duplicates may recur after restart)")
		return dedup.NewMemoryStore(retention), nil
	}

	store, err := dedup.NewSQLiteStore(cfg.Dedup.DBPath, retention, logger)
	if err != nil {
		return nil, err
	}
	store.StartPurge(ctx, time.Duration(cfg.Dedup.PurgeIntervalSeconds)*time.Second)
	return store, nil
}

func setWebhookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setwebhook",
		Short: "Register the inbound webhook URL with Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Telegram.BotToken == "" || cfg.Telegram.InboundURL == "" {
				return fmt.Errorf("telegram.botToken and telegram.inboundUrl must be set in %s", cfgPath)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			client := telegram.NewClient(cfg.Telegram.BaseURL, cfg.Telegram.BotToken,
				time.Duration(cfg.Telegram.RequestTimeoutSeconds)*time.Second, logger)
			verdict := client.SetWebhook(ctx, cfg.Telegram.InboundURL)
			if !verdict.Success {
				return fmt.Errorf("webhook setup failed (%s): %s", verdict.Reason, verdict.Message)
			}
			logger.Info("webhook registered", "url", cfg.Telegram.InboundURL)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. telegram.webhook.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. dedup.retentionSeconds 3600)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (token masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
