package config

// DefaultRetentionSeconds matches how long Telegram keeps undelivered
// updates on its servers (24 hours).
const DefaultRetentionSeconds = 60 * 60 * 24

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Telegram: TelegramConfig{
			BaseURL:               "https://api.telegram.org/bot",
			RequestTimeoutSeconds: 30,
			Webhook: WebhookConfig{
				Host: "127.0.0.1",
				Port: 9090,
				Path: "/updates",
			},
		},
		Dedup: DedupConfig{
			DBPath:               "~/.tgbridge/dedup.db",
			RetentionSeconds:     DefaultRetentionSeconds,
			PurgeIntervalSeconds: 3600,
		},
		Bus: BusConfig{
			BufferSize: 100,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
