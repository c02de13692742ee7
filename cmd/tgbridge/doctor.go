package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tgbridge/internal/config"
	"tgbridge/internal/dedup"
	"tgbridge/internal/domain"
	"tgbridge/internal/telegram"
)

func doctorCmd() *cobra.Command {
	var checkToken bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the bridge installation",
		Long: `Verifies that the bridge's configuration, dedup store, and webhook
listener are correctly set up. With --token, also verifies the bot token
against the Bot API. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("tgbridge doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'tgbridge init' to create a default configuration.\n")
				return fmt.Errorf("1 check(s) failed")
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", passed, 1)
				return fmt.Errorf("1 check(s) failed")
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Required settings
			if cfg.Telegram.BotToken == "" {
				printFail("Bot token", "telegram.botToken is not set")
				failed++
			} else {
				printPass("Bot token", "configured")
				passed++
			}
			if cfg.Telegram.InboundURL == "" {
				printWarn("Inbound URL", "telegram.inboundUrl is not set; webhook registration will fail")
				warned++
			} else {
				printPass("Inbound URL", cfg.Telegram.InboundURL)
				passed++
			}

			// 4. Dedup store claim round-trip
			if err := checkDedupStore(cfg); err != nil {
				printFail("Dedup store", err.Error())
				failed++
			} else if cfg.Dedup.DBPath == "" {
				printWarn("Dedup store", "in-memory (claims lost on restart)")
				warned++
			} else {
				printPass("Dedup store", cfg.Dedup.DBPath)
				passed++
			}

			// 5. Webhook port free
			if err := checkPort(cfg.Telegram.Webhook.Host, cfg.Telegram.Webhook.Port); err != nil {
				printWarn("Webhook port", fmt.Sprintf("port %d may be in use: %v", cfg.Telegram.Webhook.Port, err))
				warned++
			} else {
				printPass("Webhook port", fmt.Sprintf("%s:%d available", cfg.Telegram.Webhook.Host, cfg.Telegram.Webhook.Port))
				passed++
			}

			// 6. Token verification against the Bot API (opt-in: network)
			if checkToken && cfg.Telegram.BotToken != "" {
				username, verdict := verifyToken(cfg)
				if verdict.Success {
					printPass("Token check", "getMe ok, bot is "+username)
					passed++
				} else {
					printFail("Token check", fmt.Sprintf("%s: %s", verdict.Reason, verdict.Message))
					failed++
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running the bridge.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nThe bridge should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! The bridge is ready to run.\n")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkToken, "token", false, "verify the bot token against the Bot API (makes a network call)")
	return cmd
}

// checkDedupStore opens the configured store and exercises one claim:
// a fresh random id must claim true, then false.
func checkDedupStore(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	retention := time.Duration(cfg.Dedup.RetentionSeconds) * time.Second
	if cfg.Dedup.DBPath == "" {
		store := dedup.NewMemoryStore(retention)
		defer store.Close()
		return claimRoundTrip(ctx, store.Claim)
	}

	store, err := dedup.NewSQLiteStore(cfg.Dedup.DBPath, retention, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return claimRoundTrip(ctx, store.Claim)
}

func claimRoundTrip(ctx context.Context, claim func(context.Context, int64) (bool, error)) error {
	// Negative ids do not collide with real update_ids.
	id := -rand.Int64N(1 << 60)

	first, err := claim(ctx, id)
	if err != nil {
		return err
	}
	if !first {
		return fmt.Errorf("fresh id %d was already claimed", id)
	}
	second, err := claim(ctx, id)
	if err != nil {
		return err
	}
	if second {
		return fmt.Errorf("id %d claimed twice", id)
	}
	return nil
}

func verifyToken(cfg *config.Config) (string, domain.Verdict) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := telegram.NewClient(cfg.Telegram.BaseURL, cfg.Telegram.BotToken,
		time.Duration(cfg.Telegram.RequestTimeoutSeconds)*time.Second, logger)
	return client.GetMe(ctx)
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
