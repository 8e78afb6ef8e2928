// Command spreadbot is the cross-exchange arbitrage bot entry point. It loads
// configuration, applies CLI overrides, validates, sets up signal handling, and
// runs the configured mode. Exit codes: 0 for a clean or policy stop, 1 for a
// configuration error, 2 for an execution failure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/arbiq/spreadbot/internal/app"
	"github.com/arbiq/spreadbot/internal/config"
)

// stringList collects repeated flag occurrences, e.g. --exchange binance
// --exchange okx.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

func main() {
	var exchanges stringList
	configPath := flag.String("config", "config.toml", "path to configuration file")
	symbol := flag.String("symbol", "", "trading pair, e.g. BTC/USDT")
	flag.Var(&exchanges, "exchanges", "exchange to monitor (repeatable or comma-separated)")
	threshold := flag.Float64("threshold", 0, "minimum spread percentage to act on")
	limit := flag.Float64("limit", 0, "per-trade base amount cap for live trading")
	maxTrades := flag.Int("max-trades", -1, "stop after this many live trades (0 = unlimited)")
	realTrade := flag.Bool("real-trade", false, "execute live trades instead of simulating")
	monitor := flag.Bool("monitor", false, "alert-only mode, no trading")
	webhook := flag.String("webhook", "", "notification webhook URL")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// CLI flags override file and environment values.
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if len(exchanges) > 0 {
		cfg.Exchanges = exchanges
	}
	if *threshold > 0 {
		cfg.Threshold = *threshold
	}
	if *limit > 0 {
		cfg.TradeLimit = *limit
	}
	if *maxTrades >= 0 {
		cfg.MaxTrades = *maxTrades
	}
	if *realTrade {
		cfg.RealTrade = true
	}
	if *monitor {
		cfg.Mode = "monitor"
	}
	if *webhook != "" {
		cfg.Notify.WebhookURL = *webhook
	}

	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger.Info("spreadbot starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			if errors.Is(err, app.ErrExecutionFailed) {
				os.Exit(2)
			}
			os.Exit(1)
		}
	}

	logger.Info("spreadbot stopped")
}
