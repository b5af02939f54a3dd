package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	portrait "github.com/goliatone/go-portrait"
	"github.com/goliatone/go-portrait/internal/logging"
	"github.com/goliatone/go-portrait/internal/telemetry"
	"github.com/goliatone/go-portrait/pkg/config"
	"github.com/goliatone/go-portrait/pkg/tui"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	baseURL := flag.String("base-url", "", "portrait service base URL")
	locale := flag.String("locale", "", "message locale, e.g. en-US or zh-CN")
	logLevel := flag.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if v := strings.TrimSpace(*baseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(*locale); v != "" {
		cfg.Locale = v
	}
	if v := strings.TrimSpace(*logLevel); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("portrait-cli: %v", err)
	}
}

func run(cfg config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, "portrait-cli", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.WithError(err).Warn("tracing shutdown")
		}
	}()

	stack, err := portrait.NewStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"base_url": cfg.BaseURL,
		"locale":   stack.Messages.Resolve(cfg.Locale),
	}).Debug("starting")

	surface := tui.NewSurface(stack.Printer,
		tui.WithOutput(os.Stdout),
		tui.WithProgressInterval(cfg.ProgressInterval),
	)
	controller, err := stack.NewController(surface)
	if err != nil {
		return fmt.Errorf("failed to create wizard: %w", err)
	}

	runner, err := tui.NewRunner(controller, surface, stack.Printer,
		tui.WithDownloader(stack.Client),
		tui.WithDownloadDir(cfg.DownloadDir),
		tui.WithMaxImageBytes(cfg.MaxImageBytes),
		tui.WithLogger(logger.WithField("component", "tui")),
	)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
