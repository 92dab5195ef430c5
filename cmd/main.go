package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"

	"github.com/prasanthmj/email-agent/pkg/ai"
	"github.com/prasanthmj/email-agent/pkg/classifier"
	"github.com/prasanthmj/email-agent/pkg/config"
	"github.com/prasanthmj/email-agent/pkg/email"
	"github.com/prasanthmj/email-agent/pkg/generator"
	"github.com/prasanthmj/email-agent/pkg/monitor"
	"github.com/prasanthmj/email-agent/pkg/processor"
	"github.com/prasanthmj/email-agent/pkg/ratelimit"
	"github.com/prasanthmj/email-agent/pkg/storage"
)

type cliOptions struct {
	Once     bool   `long:"once" description:"Run a single processing pass and exit"`
	DryRun   bool   `long:"dry-run" description:"Analyze and generate but never send, delete or mark read"`
	Limit    int    `long:"limit" description:"Maximum emails per pass (overrides config)"`
	Sender   string `long:"sender" description:"Only process mail from this address"`
	Interval int    `long:"interval" description:"Check interval in minutes (overrides config)"`
	Check    bool   `long:"check" description:"Probe IMAP, SMTP and model connectivity, then exit"`
	Verbose  bool   `short:"v" long:"verbose" description:"Enable debug logging"`
}

func main() {
	var opts cliOptions
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(1)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "email-agent",
	})
	if opts.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if err := run(opts, logger); err != nil {
		logger.Fatal("agent failed", "error", err)
	}
}

func run(opts cliOptions, logger *log.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.Interval > 0 {
		cfg.CheckIntervalMinutes = opts.Interval
	}
	if opts.Limit > 0 {
		cfg.MaxEmailsPerBatch = opts.Limit
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateForOperation(); err != nil {
		return err
	}

	reader := email.NewReader(cfg)
	sender := email.NewSender(cfg)

	aiClient := ai.NewClient(ai.Options{
		BaseURL:     cfg.AIBaseURL,
		APIKey:      cfg.AIAPIKey,
		Model:       cfg.AIModel,
		Temperature: cfg.AITemperature,
		MaxTokens:   cfg.AIMaxTokens,
		Timeout:     cfg.AITimeout,
	}, logger.WithPrefix("ai"))

	if opts.Check {
		return runConnectionCheck(reader, sender, aiClient, logger)
	}

	quietStart, err := config.ParseClock(cfg.QuietHoursStart)
	if err != nil {
		return err
	}
	quietEnd, err := config.ParseClock(cfg.QuietHoursEnd)
	if err != nil {
		return err
	}

	guard := classifier.NewGuard(cfg.AllowedSenders, cfg.BlockedSenders, quietStart, quietEnd)
	limiter := ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMaxSends)
	gen := generator.New(aiClient, logger.WithPrefix("generator"))

	var audit *storage.AuditTrail
	if cfg.AuditEnabled {
		audit, err = storage.NewAuditTrail(cfg.AuditRoot, cfg.AuditMaxSize)
		if err != nil {
			return fmt.Errorf("failed to open audit trail: %w", err)
		}
	}

	proc := processor.New(cfg, reader, sender, gen, guard, limiter, audit, logger.WithPrefix("processor"))

	if err := aiClient.CheckConnection(context.Background()); err != nil {
		// The pipeline degrades to fallback replies without the model,
		// so this is a warning, not a startup failure.
		logger.Warn("model endpoint unreachable, replies will use fallback templates", "error", err)
	}

	if opts.Once {
		return runOnce(proc, opts, logger)
	}

	return runDaemon(cfg, proc, logger)
}

func runOnce(proc *processor.Processor, opts cliOptions, logger *log.Logger) error {
	result, err := proc.ProcessBatch(context.Background(), processor.BatchOptions{
		Limit:        opts.Limit,
		SenderFilter: opts.Sender,
		DryRun:       opts.DryRun,
	})
	if err != nil {
		return err
	}

	logger.Info("pass finished",
		"processed", result.Processed,
		"responded", result.Responded,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"duration", result.ProcessingTime)

	if result.Errors > 0 {
		return fmt.Errorf("%d emails failed", result.Errors)
	}
	return nil
}

func runDaemon(cfg *config.Config, proc *processor.Processor, logger *log.Logger) error {
	mon := monitor.New(
		proc,
		time.Duration(cfg.CheckIntervalMinutes)*time.Minute,
		cfg.HistoryCapacity,
		cfg.MisfireGrace,
		logger.WithPrefix("monitor"),
	)

	if err := mon.Start(); err != nil {
		return err
	}

	// First pass right away instead of waiting a full interval
	mon.ScheduleImmediate(0)

	logger.Info("agent running", "interval_minutes", cfg.CheckIntervalMinutes)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s)

	mon.Stop()

	health := mon.RunHealthCheck()
	logger.Debug("final health", "healthy", health.Healthy, "issues", health.Issues)
	return nil
}

func runConnectionCheck(reader *email.Reader, sender *email.Sender, aiClient *ai.Client, logger *log.Logger) error {
	failed := false

	imapStatus := reader.ConnectionStatus()
	logger.Info("imap", "connected", imapStatus.Connected, "authenticated", imapStatus.Authenticated, "error", imapStatus.Error)
	if !imapStatus.Authenticated {
		failed = true
	}

	smtpStatus := sender.ConnectionStatus()
	logger.Info("smtp", "connected", smtpStatus.Connected, "authenticated", smtpStatus.Authenticated, "error", smtpStatus.Error)
	if !smtpStatus.Authenticated {
		failed = true
	}

	if err := aiClient.CheckConnection(context.Background()); err != nil {
		logger.Info("model", "reachable", false, "error", err)
		failed = true
	} else {
		logger.Info("model", "reachable", true)
	}

	if failed {
		return fmt.Errorf("one or more connection checks failed")
	}
	logger.Info("all connections ok")
	return nil
}
