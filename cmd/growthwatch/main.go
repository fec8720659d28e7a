// growthwatch polls finance channels for new videos, extracts structured
// company commentary from their transcripts, records high-growth mentions and
// notifies a Slack channel.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"growthwatch/internal/config"
	"growthwatch/internal/extract"
	"growthwatch/internal/feed"
	"growthwatch/internal/ledger"
	"growthwatch/internal/notify"
	"growthwatch/internal/refdata"
	"growthwatch/internal/resolve"
	"growthwatch/internal/state"
	"growthwatch/internal/transcript"
	"growthwatch/internal/watch"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "growthwatch",
		Short:   "Watch finance channels for high-growth company mentions",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	run := &cobra.Command{
		Use:   "run",
		Short: "Poll channels continuously",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatcher(cmd.Context(), configPath, false)
		},
	}

	once := &cobra.Command{
		Use:   "once",
		Short: "Process one polling cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatcher(cmd.Context(), configPath, true)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				var err error
				path, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("refusing to overwrite existing config at %s", path)
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	})

	root.AddCommand(run, once, configCmd)
	return root
}

func runWatcher(ctx context.Context, configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Logging.Level)

	if len(cfg.Watch.Channels) == 0 {
		return fmt.Errorf("no channels configured; set watch.channels in the config file")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := buildWatcher(ctx, cfg)
	if err != nil {
		return err
	}

	if once {
		watcher.Cycle(ctx)
		return nil
	}
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func buildWatcher(ctx context.Context, cfg *config.Config) (*watch.Watcher, error) {
	index := refdata.LoadCSV(cfg.Reference.Path)

	resolverOpts := []resolve.Option{resolve.WithThreshold(cfg.Reference.SimilarityThreshold)}
	if len(cfg.Reference.SuffixTokens) > 0 {
		resolverOpts = append(resolverOpts, resolve.WithSuffixTokens(cfg.Reference.SuffixTokens))
	}
	resolver := resolve.New(index, resolverOpts...)

	visited, err := state.Load(cfg.VisitedPath())
	if err != nil {
		return nil, fmt.Errorf("load visited set: %w", err)
	}
	sent, err := state.Load(cfg.SentPath())
	if err != nil {
		return nil, fmt.Errorf("load sent set: %w", err)
	}

	generator, err := extract.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, err
	}
	extractor := extract.New(generator, cfg.Gemini.MaxRetries,
		time.Duration(cfg.Gemini.BackoffSeconds)*time.Second)

	acquirer := transcript.NewAcquirer(
		transcript.NewCaptionsClient(cfg.Transcript.Languages),
		transcript.NewSpeechToText(cfg.Transcript.WhisperModel),
	)

	emailSender := notify.NewEmailSender(notify.EmailConfig{
		SMTPServer: cfg.Email.SMTPServer,
		SMTPPort:   cfg.Email.SMTPPort,
		SMTPUser:   cfg.Email.SMTPUser,
		SMTPPass:   cfg.Email.SMTPPass,
		FromEmail:  cfg.Email.FromEmail,
		ToEmail:    cfg.Email.ToEmail,
	})
	dispatcher := notify.NewDispatcher(cfg.Slack.WebhookURL, sent, emailSender)

	return watch.New(watch.Config{
		Channels:       cfg.Watch.Channels,
		MaxVideos:      cfg.Watch.MaxVideosPerChannel,
		Interval:       time.Duration(cfg.Watch.PollIntervalSeconds) * time.Second,
		TitleThreshold: cfg.Reference.TitleThreshold,
		Lister:         feed.NewRSSLister(),
		Resolver:       resolver,
		Transcripts:    acquirer,
		Extractor:      extractor,
		Ledger:         ledger.New(cfg.Growth.LedgerPath, cfg.Growth.Threshold),
		Notifier:       dispatcher,
		Visited:        visited,
	}), nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
