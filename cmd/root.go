package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aayush9029/apple-mail-exporter/config"
	"github.com/Aayush9029/apple-mail-exporter/filter"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "apple-mail-exporter [keywords...]",
	Short: "Export emails from Apple Mail by keyword search",
	Long: "Searches the Apple Mail Envelope Index for messages whose subject, sender address or\n" +
		"sender name contains any keyword and writes one Markdown document per match.\n" +
		"Run without keywords for the interactive prompt.",
	Args:          cobra.ArbitraryArgs,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	config.RegisterPersistentFlags(rootCmd)
	config.RegisterExportFlags(rootCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cmd)
	if err != nil {
		return err
	}

	logger, cleanup, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = cleanup()
	}()
	slog.SetDefault(logger)

	paths, err := cfg.MailPaths()
	if err != nil {
		return err
	}

	f, err := filter.New(filterOptions(cfg))
	if err != nil {
		return fmt.Errorf("create filter: %w", err)
	}

	app := &app{cfg: cfg, paths: paths, filter: f, logger: logger}

	keywords := cleanKeywords(args)
	if cfg.Interactive || len(keywords) == 0 {
		return newSession(cmd.Context(), app, cmd.InOrStdin(), cmd.OutOrStdout()).loop()
	}

	logger.Info("starting apple-mail-exporter", "keywords", strings.Join(keywords, ","), "mailDir", paths.Dir, "output", cfg.OutputDir)
	return app.searchAndExport(cmd.Context(), cmd.OutOrStdout(), keywords)
}

func filterOptions(cfg config.Config) filter.Options {
	return filter.Options{
		IncludeSubject: cfg.IncludeSubject,
		IncludeSender:  cfg.IncludeSender,
		ExcludeSubject: cfg.ExcludeSubject,
		ExcludeSender:  cfg.ExcludeSender,
	}
}

func cleanKeywords(raw []string) []string {
	keywords := make([]string, 0, len(raw))
	for _, kw := range raw {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}
