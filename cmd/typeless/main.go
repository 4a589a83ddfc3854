package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/pairs"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := execute(newRootCmd(config.Load())); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.RuntimeConfig) *cobra.Command {
	root := &cobra.Command{
		Use:   "typeless",
		Short: "Fill web forms from saved label/value pairs",
		Long: `typeless keeps a list of label/value pairs and fills matching text
inputs and textareas on web pages.

Pairs are managed locally with "typeless pairs". Live browser tabs are
filled through "typeless serve", which drives Chrome over the DevTools
protocol; "typeless fill" asks a running server to fill a tab and
"typeless fill-html" fills a saved HTML file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd.ErrOrStderr(), cfg)
			return cfg.Validate()
		},
	}
	root.SetVersionTemplate("typeless {{.Version}}\n")

	root.AddCommand(
		newServeCmd(cfg),
		newFillCmd(cfg),
		newTabsCmd(cfg),
		newHealthCmd(cfg),
		newFillHTMLCmd(cfg),
		newPairsCmd(cfg),
		newConfigCmd(cfg),
		newVersionCmd(),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w (see %s --help)", err, cmd.CommandPath())
	})
	return root
}

// execute runs root and prints its error; cobra's own error output is
// silenced.
func execute(root *cobra.Command) error {
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "typeless %s\n", version)
		},
	}
}

func setupLogging(w io.Writer, cfg *config.RuntimeConfig) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
}

// openStore returns the pair manager for the configured store and a func
// releasing it.
func openStore(cfg *config.RuntimeConfig) (*pairs.Manager, func(), error) {
	path := cfg.StorePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create state dir: %w", err)
	}

	if cfg.StoreDriver == config.StoreSQLite {
		s, err := pairs.OpenSQLStore(path)
		if err != nil {
			return nil, nil, err
		}
		return pairs.NewManager(s), func() {
			if err := s.Close(); err != nil {
				slog.Warn("close pair store", "err", err)
			}
		}, nil
	}
	return pairs.NewManager(pairs.NewFileStore(path)), func() {}, nil
}

// newEngine builds the fill engine with the configured timings. A nil
// scheduler means real timers.
func newEngine(cfg *config.RuntimeConfig, s autofill.Scheduler) *autofill.Engine {
	t := autofill.DefaultTiming()
	if cfg.BlurDelay > 0 {
		t.BlurDelay = cfg.BlurDelay
	}
	if cfg.HighlightHold > 0 {
		t.HighlightHold = cfg.HighlightHold
	}
	if cfg.HighlightFade > 0 {
		t.HighlightFade = cfg.HighlightFade
	}
	if cfg.ActionTimeout > 0 {
		t.ScheduledTimeout = cfg.ActionTimeout
	}
	f := autofill.NewFiller(s, t)
	f.Highlight = cfg.Highlight
	return autofill.NewEngine(f)
}
