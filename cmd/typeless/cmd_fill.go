package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/htmldoc"
	"github.com/spf13/cobra"
)

func newFillCmd(cfg *config.RuntimeConfig) *cobra.Command {
	var (
		tabID   string
		openURL string
		dryRun  bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill a browser tab through the running server",
		Long: `Ask a running "typeless serve" to fill a tab with the saved pairs.

Without --tab the server's first tab is filled. --url opens a new tab on
that page first. --dry-run lists what would be filled without writing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(cfg)
			ctx := cmd.Context()

			if openURL != "" {
				body, err := c.post(ctx, "/tabs", map[string]any{"url": openURL})
				if err != nil {
					return fmt.Errorf("open %s: %w", openURL, err)
				}
				var opened struct {
					TabID string `json:"tabId"`
				}
				if err := json.Unmarshal(body, &opened); err != nil {
					return fmt.Errorf("decode open tab response: %w", err)
				}
				tabID = opened.TabID
			}

			body, err := c.post(ctx, "/fill", map[string]any{"tabId": tabID, "dryRun": dryRun})
			if err != nil {
				return err
			}
			if dryRun || asJSON {
				printJSON(cmd.OutOrStdout(), body)
				return nil
			}

			var rep autofill.Report
			if err := json.Unmarshal(body, &rep); err != nil {
				return fmt.Errorf("decode report: %w", err)
			}
			newTerminalNotifier(cmd.OutOrStdout()).Notify(ctx, rep)
			if rep.Outcome == autofill.OutcomeError {
				return fmt.Errorf("fill failed: %s", rep.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tabID, "tab", "", "tab id to fill (default: first tab)")
	cmd.Flags().StringVar(&openURL, "url", "", "open this URL in a new tab and fill it")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the matches without filling")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw report")
	cmd.MarkFlagsMutuallyExclusive("tab", "url")
	return cmd
}

func newTabsCmd(cfg *config.RuntimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "tabs",
		Short: "List the server's browser tabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newClient(cfg).get(cmd.Context(), "/tabs", nil)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), body)
			return nil
		},
	}
}

func newHealthCmd(cfg *config.RuntimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newClient(cfg).get(cmd.Context(), "/health", url.Values{})
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), body)
			return nil
		},
	}
}

// settleScheduler runs deferred fill steps immediately. A static document
// has no one watching the highlight, so the written file shows the settled
// state.
type settleScheduler struct{}

func (settleScheduler) AfterFunc(d time.Duration, f func()) { f() }

func newFillHTMLCmd(cfg *config.RuntimeConfig) *cobra.Command {
	var (
		output   string
		noBanner bool
	)
	cmd := &cobra.Command{
		Use:   "fill-html <file|->",
		Short: "Fill the forms of a saved HTML document",
		Long: `Parse an HTML document, fill its inputs and textareas with the saved
pairs and write the result. "-" reads standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			doc, err := htmldoc.Parse(bytes.NewReader(in))
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			mgr, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := autofill.NewService(mgr, newEngine(cfg, settleScheduler{}), newTerminalNotifier(cmd.ErrOrStderr()))
			svc.Banner = cfg.Banner && !noBanner
			rep := svc.Fill(cmd.Context(), doc, autofill.PassTarget{URL: args[0]})
			if rep.Outcome == autofill.OutcomeError {
				return fmt.Errorf("fill failed: %s", rep.Error)
			}
			return writeOutput(cmd.OutOrStdout(), output, doc)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the filled document here (default: stdout)")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "do not add the notification banner")
	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeOutput(stdout io.Writer, path string, doc *htmldoc.Document) error {
	if path == "" || path == "-" {
		return doc.Render(stdout)
	}
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
