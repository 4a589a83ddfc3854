package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/pairs"
	"github.com/spf13/cobra"
)

func newPairsCmd(cfg *config.RuntimeConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairs",
		Short: "Manage saved label/value pairs",
		Long: `Manage the saved pairs. A field is filled by the first pair, in list
order, whose label appears in the field's id, name, label or placeholder.`,
	}
	cmd.AddCommand(
		newPairsListCmd(cfg),
		newPairsSearchCmd(cfg),
		newPairsAddCmd(cfg),
		newPairsDeleteCmd(cfg),
		newPairsExportCmd(cfg),
		newPairsImportCmd(cfg),
		newPairsCopyCmd(cfg),
	)
	return cmd
}

// withPairs opens the store for the duration of fn.
func withPairs(cfg *config.RuntimeConfig, fn func(*pairs.Manager) error) error {
	mgr, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(mgr)
}

func printPairs(w io.Writer, list []pairs.Pair) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No saved pairs.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tVALUE")
	for _, p := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.Label, p.Value)
	}
	_ = tw.Flush()
}

func newPairsListCmd(cfg *config.RuntimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved pairs in fill priority order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPairs(cfg, func(m *pairs.Manager) error {
				list, err := m.List(cmd.Context(), "")
				if err != nil {
					return err
				}
				printPairs(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
}

func newPairsSearchCmd(cfg *config.RuntimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search labels and values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPairs(cfg, func(m *pairs.Manager) error {
				list, err := m.List(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printPairs(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
}

func newPairsAddCmd(cfg *config.RuntimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "add <label> <value>",
		Short: "Save a pair, replacing the value of an existing label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPairs(cfg, func(m *pairs.Manager) error {
				p, created, err := m.Add(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %q (id %d)\n", p.Label, p.ID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Updated %q (id %d)\n", p.Label, p.ID)
				}
				return nil
			})
		},
	}
}

func newPairsDeleteCmd(cfg *config.RuntimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id|label>",
		Aliases: []string{"rm"},
		Short:   "Delete a pair by id or label",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPairs(cfg, func(m *pairs.Manager) error {
				p, err := resolvePair(cmd, m, args[0])
				if err != nil {
					return err
				}
				if err := m.Delete(cmd.Context(), p.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", p.Label)
				return nil
			})
		},
	}
}

// resolvePair finds a pair by numeric id, falling back to its label.
func resolvePair(cmd *cobra.Command, m *pairs.Manager, key string) (pairs.Pair, error) {
	list, err := m.Load(cmd.Context())
	if err != nil {
		return pairs.Pair{}, err
	}
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		for _, p := range list {
			if p.ID == id {
				return p, nil
			}
		}
	}
	if p, ok := pairs.Find(list, key); ok {
		return p, nil
	}
	return pairs.Pair{}, fmt.Errorf("%q: %w", key, pairs.ErrNotFound)
}

func newPairsExportCmd(cfg *config.RuntimeConfig) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every pair as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = pairs.FormatFromName(output)
			}
			return withPairs(cfg, func(m *pairs.Manager) error {
				list, err := m.Load(cmd.Context())
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					return pairs.Export(cmd.OutOrStdout(), list, pairs.FormatFromName(format))
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := pairs.Export(f, list, pairs.FormatFromName(format)); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d pair(s) to %s\n", len(list), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json or yaml (default: from the output name, else json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newPairsImportCmd(cfg *config.RuntimeConfig) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Merge pairs from an export",
		Long: `Merge pairs from a JSON or YAML export. Labels already saved have their
values replaced; new labels are appended.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = args[0]
			}
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			incoming, err := pairs.Decode(bytes.NewReader(data), pairs.FormatFromName(format))
			if err != nil {
				return err
			}
			return withPairs(cfg, func(m *pairs.Manager) error {
				created, updated, err := m.Import(cmd.Context(), incoming)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new, %d updated\n", created, updated)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json or yaml (default: from the file name, else json)")
	return cmd
}

func newPairsCopyCmd(cfg *config.RuntimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id|label>",
		Short: "Copy a pair's value to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPairs(cfg, func(m *pairs.Manager) error {
				p, err := resolvePair(cmd, m, args[0])
				if err != nil {
					return err
				}
				if err := pairs.CopyValue(p); err != nil {
					return fmt.Errorf("copy %q: %w", p.Label, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Copied value of %q\n", p.Label)
				return nil
			})
		},
	}
}
