package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lixenwraith/settings"
	"github.com/lixenwraith/settings/editor"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	layers        []string
	secrets       []string
	envPrefix     string
	envSep        string
	defaultTarget string
	verbose       bool
}

// NewRootCommand builds the layerctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "layerctl",
		Short: "Inspect and edit layered configuration",
		Long: `layerctl merges configuration layers in the order given, later layers
winning, and reports which layer supplied every key.

Edits are written back into the file that supplied the key, preserving
comments and formatting where the file format allows it. Keys that no file
supplies go to --default-target.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&opts.layers, "layer", "l", nil, "configuration file layer, lowest precedence first (repeatable)")
	flags.StringArrayVar(&opts.secrets, "secrets", nil, "secrets file layer, applied after --layer files (repeatable)")
	flags.StringVar(&opts.envPrefix, "env-prefix", "", "environment variable prefix, applied last")
	flags.StringVar(&opts.envSep, "env-sep", "__", "environment variable nesting separator")
	flags.StringVar(&opts.defaultTarget, "default-target", "", "file receiving keys that no file supplies")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log layer resolution and saves to stderr")

	rootCmd.AddCommand(
		newSourcesCommand(opts),
		newGetCommand(opts),
		newSetCommand(opts),
		newUnsetCommand(opts),
		newDumpCommand(opts),
	)

	return rootCmd
}

func (o *rootOptions) logger(cmd *cobra.Command) zerolog.Logger {
	if !o.verbose {
		return zerolog.Nop()
	}
	output := zerolog.ConsoleWriter{
		Out:        cmd.ErrOrStderr(),
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Logger()
}

// load builds the configured layers with provenance.
func (o *rootOptions) load(cmd *cobra.Command) (*settings.Config, *settings.SourceMap, error) {
	b := settings.NewLayerBuilder().WithLogger(o.logger(cmd))
	for _, path := range o.layers {
		b.WithPath(path)
	}
	for _, path := range o.secrets {
		b.WithSecrets(path)
	}
	if o.envPrefix != "" {
		b.WithEnvVars(o.envPrefix, o.envSep)
	}
	return b.BuildWithProvenance()
}

func (o *rootOptions) configEditor(cmd *cobra.Command) (*editor.ConfigEditor, error) {
	_, sources, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	ce := editor.NewConfigEditor(sources)
	ce.SetLogger(o.logger(cmd))
	if o.defaultTarget != "" {
		ce.SetDefaultTarget(o.defaultTarget)
	}
	return ce, nil
}

func newSourcesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Print every key with the layer that supplied it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sources, err := opts.load(cmd)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), sources.AuditReport())
			return nil
		},
	}
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the merged value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sources, err := opts.load(cmd)
			if err != nil {
				return err
			}
			key := args[0]
			value, ok := cfg.Get(key)
			if !ok {
				return fmt.Errorf("key %q not found", key)
			}

			text, err := formatValue(value)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, text)
			if showSource {
				if meta, ok := sources.SourceOf(key); ok {
					fmt.Fprintf(out, "source: %s (layer %d)\n", meta, meta.LayerIndex)
				} else {
					fmt.Fprintln(out, "source: multiple (table)")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showSource, "source", "s", false, "also print the supplying layer")
	return cmd
}

func newSetCommand(opts *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Write a value into the file that supplied the key",
		Long: `Write a value into the file that supplied the key and save it.

VALUE is interpreted as a boolean, integer or float when it parses as one,
otherwise as a string. Use --raw to always store a string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ce, err := opts.configEditor(cmd)
			if err != nil {
				return err
			}

			var value any = args[1]
			if !raw {
				value = settings.ParseValue(args[1])
			}
			if err := ce.Set(args[0], value); err != nil {
				return err
			}
			return saveAndReport(cmd, ce)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "store VALUE as a string without type detection")
	return cmd
}

func newUnsetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a key from the file that supplied it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ce, err := opts.configEditor(cmd)
			if err != nil {
				return err
			}
			if err := ce.Unset(args[0]); err != nil {
				return err
			}
			return saveAndReport(cmd, ce)
		},
	}
}

func newDumpCommand(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the merged configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return cfg.Dump(cmd.OutOrStdout(), settings.Format(format))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "toml", "output format: toml, json or yaml")
	return cmd
}

func saveAndReport(cmd *cobra.Command, ce *editor.ConfigEditor) error {
	files := ce.DirtyFiles()
	if err := ce.Save(); err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", f)
	}
	return nil
}

// formatValue renders scalars as-is and tables or arrays as JSON.
func formatValue(v any) (string, error) {
	switch v.(type) {
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return fmt.Sprint(v), nil
	}
}
