// Package cli provides xferctl's command-line interface: upload/download
// subcommands driving the engine's public facades, with per-asset progress
// bars and retry logging wired off the transfer controller's event bus.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rescale/xferengine/internal/config"
	"github.com/rescale/xferengine/internal/logging"
)

var (
	cfgFile string
	verbose bool

	logger *logging.Logger
	cfg    *config.Config
)

// NewRootCmd creates xferctl's root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xferctl",
		Short: "Move files between local disk, blob stores, and a DAM over HTTP",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = logging.NewDefault()
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config INI (default: engine config dir)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newUploadCmd())
	root.AddCommand(newDownloadCmd())
	return root
}

// Execute runs xferctl's root command against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
