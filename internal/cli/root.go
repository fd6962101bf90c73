package cli

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hashtagcpt/psychophysics-parrot/internal/config"
)

// app carries state shared by the subcommands of one root command.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *log.Logger
}

// NewRootCmd builds the parrot command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "parrot",
		Short: "parrot - adaptive up-down staircases for psychophysics",
		Long: `parrot runs adaptive up-down staircases that estimate a perceptual
threshold from direction reversals.

It can simulate a two-interval observer, replay recorded response
sequences, inspect stored sessions, and serve staircases over gRPC.

Example:
  parrot simulate --tracks 2 --db parrot.db --csv tallies.csv`,
		SilenceUsage:      true,
		PersistentPreRunE: a.loadConfig,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is .parrot.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log every staircase event")
	_ = a.v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(
		a.newSimulateCmd(),
		a.newReplayCmd(),
		a.newInspectCmd(),
		a.newExportFixtureCmd(),
		a.newServeCmd(),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	if err := config.Init(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	a.logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	if f := a.v.ConfigFileUsed(); f != "" && cfg.Verbose {
		a.logger.Printf("Using config file: %s", f)
	}
	return nil
}

// quietLogger discards runner chatter unless --verbose is set.
func (a *app) quietLogger() *log.Logger {
	if a.cfg.Verbose {
		return a.logger
	}
	return log.New(io.Discard, "", 0)
}
