package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gvsdash/internal/bootstrap"
	"gvsdash/internal/config"
	"gvsdash/internal/i18n"
	"gvsdash/internal/logging"
)

// cli holds what every subcommand shares once the root has run.
type cli struct {
	console *bootstrap.Console
	jsonOut bool
	out     io.Writer
}

// newRootCmd builds the command tree. The returned func releases the
// console once the command has run, whether it failed or not.
func newRootCmd() (*cobra.Command, func() error) {
	c := &cli{}

	root := &cobra.Command{
		Use:           "gvsctl",
		Short:         "Operator console for the GVS consumption and ML backend",
		Long:          `Sign in, import and export Excel workbooks, start training, forecasting and anomaly scans, and follow the resulting background tasks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.out = cmd.OutOrStdout()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.New(cfg.Log)
			log.SetOutput(cmd.ErrOrStderr())

			console, err := bootstrap.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			c.console = console
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		c.authCmd(),
		c.dataCmd(),
		c.analyticsCmd(),
		c.mlCmd(),
		c.notificationsCmd(),
		c.scheduleCmd(),
	)
	return root, c.close
}

func (c *cli) close() error {
	if c.console == nil {
		return nil
	}
	err := c.console.Close()
	c.console = nil
	return err
}

// fail turns an error into the fixed localized message.
func (c *cli) fail(err error, fallback i18n.MessageID) error {
	return errors.New(c.console.Message(err, fallback))
}

// print writes v as indented JSON under --json, or calls text otherwise.
func (c *cli) print(v interface{}, text func(w io.Writer)) error {
	if !c.jsonOut {
		text(c.out)
		return nil
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
