package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"gvsdash/internal/api"
	"gvsdash/internal/i18n"
	"gvsdash/internal/jobs"
	"gvsdash/internal/services/analytics"
	"gvsdash/internal/services/training"
)

// waitFlags are shared by every submitting command.
type waitFlags struct {
	wait    bool
	timeout time.Duration
}

func (f *waitFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.wait, "wait", false, "poll until the task finishes")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Minute, "give up waiting after this long")
}

func (c *cli) mlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ml",
		Short: "Start and follow ML tasks",
	}

	var (
		preset string
		params training.Params
		trainW waitFlags
	)
	train := &cobra.Command{
		Use:   "train",
		Short: "Train the models",
		Long:  `Train with the stored form values. A preset replaces them first; explicit flags override both. The values used are stored for next time.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			form := c.console.Training.Load(ctx)
			if preset != "" {
				p, ok := training.PresetByID(preset)
				if !ok {
					return fmt.Errorf("unknown preset %q", preset)
				}
				form = p.Params
			}
			overrideParams(cmd.Flags(), &form, params)

			job, err := c.console.Training.Train(ctx, form)
			if err != nil {
				return c.fail(err, i18n.MsgTrainFailed)
			}
			return c.follow(ctx, job, trainW)
		},
	}
	fs := train.Flags()
	fs.StringVar(&preset, "preset", "", "draft, baseline or thorough")
	fs.BoolVar(&params.NARX, "narx", true, "train the NARX forecaster")
	fs.BoolVar(&params.AE, "ae", true, "train the autoencoder")
	fs.IntVar(&params.Window, "window", 24, "input window in hours")
	fs.IntVar(&params.AEThresholdPercentile, "ae-threshold", 99, "autoencoder threshold percentile")
	fs.IntVar(&params.Epochs, "epochs", 10, "training epochs")
	fs.Float64Var(&params.LR, "lr", 0.001, "learning rate")
	fs.IntVar(&params.BatchSize, "batch-size", 64, "batch size")
	fs.IntVar(&params.Seed, "seed", 42, "random seed")
	trainW.register(fs)

	var (
		hours     int
		forecastW waitFlags
	)
	forecast := &cobra.Command{
		Use:   "forecast",
		Short: "Run a consumption forecast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			job, err := c.console.Tracker.SubmitForecast(ctx, api.ForecastRequest{HorizonHours: hours})
			if err != nil {
				return c.fail(err, i18n.MsgForecastFailed)
			}
			return c.follow(ctx, job, forecastW)
		},
	}
	forecast.Flags().IntVar(&hours, "hours", api.DefaultForecastHorizon, "forecast horizon in hours")
	forecastW.register(forecast.Flags())

	var (
		scanRange analytics.Range
		scanW     waitFlags
	)
	scan := &cobra.Command{
		Use:   "scan",
		Short: "Scan for anomalies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req := api.AnomalyScanRequest{
				FromDT: analytics.NormalizeLocal(scanRange.From),
				ToDT:   analytics.NormalizeLocal(scanRange.To),
			}
			job, err := c.console.Tracker.SubmitAnomalyScan(ctx, req)
			if err != nil {
				return c.fail(err, i18n.MsgScanFailed)
			}
			return c.follow(ctx, job, scanW)
		},
	}
	scan.Flags().StringVar(&scanRange.From, "from", "", "start, local time (2025-04-01T00:00)")
	scan.Flags().StringVar(&scanRange.To, "to", "", "end, local time")
	scanW.register(scan.Flags())

	status := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Ask the backend for one task's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := c.console.Client.ML.TaskStatus(cmd.Context(), args[0])
			if err != nil {
				return c.fail(err, i18n.MsgRefreshFailed)
			}
			st := jobs.StatusUnknown
			if desc.Status != nil {
				st = jobs.ParseStatus(*desc.Status)
			}
			return c.print(desc, func(w io.Writer) {
				fmt.Fprintf(w, "%s  %s\n", desc.TaskID, c.console.Messages.T(st.Label()))
				if len(desc.Result) > 0 {
					fmt.Fprintf(w, "%s\n", desc.Result)
				}
			})
		},
	}

	var resumeW waitFlags
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Follow the training task left running by an earlier session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c.console.Tracker.Start(ctx)
			job, ok := c.console.Tracker.Latest(jobs.KindTrain)
			if !ok {
				fmt.Fprintln(c.out, "No training task to follow")
				return nil
			}
			resumeW.wait = true
			return c.follow(ctx, job, resumeW)
		},
	}
	watch.Flags().DurationVar(&resumeW.timeout, "timeout", 30*time.Minute, "give up waiting after this long")

	cmd.AddCommand(train, forecast, scan, status, watch)
	return cmd
}

// overrideParams copies the flags the user actually set onto the form.
func overrideParams(fs *pflag.FlagSet, form *training.Params, flags training.Params) {
	set := map[string]func(){
		"narx":         func() { form.NARX = flags.NARX },
		"ae":           func() { form.AE = flags.AE },
		"window":       func() { form.Window = flags.Window },
		"ae-threshold": func() { form.AEThresholdPercentile = flags.AEThresholdPercentile },
		"epochs":       func() { form.Epochs = flags.Epochs },
		"lr":           func() { form.LR = flags.LR },
		"batch-size":   func() { form.BatchSize = flags.BatchSize },
		"seed":         func() { form.Seed = flags.Seed },
	}
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
}

// follow prints the submitted job and, with --wait, every status change
// until it finishes. A failed task makes the command fail.
func (c *cli) follow(ctx context.Context, job jobs.Job, w waitFlags) error {
	if !w.wait {
		return c.printJob(job)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if !c.jsonOut {
		c.printJobLine(job)
	}
	// Terminal updates are printed after Wait returns, on this goroutine.
	last := job.Status.Presented()
	unsubscribe := c.console.Tracker.Subscribe(func(update jobs.Job) {
		if update.TaskID != job.TaskID || update.Terminal() || c.jsonOut {
			return
		}
		if st := update.Status.Presented(); st != last {
			last = st
			c.printJobLine(update)
		}
	})
	defer unsubscribe()

	c.console.Tracker.Start(ctx)
	done, err := c.console.Tracker.Wait(ctx, job.TaskID)
	if err != nil {
		return c.fail(err, i18n.MsgRefreshFailed)
	}
	if !job.Terminal() || c.jsonOut {
		if err := c.printJob(done); err != nil {
			return err
		}
	}
	if done.Status == jobs.StatusFailure {
		return c.fail(fmt.Errorf("task %s failed", done.TaskID), i18n.MsgStatusFailed)
	}
	return nil
}

func (c *cli) printJob(job jobs.Job) error {
	return c.print(job, func(io.Writer) { c.printJobLine(job) })
}

func (c *cli) printJobLine(job jobs.Job) {
	label := c.console.Messages.T(job.Status.Presented().Label())
	fmt.Fprintf(c.out, "%s  %-12s  %s", job.TaskID, job.Kind, label)
	if link := job.ResultLink(); link != "" {
		fmt.Fprintf(c.out, "  %s", link)
	}
	fmt.Fprintln(c.out)
}
