package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gvsdash/internal/i18n"
	"gvsdash/internal/jobs"
	"gvsdash/internal/services/scheduler"
)

func (c *cli) scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Recurring ML task submissions",
		Long:  `Schedules are stored locally and fire while the desktop app or "gvsctl schedule serve" is running.`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduled, err := c.console.Scheduler.ListJobs()
			if err != nil {
				return c.fail(err, i18n.MsgLoadFailed)
			}
			return c.print(scheduled, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tKIND\tCRON\tENABLED\tNEXT RUN\tLAST TASK")
				for _, j := range scheduled {
					next := "-"
					if j.NextRun != nil {
						next = *j.NextRun
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n", j.ID, j.Name, j.Kind, j.Cron, j.Enabled, next, j.LastTaskID)
				}
				_ = tw.Flush()
			})
		},
	}

	var (
		req      scheduler.UpsertJobRequest
		payload  string
		disabled bool
	)
	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or update a schedule",
		Long:  `Create or update a schedule by name. The payload is the JSON request body for the kind, e.g. '{"horizon_hours":24}' for a forecast.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			req.Enabled = !disabled
			req.Payload = payload

			id, err := c.console.Scheduler.UpsertJob(req)
			if err != nil {
				return c.fail(err, i18n.MsgScheduleFailed)
			}
			return c.print(map[string]string{"id": id}, func(w io.Writer) {
				fmt.Fprintf(w, "Saved schedule %s (%s)\n", req.Name, id)
			})
		},
	}
	set.Flags().StringVar(&req.Kind, "kind", "", "train, forecast or anomaly_scan")
	set.Flags().StringVar(&req.Cron, "cron", "", "5- or 6-field cron expression")
	set.Flags().StringVar(&payload, "payload", "", "JSON request body")
	set.Flags().BoolVar(&disabled, "disabled", false, "store without scheduling")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.console.Scheduler.DeleteJob(args[0]); err != nil {
				return c.fail(err, i18n.MsgScheduleFailed)
			}
			fmt.Fprintln(c.out, "Deleted")
			return nil
		},
	}

	var runW waitFlags
	run := &cobra.Command{
		Use:   "run <id>",
		Short: "Fire a schedule now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := c.console.Scheduler.RunNow(args[0])
			if err != nil {
				return c.fail(err, i18n.MsgScheduleFailed)
			}
			return c.follow(cmd.Context(), job, runW)
		},
	}
	runW.register(run.Flags())

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the schedules and poll their tasks until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c.console.Start(ctx)
			unsubscribe := c.console.Tracker.Subscribe(func(job jobs.Job) {
				if job.Terminal() {
					c.printJobLine(job)
				}
			})
			defer unsubscribe()

			fmt.Fprintln(c.out, "Scheduler running, press Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}

	cmd.AddCommand(list, set, del, run, serve)
	return cmd
}
