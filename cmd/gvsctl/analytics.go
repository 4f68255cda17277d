package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gvsdash/internal/i18n"
	"gvsdash/internal/services/analytics"
)

func (c *cli) analyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Anomalies, forecasts and models",
	}

	var r analytics.Range
	overview := &cobra.Command{
		Use:   "overview",
		Short: "Summarize anomalies and forecasts for a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := c.console.Analytics.Overview(cmd.Context(), r)
			if err != nil {
				return c.fail(err, i18n.MsgLoadFailed)
			}
			return c.print(o, func(w io.Writer) {
				fmt.Fprintf(w, "Anomalies: %d (showing %d)\n", o.AnomalyCount, len(o.Anomalies))
				for _, day := range o.AnomaliesByDay {
					fmt.Fprintf(w, "  %s  %d\n", day.Day, day.Count)
				}
				fmt.Fprintf(w, "Forecasts: %d (showing %d)\n", o.ForecastCount, len(o.Forecasts))
			})
		},
	}
	overview.Flags().StringVar(&r.From, "from", "", "start, local time (2025-04-01T00:00)")
	overview.Flags().StringVar(&r.To, "to", "", "end, local time")

	models := &cobra.Command{
		Use:   "models",
		Short: "List trained models with their metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, matrix, err := c.console.Analytics.Models(cmd.Context())
			if err != nil {
				return c.fail(err, i18n.MsgLoadFailed)
			}
			out := map[string]interface{}{"models": list, "metrics": matrix}
			return c.print(out, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "MODEL\t%s\n", strings.ToUpper(strings.Join(matrix.Keys, "\t")))
				for _, row := range matrix.Rows {
					cells := make([]string, len(matrix.Keys))
					for i, key := range matrix.Keys {
						if v := row.Values[key]; v != nil {
							cells[i] = fmt.Sprintf("%.4g", *v)
						} else {
							cells[i] = "-"
						}
					}
					fmt.Fprintf(tw, "%s %s\t%s\n", row.Name, row.Version, strings.Join(cells, "\t"))
				}
				_ = tw.Flush()
			})
		},
	}

	cmd.AddCommand(overview, models)
	return cmd
}
