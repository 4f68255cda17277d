package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gvsdash/internal/api"
	"gvsdash/internal/i18n"
	"gvsdash/internal/services/analytics"
)

func (c *cli) dataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Processed consumption data",
	}

	var dedupe bool
	importCmd := &cobra.Command{
		Use:   "import <file.xlsx>...",
		Short: "Upload Excel workbooks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.console.Datasets.Import(cmd.Context(), args, dedupe)
			if err != nil {
				return c.fail(err, i18n.MsgImportFailed)
			}
			return c.print(report, func(w io.Writer) {
				keys := make([]string, 0, len(report))
				for k := range report {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(w, "%s: %v\n", k, report[k])
				}
			})
		},
	}
	importCmd.Flags().BoolVar(&dedupe, "dedupe", true, "skip rows already on the server")

	var (
		exportReq api.ExportRequest
		threshold float64
		noSave    bool
		dir       string
	)
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export processed anomalies to a workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exportReq.DtFrom = analytics.NormalizeLocal(exportReq.DtFrom)
			exportReq.DtTo = analytics.NormalizeLocal(exportReq.DtTo)
			if cmd.Flags().Changed("threshold") {
				exportReq.ThresholdPct = api.Float(threshold)
			}
			if noSave {
				exportReq.SaveToDB = api.Bool(false)
			}

			outcome, err := c.console.Datasets.Export(cmd.Context(), exportReq, dir)
			if err != nil {
				return c.fail(err, i18n.MsgExportFailed)
			}
			return c.print(outcome, func(w io.Writer) {
				if outcome.Path == "" {
					fmt.Fprintf(w, "%s: %v\n", c.console.Messages.T(i18n.MsgExportDone), outcome.Status)
					return
				}
				fmt.Fprintf(w, "%s: %s\n", c.console.Messages.T(i18n.MsgExportDone), outcome.Path)
				for _, sheet := range outcome.Sheets {
					fmt.Fprintf(w, "  %s: %d rows\n", sheet.Name, sheet.Rows)
				}
			})
		},
	}
	exportCmd.Flags().StringVar(&exportReq.DtFrom, "from", "", "start, local time (2025-04-01T00:00)")
	exportCmd.Flags().StringVar(&exportReq.DtTo, "to", "", "end, local time")
	exportCmd.Flags().Float64Var(&threshold, "threshold", 10, "anomaly threshold in percent")
	exportCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the detected anomalies")
	exportCmd.Flags().StringVar(&exportReq.Filename, "filename", "", "workbook name")
	exportCmd.Flags().StringVar(&dir, "dir", ".", "directory to write the workbook to")

	var params api.ListParams
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List processed records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			params.DtFrom = analytics.NormalizeLocal(params.DtFrom)
			params.DtTo = analytics.NormalizeLocal(params.DtTo)

			records, err := c.console.Client.ProcessedData.List(ctx, params)
			if err != nil {
				return c.fail(err, i18n.MsgLoadFailed)
			}
			total, err := c.console.Client.ProcessedData.Count(ctx, params)
			if err != nil {
				return c.fail(err, i18n.MsgLoadFailed)
			}

			out := map[string]interface{}{"items": records, "total": total}
			return c.print(out, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATETIME\tGVS\tHVS\tDELTA")
				for _, r := range records {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.RecordID, r.Datetime,
						number(r.ConsumptionGVS), number(r.ConsumptionHVS), number(r.DeltaGVSHVS))
				}
				_ = tw.Flush()
				fmt.Fprintf(w, "%d of %d\n", len(records), total)
			})
		},
	}
	listCmd.Flags().StringVar(&params.DtFrom, "from", "", "start, local time")
	listCmd.Flags().StringVar(&params.DtTo, "to", "", "end, local time")
	listCmd.Flags().IntVar(&params.Limit, "limit", 50, "page size")
	listCmd.Flags().IntVar(&params.Offset, "offset", 0, "rows to skip")

	cmd.AddCommand(importCmd, exportCmd, listCmd)
	return cmd
}

func number(n *api.Number) string {
	if n == nil {
		return "-"
	}
	v, _ := n.Float()
	return fmt.Sprintf("%.3f", v)
}
