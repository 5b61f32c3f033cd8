package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"assetgraph/internal/asset"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and wait for the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := opts.client().Run(cmd.Context())
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd, report)
			}

			t := newTable("ID", "ELIGIBLE", "STATUS", "REASON")
			for _, a := range report.Assets {
				reason := a.Reason
				if a.Error != "" {
					reason = a.Error
				}
				t.addRow(a.Status, string(a.ID), fmt.Sprint(a.Eligible), string(a.Status), reason)
			}
			t.render(cmd.OutOrStdout())

			summary := fmt.Sprintf("run %s: %d refreshed, %d failed in %s",
				report.RunID, len(report.Materialized()), report.Failed(),
				report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
			if report.Failed() > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), styleError.Render(iconFail+" "+summary))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render(iconOK+" "+summary))
			}
			return nil
		},
	}
}

func newMarkRefreshedCmd(opts *options) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "mark-refreshed <source-id>",
		Short: "Record that a source asset was rewritten outside the graph",
		Long: `Record that a source asset was rewritten outside the graph.

Downstream assets see the refresh on their next evaluation. Only source
assets can be marked; computed assets refresh through runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().MarkRefreshed(cmd.Context(), asset.ID(args[0]), note)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render(iconOK+" "+string(resp.ID)+" marked refreshed"))
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "log entry recorded with the refresh")
	return cmd
}

func newMetaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "meta",
		Short: "List every stored metadata document, registered or not",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := opts.client().ListStored(cmd.Context())
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd, stored)
			}
			t := newTable("ID", "STATUS", "UPDATED")
			for _, s := range stored {
				t.addRow(s.Status, string(s.ID), string(s.Status), ago(s.UpdatedAt))
			}
			t.render(cmd.OutOrStdout())
			return nil
		},
	}
}
