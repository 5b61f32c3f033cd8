package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"assetgraph/internal/asset"
)

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered assets with their lifecycle status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().ListAssets(cmd.Context())
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd, resp)
			}

			t := newTable("ID", "KIND", "STATUS", "UPDATED", "UPSTREAM")
			for _, a := range resp.Assets {
				status := string(a.Meta.Status)
				switch {
				case a.Quarantined:
					status += " (quarantined)"
				case !a.Stored:
					status += " (not stored)"
				}
				t.addRow(a.Meta.Status, string(a.ID), a.Kind, status, ago(a.Meta.UpdatedAt), joinIDs(a.Upstream))
			}
			t.render(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), styleMuted.Render(fmt.Sprintf("%d assets", resp.Count)))
			return nil
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	var logLines int
	cmd := &cobra.Command{
		Use:   "get <asset-id>",
		Short: "Show the lifecycle metadata of one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := opts.client().GetAsset(cmd.Context(), asset.ID(args[0]))
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			m := view.Meta
			fmt.Fprintln(out, styleTitle.Render(string(view.ID)))
			fmt.Fprintln(out, keyValue("kind", view.Kind))
			fmt.Fprintln(out, keyValue("status", statusStyle(m.Status).Render(string(m.Status))))
			if view.Upstream != nil {
				fmt.Fprintln(out, keyValue("upstream", joinIDs(view.Upstream)))
				fmt.Fprintln(out, keyValue("refresh", string(view.RefreshMethod)))
			}
			fmt.Fprintln(out, keyValue("stored", fmt.Sprint(view.Stored)))
			if view.Quarantined {
				fmt.Fprintln(out, keyValue("quarantined", styleWarning.Render("yes")))
			}
			fmt.Fprintln(out, keyValue("updated", ago(m.UpdatedAt)))
			fmt.Fprintln(out, keyValue("materialized", span(m.MaterializingStartedAt, m.MaterializingStoppedAt)))
			fmt.Fprintln(out, keyValue("persisted", span(m.PersistingStartedAt, m.PersistingStoppedAt)))

			log := m.Log
			if logLines >= 0 && len(log) > logLines {
				log = log[len(log)-logLines:]
			}
			if len(log) > 0 {
				fmt.Fprintln(out, styleHeader.Render("log"))
				for _, line := range log {
					fmt.Fprintln(out, "  "+line)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&logLines, "log", "n", 5, "number of log lines to show (-1 for all)")
	return cmd
}

func newEligibilityCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "eligibility <asset-id>",
		Aliases: []string{"why"},
		Short:   "Explain whether an asset would be refreshed now",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := opts.client().Eligibility(cmd.Context(), asset.ID(args[0]))
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd, decision)
			}
			if decision.Eligible {
				fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render(iconOK+" eligible")+": "+decision.Reason)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), styleMuted.Render(iconSkip+" not eligible")+": "+decision.Reason)
			}
			return nil
		},
	}
}

func joinIDs(ids []asset.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
