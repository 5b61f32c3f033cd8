package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"assetgraph/internal/client"
	"assetgraph/internal/config"
)

// options are the global flags shared by every command.
type options struct {
	server     string
	apiKeyFile string
	timeout    time.Duration
	output     string
}

func (o *options) client() *client.Client {
	return client.New(o.server, config.GetSecretFile(o.apiKeyFile), o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "assetctl",
		Short: "Inspect and refresh the assets of an assets service",
		Long: styleTitle.Render("assetctl") + " - asset graph control\n\n" +
			"Lists assets and their lifecycle state, explains eligibility decisions,\n" +
			"triggers runs and records external refreshes of source assets.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "table", "json":
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want table or json)", opts.output)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.server, "server", config.GetEnv("ASSETS_URL", "http://localhost:8080"), "assets service base URL")
	flags.StringVar(&opts.apiKeyFile, "api-key-file", config.GetEnv("API_KEY_FILE", ""), "file holding the API key")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "request timeout, runs wait for completion")
	flags.StringVarP(&opts.output, "output", "o", "table", "output format (table, json)")

	root.AddCommand(
		newListCmd(opts),
		newGetCmd(opts),
		newEligibilityCmd(opts),
		newRunCmd(opts),
		newMarkRefreshedCmd(opts),
		newMetaCmd(opts),
	)
	return root
}

// printJSON writes v indented, for --output json.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
