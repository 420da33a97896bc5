package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyxxlabs/sitescan/models"
	"github.com/fyxxlabs/sitescan/preview"
)

func scanCmd() *cobra.Command {
	var (
		req         models.ScanRequest
		showPreview bool
		quiet       bool
	)
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan one store and print the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			req.URL = args[0]

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p := buildPipeline(cfg)
			defer p.Close()

			sink := func(ev models.Progress) {
				if !quiet {
					fmt.Fprintf(os.Stderr, "[%3d%%] %-14s %s\n", ev.Percent, ev.Step, ev.Message)
				}
			}
			res, err := p.runner.Run(ctx, req, sink)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if showPreview {
				return enc.Encode(preview.Project(res))
			}
			return enc.Encode(res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.FetchMode, "fetch-mode", models.FetchModeRendered, "preferred fetch mode: rendered or plain")
	f.BoolVar(&req.SkipAI, "skip-ai", false, "run the baseline audit only")
	f.StringVar(&req.Platform, "platform", "", "store platform (shopify, woocommerce...)")
	f.StringVar(&req.Country, "country", "", "store country")
	f.StringVar(&req.Goal, "goal", "", "merchant goal forwarded to the AI")
	f.BoolVar(&showPreview, "preview", false, "print the redacted preview instead of the full result")
	f.BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}
