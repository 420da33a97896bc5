package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyxxlabs/sitescan/config"
)

func main() {
	if err := newRoot().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "sitescan",
		Short:        "Storefront conversion audit",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(scanCmd())
	return root
}

// loadConfig loads configuration and initialises logging. Scan output goes
// to stdout, so the scan command logs to stderr.
func loadConfig(logToStderr bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	out := os.Stdout
	if logToStderr {
		out = os.Stderr
	}
	initLogger(cfg.Log, out)
	return cfg, nil
}
