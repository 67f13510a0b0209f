// Command careerctl is the operator CLI: bulk document ingestion, one-off
// match scoring and questions, and the NATS ingest worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/career-agent/pkg/config"
)

// env is filled by the root command before any subcommand runs.
type env struct {
	cfgFile string
	cfg     config.Config
	log     *slog.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:   "careerctl",
		Short: "Operate the career agent: ingest documents, score matches, run workers",
		Long: `careerctl shares configuration with the API server (environment, .env
and an optional config file) and talks to the same chunk store.

Examples:
  careerctl ingest --type resume 'resumes/**/*.pdf'
  careerctl ingest --type job --publish 'jobs/*.html'
  careerctl match 3f2c... job-42
  careerctl ask 3f2c... "Which cloud platforms have I used?"
  careerctl worker`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(e.cfgFile)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = cfg.Logger()
			slog.SetDefault(e.log)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&e.cfgFile, "config", os.Getenv("CONFIG_FILE"), "config file (yaml, json or toml)")

	root.AddCommand(newIngestCmd(e), newMatchCmd(e), newAskCmd(e), newWorkerCmd(e))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
