package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/career-agent/engine/app"
	"github.com/WessleyAI/career-agent/engine/ingest"
	"github.com/WessleyAI/career-agent/pkg/metrics"
)

func newWorkerCmd(e *env) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume ingest.requests from NATS and store the documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			nc, err := app.ConnectNATS(e.cfg, "careerctl-worker", e.log)
			if err != nil {
				return err
			}
			if nc == nil {
				return errors.New("worker needs nats_url")
			}
			defer nc.Drain()

			store, err := app.OpenChunkStore(e.cfg, e.log)
			if err != nil {
				return fmt.Errorf("chunk store: %w", err)
			}
			defer store.Close()

			svc := ingest.New(ingest.Deps{
				Embedder: app.NewEmbedder(e.cfg),
				Store:    store,
				Notify:   ingest.NATSNotifier(nc),
				Logger:   e.log,
			})
			sub, err := ingest.StartConsumer(nc, svc, e.log)
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", ingest.RequestSubject, err)
			}
			defer sub.Unsubscribe()

			if metricsAddr != "" {
				reg := metrics.New()
				up := reg.Gauge("worker_started_timestamp", "Epoch the ingest worker started.")
				up.Set(time.Now().Unix())
				srv := &http.Server{Addr: metricsAddr, Handler: reg.Handler(), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						e.log.Error("metrics server failed", "err", err)
					}
				}()
				defer srv.Close()
			}

			e.log.Info("ingest worker running", "subject", ingest.RequestSubject, "chunk_store", e.cfg.ChunkStore)
			<-ctx.Done()
			e.log.Info("ingest worker stopping")
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address, e.g. :9091")
	return cmd
}
