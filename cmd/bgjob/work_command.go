package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"bgjob/internal/logging"
	"bgjob/internal/queue"
	"bgjob/internal/worker"
)

func newWorkCommand(ctx *commandContext) *cobra.Command {
	var (
		once        bool
		drain       bool
		queueName   string
		concurrency int
		workerID    string
		rateLimit   float64
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run a worker that claims and processes jobs",
		Long: "Run a worker that claims and processes jobs until interrupted.\n\n" +
			"With --once the worker processes at most one job; with --drain it processes\n" +
			"jobs until none are eligible and then exits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if once && drain {
				return errors.New("--once and --drain are mutually exclusive")
			}
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *base
			if cmd.Flags().Changed("queue") {
				cfg.Worker.Queue = strings.TrimSpace(queueName)
			}
			if cmd.Flags().Changed("concurrency") {
				if concurrency < 1 {
					return fmt.Errorf("--concurrency must be at least 1")
				}
				cfg.Worker.Concurrency = concurrency
			}
			if cmd.Flags().Changed("worker-id") {
				cfg.Worker.ID = strings.TrimSpace(workerID)
			}
			if cmd.Flags().Changed("rate-limit") {
				if rateLimit < 0 {
					return fmt.Errorf("--rate-limit must not be negative")
				}
				cfg.Worker.RateLimit = rateLimit
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Worker.MetricsAddr = strings.TrimSpace(metricsAddr)
			}

			logger, err := ctx.logger(true)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withStore(func(store *queue.Store) error {
				mgr := newManager(&cfg, store, logger)
				var opts []worker.Option
				if cfg.Worker.MetricsAddr != "" {
					reg := prometheus.NewRegistry()
					opts = append(opts, worker.WithMetrics(worker.NewMetrics(reg)))
					server, err := startMetricsServer(cfg.Worker.MetricsAddr, reg, logger)
					if err != nil {
						return err
					}
					defer server.shutdown()
				}
				w, err := worker.New(&cfg, mgr, logger, opts...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				switch {
				case once:
					processed, err := w.RunOnce(runCtx)
					if err != nil {
						return err
					}
					if processed {
						fmt.Fprintln(out, "Processed 1 job")
					} else {
						fmt.Fprintln(out, "No eligible jobs")
					}
					return nil
				case drain:
					count, err := w.Drain(runCtx)
					fmt.Fprintf(out, "Processed %d job(s)\n", count)
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}

				logger.Info("worker starting",
					logging.String(logging.FieldWorkerID, w.ID()),
					logging.String(logging.FieldQueue, cfg.Worker.Queue),
					logging.Int("concurrency", cfg.Worker.Concurrency),
					logging.String("db_path", store.Path()),
				)
				if err := w.Run(runCtx); err != nil {
					if errors.Is(err, worker.ErrWorkerIDInUse) {
						return fmt.Errorf("worker id %q is already running; pass --worker-id to start another worker", w.ID())
					}
					return err
				}
				status := w.Status()
				fmt.Fprintf(out, "Worker %s stopped: %d processed, %d succeeded, %d failed\n",
					status.ID, status.Processed, status.Succeeded, status.Failed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process at most one job and exit")
	cmd.Flags().BoolVar(&drain, "drain", false, "Process jobs until the queue is empty and exit")
	cmd.Flags().StringVarP(&queueName, "queue", "q", "", "Only process jobs from this queue (empty means every queue)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of jobs processed in parallel")
	cmd.Flags().StringVar(&workerID, "worker-id", "", "Claim identity for this worker (generated when empty)")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "Maximum jobs claimed per second (0 means unlimited)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}
