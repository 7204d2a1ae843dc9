package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bgjob/internal/logging"
)

type metricsServer struct {
	srv  *http.Server
	addr net.Addr
}

// startMetricsServer serves reg on /metrics at addr until shutdown is called.
func startMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) (*metricsServer, error) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "metrics_server_failed"),
				logging.String(logging.FieldImpact, "worker metrics are no longer exported"),
			)
		}
	}()
	logger.Info("metrics server listening", logging.String("addr", ln.Addr().String()))
	return &metricsServer{srv: srv, addr: ln.Addr()}, nil
}

func (m *metricsServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.srv.Shutdown(ctx)
}
