package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/containerd/log"
	"github.com/moby/isoserve/daemon/metrics"
	"github.com/pkg/errors"
)

func startMetricsServer(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "error starting metrics server")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		log.G(ctx).Infof("metrics API listening on %s", l.Addr())
		srv := &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Minute,
		}
		if err := srv.Serve(l); err != nil && !errors.Is(err, net.ErrClosed) {
			log.G(ctx).WithError(err).Error("error serving metrics API")
		}
	}()
	return nil
}
