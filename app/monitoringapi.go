// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/lifecycle"
)

// wireMonitoringAPI registers the monitoring API (prometheus metrics and
// liveness) with the life cycle manager.
func wireMonitoringAPI(life *lifecycle.Manager, addr string, registry *prometheus.Registry) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, http.StatusOK, "ok")
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
	}

	life.RegisterStart(lifecycle.AsyncBackground, lifecycle.StartMonitoringAPI, lifecycle.HookFuncErr(func() error {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "monitoring api")
		}

		return nil
	}))

	life.RegisterStop(lifecycle.StopMonitoringAPI, lifecycle.HookFunc(func(ctx context.Context) error {
		return server.Shutdown(ctx) //nolint:wrapcheck
	}))
}

func writeResponse(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
