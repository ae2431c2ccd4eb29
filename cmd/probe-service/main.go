// cmd/probe-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gatewayprobe/internal/auth"
	"gatewayprobe/internal/gateway"
	"gatewayprobe/internal/probeapi"
	"gatewayprobe/internal/scenario"
	"gatewayprobe/pkg/config"
	"gatewayprobe/pkg/logger"
	"gatewayprobe/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	probe, err := config.LoadProbe(cfg.SettingsFile)
	if err != nil {
		log.Fatalw("settings", "err", err)
	}
	if err := probe.Validate(); err != nil {
		log.Warnw("probe settings incomplete; scenarios refuse to run until PUT /config", "err", err)
	}
	store := config.NewStore(probe)

	httpClient := middleware.NewHTTPClient(cfg)
	runner := scenario.NewRunner(
		store,
		auth.New(cfg.TokenURL, auth.WithHTTPClient(httpClient), auth.WithFields(cfg.TokenField, cfg.ErrorField)),
		gateway.New(cfg.GatewayURL, gateway.WithHTTPClient(httpClient)),
		scenario.WithLogger(log),
		scenario.WithMetrics(scenario.NewMetrics(prometheus.DefaultRegisterer)),
	)
	app := probeapi.New(cfg, log, store, runner, prometheus.DefaultGatherer)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("probe-service listening", "addr", cfg.HTTPAddr, "tokenURL", cfg.TokenURL, "gatewayURL", cfg.GatewayURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = middleware.ShutdownTracing(ctx)
	fmt.Println("probe-service stopped")
}
