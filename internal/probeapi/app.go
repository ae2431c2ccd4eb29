package probeapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"gatewayprobe/internal/scenario"
	"gatewayprobe/pkg/config"
)

// App is the probe control service container: shared deps and config only.
type App struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	store    *config.Store
	runner   *scenario.Runner
	gatherer prometheus.Gatherer
}

func New(cfg config.Config, log *zap.SugaredLogger, store *config.Store, runner *scenario.Runner, gatherer prometheus.Gatherer) *App {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &App{cfg: cfg, log: log, store: store, runner: runner, gatherer: gatherer}
}
