package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "github.com/wekabeka1996/aurora/internal/middleware"
	"github.com/wekabeka1996/aurora/internal/service/calibration"
	"github.com/wekabeka1996/aurora/internal/service/feed"
	"github.com/wekabeka1996/aurora/internal/usecase"
	pkgch "github.com/wekabeka1996/aurora/pkg/clickhouse"
	"github.com/wekabeka1996/aurora/pkg/config"
	xhttp "github.com/wekabeka1996/aurora/pkg/http"
	pkgkafka "github.com/wekabeka1996/aurora/pkg/kafka"
	applogger "github.com/wekabeka1996/aurora/pkg/logger"
)

// App encapsulates the entire application lifecycle: the HTTP surface, the
// event buffer flusher, the outcome consumer, the calibration refresher,
// the feed pump, and the idempotency sweeper.
type App struct {
	cfg        *config.Config
	handler    xhttp.Handler
	buffer     *mid.EventBuffer
	consumer   *pkgkafka.Consumer
	oh         *usecase.OutcomeHandler
	refresher  *calibration.Refresher
	runner     *feed.Runner
	idem       *usecase.IdempotencyStore
	chClient   *pkgch.Client
	log        *applogger.Logger
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	handler xhttp.Handler,
	buffer *mid.EventBuffer,
	consumer *pkgkafka.Consumer,
	oh *usecase.OutcomeHandler,
	refresher *calibration.Refresher,
	runner *feed.Runner,
	idem *usecase.IdempotencyStore,
	chClient *pkgch.Client,
	log *applogger.Logger,
) *App {
	return &App{
		cfg:       cfg,
		handler:   handler,
		buffer:    buffer,
		consumer:  consumer,
		oh:        oh,
		refresher: refresher,
		runner:    runner,
		idem:      idem,
		chClient:  chClient,
		log:       log,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	a.buffer.Start(ctx)
	a.log.Info("event buffer started")

	sweep := a.cfg.Pipeline.SweepInterval
	if sweep <= 0 {
		sweep = time.Minute
	}
	go a.idem.Run(ctx, sweep)

	go a.refresher.Run(ctx)

	if a.runner != nil {
		go a.runner.Run(ctx)
		a.log.Info("snapshot feed started", applogger.Strings("symbols", a.cfg.Feed.Symbols))
	}

	if a.consumer != nil && a.oh != nil {
		a.consumer.RegisterHandler(a.oh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("outcome consumer started", applogger.String("topic", a.oh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Stop the buffer last among producers so pending events flush.
	a.buffer.Stop()

	// Flush any aggregated logs before the producer goes away.
	a.log.RemoveCollector()

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
