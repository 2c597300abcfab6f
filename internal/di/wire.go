//go:build wireinject
// +build wireinject

package di

import (
	"github.com/wekabeka1996/aurora/pkg/config"
	"github.com/wekabeka1996/aurora/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideClock,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCache,

		// Repositories
		ProvideJournal,
		ProvideEventSink,
		ProvideEventBuffer,
		ProvideModelStore,
		ProvideCatalog,
		ProvideRiskStore,

		// Gates
		ProvideCalibrator,
		ProvideRefresher,
		ProvideTrapDetector,
		ProvideHealthGuard,
		ProvideSPRT,
		ProvideRiskManager,
		ProvideGovernance,

		// Use cases
		ProvideIdempotencyStore,
		ProvideLimiter,
		ProvidePipeline,
		ProvideKafkaConsumer,
		ProvideOutcomeHandler,
		ProvideFeedRunner,

		// Transport
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
