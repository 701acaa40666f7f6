//go:build wireinject
// +build wireinject

package di

import (
	"RegimeFlow/pkg/config"
	"RegimeFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,

		// Repositories
		ProvideRegimeStore,
		ProvideRegimePublisher,
		ProvideStateStore,
		ProvideFeatureStream,
		ProvideAlerter,

		// Engine
		ProvideClassifierParams,
		ProvideClassifier,

		// Use cases
		ProvideStreamProcessor,
		ProvideFeatureCollector,
		ProvideKafkaFeaturesHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
