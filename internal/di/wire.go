//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"BandPilot/pkg/config"
	"BandPilot/pkg/server"
)

var coreSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,

	// Infrastructure clients
	ProvideRedisCache,
	ProvideClickHouseClient,

	// Repositories
	ProvideSeriesStore,
	ProvideLocker,
	ProvideDecisionPublisher,

	// Providers
	ProvideProviderOptions,
	ProvideSentimentFetcher,
	ProvidePriceFetcher,
	ProvideSpotSource,

	// Use cases
	ProvideSeriesBuilder,
	ProvideBandsUseCase,
	ProvideReplayUseCase,
)

// InitializeApp wires up the HTTP application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideBandsHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeCore wires up the domain for command line use.
func InitializeCore(cfg *config.Config) (*Core, func(), error) {
	wire.Build(
		coreSet,
		ProvideCore,
	)
	return nil, nil, nil
}
