//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/sling/internal/adapters"
	"github.com/trebuchet-org/sling/internal/config"
	"github.com/trebuchet-org/sling/internal/logging"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Pipeline components
		usecase.NewNonceAllocator,
		usecase.NewTransactionBuilder,
		usecase.NewSubmitter,
		usecase.NewCodeVerifier,

		// Use cases
		usecase.NewCompileContract,
		usecase.NewDeployContract,
		usecase.NewInvokeMethod,
		usecase.NewTrackTransaction,
		usecase.NewInspectNetwork,
		usecase.NewProbeEVM,
		usecase.NewRunPlan,
		usecase.NewListDeployments,
		usecase.NewShowDeployment,

		// App
		NewApp,
	)
	return nil, nil
}
