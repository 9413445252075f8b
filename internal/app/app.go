package app

import (
	"log/slog"

	"github.com/trebuchet-org/sling/internal/adapters/abi"
	"github.com/trebuchet-org/sling/internal/domain/config"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Log    *slog.Logger

	// Shared dependencies
	Signer         usecase.Signer
	Repository     usecase.DeploymentRepository
	ArtifactLoader usecase.ArtifactLoader
	EventDecoder   *abi.EventDecoder
	Sink           usecase.ProgressSink

	// Use cases
	CompileContract  *usecase.CompileContract
	DeployContract   *usecase.DeployContract
	InvokeMethod     *usecase.InvokeMethod
	TrackTransaction *usecase.TrackTransaction
	InspectNetwork   *usecase.InspectNetwork
	ProbeEVM         *usecase.ProbeEVM
	RunPlan          *usecase.RunPlan
	ListDeployments  *usecase.ListDeployments
	ShowDeployment   *usecase.ShowDeployment
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	log *slog.Logger,
	signer usecase.Signer,
	repo usecase.DeploymentRepository,
	eventDecoder *abi.EventDecoder,
	sink usecase.ProgressSink,
	compileContract *usecase.CompileContract,
	deployContract *usecase.DeployContract,
	invokeMethod *usecase.InvokeMethod,
	trackTransaction *usecase.TrackTransaction,
	inspectNetwork *usecase.InspectNetwork,
	probeEVM *usecase.ProbeEVM,
	runPlan *usecase.RunPlan,
	listDeployments *usecase.ListDeployments,
	showDeployment *usecase.ShowDeployment,
	loader usecase.ArtifactLoader,
) (*App, error) {
	return &App{
		Config:           cfg,
		Log:              log,
		Signer:           signer,
		Repository:       repo,
		EventDecoder:     eventDecoder,
		Sink:             sink,
		CompileContract:  compileContract,
		DeployContract:   deployContract,
		InvokeMethod:     invokeMethod,
		TrackTransaction: trackTransaction,
		InspectNetwork:   inspectNetwork,
		ProbeEVM:         probeEVM,
		RunPlan:          runPlan,
		ListDeployments:  listDeployments,
		ShowDeployment:   showDeployment,
		ArtifactLoader:   loader,
	}, nil
}
