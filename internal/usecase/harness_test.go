package usecase_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	slingabi "github.com/trebuchet-org/sling/internal/adapters/abi"
	"github.com/trebuchet-org/sling/internal/adapters/artifacts"
	"github.com/trebuchet-org/sling/internal/adapters/devchain"
	"github.com/trebuchet-org/sling/internal/adapters/repository/deployments"
	"github.com/trebuchet-org/sling/internal/adapters/signer"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
	"github.com/trebuchet-org/sling/internal/testutil"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// recordingSink keeps every progress event for assertions
type recordingSink struct {
	mu     sync.Mutex
	events []usecase.ProgressEvent
	infos  []string
}

func (s *recordingSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) Info(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos = append(s.infos, message)
}

func (s *recordingSink) Error(string) {}

func (s *recordingSink) stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Stage
	}
	return out
}

// fakeCompiler answers with a canned standard-JSON output and remembers
// every input it was given
type fakeCompiler struct {
	mu     sync.Mutex
	output string
	inputs [][]byte
}

func (c *fakeCompiler) CompileStandardJSON(ctx context.Context, input []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = append(c.inputs, append([]byte(nil), input...))
	return []byte(c.output), nil
}

func (c *fakeCompiler) Version(ctx context.Context) (string, error) {
	return "0.8.19+commit.7dd6d404", nil
}

// storageOutput is what solc returns for a Storage.sol holding the fixture
func storageOutput() string {
	return `{"contracts":{"Storage.sol":{"Storage":{"abi":` + testutil.StorageABI +
		`,"evm":{"bytecode":{"object":"` + testutil.StorageCode[2:] + `"}}}}}}`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness wires the pipeline against an in-process chain the way the app
// container does against a node
type harness struct {
	cfg      *config.RuntimeConfig
	chain    *devchain.Chain
	signer   *signer.LocalSigner
	repo     *deployments.FileRepository
	sink     *recordingSink
	compiler *fakeCompiler
	root     string

	nonces    *usecase.NonceAllocator
	builder   *usecase.TransactionBuilder
	submitter *usecase.Submitter
	compile   *usecase.CompileContract
	deploy    *usecase.DeployContract
	invoke    *usecase.InvokeMethod
	track     *usecase.TrackTransaction
	probe     *usecase.ProbeEVM
	inspect   *usecase.InspectNetwork
	plan      *usecase.RunPlan
}

type harnessOptions struct {
	profile   func(*domain.NetworkProfile)
	chainOpts []devchain.Option
	noSigner  bool
	signerKey int
	wrap      func(usecase.ChainClient) usecase.ChainClient
}

type harnessOption func(*harnessOptions)

func withProfile(fn func(*domain.NetworkProfile)) harnessOption {
	return func(o *harnessOptions) { o.profile = fn }
}

func withChain(opts ...devchain.Option) harnessOption {
	return func(o *harnessOptions) { o.chainOpts = append(o.chainOpts, opts...) }
}

func withoutSigner() harnessOption {
	return func(o *harnessOptions) { o.noSigner = true }
}

func withSignerKey(i int) harnessOption {
	return func(o *harnessOptions) { o.signerKey = i }
}

// withClient puts wrap between the pipeline and the chain
func withClient(wrap func(usecase.ChainClient) usecase.ChainClient) harnessOption {
	return func(o *harnessOptions) { o.wrap = wrap }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	var o harnessOptions
	for _, opt := range opts {
		opt(&o)
	}

	profile := domain.DefaultNetworkProfile()
	profile.BlockTime = 30 * time.Millisecond
	profile.ConfirmTimeout = 5 * time.Second
	if o.profile != nil {
		o.profile(&profile)
	}

	root := t.TempDir()
	cfg := &config.RuntimeConfig{
		ProjectRoot:    root,
		DataDir:        filepath.Join(root, ".sling"),
		Network:        profile,
		Compiler:       config.DefaultCompilerConfig(),
		RPC:            config.DefaultRPCConfig(),
		NonInteractive: true,
	}

	log := discardLogger()
	h := &harness{
		cfg:      cfg,
		chain:    testutil.NewChain(t, append([]devchain.Option{devchain.WithChainID(profile.ChainID), devchain.WithLogger(log)}, o.chainOpts...)...),
		sink:     &recordingSink{},
		compiler: &fakeCompiler{output: storageOutput()},
		root:     root,
	}

	var err error
	h.repo, err = deployments.NewFileRepository(cfg.DataDir)
	require.NoError(t, err)

	var sgn usecase.Signer
	if !o.noSigner {
		h.signer = signer.NewLocalSigner(testutil.Key(o.signerKey))
		sgn = h.signer
	}

	args := slingabi.NewArgParser()
	revert := slingabi.NewRevertDecoder()
	loader := artifacts.NewLoader(root, profile.EVMVersion, log)

	var client usecase.ChainClient = h.chain
	if o.wrap != nil {
		client = o.wrap(client)
	}

	h.nonces = usecase.NewNonceAllocator(client, log)
	h.builder = usecase.NewTransactionBuilder(client, cfg, log)
	h.submitter = usecase.NewSubmitter(client, h.nonces, cfg, log)
	verifier := usecase.NewCodeVerifier(client, cfg, log)
	h.compile = usecase.NewCompileContract(h.compiler, nil, cfg, h.sink, log)
	h.deploy = usecase.NewDeployContract(cfg, client, h.compile, loader, h.builder, h.submitter, verifier, sgn, args, revert, h.repo, h.sink, log)
	h.invoke = usecase.NewInvokeMethod(cfg, client, h.builder, h.submitter, sgn, args, revert, h.repo, h.sink, log)
	h.track = usecase.NewTrackTransaction(cfg, h.submitter, verifier, h.repo, h.sink, log)
	h.probe = usecase.NewProbeEVM(h.deploy, client, log)
	h.inspect = usecase.NewInspectNetwork(cfg, client, sgn, h.sink, log)
	h.plan = usecase.NewRunPlan(cfg, h.deploy, h.invoke, loader, h.repo, h.sink, log)
	return h
}

// deployStorage deploys the Storage fixture with the profile's gas limit
func (h *harness) deployStorage(t *testing.T) *usecase.DeployResult {
	t.Helper()
	res, err := h.deploy.Run(context.Background(), usecase.DeployParams{
		Artifact: testutil.StorageArtifact(t),
		GasLimit: h.cfg.Network.DeployGasLimit,
	})
	require.NoError(t, err)
	require.True(t, res.Deployment.Usable())
	return res
}

// writeFoundryArtifact stores a Foundry style artifact under the project root
func (h *harness) writeFoundryArtifact(t *testing.T, name, code, abiJSON string) string {
	t.Helper()
	doc := map[string]any{
		"abi":      json.RawMessage(abiJSON),
		"bytecode": map[string]string{"object": code},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	rel := filepath.Join("out", name+".json")
	require.NoError(t, os.MkdirAll(filepath.Join(h.root, "out"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(h.root, rel), data, 0644))
	return rel
}
