package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// StepAction is what a plan step does
type StepAction string

const (
	ActionDeploy StepAction = "deploy"
	ActionSend   StepAction = "send"
	ActionCall   StepAction = "call"
)

// PlanConfig is the YAML form of a plan
type PlanConfig struct {
	Name  string                 `yaml:"name"`
	Steps map[string]*StepConfig `yaml:"steps"`
}

// StepConfig represents a single step of a plan. Deploy steps name a
// contract and where to find it; send and call steps name a target, which
// is another step, a registry id or an address with an ABI file.
type StepConfig struct {
	Action   StepAction `yaml:"action"`
	Contract string     `yaml:"contract,omitempty"`
	Source   string     `yaml:"source,omitempty"`
	Artifact string     `yaml:"artifact,omitempty"`
	Label    string     `yaml:"label,omitempty"`

	Target string `yaml:"target,omitempty"`
	ABI    string `yaml:"abi,omitempty"`
	Method string `yaml:"method,omitempty"`

	Args   []string `yaml:"args,omitempty"`
	Expect []string `yaml:"expect,omitempty"`
	Gas    uint64   `yaml:"gas,omitempty"`
	After  []string `yaml:"after,omitempty"`
}

// ExecutionStep is a validated step with its resolved dependencies
type ExecutionStep struct {
	Name         string
	Config       *StepConfig
	Dependencies []string
}

// ExecutionPlan groups steps into levels. Steps of one level do not depend
// on each other.
type ExecutionPlan struct {
	Name   string
	Levels [][]*ExecutionStep
}

// Steps returns all steps in execution order
func (p *ExecutionPlan) Steps() []*ExecutionStep {
	return lo.Flatten(p.Levels)
}

// PlanParams contains parameters for running a plan
type PlanParams struct {
	Path string
	// Only restricts the run to these steps and what they depend on
	Only []string
	// Concurrency bounds the steps run at once inside a level; 0 is unbounded
	Concurrency int
	Timeout     time.Duration
}

// StepResult contains the result of executing a single step
type StepResult struct {
	Step       *ExecutionStep
	Deployment *domain.DeploymentResult
	Invocation *domain.InvocationResult
	Duration   time.Duration
	Error      error
}

// PlanResult contains the result of a plan run
type PlanResult struct {
	Plan       *ExecutionPlan
	Steps      []*StepResult
	FailedStep *StepResult
	Success    bool
}

// RunPlan executes a multi-step deploy and invoke plan
type RunPlan struct {
	cfg    *config.RuntimeConfig
	deploy *DeployContract
	invoke *InvokeMethod
	loader ArtifactLoader
	repo   DeploymentRepository
	sink   ProgressSink
	log    *slog.Logger
}

// NewRunPlan creates a new RunPlan use case
func NewRunPlan(
	cfg *config.RuntimeConfig,
	deploy *DeployContract,
	invoke *InvokeMethod,
	loader ArtifactLoader,
	repo DeploymentRepository,
	sink ProgressSink,
	log *slog.Logger,
) *RunPlan {
	return &RunPlan{
		cfg:    cfg,
		deploy: deploy,
		invoke: invoke,
		loader: loader,
		repo:   repo,
		sink:   sink,
		log:    log.With("component", "plan"),
	}
}

// LoadPlanFile parses and validates a plan file
func LoadPlanFile(path string) (*PlanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var plan PlanConfig
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &plan, nil
}

var addressRef = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)\.address\s*\}\}`)

// references lists the steps a step mentions by name, explicitly or through
// {{ step.address }} placeholders.
func (s *StepConfig) references(steps map[string]*StepConfig) []string {
	refs := append([]string{}, s.After...)
	if _, ok := steps[s.Target]; ok {
		refs = append(refs, s.Target)
	}
	for _, arg := range s.Args {
		for _, m := range addressRef.FindAllStringSubmatch(arg, -1) {
			refs = append(refs, m[1])
		}
	}
	return lo.Uniq(refs)
}

// Validate checks the plan for errors
func (p *PlanConfig) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	for _, name := range sortedKeys(p.Steps) {
		step := p.Steps[name]
		if step == nil {
			return fmt.Errorf("step '%s' is empty", name)
		}
		switch step.Action {
		case ActionDeploy:
			if step.Contract == "" && step.Artifact == "" {
				return fmt.Errorf("deploy step '%s' needs a contract or an artifact", name)
			}
			if step.Source == "" && step.Artifact == "" {
				return fmt.Errorf("deploy step '%s' needs a source or an artifact", name)
			}
		case ActionSend, ActionCall:
			if step.Target == "" || step.Method == "" {
				return fmt.Errorf("%s step '%s' needs a target and a method", step.Action, name)
			}
			if common.IsHexAddress(step.Target) && step.ABI == "" {
				return fmt.Errorf("step '%s' targets a raw address and needs an abi file", name)
			}
		default:
			return fmt.Errorf("step '%s' has unknown action %q", name, step.Action)
		}

		for _, dep := range step.references(p.Steps) {
			if dep == name {
				return fmt.Errorf("step '%s' cannot depend on itself", name)
			}
			dependency, exists := p.Steps[dep]
			if !exists {
				return fmt.Errorf("step '%s' depends on non-existent step '%s'", name, dep)
			}
			if dependency != nil && dependency.Action != ActionDeploy && dep == step.Target {
				return fmt.Errorf("step '%s' targets '%s', which deploys nothing", name, dep)
			}
		}
	}
	return nil
}

// BuildExecutionPlan levels the steps so that every step runs after the
// steps it references. only, when set, restricts the plan to those steps
// and their transitive dependencies.
func BuildExecutionPlan(plan *PlanConfig, only []string) (*ExecutionPlan, error) {
	selected := lo.Keys(plan.Steps)
	if len(only) > 0 {
		var err error
		selected, err = withDependencies(plan, only)
		if err != nil {
			return nil, err
		}
	}
	include := lo.SliceToMap(selected, func(name string) (string, bool) { return name, true })

	inDegree := make(map[string]int)
	dependents := make(map[string][]string)
	deps := make(map[string][]string)
	for name := range include {
		deps[name] = plan.Steps[name].references(plan.Steps)
		inDegree[name] = len(deps[name])
		for _, dep := range deps[name] {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var levels [][]*ExecutionStep
	var current []string
	for name, degree := range inDegree {
		if degree == 0 {
			current = append(current, name)
		}
	}

	placed := 0
	for len(current) > 0 {
		sort.Strings(current)
		level := make([]*ExecutionStep, 0, len(current))
		var next []string
		for _, name := range current {
			level = append(level, &ExecutionStep{Name: name, Config: plan.Steps[name], Dependencies: deps[name]})
			for _, dependent := range dependents[name] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		placed += len(level)
		levels = append(levels, level)
		current = next
	}

	if placed != len(include) {
		var cycle []string
		for name, degree := range inDegree {
			if degree > 0 {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return nil, fmt.Errorf("circular dependency detected involving steps: %v", cycle)
	}

	return &ExecutionPlan{Name: plan.Name, Levels: levels}, nil
}

func withDependencies(plan *PlanConfig, only []string) ([]string, error) {
	seen := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		step, ok := plan.Steps[name]
		if !ok {
			return fmt.Errorf("unknown step '%s'", name)
		}
		seen[name] = true
		for _, dep := range step.references(plan.Steps) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range only {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return lo.Keys(seen), nil
}

// Run executes the plan level by level and stops after the first level in
// which a step failed.
func (uc *RunPlan) Run(ctx context.Context, params PlanParams) (*PlanResult, error) {
	cfg, err := LoadPlanFile(params.Path)
	if err != nil {
		return nil, err
	}
	return uc.Execute(ctx, cfg, params)
}

// Execute runs an already parsed plan
func (uc *RunPlan) Execute(ctx context.Context, cfg *PlanConfig, params PlanParams) (*PlanResult, error) {
	plan, err := BuildExecutionPlan(cfg, params.Only)
	if err != nil {
		return nil, err
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: "plan_created", Metadata: plan})

	result := &PlanResult{Plan: plan, Success: true}
	outputs := &planOutputs{deployments: make(map[string]*domain.DeploymentResult)}
	total := len(plan.Steps())
	done := 0

	for i, level := range plan.Levels {
		uc.log.Debug("running plan level", "level", i, "steps", len(level))

		results := make([]*StepResult, len(level))
		var g errgroup.Group
		if params.Concurrency > 0 {
			g.SetLimit(params.Concurrency)
		}
		for j, step := range level {
			g.Go(func() error {
				results[j] = uc.executeStep(ctx, step, outputs, params)
				return nil
			})
		}
		_ = g.Wait()

		for _, res := range results {
			done++
			result.Steps = append(result.Steps, res)
			uc.sink.OnProgress(ctx, ProgressEvent{
				Stage:    "step_completed",
				Current:  done,
				Total:    total,
				Message:  res.Step.Name,
				Metadata: res,
			})
			if res.Error != nil && result.FailedStep == nil {
				result.FailedStep = res
				result.Success = false
			}
		}
		if !result.Success {
			break
		}
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: "plan_completed"})
	return result, nil
}

type planOutputs struct {
	mu          sync.RWMutex
	deployments map[string]*domain.DeploymentResult
}

func (o *planOutputs) set(name string, d *domain.DeploymentResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deployments[name] = d
}

func (o *planOutputs) get(name string) (*domain.DeploymentResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	d, ok := o.deployments[name]
	return d, ok
}

func (o *planOutputs) render(args []string) ([]string, error) {
	var missing []string
	out := lo.Map(args, func(arg string, _ int) string {
		return addressRef.ReplaceAllStringFunc(arg, func(ref string) string {
			name := addressRef.FindStringSubmatch(ref)[1]
			d, ok := o.get(name)
			if !ok {
				missing = append(missing, name)
				return ref
			}
			return d.Address.Hex()
		})
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("no deployment recorded for step(s) %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func (uc *RunPlan) executeStep(ctx context.Context, step *ExecutionStep, outputs *planOutputs, params PlanParams) *StepResult {
	start := time.Now()
	res := &StepResult{Step: step}
	defer func() { res.Duration = time.Since(start) }()

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: "step_starting", Message: step.Name, Metadata: step})

	sc := step.Config
	args, err := outputs.render(sc.Args)
	if err != nil {
		res.Error = domain.AtStage(domain.StageBuild, step.Name, &domain.EncodingError{Target: step.Name, Err: err})
		return res
	}

	switch sc.Action {
	case ActionDeploy:
		gas := sc.Gas
		if gas == 0 {
			gas = uc.cfg.Network.DeployGasLimit
		}
		deployed, err := uc.deploy.Run(ctx, DeployParams{
			SourcePath:    sc.Source,
			ArtifactPath:  sc.Artifact,
			ContractName:  sc.Contract,
			RawArgs:       args,
			GasLimit:      gas,
			Timeout:       params.Timeout,
			Label:         sc.Label,
			SkipPreflight: true,
		})
		if deployed != nil {
			res.Deployment = deployed.Deployment
		}
		if err != nil {
			res.Error = err
			return res
		}
		outputs.set(step.Name, deployed.Deployment)

	case ActionSend, ActionCall:
		target, err := uc.resolveTarget(ctx, sc, outputs)
		if err != nil {
			res.Error = domain.AtStage(domain.StageInvoke, step.Name, err)
			return res
		}
		mode := InvokeWrite
		gas := sc.Gas
		if sc.Action == ActionCall {
			mode = InvokeRead
		}
		if gas == 0 {
			gas = uc.cfg.Network.CallGasLimit
		}
		res.Invocation, res.Error = uc.invoke.Run(ctx, InvokeParams{
			Target:   target,
			Method:   sc.Method,
			RawArgs:  args,
			Mode:     mode,
			GasLimit: gas,
			Timeout:  params.Timeout,
		})
		if res.Error == nil && len(sc.Expect) > 0 {
			if err := checkExpectation(step.Name, res.Invocation, sc.Expect); err != nil {
				res.Error = domain.AtStage(domain.StageInvoke, step.Name,
					&domain.EncodingError{Target: "return value of " + res.Invocation.Method, Err: err})
			}
		}
	}
	return res
}

func (uc *RunPlan) resolveTarget(ctx context.Context, sc *StepConfig, outputs *planOutputs) (*CallTarget, error) {
	if d, ok := outputs.get(sc.Target); ok {
		return TargetFromDeployment(d)
	}
	if common.IsHexAddress(sc.Target) {
		parsed, _, err := uc.loader.LoadABI(ctx, sc.ABI)
		if err != nil {
			return nil, fmt.Errorf("load ABI for %s: %w", sc.Target, err)
		}
		return &CallTarget{Contract: sc.Target, Address: common.HexToAddress(sc.Target), ABI: parsed}, nil
	}

	id := sc.Target
	if !strings.Contains(id, "/") {
		name, label, _ := strings.Cut(id, ":")
		id = DeploymentID(uc.cfg.Network.Name, name, label)
	}
	rec, err := uc.repo.GetDeployment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve target %s: %w", sc.Target, err)
	}
	return TargetFromRecord(rec)
}

func checkExpectation(step string, inv *domain.InvocationResult, expect []string) error {
	got := lo.Map(inv.Values, func(v any, _ int) string { return FormatValue(v) })
	if len(got) != len(expect) {
		return fmt.Errorf("step '%s': expected %d values, got %d (%s)", step, len(expect), len(got), strings.Join(got, ", "))
	}
	for i := range expect {
		if !strings.EqualFold(got[i], expect[i]) {
			return fmt.Errorf("step '%s': value %d is %s, expected %s", step, i, got[i], expect[i])
		}
	}
	return nil
}
