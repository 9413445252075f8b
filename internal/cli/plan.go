package cli

import (
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// planJSON is the --json form of a plan run
type planJSON struct {
	Name       string     `json:"name"`
	Success    bool       `json:"success"`
	FailedStep string     `json:"failedStep,omitempty"`
	Steps      []stepJSON `json:"steps"`
	Levels     [][]string `json:"levels"`
}

type stepJSON struct {
	Name       string          `json:"name"`
	Action     string          `json:"action"`
	DurationMs int64           `json:"durationMs"`
	Address    *common.Address `json:"address,omitempty"`
	TxHash     *common.Hash    `json:"txHash,omitempty"`
	Values     []string        `json:"values,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func newPlanJSON(result *usecase.PlanResult) *planJSON {
	out := &planJSON{
		Name:    result.Plan.Name,
		Success: result.Success,
		Levels: lo.Map(result.Plan.Levels, func(level []*usecase.ExecutionStep, _ int) []string {
			return lo.Map(level, func(s *usecase.ExecutionStep, _ int) string { return s.Name })
		}),
	}
	if result.FailedStep != nil {
		out.FailedStep = result.FailedStep.Step.Name
	}
	for _, res := range result.Steps {
		s := stepJSON{
			Name:       res.Step.Name,
			Action:     string(res.Step.Config.Action),
			DurationMs: res.Duration.Milliseconds(),
		}
		if d := res.Deployment; d != nil {
			addr, hash := d.Address, d.TxHash
			s.Address, s.TxHash = &addr, &hash
		}
		if inv := res.Invocation; inv != nil {
			if inv.ReadOnly {
				s.Values = lo.Map(inv.Values, func(v any, _ int) string { return usecase.FormatValue(v) })
			} else {
				hash := inv.TxHash
				s.TxHash = &hash
			}
		}
		if res.Error != nil {
			s.Error = res.Error.Error()
		}
		out.Steps = append(out.Steps, s)
	}
	return out
}

// NewPlanCmd creates the plan command
func NewPlanCmd() *cobra.Command {
	var (
		only        []string
		pick        bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "plan <plan.yaml>",
		Short: "Run a multi-step deploy and invoke plan",
		Long: `Run the deploy, send and call steps of a YAML plan. Steps that depend on
each other, through 'after:' or a {{ step.address }} reference, run in
order; independent steps of the same level run concurrently and share the
signer's nonce sequence. The run stops after the first level with a failure.

Example plan:

  name: storage
  steps:
    storage:
      action: deploy
      source: contracts/SimpleStorage.sol
      contract: SimpleStorage
      args: ["0"]
    store:
      action: send
      target: storage
      method: store
      args: ["7"]
    check:
      action: call
      target: storage
      method: retrieve
      expect: ["7"]
      after: [store]`,
		Example: `  sling plan deploy.yaml
  sling plan deploy.yaml --only store
  sling plan deploy.yaml --pick`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			planConfig, err := usecase.LoadPlanFile(args[0])
			if err != nil {
				return &usageError{err: err}
			}

			if pick {
				if app.Config.NonInteractive {
					return usageErrorf("--pick needs an interactive terminal")
				}
				full, err := usecase.BuildExecutionPlan(planConfig, nil)
				if err != nil {
					return &usageError{err: err}
				}
				only, err = SelectSteps(full.Steps(), "Select plan steps to run")
				if err != nil {
					return &usageError{err: err}
				}
			}

			start := time.Now()
			result, err := app.RunPlan.Execute(cmd.Context(), planConfig, usecase.PlanParams{
				Path:        args[0],
				Only:        only,
				Concurrency: concurrency,
			})
			if err != nil {
				return &usageError{err: err}
			}
			app.Log.Debug("plan finished", "success", result.Success, "duration", time.Since(start))

			if err := renderOrJSON(cmd, app, newPlanJSON(result), func(w io.Writer) error {
				return render.NewPlanRenderer(w).RenderPlanResult(result)
			}); err != nil {
				return err
			}

			if result.FailedStep != nil {
				return result.FailedStep.Error
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "Run only these steps and what they depend on")
	cmd.Flags().BoolVar(&pick, "pick", false, "Pick the steps to run interactively")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum steps run at once within a level (0 is unbounded)")

	return cmd
}
