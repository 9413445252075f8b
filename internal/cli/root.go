package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/sling/internal/adapters/progress"
	"github.com/trebuchet-org/sling/internal/app"
	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/config"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// appKey is the context key for the app instance
	appKey contextKey = "app"
)

// ExitUsage is returned for flag, argument and configuration errors
const ExitUsage = 1

// usageError marks failures that happen before the pipeline runs. They exit
// with ExitUsage and print no diagnostic.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// stopper is implemented by progress sinks that own a spinner
type stopper interface {
	Stop()
}

// session holds what must be torn down once the command returns
type session struct {
	sink   usecase.ProgressSink
	cancel context.CancelFunc
}

func (s *session) close() {
	if st, ok := s.sink.(stopper); ok {
		st.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *session) {
	sess := &session{}

	rootCmd := &cobra.Command{
		Use:   "sling",
		Short: "Deploy and invoke contracts on a private EVM network",
		Long: `Sling compiles Solidity contracts, deploys them to a private EVM network,
waits for inclusion, checks the deployed code and invokes methods. Failures
are classified and reported with the transaction context the node gave back.

The default network profile targets chain id 1337 with free gas, the london
EVM and blocks roughly every 15 seconds. Profiles live in sling.toml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			projectRoot, err := config.FindProjectRoot()
			if err != nil {
				return &usageError{err: err}
			}

			v := config.SetupViper(projectRoot, cmd)
			sess.sink = newProgressSink(cmd, v.GetBool("json"), v.GetBool("non_interactive"))

			appInstance, err := app.InitApp(v, sess.sink)
			if err != nil {
				var te *domain.TransportError
				if errors.As(err, &te) {
					return err
				}
				return usageErrorf("failed to initialize app: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			if appInstance.Config.Timeout > 0 {
				ctx, sess.cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
			}
			cmd.SetContext(ctx)

			return nil
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	// Global flags
	rootCmd.PersistentFlags().StringP("network", "n", "", "Network profile from sling.toml (default \"private\")")
	rootCmd.PersistentFlags().StringP("signer", "s", "", "Signer from sling.toml [signers]")
	rootCmd.PersistentFlags().String("rpc-url", "", "Override the profile's RPC endpoint")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("non-interactive", false, "Disable interactive prompts")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Run against an in-process chain built from the network profile")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Overall deadline for the command (0 disables)")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "pipeline",
		Title: "Pipeline Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "registry",
		Title: "Registry Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "network",
		Title: "Network Commands",
	})

	for _, c := range []*cobra.Command{NewCompileCmd(), NewDeployCmd(), NewSendCmd(), NewCallCmd(), NewPlanCmd()} {
		c.GroupID = "pipeline"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{NewListCmd(), NewShowCmd(), NewTxCmd()} {
		c.GroupID = "registry"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{NewNetworkCmd(), NewProbeCmd()} {
		c.GroupID = "network"
		rootCmd.AddCommand(c)
	}

	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd, sess
}

// Execute runs the CLI and returns the process exit code. Classified
// pipeline failures are rendered as diagnostics on stderr.
func Execute(ctx context.Context, args []string) int {
	rootCmd, sess := newRootCmd()
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	sess.close()
	return reportError(rootCmd.ErrOrStderr(), err)
}

// reportError prints err and maps it to an exit code
func reportError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	var ue *usageError
	if errors.As(err, &ue) || !isPipelineFailure(err) {
		fmt.Fprintln(w, render.FormatError(err.Error()))
		return ExitUsage
	}

	diag := domain.Classify(err)
	render.NewDiagnosticRenderer(w).RenderDiagnostic(diag)
	return diag.Kind.ExitCode()
}

// isPipelineFailure reports whether err came out of the pipeline. Anything
// else, such as an unknown command or a bad argument count, is a usage error.
func isPipelineFailure(err error) bool {
	var (
		pe *domain.PipelineError
		ce *domain.CompileError
		ee *domain.EncodingError
		se *domain.SubmissionError
		re *domain.RevertError
		ie *domain.InconsistentDeploymentError
		te *domain.TransportError
	)
	switch {
	case errors.As(err, &pe), errors.As(err, &ce), errors.As(err, &ee),
		errors.As(err, &se), errors.As(err, &re), errors.As(err, &ie), errors.As(err, &te):
		return true
	}
	for _, sentinel := range []error{
		domain.ErrNotFound,
		domain.ErrInvalidRequest,
		domain.ErrChainIDMismatch,
		domain.ErrDeploymentUnusable,
		domain.ErrNoSigner,
		domain.ErrMethodNotFound,
		context.DeadlineExceeded,
		context.Canceled,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// newProgressSink picks how progress is shown. Plans print per-step
// results unless JSON is requested; non-interactive runs get no spinner.
func newProgressSink(cmd *cobra.Command, json, nonInteractive bool) usecase.ProgressSink {
	switch {
	case json:
		return progress.NewNopSink()
	case cmd.Name() == "plan":
		return progress.NewPlanProgress(render.NewPlanRenderer(cmd.OutOrStdout()))
	case nonInteractive:
		return progress.NewNopSink()
	default:
		return progress.NewSpinnerProgressReporter()
	}
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	appInstance := cmd.Context().Value(appKey)
	if appInstance == nil {
		return nil, fmt.Errorf("app not initialized")
	}

	app, ok := appInstance.(*app.App)
	if !ok {
		return nil, fmt.Errorf("invalid app instance")
	}

	return app, nil
}

// stopProgress halts the spinner before results are printed
func stopProgress(a *app.App) {
	if st, ok := a.Sink.(stopper); ok {
		st.Stop()
	}
}

// renderOrJSON writes v as JSON under --json, otherwise calls human
func renderOrJSON(cmd *cobra.Command, a *app.App, v any, human func(io.Writer) error) error {
	stopProgress(a)
	if a.Config.JSON {
		return render.RenderJSON(cmd.OutOrStdout(), v)
	}
	return human(cmd.OutOrStdout())
}
