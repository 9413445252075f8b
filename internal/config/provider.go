package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// DataDirName is where the registry lives, relative to the project root
const DataDirName = ".sling"

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		var err error
		projectRoot, err = FindProjectRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}

	loadDotEnv(projectRoot)

	slingConfig, source, err := loadSlingConfig(projectRoot)
	if err != nil {
		return nil, err
	}

	cfg := &config.RuntimeConfig{
		ProjectRoot:    projectRoot,
		DataDir:        filepath.Join(projectRoot, DataDirName),
		Debug:          v.GetBool("debug"),
		NonInteractive: v.GetBool("non_interactive"),
		JSON:           v.GetBool("json"),
		Timeout:        v.GetDuration("timeout"),
		DryRun:         v.GetBool("dry_run"),
		SlingConfig:    slingConfig,
		ConfigSource:   source,
	}
	if dataDir := v.GetString("data_dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	cfg.Network, err = ResolveNetwork(slingConfig, v.GetString("network"))
	if err != nil {
		return nil, err
	}
	if rpcURL := v.GetString("rpc_url"); rpcURL != "" {
		cfg.Network.RPCURL = rpcURL
	}

	cfg.SignerName, cfg.SignerKey, err = ResolveSigner(slingConfig, v.GetString("signer"))
	if err != nil {
		return nil, err
	}

	cfg.Compiler, err = resolveCompiler(slingConfig, cfg.Network)
	if err != nil {
		return nil, err
	}
	if solc := v.GetString("solc"); solc != "" {
		cfg.Compiler.Path = solc
	}

	cfg.RPC, err = resolveRPC(slingConfig)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindProjectRoot walks up from the current directory to find sling.toml.
// Without one, the current directory is the project root.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, SlingFileName)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance. Flags are bound under
// their snake_case names so SLING_NON_INTERACTIVE and --non-interactive
// land on the same key.
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("SLING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault("timeout", "0s")
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("json", false)
	v.SetDefault("project_root", projectRoot)

	bind := func(f *pflag.Flag) {
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil {
			panic(err)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)

	return v
}

func resolveCompiler(sc *config.SlingConfig, profile domain.NetworkProfile) (config.CompilerConfig, error) {
	cc := config.DefaultCompilerConfig()
	cc.EVMVersion = profile.EVMVersion
	if sc == nil || sc.Compiler == nil {
		return cc, nil
	}

	fc := sc.Compiler
	if fc.Solc != "" {
		cc.Path = fc.Solc
	}
	if fc.EVMVersion != "" {
		cc.EVMVersion = domain.EVMVersion(strings.ToLower(fc.EVMVersion))
	}
	if fc.Optimizer != nil {
		cc.Optimizer = *fc.Optimizer
	}
	if fc.Runs > 0 {
		cc.Runs = fc.Runs
	}
	var err error
	if cc.Timeout, err = parseDuration(fc.Timeout, cc.Timeout); err != nil {
		return cc, fmt.Errorf("compiler.timeout: %w", err)
	}
	return cc, nil
}

func resolveRPC(sc *config.SlingConfig) (config.RPCConfig, error) {
	rc := config.DefaultRPCConfig()
	if sc == nil || sc.RPC == nil {
		return rc, nil
	}

	fc := sc.RPC
	if fc.MaxAttempts > 0 {
		rc.MaxAttempts = fc.MaxAttempts
	}
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"initial_interval", fc.InitialInterval, &rc.InitialInterval},
		{"max_interval", fc.MaxInterval, &rc.MaxInterval},
		{"request_timeout", fc.RequestTimeout, &rc.RequestTimeout},
	} {
		parsed, err := parseDuration(d.raw, *d.dst)
		if err != nil {
			return rc, fmt.Errorf("rpc.%s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return rc, nil
}
