// Package solc runs the Solidity compiler in standard-JSON mode.
package solc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/trebuchet-org/sling/internal/domain/config"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// ErrNotInstalled is returned when the solc binary cannot be found
var ErrNotInstalled = errors.New("solc not found")

var versionRe = regexp.MustCompile(`Version:\s*(\S+)`)

// Compiler executes `solc --standard-json`, feeding the request on stdin
type Compiler struct {
	path    string
	timeout time.Duration
	log     *slog.Logger

	mu      sync.Mutex
	version string
}

// NewCompiler creates a compiler adapter from the [compiler] settings
func NewCompiler(cfg *config.RuntimeConfig, log *slog.Logger) *Compiler {
	path := cfg.Compiler.Path
	if path == "" {
		path = "solc"
	}
	return &Compiler{
		path:    path,
		timeout: cfg.Compiler.Timeout,
		log:     log.With("component", "solc"),
	}
}

// CompileStandardJSON returns solc's raw JSON output. Compilation errors are
// part of that output; an error here means solc itself could not run.
func (c *Compiler) CompileStandardJSON(ctx context.Context, input []byte) ([]byte, error) {
	bin, err := c.lookPath()
	if err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, "--standard-json")
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.log.Debug("running solc", "bin", bin, "inputBytes", len(input))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("solc did not finish: %w", ctx.Err())
		}
		return nil, fmt.Errorf("solc failed: %w\nOutput: %s", err, strings.TrimSpace(stderr.String()))
	}
	c.log.Debug("solc completed", "duration", time.Since(start), "outputBytes", stdout.Len())

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("solc produced no output: %s", strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Version returns the compiler version string, e.g. 0.8.19+commit.7dd6d404
func (c *Compiler) Version(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != "" {
		return c.version, nil
	}

	bin, err := c.lookPath()
	if err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("solc --version: %w", err)
	}
	m := versionRe.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unrecognized solc version output %q", strings.TrimSpace(string(out)))
	}
	c.version = string(m[1])
	return c.version, nil
}

func (c *Compiler) lookPath() (string, error) {
	bin, err := exec.LookPath(c.path)
	if err != nil {
		return "", fmt.Errorf("%w at %q: %v", ErrNotInstalled, c.path, err)
	}
	return bin, nil
}

var _ usecase.Compiler = (*Compiler)(nil)
