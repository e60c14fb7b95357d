package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/trustedanalytics/platform-parent/src/ctxlog"
)

// Command is one external tool invocation for a project.
type Command struct {
	Project string
	Dir     string
	Args    []string
	Env     []string // appended to the process environment
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Runner executes build tool commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as subprocesses. Output is appended to
// <LogDir>/<project>-build.log and <LogDir>/<project>-err.log.
type ExecRunner struct {
	LogDir string
}

// NewExecRunner creates a runner logging under logDir.
func NewExecRunner(logDir string) *ExecRunner {
	return &ExecRunner{LogDir: logDir}
}

// Run executes cmd and waits for it. A non-zero exit is an error naming
// the command line.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("build: empty command for %s", c.Project)
	}
	logger := ctxlog.FromContext(ctx)

	stdout, stderr, err := r.openLogs(c.Project)
	if err != nil {
		return err
	}
	defer stdout.Close()
	defer stderr.Close()

	logger.Debug("exec", "cmd", c.String(), "dir", c.Dir)
	start := time.Now()

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build: %s failed: %w", c.String(), err)
	}
	logger.Debug("exec finished", "cmd", c.String(), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (r *ExecRunner) openLogs(project string) (io.WriteCloser, io.WriteCloser, error) {
	if err := os.MkdirAll(r.LogDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("build: creating log dir: %w", err)
	}
	open := func(suffix string) (*os.File, error) {
		path := filepath.Join(r.LogDir, project+suffix)
		return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
	out, err := open("-build.log")
	if err != nil {
		return nil, nil, fmt.Errorf("build: opening build log: %w", err)
	}
	errLog, err := open("-err.log")
	if err != nil {
		out.Close()
		return nil, nil, fmt.Errorf("build: opening error log: %w", err)
	}
	return out, errLog, nil
}
