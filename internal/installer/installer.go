// Package installer wraps delegated invocations of an external Python
// package installer behind a narrow interface, so the registry and CLI
// never shell out directly and tests can substitute a fake.
package installer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/vistralis/zen/internal/zenerr"
)

// InstallOptions composes the argument vector for a delegated install.
type InstallOptions struct {
	Editable      bool
	Pre           bool
	Upgrade       bool
	DryRun        bool
	IndexURL      string
	ExtraIndexURL string
	PackageSpecs  []string
}

// Result carries the delegated subprocess's captured output, for the
// caller to log or surface; the core never parses it.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Delegate runs cmd (e.g. "pip") in envPath's activated shape: PATH
// prefixed with "<envPath>/bin", VIRTUAL_ENV set to envPath. It enforces
// timeout, SIGKILLing the child on expiry.
type Delegate struct {
	Command string
}

// New returns a Delegate invoking the named installer executable (e.g.
// "pip", "uv").
func New(command string) *Delegate {
	return &Delegate{Command: command}
}

// Install runs "<command> install <args...> <specs...>" inside envPath.
func (d *Delegate) Install(ctx context.Context, envPath string, opts InstallOptions, timeout time.Duration) (Result, error) {
	args := []string{"install"}
	if opts.Editable {
		args = append(args, "-e")
	}
	if opts.Pre {
		args = append(args, "--pre")
	}
	if opts.Upgrade {
		args = append(args, "--upgrade")
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	if opts.IndexURL != "" {
		args = append(args, "--index-url", opts.IndexURL)
	}
	if opts.ExtraIndexURL != "" {
		args = append(args, "--extra-index-url", opts.ExtraIndexURL)
	}
	args = append(args, opts.PackageSpecs...)
	return d.run(ctx, envPath, args, timeout)
}

// Uninstall runs "<command> uninstall -y <specs...>" inside envPath.
func (d *Delegate) Uninstall(ctx context.Context, envPath string, specs []string, timeout time.Duration) (Result, error) {
	args := append([]string{"uninstall", "-y"}, specs...)
	return d.run(ctx, envPath, args, timeout)
}

// Run executes an arbitrary command inside envPath's activated shape, with
// an explicit working directory and timeout — the RPC surface's "run"
// operation.
func (d *Delegate) Run(ctx context.Context, envPath, workDir string, argv []string, timeout time.Duration) (Result, error) {
	if len(argv) == 0 {
		return Result{}, zenerr.New(zenerr.InputInvalid, "run requires a non-empty command")
	}
	return d.runCommand(ctx, envPath, workDir, argv[0], argv[1:], timeout)
}

func (d *Delegate) run(ctx context.Context, envPath string, args []string, timeout time.Duration) (Result, error) {
	return d.runCommand(ctx, envPath, "", d.Command, args, timeout)
}

func (d *Delegate) runCommand(ctx context.Context, envPath, workDir, name string, args []string, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"VIRTUAL_ENV="+envPath,
		"PATH="+filepath.Join(envPath, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() == context.DeadlineExceeded {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		return result, zenerr.New(zenerr.SubprocessError, fmt.Sprintf("%s timed out after %s", name, timeout))
	}

	var exitErr *exec.ExitError
	if err != nil {
		if ok := asExitError(err, &exitErr); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, zenerr.New(zenerr.SubprocessError, fmt.Sprintf("%s exited with code %d", name, result.ExitCode))
		}
		return result, zenerr.Wrap(zenerr.SubprocessError, fmt.Sprintf("failed to run %s", name), err)
	}
	return result, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
