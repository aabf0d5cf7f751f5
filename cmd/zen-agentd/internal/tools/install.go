package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vistralis/zen/internal/installer"
	"github.com/vistralis/zen/internal/registry"
)

const defaultSubprocessTimeout = 5 * time.Minute

// PathStore resolves an environment name to its path. Separate from
// HealthStore/EnvironmentStore because the install/run tools need only
// this one lookup.
type PathStore interface {
	LookupEnvironmentByName(name string) (registry.Environment, error)
}

// Installer is the subset of *installer.Delegate the install/uninstall/run
// tools need.
type Installer interface {
	Install(ctx context.Context, envPath string, opts installer.InstallOptions, timeout time.Duration) (installer.Result, error)
	Uninstall(ctx context.Context, envPath string, specs []string, timeout time.Duration) (installer.Result, error)
	Run(ctx context.Context, envPath, workDir string, argv []string, timeout time.Duration) (installer.Result, error)
}

type InstallInput struct {
	EnvName       string   `json:"env_name"`
	Packages      []string `json:"packages"`
	Editable      bool     `json:"editable"`
	Pre           bool     `json:"pre"`
	Upgrade       bool     `json:"upgrade"`
	DryRun        bool     `json:"dry_run"`
	IndexURL      string   `json:"index_url"`
	ExtraIndexURL string   `json:"extra_index_url"`
}

type SubprocessOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

type InstallToolConfig struct {
	Logger    *slog.Logger
	Store     PathStore
	Installer Installer

	Name        string
	Description string
}

func (cfg *InstallToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Installer == nil {
		return fmt.Errorf("installer is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type InstallTool struct {
	log *slog.Logger
	cfg InstallToolConfig
}

func NewInstallTool(cfg InstallToolConfig) (*InstallTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate install tool config: %w", err)
	}
	return &InstallTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *InstallTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[InstallInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create install input schema: %w", err)
	}
	res, err := jsonschema.For[SubprocessOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create install output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in InstallInput) (*mcp.CallToolResult, SubprocessOutput, error) {
		out, err := t.handle(ctx, in)
		if err != nil {
			return nil, SubprocessOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *InstallTool) handle(ctx context.Context, in InstallInput) (SubprocessOutput, error) {
	env, err := t.cfg.Store.LookupEnvironmentByName(in.EnvName)
	if err != nil {
		return SubprocessOutput{}, err
	}

	t.log.Debug("tools: installing packages", "env", in.EnvName, "packages", in.Packages)
	res, err := t.cfg.Installer.Install(ctx, env.Path, installer.InstallOptions{
		Editable:      in.Editable,
		Pre:           in.Pre,
		Upgrade:       in.Upgrade,
		DryRun:        in.DryRun,
		IndexURL:      in.IndexURL,
		ExtraIndexURL: in.ExtraIndexURL,
		PackageSpecs:  in.Packages,
	}, defaultSubprocessTimeout)
	if err != nil {
		return SubprocessOutput{}, err
	}
	return SubprocessOutput{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}

type UninstallInput struct {
	EnvName  string   `json:"env_name"`
	Packages []string `json:"packages"`
}

type UninstallToolConfig struct {
	Logger    *slog.Logger
	Store     PathStore
	Installer Installer

	Name        string
	Description string
}

func (cfg *UninstallToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Installer == nil {
		return fmt.Errorf("installer is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type UninstallTool struct {
	log *slog.Logger
	cfg UninstallToolConfig
}

func NewUninstallTool(cfg UninstallToolConfig) (*UninstallTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate uninstall tool config: %w", err)
	}
	return &UninstallTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *UninstallTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[UninstallInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create uninstall input schema: %w", err)
	}
	res, err := jsonschema.For[SubprocessOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create uninstall output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in UninstallInput) (*mcp.CallToolResult, SubprocessOutput, error) {
		out, err := t.handle(ctx, in)
		if err != nil {
			return nil, SubprocessOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *UninstallTool) handle(ctx context.Context, in UninstallInput) (SubprocessOutput, error) {
	env, err := t.cfg.Store.LookupEnvironmentByName(in.EnvName)
	if err != nil {
		return SubprocessOutput{}, err
	}

	t.log.Debug("tools: uninstalling packages", "env", in.EnvName, "packages", in.Packages)
	res, err := t.cfg.Installer.Uninstall(ctx, env.Path, in.Packages, defaultSubprocessTimeout)
	if err != nil {
		return SubprocessOutput{}, err
	}
	return SubprocessOutput{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}

// RunInput executes an arbitrary command "activated" inside an environment
// — VIRTUAL_ENV and PATH set as if `bin/activate` had been sourced.
type RunInput struct {
	EnvName    string   `json:"env_name"`
	Argv       []string `json:"argv"`
	WorkDir    string   `json:"work_dir"`
	TimeoutSec int      `json:"timeout_sec"`
}

type RunToolConfig struct {
	Logger    *slog.Logger
	Store     PathStore
	Installer Installer

	Name        string
	Description string
}

func (cfg *RunToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Installer == nil {
		return fmt.Errorf("installer is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type RunTool struct {
	log *slog.Logger
	cfg RunToolConfig
}

func NewRunTool(cfg RunToolConfig) (*RunTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate run tool config: %w", err)
	}
	return &RunTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *RunTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[RunInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create run input schema: %w", err)
	}
	res, err := jsonschema.For[SubprocessOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create run output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in RunInput) (*mcp.CallToolResult, SubprocessOutput, error) {
		out, err := t.handle(ctx, in)
		if err != nil {
			return nil, SubprocessOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *RunTool) handle(ctx context.Context, in RunInput) (SubprocessOutput, error) {
	env, err := t.cfg.Store.LookupEnvironmentByName(in.EnvName)
	if err != nil {
		return SubprocessOutput{}, err
	}

	timeout := defaultSubprocessTimeout
	if in.TimeoutSec > 0 {
		timeout = time.Duration(in.TimeoutSec) * time.Second
	}

	t.log.Debug("tools: running command", "env", in.EnvName, "argv", in.Argv)
	res, err := t.cfg.Installer.Run(ctx, env.Path, in.WorkDir, in.Argv, timeout)
	if err != nil {
		return SubprocessOutput{}, err
	}
	return SubprocessOutput{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}
