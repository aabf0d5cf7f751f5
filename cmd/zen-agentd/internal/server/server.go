// Package server wires Zen's registry, health, and installer layers into
// one MCP server exposing a tool per RPC operation over stdio.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vistralis/zen/cmd/zen-agentd/internal/tools"
	"github.com/vistralis/zen/internal/health"
	"github.com/vistralis/zen/internal/installer"
	"github.com/vistralis/zen/internal/registry"
	"github.com/vistralis/zen/internal/scanner"
)

// Config collects everything the server needs to build its tool set.
type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Store     *registry.Store
	Checker   *health.Checker
	Scanner   PackageScanner
	Installer *installer.Delegate

	Version string
}

// PackageScanner matches tools.PackageScanner without importing the tools
// package's type directly in Config's doc surface.
type PackageScanner interface {
	Scan(envRoot string) []scanner.Package
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Clock == nil {
		return fmt.Errorf("clock is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Checker == nil {
		return fmt.Errorf("checker is required")
	}
	if cfg.Scanner == nil {
		return fmt.Errorf("scanner is required")
	}
	if cfg.Installer == nil {
		return fmt.Errorf("installer is required")
	}
	if cfg.Version == "" {
		return fmt.Errorf("version is required")
	}
	return nil
}

// Server holds the constructed MCP server ready to run over stdio.
type Server struct {
	cfg       Config
	mcpServer *mcp.Server
}

// New builds every tool (§6's 17 RPC operations) and registers it on a
// fresh mcp.Server.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "zen-agentd",
		Version: cfg.Version,
	}, nil)

	registrars, err := buildTools(cfg)
	if err != nil {
		return nil, err
	}
	for _, t := range registrars {
		if err := t.Register(mcpServer); err != nil {
			return nil, fmt.Errorf("failed to register tool: %w", err)
		}
	}

	return &Server{cfg: cfg, mcpServer: mcpServer}, nil
}

type registrar interface {
	Register(server *mcp.Server) error
}

func buildTools(cfg Config) ([]registrar, error) {
	listEnvs, err := tools.NewListEnvironmentsTool(tools.ListEnvironmentsToolConfig{
		Logger: cfg.Logger, Store: cfg.Store,
		Name: "list_environments", Description: "List every registered Python environment, its path, Python version, and favorite flag.",
	})
	if err != nil {
		return nil, err
	}

	create, err := tools.NewCreateEnvironmentTool(tools.CreateEnvironmentToolConfig{
		Logger: cfg.Logger, Store: cfg.Store, Clock: cfg.Clock,
		Name: "create_environment", Description: "Register an already-created virtual environment directory under a name.",
	})
	if err != nil {
		return nil, err
	}

	remove, err := tools.NewRemoveEnvironmentTool(tools.RemoveEnvironmentToolConfig{
		Logger: cfg.Logger, Store: cfg.Store,
		Name: "remove_environment", Description: "Untrack an environment, or delete its registry entry entirely when purge is set.",
	})
	if err != nil {
		return nil, err
	}

	details, err := tools.NewEnvironmentDetailsTool(tools.EnvironmentDetailsToolConfig{
		Logger: cfg.Logger, Store: cfg.Store,
		Name: "environment_details", Description: "Return one environment's path, Python version, favorite flag, and labels.",
	})
	if err != nil {
		return nil, err
	}

	install, err := tools.NewInstallTool(tools.InstallToolConfig{
		Logger: cfg.Logger, Store: cfg.Store, Installer: cfg.Installer,
		Name: "install", Description: "Install packages into an environment by delegating to the external package installer.",
	})
	if err != nil {
		return nil, err
	}

	uninstall, err := tools.NewUninstallTool(tools.UninstallToolConfig{
		Logger: cfg.Logger, Store: cfg.Store, Installer: cfg.Installer,
		Name: "uninstall", Description: "Uninstall packages from an environment by delegating to the external package installer.",
	})
	if err != nil {
		return nil, err
	}

	run, err := tools.NewRunTool(tools.RunToolConfig{
		Logger: cfg.Logger, Store: cfg.Store, Installer: cfg.Installer,
		Name: "run", Description: "Run a command as if the environment were activated, with VIRTUAL_ENV and PATH set accordingly.",
	})
	if err != nil {
		return nil, err
	}

	associate, err := tools.NewAssociateProjectTool(tools.AssociateProjectToolConfig{
		Logger: cfg.Logger, Store: cfg.Store, Clock: cfg.Clock,
		Name: "associate_project", Description: "Link a project directory to an environment, optionally as its default.",
	})
	if err != nil {
		return nil, err
	}

	defaultEnv, err := tools.NewGetDefaultEnvTool(tools.GetDefaultEnvToolConfig{
		Logger: cfg.Logger, Store: cfg.Store,
		Name: "get_default_env", Description: "Return the default environment linked to a project directory.",
	})
	if err != nil {
		return nil, err
	}

	projectEnvs, err := tools.NewGetProjectEnvsTool(tools.GetProjectEnvsToolConfig{
		Logger: cfg.Logger, Store: cfg.Store,
		Name: "get_project_envs", Description: "List every environment linked to a project directory, with activation stats.",
	})
	if err != nil {
		return nil, err
	}

	healthTool, err := tools.NewHealthTool(tools.HealthToolConfig{
		Logger: cfg.Logger, Store: cfg.Store, Checker: cfg.Checker,
		Name: "health", Description: "Run a full health check against an environment: interpreter, site-packages, CUDA consistency, and dependency conflicts.",
	})
	if err != nil {
		return nil, err
	}

	diff, err := tools.NewDiffTool(tools.DiffToolConfig{
		Logger: cfg.Logger, Store: cfg.Store, Scanner: cfg.Scanner,
		Name: "diff", Description: "Compare the installed package sets of two environments.",
	})
	if err != nil {
		return nil, err
	}

	notes, err := tools.NewNotesTool(tools.NotesToolConfig{
		Logger: cfg.Logger, Store: cfg.Store,
		Name: "notes", Description: "List notes for a project path and/or environment.",
	})
	if err != nil {
		return nil, err
	}

	labels, err := tools.NewLabelsTool(tools.LabelsToolConfig{
		Logger: cfg.Logger, Store: cfg.Store,
		Name: "labels", Description: "List labels for an environment, or the environments carrying a given label.",
	})
	if err != nil {
		return nil, err
	}

	findPackage, err := tools.NewFindPackageTool(tools.FindPackageToolConfig{
		Logger: cfg.Logger, Store: cfg.Store, Scanner: cfg.Scanner,
		Name: "find_package", Description: "Find every registered environment that has a given package installed.",
	})
	if err != nil {
		return nil, err
	}

	packageDetails, err := tools.NewPackageDetailsTool(tools.PackageDetailsToolConfig{
		Logger: cfg.Logger, Store: cfg.Store, Scanner: cfg.Scanner,
		Name: "package_details", Description: "Return one package's scanned metadata within one environment.",
	})
	if err != nil {
		return nil, err
	}

	version, err := tools.NewVersionTool(tools.VersionToolConfig{
		Logger: cfg.Logger, Version: cfg.Version, SchemaVersion: registry.CurrentSchema,
		Name: "version", Description: "Return the zen-agentd build version and registry schema version.",
	})
	if err != nil {
		return nil, err
	}

	return []registrar{
		listEnvs, create, remove, details,
		install, uninstall, run,
		associate, defaultEnv, projectEnvs,
		healthTool, diff, notes, labels,
		findPackage, packageDetails, version,
	}, nil
}

// Run blocks serving the MCP protocol over stdio until ctx is canceled or
// the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.cfg.Logger.Info("server: mcp stdio transport listening")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("failed to run mcp server: %w", err)
	}
	return nil
}
