package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vistralis/zen/internal/registry"
	"github.com/vistralis/zen/internal/scanner"
)

// PackageScanner is the subset of *scanner.Cache (or scanner.Scan itself)
// the package-facing tools need.
type PackageScanner interface {
	Scan(envRoot string) []scanner.Package
}

// PackageStore is the subset of *registry.Store the package-facing tools
// need.
type PackageStore interface {
	ListEnvironments() ([]registry.Environment, error)
	LookupEnvironmentByName(name string) (registry.Environment, error)
}

type FindPackageInput struct {
	PackageName string `json:"package_name"`
}

type FindPackageMatch struct {
	EnvName string `json:"env_name"`
	Version string `json:"version"`
}

type FindPackageOutput struct {
	Matches []FindPackageMatch `json:"matches"`
}

type FindPackageToolConfig struct {
	Logger  *slog.Logger
	Store   PackageStore
	Scanner PackageScanner

	Name        string
	Description string
}

func (cfg *FindPackageToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Scanner == nil {
		return fmt.Errorf("scanner is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type FindPackageTool struct {
	log *slog.Logger
	cfg FindPackageToolConfig
}

func NewFindPackageTool(cfg FindPackageToolConfig) (*FindPackageTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate find package tool config: %w", err)
	}
	return &FindPackageTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *FindPackageTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[FindPackageInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create find package input schema: %w", err)
	}
	res, err := jsonschema.For[FindPackageOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create find package output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in FindPackageInput) (*mcp.CallToolResult, FindPackageOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, FindPackageOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *FindPackageTool) handle(in FindPackageInput) (FindPackageOutput, error) {
	target := scanner.Normalize(in.PackageName)

	envs, err := t.cfg.Store.ListEnvironments()
	if err != nil {
		return FindPackageOutput{}, err
	}

	t.log.Debug("tools: finding package across environments", "package", in.PackageName, "env_count", len(envs))

	out := FindPackageOutput{}
	for _, env := range envs {
		for _, pkg := range t.cfg.Scanner.Scan(env.Path) {
			if pkg.Name == target {
				out.Matches = append(out.Matches, FindPackageMatch{EnvName: env.Name, Version: pkg.Version})
			}
		}
	}
	return out, nil
}

type PackageDetailsInput struct {
	EnvName     string `json:"env_name"`
	PackageName string `json:"package_name"`
}

type PackageDetailsOutput struct {
	Found         bool   `json:"found"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	Installer     string `json:"installer"`
	InstallSource string `json:"install_source"`
	Editable      bool   `json:"editable"`
	SourceURL     string `json:"source_url,omitempty"`
	CommitID      string `json:"commit_id,omitempty"`
	ImportName    string `json:"import_name,omitempty"`
}

type PackageDetailsToolConfig struct {
	Logger  *slog.Logger
	Store   PackageStore
	Scanner PackageScanner

	Name        string
	Description string
}

func (cfg *PackageDetailsToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Scanner == nil {
		return fmt.Errorf("scanner is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type PackageDetailsTool struct {
	log *slog.Logger
	cfg PackageDetailsToolConfig
}

func NewPackageDetailsTool(cfg PackageDetailsToolConfig) (*PackageDetailsTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate package details tool config: %w", err)
	}
	return &PackageDetailsTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *PackageDetailsTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[PackageDetailsInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create package details input schema: %w", err)
	}
	res, err := jsonschema.For[PackageDetailsOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create package details output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in PackageDetailsInput) (*mcp.CallToolResult, PackageDetailsOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, PackageDetailsOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *PackageDetailsTool) handle(in PackageDetailsInput) (PackageDetailsOutput, error) {
	env, err := t.cfg.Store.LookupEnvironmentByName(in.EnvName)
	if err != nil {
		return PackageDetailsOutput{}, err
	}

	target := scanner.Normalize(in.PackageName)
	for _, pkg := range t.cfg.Scanner.Scan(env.Path) {
		if pkg.Name != target {
			continue
		}
		return PackageDetailsOutput{
			Found:         true,
			Name:          pkg.Name,
			Version:       pkg.Version,
			Installer:     pkg.Installer,
			InstallSource: string(pkg.InstallSource),
			Editable:      pkg.Editable,
			SourceURL:     pkg.SourceURL,
			CommitID:      pkg.CommitID,
			ImportName:    pkg.ImportName,
		}, nil
	}
	return PackageDetailsOutput{Found: false, Name: target}, nil
}

// DiffInput compares the installed package sets of two environments.
type DiffInput struct {
	EnvNameA string `json:"env_name_a"`
	EnvNameB string `json:"env_name_b"`
}

type PackageChange struct {
	Name       string `json:"name"`
	VersionA   string `json:"version_a,omitempty"`
	VersionB   string `json:"version_b,omitempty"`
	ChangeKind string `json:"change_kind"` // "added", "removed", "changed"
}

type DiffOutput struct {
	Changes []PackageChange `json:"changes"`
}

type DiffToolConfig struct {
	Logger  *slog.Logger
	Store   PackageStore
	Scanner PackageScanner

	Name        string
	Description string
}

func (cfg *DiffToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Scanner == nil {
		return fmt.Errorf("scanner is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type DiffTool struct {
	log *slog.Logger
	cfg DiffToolConfig
}

func NewDiffTool(cfg DiffToolConfig) (*DiffTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate diff tool config: %w", err)
	}
	return &DiffTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *DiffTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[DiffInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create diff input schema: %w", err)
	}
	res, err := jsonschema.For[DiffOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create diff output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in DiffInput) (*mcp.CallToolResult, DiffOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, DiffOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *DiffTool) handle(in DiffInput) (DiffOutput, error) {
	envA, err := t.cfg.Store.LookupEnvironmentByName(in.EnvNameA)
	if err != nil {
		return DiffOutput{}, err
	}
	envB, err := t.cfg.Store.LookupEnvironmentByName(in.EnvNameB)
	if err != nil {
		return DiffOutput{}, err
	}

	t.log.Debug("tools: diffing environments", "a", in.EnvNameA, "b", in.EnvNameB)

	byName := func(pkgs []scanner.Package) map[string]string {
		m := make(map[string]string, len(pkgs))
		for _, p := range pkgs {
			m[p.Name] = p.Version
		}
		return m
	}
	a := byName(t.cfg.Scanner.Scan(envA.Path))
	b := byName(t.cfg.Scanner.Scan(envB.Path))

	var names []string
	for name := range a {
		names = append(names, name)
	}
	for name := range b {
		if _, ok := a[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := DiffOutput{}
	for _, name := range names {
		va, inA := a[name]
		vb, inB := b[name]
		switch {
		case inA && !inB:
			out.Changes = append(out.Changes, PackageChange{Name: name, VersionA: va, ChangeKind: "removed"})
		case !inA && inB:
			out.Changes = append(out.Changes, PackageChange{Name: name, VersionB: vb, ChangeKind: "added"})
		case va != vb:
			out.Changes = append(out.Changes, PackageChange{Name: name, VersionA: va, VersionB: vb, ChangeKind: "changed"})
		}
	}
	return out, nil
}
