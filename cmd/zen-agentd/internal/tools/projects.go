package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/jonboulle/clockwork"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vistralis/zen/internal/redact"
	"github.com/vistralis/zen/internal/registry"
)

// ProjectStore is the subset of *registry.Store the project-link tools
// need.
type ProjectStore interface {
	LookupEnvironmentByName(name string) (registry.Environment, error)
	AssociateProject(clock clockwork.Clock, projectPath string, envID int64, isDefault bool, tag *string) (registry.ProjectLink, error)
	GetDefaultLink(projectPath string) (registry.ProjectLinkCandidate, error)
	ListLinksForPath(projectPath string) ([]registry.ProjectLinkCandidate, error)
}

type AssociateProjectInput struct {
	ProjectPath string  `json:"project_path"`
	EnvName     string  `json:"env_name"`
	IsDefault   bool    `json:"is_default"`
	Tag         *string `json:"tag,omitempty"`
}

type AssociateProjectOutput struct {
	Message string `json:"message"`
}

type AssociateProjectToolConfig struct {
	Logger *slog.Logger
	Store  ProjectStore
	Clock  clockwork.Clock

	Name        string
	Description string
}

func (cfg *AssociateProjectToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Clock == nil {
		return fmt.Errorf("clock is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type AssociateProjectTool struct {
	log *slog.Logger
	cfg AssociateProjectToolConfig
}

func NewAssociateProjectTool(cfg AssociateProjectToolConfig) (*AssociateProjectTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate associate project tool config: %w", err)
	}
	return &AssociateProjectTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *AssociateProjectTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[AssociateProjectInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create associate project input schema: %w", err)
	}
	res, err := jsonschema.For[AssociateProjectOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create associate project output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in AssociateProjectInput) (*mcp.CallToolResult, AssociateProjectOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, AssociateProjectOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *AssociateProjectTool) handle(in AssociateProjectInput) (AssociateProjectOutput, error) {
	env, err := t.cfg.Store.LookupEnvironmentByName(in.EnvName)
	if err != nil {
		return AssociateProjectOutput{}, err
	}

	t.log.Debug("tools: associating project", "path", in.ProjectPath, "env", in.EnvName)
	if _, err := t.cfg.Store.AssociateProject(t.cfg.Clock, in.ProjectPath, env.ID, in.IsDefault, in.Tag); err != nil {
		return AssociateProjectOutput{}, err
	}
	return AssociateProjectOutput{Message: fmt.Sprintf("linked %s to %s", redact.Path(in.ProjectPath), in.EnvName)}, nil
}

type GetDefaultEnvInput struct {
	ProjectPath string `json:"project_path"`
}

type GetDefaultEnvOutput struct {
	EnvName string `json:"env_name"`
	EnvPath string `json:"env_path"`
}

type GetDefaultEnvToolConfig struct {
	Logger *slog.Logger
	Store  ProjectStore

	Name        string
	Description string
}

func (cfg *GetDefaultEnvToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type GetDefaultEnvTool struct {
	log *slog.Logger
	cfg GetDefaultEnvToolConfig
}

func NewGetDefaultEnvTool(cfg GetDefaultEnvToolConfig) (*GetDefaultEnvTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate get default env tool config: %w", err)
	}
	return &GetDefaultEnvTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *GetDefaultEnvTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[GetDefaultEnvInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create get default env input schema: %w", err)
	}
	res, err := jsonschema.For[GetDefaultEnvOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create get default env output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in GetDefaultEnvInput) (*mcp.CallToolResult, GetDefaultEnvOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, GetDefaultEnvOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *GetDefaultEnvTool) handle(in GetDefaultEnvInput) (GetDefaultEnvOutput, error) {
	link, err := t.cfg.Store.GetDefaultLink(in.ProjectPath)
	if err != nil {
		return GetDefaultEnvOutput{}, err
	}
	return GetDefaultEnvOutput{EnvName: link.EnvName, EnvPath: redact.Path(link.EnvPath)}, nil
}

type GetProjectEnvsInput struct {
	ProjectPath string `json:"project_path"`
}

type ProjectEnvLink struct {
	EnvName         string `json:"env_name"`
	EnvPath         string `json:"env_path"`
	IsDefault       bool   `json:"is_default"`
	LinkType        string `json:"link_type"`
	ActivationCount int    `json:"activation_count"`
}

type GetProjectEnvsOutput struct {
	Links []ProjectEnvLink `json:"links"`
}

type GetProjectEnvsToolConfig struct {
	Logger *slog.Logger
	Store  ProjectStore

	Name        string
	Description string
}

func (cfg *GetProjectEnvsToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type GetProjectEnvsTool struct {
	log *slog.Logger
	cfg GetProjectEnvsToolConfig
}

func NewGetProjectEnvsTool(cfg GetProjectEnvsToolConfig) (*GetProjectEnvsTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate get project envs tool config: %w", err)
	}
	return &GetProjectEnvsTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *GetProjectEnvsTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[GetProjectEnvsInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create get project envs input schema: %w", err)
	}
	res, err := jsonschema.For[GetProjectEnvsOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create get project envs output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in GetProjectEnvsInput) (*mcp.CallToolResult, GetProjectEnvsOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, GetProjectEnvsOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *GetProjectEnvsTool) handle(in GetProjectEnvsInput) (GetProjectEnvsOutput, error) {
	links, err := t.cfg.Store.ListLinksForPath(in.ProjectPath)
	if err != nil {
		return GetProjectEnvsOutput{}, err
	}
	out := GetProjectEnvsOutput{}
	for _, l := range links {
		out.Links = append(out.Links, ProjectEnvLink{
			EnvName:         l.EnvName,
			EnvPath:         redact.Path(l.EnvPath),
			IsDefault:       l.IsDefault,
			LinkType:        string(l.LinkType),
			ActivationCount: l.ActivationCount,
		})
	}
	return out, nil
}
