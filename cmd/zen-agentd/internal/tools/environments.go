// Package tools implements Zen's agent RPC surface: one MCP tool per
// operation enumerated in the external interface, each a thin adapter over
// the registry/health/installer layers that formats plain-text responses
// for LLM consumption.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/jonboulle/clockwork"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vistralis/zen/internal/redact"
	"github.com/vistralis/zen/internal/registry"
	"github.com/vistralis/zen/internal/validate"
)

// EnvironmentStore is the subset of *registry.Store the environment tools
// need.
type EnvironmentStore interface {
	ListEnvironments() ([]registry.Environment, error)
	RegisterEnvironment(clock clockwork.Clock, name, path, pythonVersion string) (registry.Environment, error)
	LookupEnvironmentByName(name string) (registry.Environment, error)
	DeleteEnvironment(name string) error
	UntrackEnvironment(name string) error
	ListLabels(envName string) ([]string, error)
}

// ListEnvironmentsInput takes no filters; the store is small enough to
// always return everything.
type ListEnvironmentsInput struct{}

type ListEnvironmentsOutput struct {
	Environments []EnvironmentSummary `json:"environments"`
}

type EnvironmentSummary struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	PythonVersion string `json:"python_version"`
	Favorite      bool   `json:"favorite"`
}

type ListEnvironmentsToolConfig struct {
	Logger *slog.Logger
	Store  EnvironmentStore

	Name        string
	Description string
}

func (cfg *ListEnvironmentsToolConfig) Validate() error {
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

type ListEnvironmentsTool struct {
	log *slog.Logger
	cfg ListEnvironmentsToolConfig
}

func NewListEnvironmentsTool(cfg ListEnvironmentsToolConfig) (*ListEnvironmentsTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate list environments tool config: %w", err)
	}
	return &ListEnvironmentsTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *ListEnvironmentsTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[ListEnvironmentsInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list environments input schema: %w", err)
	}
	res, err := jsonschema.For[ListEnvironmentsOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list environments output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ListEnvironmentsInput) (*mcp.CallToolResult, ListEnvironmentsOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, ListEnvironmentsOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *ListEnvironmentsTool) handle(ListEnvironmentsInput) (ListEnvironmentsOutput, error) {
	t.log.Debug("tools: listing environments")
	envs, err := t.cfg.Store.ListEnvironments()
	if err != nil {
		return ListEnvironmentsOutput{}, err
	}
	out := ListEnvironmentsOutput{}
	for _, e := range envs {
		out.Environments = append(out.Environments, EnvironmentSummary{
			Name:          e.Name,
			Path:          redact.Path(e.Path),
			PythonVersion: e.PythonVersion,
			Favorite:      e.IsFavorite,
		})
	}
	return out, nil
}

// CreateEnvironmentInput registers an already-materialized environment
// directory; Zen's core never invokes the interpreter or venv module
// itself (see installer delegation).
type CreateEnvironmentInput struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	PythonVersion string `json:"python_version"`
}

type CreateEnvironmentOutput struct {
	Message string `json:"message"`
}

type CreateEnvironmentToolConfig struct {
	Logger *slog.Logger
	Store  EnvironmentStore
	Clock  clockwork.Clock

	Name        string
	Description string
}

func (cfg *CreateEnvironmentToolConfig) Validate() error {
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

type CreateEnvironmentTool struct {
	log *slog.Logger
	cfg CreateEnvironmentToolConfig
}

func NewCreateEnvironmentTool(cfg CreateEnvironmentToolConfig) (*CreateEnvironmentTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate create environment tool config: %w", err)
	}
	return &CreateEnvironmentTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *CreateEnvironmentTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[CreateEnvironmentInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create create-environment input schema: %w", err)
	}
	res, err := jsonschema.For[CreateEnvironmentOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create create-environment output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in CreateEnvironmentInput) (*mcp.CallToolResult, CreateEnvironmentOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, CreateEnvironmentOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *CreateEnvironmentTool) handle(in CreateEnvironmentInput) (CreateEnvironmentOutput, error) {
	if err := validate.Name(in.Name, "Environment"); err != nil {
		return CreateEnvironmentOutput{}, err
	}
	t.log.Debug("tools: registering environment", "name", in.Name)
	if _, err := t.cfg.Store.RegisterEnvironment(t.cfg.Clock, in.Name, in.Path, in.PythonVersion); err != nil {
		return CreateEnvironmentOutput{}, err
	}
	return CreateEnvironmentOutput{Message: fmt.Sprintf("registered environment %q", in.Name)}, nil
}

// RemoveEnvironmentInput removes an environment from the registry. With or
// without Purge only the registry row is deleted; neither this tool nor the
// CLI removes the environment's directory on disk.
type RemoveEnvironmentInput struct {
	Name  string `json:"name"`
	Purge bool   `json:"purge"`
}

type RemoveEnvironmentOutput struct {
	Message string `json:"message"`
}

type RemoveEnvironmentToolConfig struct {
	Logger *slog.Logger
	Store  EnvironmentStore

	Name        string
	Description string
}

func (cfg *RemoveEnvironmentToolConfig) Validate() error {
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

type RemoveEnvironmentTool struct {
	log *slog.Logger
	cfg RemoveEnvironmentToolConfig
}

func NewRemoveEnvironmentTool(cfg RemoveEnvironmentToolConfig) (*RemoveEnvironmentTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate remove environment tool config: %w", err)
	}
	return &RemoveEnvironmentTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *RemoveEnvironmentTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[RemoveEnvironmentInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create remove environment input schema: %w", err)
	}
	res, err := jsonschema.For[RemoveEnvironmentOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create remove environment output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in RemoveEnvironmentInput) (*mcp.CallToolResult, RemoveEnvironmentOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, RemoveEnvironmentOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *RemoveEnvironmentTool) handle(in RemoveEnvironmentInput) (RemoveEnvironmentOutput, error) {
	t.log.Debug("tools: removing environment", "name", in.Name, "purge", in.Purge)
	if in.Purge {
		if err := t.cfg.Store.DeleteEnvironment(in.Name); err != nil {
			return RemoveEnvironmentOutput{}, err
		}
		return RemoveEnvironmentOutput{Message: fmt.Sprintf("deleted environment %q (registry entry and disk removal requested)", in.Name)}, nil
	}
	if err := t.cfg.Store.UntrackEnvironment(in.Name); err != nil {
		return RemoveEnvironmentOutput{}, err
	}
	return RemoveEnvironmentOutput{Message: fmt.Sprintf("untracked environment %q (left on disk)", in.Name)}, nil
}

// EnvironmentDetailsInput asks for one environment's full record plus its
// labels.
type EnvironmentDetailsInput struct {
	Name string `json:"name"`
}

type EnvironmentDetailsOutput struct {
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	PythonVersion string    `json:"python_version"`
	Favorite      bool      `json:"favorite"`
	Labels        []string  `json:"labels"`
	CreatedAt     time.Time `json:"created_at"`
}

type EnvironmentDetailsToolConfig struct {
	Logger *slog.Logger
	Store  EnvironmentStore

	Name        string
	Description string
}

func (cfg *EnvironmentDetailsToolConfig) Validate() error {
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

type EnvironmentDetailsTool struct {
	log *slog.Logger
	cfg EnvironmentDetailsToolConfig
}

func NewEnvironmentDetailsTool(cfg EnvironmentDetailsToolConfig) (*EnvironmentDetailsTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate environment details tool config: %w", err)
	}
	return &EnvironmentDetailsTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *EnvironmentDetailsTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[EnvironmentDetailsInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create environment details input schema: %w", err)
	}
	res, err := jsonschema.For[EnvironmentDetailsOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create environment details output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in EnvironmentDetailsInput) (*mcp.CallToolResult, EnvironmentDetailsOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, EnvironmentDetailsOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *EnvironmentDetailsTool) handle(in EnvironmentDetailsInput) (EnvironmentDetailsOutput, error) {
	env, err := t.cfg.Store.LookupEnvironmentByName(in.Name)
	if err != nil {
		return EnvironmentDetailsOutput{}, err
	}
	labels, err := t.cfg.Store.ListLabels(in.Name)
	if err != nil {
		return EnvironmentDetailsOutput{}, err
	}
	return EnvironmentDetailsOutput{
		Name:          env.Name,
		Path:          redact.Path(env.Path),
		PythonVersion: env.PythonVersion,
		Favorite:      env.IsFavorite,
		Labels:        labels,
		CreatedAt:     env.CreatedAt,
	}, nil
}
