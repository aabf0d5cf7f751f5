package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// LabelStore is the subset of *registry.Store the labels tool needs.
type LabelStore interface {
	ListLabels(envName string) ([]string, error)
	EnvironmentsWithLabel(label string) ([]string, error)
}

// LabelsInput lists labels for one environment, or the environments
// carrying one label — exactly one of the two fields should be set.
type LabelsInput struct {
	EnvName string `json:"env_name,omitempty"`
	Label   string `json:"label,omitempty"`
}

type LabelsOutput struct {
	Labels       []string `json:"labels,omitempty"`
	Environments []string `json:"environments,omitempty"`
}

type LabelsToolConfig struct {
	Logger *slog.Logger
	Store  LabelStore

	Name        string
	Description string
}

func (cfg *LabelsToolConfig) Validate() error {
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

type LabelsTool struct {
	log *slog.Logger
	cfg LabelsToolConfig
}

func NewLabelsTool(cfg LabelsToolConfig) (*LabelsTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate labels tool config: %w", err)
	}
	return &LabelsTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *LabelsTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[LabelsInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create labels input schema: %w", err)
	}
	res, err := jsonschema.For[LabelsOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create labels output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in LabelsInput) (*mcp.CallToolResult, LabelsOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, LabelsOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *LabelsTool) handle(in LabelsInput) (LabelsOutput, error) {
	if in.Label != "" {
		envs, err := t.cfg.Store.EnvironmentsWithLabel(in.Label)
		if err != nil {
			return LabelsOutput{}, err
		}
		return LabelsOutput{Environments: envs}, nil
	}
	labels, err := t.cfg.Store.ListLabels(in.EnvName)
	if err != nil {
		return LabelsOutput{}, err
	}
	return LabelsOutput{Labels: labels}, nil
}
