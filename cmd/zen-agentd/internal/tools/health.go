package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vistralis/zen/internal/health"
	"github.com/vistralis/zen/internal/registry"
)

// HealthStore is the subset of *registry.Store the health tool needs to
// resolve a name to a path before running the checker.
type HealthStore interface {
	LookupEnvironmentByName(name string) (registry.Environment, error)
}

// Checker is the subset of *health.Checker the health tool needs.
type Checker interface {
	Check(envName, envPath string) health.Report
}

type HealthInput struct {
	Name string `json:"name"`
}

type HealthDiagnostic struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

type HealthOutput struct {
	Name            string             `json:"name"`
	OverallSeverity string             `json:"overall_severity"`
	Diagnostics     []HealthDiagnostic `json:"diagnostics"`
}

type HealthToolConfig struct {
	Logger  *slog.Logger
	Store   HealthStore
	Checker Checker

	Name        string
	Description string
}

func (cfg *HealthToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Checker == nil {
		return fmt.Errorf("checker is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type HealthTool struct {
	log *slog.Logger
	cfg HealthToolConfig
}

func NewHealthTool(cfg HealthToolConfig) (*HealthTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate health tool config: %w", err)
	}
	return &HealthTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *HealthTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[HealthInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create health input schema: %w", err)
	}
	res, err := jsonschema.For[HealthOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create health output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in HealthInput) (*mcp.CallToolResult, HealthOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, HealthOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *HealthTool) handle(in HealthInput) (HealthOutput, error) {
	env, err := t.cfg.Store.LookupEnvironmentByName(in.Name)
	if err != nil {
		return HealthOutput{}, err
	}

	t.log.Debug("tools: running health check", "name", in.Name)
	report := t.cfg.Checker.Check(env.Name, env.Path)

	out := HealthOutput{Name: env.Name, OverallSeverity: report.OverallSeverity().String()}
	for _, d := range report.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, HealthDiagnostic{
			Kind:     d.Kind.String(),
			Severity: d.Severity().String(),
			Detail:   d.Detail,
		})
	}
	return out, nil
}
