package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type VersionInput struct{}

type VersionOutput struct {
	Version       string `json:"version"`
	SchemaVersion int    `json:"schema_version"`
}

type VersionToolConfig struct {
	Logger        *slog.Logger
	Version       string
	SchemaVersion int

	Name        string
	Description string
}

func (cfg *VersionToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Version == "" {
		return fmt.Errorf("version is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type VersionTool struct {
	log *slog.Logger
	cfg VersionToolConfig
}

func NewVersionTool(cfg VersionToolConfig) (*VersionTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate version tool config: %w", err)
	}
	return &VersionTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *VersionTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[VersionInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create version input schema: %w", err)
	}
	res, err := jsonschema.For[VersionOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create version output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ VersionInput) (*mcp.CallToolResult, VersionOutput, error) {
		t.log.Debug("tools: reporting version")
		return nil, VersionOutput{Version: t.cfg.Version, SchemaVersion: t.cfg.SchemaVersion}, nil
	})
	return nil
}
