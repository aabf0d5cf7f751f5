package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vistralis/zen/internal/redact"
	"github.com/vistralis/zen/internal/registry"
)

// NoteStore is the subset of *registry.Store the notes tool needs.
type NoteStore interface {
	ListNotes(projectPath, envName *string) ([]registry.Note, error)
}

// NotesInput lists notes for a project path and/or environment; both
// filters are optional, matching the registry's own ListNotes contract.
type NotesInput struct {
	ProjectPath *string `json:"project_path,omitempty"`
	EnvName     *string `json:"env_name,omitempty"`
}

type NoteRecord struct {
	UUID        string `json:"uuid"`
	ProjectPath string `json:"project_path"`
	Message     string `json:"message"`
	Tag         string `json:"tag,omitempty"`
}

type NotesOutput struct {
	Notes []NoteRecord `json:"notes"`
}

type NotesToolConfig struct {
	Logger *slog.Logger
	Store  NoteStore

	Name        string
	Description string
}

func (cfg *NotesToolConfig) Validate() error {
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

type NotesTool struct {
	log *slog.Logger
	cfg NotesToolConfig
}

func NewNotesTool(cfg NotesToolConfig) (*NotesTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate notes tool config: %w", err)
	}
	return &NotesTool{log: cfg.Logger, cfg: cfg}, nil
}

func (t *NotesTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[NotesInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create notes input schema: %w", err)
	}
	res, err := jsonschema.For[NotesOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create notes output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in NotesInput) (*mcp.CallToolResult, NotesOutput, error) {
		out, err := t.handle(in)
		if err != nil {
			return nil, NotesOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func (t *NotesTool) handle(in NotesInput) (NotesOutput, error) {
	t.log.Debug("tools: listing notes")
	notes, err := t.cfg.Store.ListNotes(in.ProjectPath, in.EnvName)
	if err != nil {
		return NotesOutput{}, err
	}
	out := NotesOutput{}
	for _, n := range notes {
		rec := NoteRecord{UUID: n.UUID, ProjectPath: redact.Path(n.ProjectPath), Message: n.Message}
		if n.Tag != nil {
			rec.Tag = *n.Tag
		}
		out.Notes = append(out.Notes, rec)
	}
	return out, nil
}
