package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/specd/internal/steering"
)

// ===== STEERING TOOLS =====

type steeringListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum notes to return (default: 20)"`
}

type steeringNoteOutput struct {
	Slug      string   `json:"slug" jsonschema:"Note slug, usable with steering_show"`
	Title     string   `json:"title" jsonschema:"Note title"`
	Session   string   `json:"session,omitempty" jsonschema:"Pipeline session that produced the note"`
	Generated string   `json:"generated" jsonschema:"Generation time, RFC 3339"`
	Stages    []string `json:"stages,omitempty" jsonschema:"Pipeline stages that ran"`
	Degraded  []string `json:"degraded,omitempty" jsonschema:"Taxonomy stages that ran on fallback output"`
}

type steeringListOutput struct {
	Notes []steeringNoteOutput `json:"notes" jsonschema:"Steering notes, newest first"`
	Count int                  `json:"count" jsonschema:"Number of notes returned"`
}

type steeringShowInput struct {
	Slug string `json:"slug" jsonschema:"required,Note slug as returned by steering_list"`
}

type steeringShowOutput struct {
	steeringNoteOutput
	Body string `json:"body" jsonschema:"Executive summary body in markdown"`
}

func (s *Server) registerSteeringTools() {
	s.toolRegistry.RegisterAll([]*ToolMetadata{
		{
			Name:        "steering_list",
			Description: "List steering notes from past successful pipeline runs, newest first",
			Category:    CategorySteering,
			Keywords:    []string{"notes", "history", "runs", "summaries"},
		},
		{
			Name:        "steering_show",
			Description: "Read one steering note by slug, including its executive summary body",
			Category:    CategorySteering,
			Keywords:    []string{"note", "read", "summary"},
		},
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "steering_list",
		Description: "List steering notes written after successful pipeline runs, newest first. Each entry names the session, stages, and any degraded stages.",
		Meta:        s.toolMeta("steering_list"),
	}, s.handleSteeringList)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "steering_show",
		Description: "Read one steering note by slug, including the executive summary body.",
		Meta:        s.toolMeta("steering_show"),
	}, s.handleSteeringShow)
}

func (s *Server) handleSteeringList(ctx context.Context, req *mcp.CallToolRequest, args steeringListInput) (*mcp.CallToolResult, steeringListOutput, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, "steering_list")
	var toolErr error
	defer func() {
		s.metrics.DecrementActive(ctx, "steering_list")
		s.metrics.RecordInvocation(ctx, "steering_list", time.Since(start), toolErr)
	}()

	if err := s.checkLimit(); err != nil {
		toolErr = err
		return nil, steeringListOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}

	var notes []steering.Note
	if s.watcher != nil {
		notes = s.watcher.Notes()
	} else {
		var err error
		notes, err = s.store.List()
		if err != nil {
			toolErr = fmt.Errorf("listing steering notes: %w", err)
			return nil, steeringListOutput{}, toolErr
		}
	}
	if len(notes) > limit {
		notes = notes[:limit]
	}

	out := steeringListOutput{
		Notes: make([]steeringNoteOutput, 0, len(notes)),
	}
	for _, note := range notes {
		out.Notes = append(out.Notes, noteOutput(&note))
	}
	out.Count = len(out.Notes)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d steering notes", out.Count)},
		},
	}, out, nil
}

func (s *Server) handleSteeringShow(ctx context.Context, req *mcp.CallToolRequest, args steeringShowInput) (*mcp.CallToolResult, steeringShowOutput, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, "steering_show")
	var toolErr error
	defer func() {
		s.metrics.DecrementActive(ctx, "steering_show")
		s.metrics.RecordInvocation(ctx, "steering_show", time.Since(start), toolErr)
	}()

	if err := s.checkLimit(); err != nil {
		toolErr = err
		return nil, steeringShowOutput{}, err
	}

	note, err := s.lookupNote(args.Slug)
	if err != nil {
		toolErr = err
		return nil, steeringShowOutput{}, err
	}

	out := steeringShowOutput{
		steeringNoteOutput: noteOutput(note),
		Body:               note.Body,
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Steering note %q (%s)", note.Title, note.Slug)},
		},
	}, out, nil
}

// lookupNote serves the watcher index when one is attached and falls
// back to the store, which also covers notes written since the last
// index update.
func (s *Server) lookupNote(slug string) (*steering.Note, error) {
	if s.watcher != nil {
		if note, ok := s.watcher.Get(slug); ok {
			return &note, nil
		}
	}
	return s.store.Read(slug)
}

func noteOutput(note *steering.Note) steeringNoteOutput {
	return steeringNoteOutput{
		Slug:      note.Slug,
		Title:     note.Title,
		Session:   note.Session,
		Generated: note.Generated.UTC().Format(time.RFC3339),
		Stages:    note.Stages,
		Degraded:  note.Degraded,
	}
}
