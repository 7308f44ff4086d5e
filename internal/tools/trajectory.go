package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/pandakin/internal/achievements"
	"github.com/HendryAvila/pandakin/internal/trajectory"
	"github.com/mark3labs/mcp-go/mcp"
	"gonum.org/v1/gonum/spatial/r3"
)

// ─── DrawTool ────────────────────────────────────────────────────────────────

// DrawTool handles the trajectory_draw_b MCP tool.
type DrawTool struct {
	generator *trajectory.Generator
	store     trajectory.Store
	events    Events
}

// NewDrawTool creates a DrawTool. A nil store disables export.
func NewDrawTool(generator *trajectory.Generator, store trajectory.Store, events Events) *DrawTool {
	return &DrawTool{generator: generator, store: store, events: events}
}

// Definition returns the MCP tool definition for trajectory_draw_b.
func (t *DrawTool) Definition() mcp.Tool {
	d := trajectory.DefaultOptions()
	return mcp.NewTool("trajectory_draw_b",
		mcp.WithDescription(
			"Generate a path tracing a capital letter B on the YZ plane and solve IK for every point, "+
				"each seeded with the previous solution. Points the solver could not reach are kept with "+
				"success=false. Set export_name to save the solved path for trajectory_import.",
		),
		mcp.WithNumber("scale",
			mcp.Description(fmt.Sprintf("Letter height in meters (default: %g)", d.Scale)),
		),
		mcp.WithArray("center",
			mcp.Description(fmt.Sprintf("Letter center [x, y, z] in meters (default: [%g, %g, %g])", d.Center.X, d.Center.Y, d.Center.Z)),
			mcp.Items(numberItems),
		),
		mcp.WithNumber("points_per_segment",
			mcp.Description(fmt.Sprintf("Points per stroke (default: %d)", d.PointsPerSegment)),
		),
		mcp.WithString("export_name",
			mcp.Description("Save the solved path under this name"),
		),
	)
}

type drawOutput struct {
	*trajectory.Trajectory
	ExportedAs      string                     `json:"exported_as,omitempty"`
	NewAchievements []achievements.Achievement `json:"new_achievements,omitempty"`
}

// Handle processes the trajectory_draw_b tool call.
func (t *DrawTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := trajectory.DefaultOptions()
	opts.Scale = floatArg(req, "scale", opts.Scale)
	opts.PointsPerSegment = intArg(req, "points_per_segment", opts.PointsPerSegment)

	center, present, err := floatsArg(req, "center")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if present {
		if len(center) != 3 {
			return mcp.NewToolResultError(fmt.Sprintf("'center' must have 3 elements, got %d", len(center))), nil
		}
		opts.Center = r3.Vec{X: center[0], Y: center[1], Z: center[2]}
	}
	if err := opts.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	traj, err := t.generator.DrawB(ctx, opts)
	if err != nil {
		return engineError(err), nil
	}

	events := []achievements.Event{achievements.EventPathExecution}
	out := drawOutput{Trajectory: traj}
	if name := req.GetString("export_name", ""); name != "" {
		if t.store == nil {
			return mcp.NewToolResultError("trajectory export is not available"), nil
		}
		traj.Name = name
		saved, err := t.store.Save(traj)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to export trajectory: %v", err)), nil
		}
		out.ExportedAs = saved
		events = append(events, achievements.EventPathExport)
	}
	out.NewAchievements = t.events.emit(events...)
	return jsonResult(out)
}

// ─── ImportTool ──────────────────────────────────────────────────────────────

// ImportTool handles the trajectory_import MCP tool.
type ImportTool struct {
	store  trajectory.Store
	events Events
}

// NewImportTool creates an ImportTool.
func NewImportTool(store trajectory.Store, events Events) *ImportTool {
	return &ImportTool{store: store, events: events}
}

// Definition returns the MCP tool definition for trajectory_import.
func (t *ImportTool) Definition() mcp.Tool {
	return mcp.NewTool("trajectory_import",
		mcp.WithDescription("Load a previously exported trajectory by name. Use trajectory_list to see what is stored."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name the trajectory was exported under"),
		),
	)
}

type importOutput struct {
	*trajectory.Trajectory
	NewAchievements []achievements.Achievement `json:"new_achievements,omitempty"`
}

// Handle processes the trajectory_import tool call.
func (t *ImportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	traj, err := t.store.Load(name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to import trajectory: %v", err)), nil
	}
	return jsonResult(importOutput{
		Trajectory:      traj,
		NewAchievements: t.events.emit(achievements.EventPathImport),
	})
}

// ─── ListTool ────────────────────────────────────────────────────────────────

// ListTool handles the trajectory_list MCP tool.
type ListTool struct {
	store trajectory.Store
}

// NewListTool creates a ListTool.
func NewListTool(store trajectory.Store) *ListTool {
	return &ListTool{store: store}
}

// Definition returns the MCP tool definition for trajectory_list.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("trajectory_list",
		mcp.WithDescription("List stored trajectories with their solved point counts."),
	)
}

// Handle processes the trajectory_list tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := t.store.List()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list trajectories: %v", err)), nil
	}
	if list == nil {
		list = []trajectory.Summary{}
	}
	return jsonResult(list)
}
