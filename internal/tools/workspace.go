package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/HendryAvila/pandakin/internal/achievements"
	"github.com/HendryAvila/pandakin/internal/workspace"
	"github.com/mark3labs/mcp-go/mcp"
)

// MaxReturnedPoints caps the point cloud a single workspace_calculate
// response carries.
const MaxReturnedPoints = 5000

// WorkspaceDefaults are applied when a request leaves sampling unset.
type WorkspaceDefaults struct {
	Samples int
	Seed    uint64
}

func (d WorkspaceDefaults) withFallbacks() WorkspaceDefaults {
	if d.Samples == 0 {
		d.Samples = workspace.DefaultSamples
	}
	return d
}

func samplingError(err error) *mcp.CallToolResult {
	if errors.Is(err, workspace.ErrSampleCount) {
		return mcp.NewToolResultError(fmt.Sprintf("'num_samples' must be in [%d, %d]", workspace.MinSamples, workspace.MaxSamples))
	}
	return mcp.NewToolResultError(fmt.Sprintf("workspace sampling failed: %v", err))
}

// ─── WorkspaceTool ───────────────────────────────────────────────────────────

// WorkspaceTool handles the workspace_calculate MCP tool.
type WorkspaceTool struct {
	sampler  *workspace.Sampler
	defaults WorkspaceDefaults
	events   Events
}

// NewWorkspaceTool creates a WorkspaceTool.
func NewWorkspaceTool(sampler *workspace.Sampler, defaults WorkspaceDefaults, events Events) *WorkspaceTool {
	return &WorkspaceTool{sampler: sampler, defaults: defaults.withFallbacks(), events: events}
}

// Definition returns the MCP tool definition for workspace_calculate.
func (t *WorkspaceTool) Definition() mcp.Tool {
	return mcp.NewTool("workspace_calculate",
		mcp.WithDescription(
			"Estimate the reachable workspace by sampling random joint configurations inside the limits. "+
				"Returns the accepted point count, the bounding box, its volume and, on request, the point cloud "+
				"of the selected region. The same seed always yields the same cloud.",
		),
		mcp.WithNumber("num_samples",
			mcp.Description(fmt.Sprintf("Samples to draw, %d to %d (default: %d)",
				workspace.MinSamples, workspace.MaxSamples, t.defaults.Samples)),
		),
		mcp.WithNumber("seed",
			mcp.Description(fmt.Sprintf("RNG seed (default: %d)", t.defaults.Seed)),
		),
		mcp.WithString("region",
			mcp.Description("Subset to report: reachable (default), dexterous (0.3 to 0.7 m from the base) or safe (clear of joint limits)"),
			mcp.Enum(string(workspace.RegionReachable), string(workspace.RegionDexterous), string(workspace.RegionSafe)),
		),
		mcp.WithBoolean("include_points",
			mcp.Description(fmt.Sprintf("Include up to %d region points in the response (default: false)", MaxReturnedPoints)),
		),
	)
}

type workspaceOutput struct {
	NumSamples      int                        `json:"num_samples"`
	NumPoints       int                        `json:"num_points"`
	Seed            uint64                     `json:"seed"`
	Stats           workspace.Stats            `json:"stats"`
	Region          workspace.Region           `json:"region"`
	RegionPoints    int                        `json:"region_points"`
	Points          [][3]float64               `json:"points,omitempty"`
	Truncated       bool                       `json:"truncated,omitempty"`
	NewAchievements []achievements.Achievement `json:"new_achievements,omitempty"`
}

// Handle processes the workspace_calculate tool call.
func (t *WorkspaceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	region, err := workspace.ParseRegion(req.GetString("region", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n := intArg(req, "num_samples", t.defaults.Samples)
	seed := uint64(intArg(req, "seed", int(t.defaults.Seed)))

	cloud, err := t.sampler.Sample(ctx, n, seed)
	if err != nil {
		return samplingError(err), nil
	}

	selected := workspace.Filter(cloud.Points, region)
	out := workspaceOutput{
		NumSamples:   cloud.Samples,
		NumPoints:    len(cloud.Points),
		Seed:         cloud.Seed,
		Stats:        workspace.ComputeStats(cloud.Points),
		Region:       region,
		RegionPoints: len(selected),
	}
	if boolArg(req, "include_points", false) {
		if len(selected) > MaxReturnedPoints {
			selected = selected[:MaxReturnedPoints]
			out.Truncated = true
		}
		out.Points = workspace.Positions(selected)
	}
	out.NewAchievements = t.events.emit(achievements.EventWorkspaceCalculation)
	return jsonResult(out)
}

// ─── BoundsTool ──────────────────────────────────────────────────────────────

// BoundsTool handles the workspace_bounds MCP tool.
type BoundsTool struct {
	sampler  *workspace.Sampler
	defaults WorkspaceDefaults
}

// NewBoundsTool creates a BoundsTool.
func NewBoundsTool(sampler *workspace.Sampler, defaults WorkspaceDefaults) *BoundsTool {
	return &BoundsTool{sampler: sampler, defaults: defaults.withFallbacks()}
}

// Definition returns the MCP tool definition for workspace_bounds.
func (t *BoundsTool) Definition() mcp.Tool {
	return mcp.NewTool("workspace_bounds",
		mcp.WithDescription("Return the axis-aligned bounding box of the sampled reachable workspace."),
		mcp.WithNumber("num_samples",
			mcp.Description(fmt.Sprintf("Samples to draw, %d to %d (default: %d)",
				workspace.MinSamples, workspace.MaxSamples, t.defaults.Samples)),
		),
	)
}

type boundsOutput struct {
	Bounds     workspace.Bounds `json:"bounds"`
	NumSamples int              `json:"num_samples"`
	NumPoints  int              `json:"num_points"`
}

// Handle processes the workspace_bounds tool call.
func (t *BoundsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := intArg(req, "num_samples", t.defaults.Samples)
	cloud, err := t.sampler.Sample(ctx, n, t.defaults.Seed)
	if err != nil {
		return samplingError(err), nil
	}
	return jsonResult(boundsOutput{
		Bounds:     workspace.ComputeBounds(cloud.Points),
		NumSamples: cloud.Samples,
		NumPoints:  len(cloud.Points),
	})
}
