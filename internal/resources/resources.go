// Package resources implements MCP resource handlers.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (panda://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/pandakin/internal/achievements"
	"github.com/HendryAvila/pandakin/internal/kinematics"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	RobotInfoURI = "panda://robot/info"
	ProgressURI  = "panda://achievements/progress"
)

// ProgressSource reports achievement progress.
type ProgressSource interface {
	Progress() (*achievements.Progress, error)
}

// Handler manages resource endpoints.
type Handler struct {
	progress ProgressSource
}

// NewHandler creates a resource Handler. progress may be nil when
// achievement tracking is disabled.
func NewHandler(progress ProgressSource) *Handler {
	return &Handler{progress: progress}
}

// RobotInfoResource returns the MCP resource definition for the robot model.
func (h *Handler) RobotInfoResource() mcp.Resource {
	return mcp.NewResource(
		RobotInfoURI,
		"Franka Panda Robot Model",
		mcp.WithResourceDescription("Joint limits, DH parameters, maximum reach and home configuration"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleRobotInfo returns the robot description as JSON.
func (h *Handler) HandleRobotInfo(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(req.Params.URI, kinematics.Describe())
}

// ProgressResource returns the MCP resource definition for achievement progress.
func (h *Handler) ProgressResource() mcp.Resource {
	return mcp.NewResource(
		ProgressURI,
		"Achievement Progress",
		mcp.WithResourceDescription("Unlocked achievements, points and usage counters"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleProgress returns the achievement progress as JSON.
func (h *Handler) HandleProgress(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.progress == nil {
		return errorResource(req.Params.URI, "achievement tracking is disabled"), nil
	}
	p, err := h.progress.Progress()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonContents(req.Params.URI, p)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
