package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/pandakin/internal/achievements"
	"github.com/mark3labs/mcp-go/mcp"
)

// AchievementSource reads unlock state.
type AchievementSource interface {
	Achievements(unlockedOnly bool) ([]achievements.Achievement, error)
	Progress() (*achievements.Progress, error)
}

// ─── AchievementsTool ────────────────────────────────────────────────────────

// AchievementsTool handles the achievements_list MCP tool.
type AchievementsTool struct {
	source AchievementSource
}

// NewAchievementsTool creates an AchievementsTool.
func NewAchievementsTool(source AchievementSource) *AchievementsTool {
	return &AchievementsTool{source: source}
}

// Definition returns the MCP tool definition for achievements_list.
func (t *AchievementsTool) Definition() mcp.Tool {
	return mcp.NewTool("achievements_list",
		mcp.WithDescription("List the achievement catalog with unlock state and timestamps."),
		mcp.WithBoolean("unlocked_only",
			mcp.Description("Only return unlocked achievements (default: false)"),
		),
	)
}

// Handle processes the achievements_list tool call.
func (t *AchievementsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := t.source.Achievements(boolArg(req, "unlocked_only", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list achievements: %v", err)), nil
	}
	if list == nil {
		list = []achievements.Achievement{}
	}
	return jsonResult(list)
}

// ─── ProgressTool ────────────────────────────────────────────────────────────

// ProgressTool handles the achievements_progress MCP tool.
type ProgressTool struct {
	source AchievementSource
}

// NewProgressTool creates a ProgressTool.
func NewProgressTool(source AchievementSource) *ProgressTool {
	return &ProgressTool{source: source}
}

// Definition returns the MCP tool definition for achievements_progress.
func (t *ProgressTool) Definition() mcp.Tool {
	return mcp.NewTool("achievements_progress",
		mcp.WithDescription("Show achievement progress: unlocked count, points earned and usage counters."),
	)
}

// Handle processes the achievements_progress tool call.
func (t *ProgressTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := t.source.Progress()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get progress: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Achievement Progress\n\n")
	sb.WriteString(p.Summary() + "\n\n")
	sb.WriteString("### Counters\n\n")
	for _, name := range achievements.StatNames {
		sb.WriteString(fmt.Sprintf("- **%s**: %d\n", name, p.Stats[name]))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ─── RecordTool ──────────────────────────────────────────────────────────────

// RecordTool handles the achievements_record MCP tool. It lets clients
// report activity the server cannot observe itself, such as slider moves
// in a UI.
type RecordTool struct {
	recorder EventRecorder
}

// NewRecordTool creates a RecordTool.
func NewRecordTool(recorder EventRecorder) *RecordTool {
	return &RecordTool{recorder: recorder}
}

// Definition returns the MCP tool definition for achievements_record.
func (t *RecordTool) Definition() mcp.Tool {
	return mcp.NewTool("achievements_record",
		mcp.WithDescription("Record a usage event and return any achievements it unlocked."),
		mcp.WithString("event",
			mcp.Required(),
			mcp.Description("Event name"),
			mcp.Enum(achievements.Events()...),
		),
	)
}

// Handle processes the achievements_record tool call.
func (t *RecordTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("event", "")
	if name == "" {
		return mcp.NewToolResultError("'event' is required"), nil
	}
	event, err := achievements.ParseEvent(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	unlocked, err := t.recorder.Record(event)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record event: %v", err)), nil
	}
	if unlocked == nil {
		unlocked = []achievements.Achievement{}
	}
	return jsonResult(struct {
		Event    achievements.Event         `json:"event"`
		Unlocked []achievements.Achievement `json:"unlocked"`
	}{event, unlocked})
}
