package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ProgressPrompt handles the panda-progress MCP prompt.
// It instructs the AI to read and present achievement progress.
type ProgressPrompt struct{}

// NewProgressPrompt creates a ProgressPrompt.
func NewProgressPrompt() *ProgressPrompt {
	return &ProgressPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ProgressPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("panda-progress",
		mcp.WithPromptDescription(
			"Check your achievement progress: what is unlocked, "+
				"the usage counters, and what to try next.",
		),
	)
}

// Handle processes the panda-progress prompt request.
func (p *ProgressPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Achievement Progress",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `achievements_progress` and `achievements_list` with unlocked_only=false.\n\n" +
						"Then:\n" +
						"1. Show my unlocked achievements and points\n" +
						"2. Pick the two locked achievements closest to unlocking, based on the counters\n" +
						"3. Tell me which tool calls would unlock them",
				),
			},
		},
	}, nil
}
