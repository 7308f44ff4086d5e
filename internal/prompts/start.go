// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultTarget is the IK target used when the user gives none.
const DefaultTarget = "0.5, 0, 0.4"

// StartPrompt handles the panda-start MCP prompt.
// It walks the AI through a first tour of the kinematics tools.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("panda-start",
		mcp.WithPromptDescription(
			"Take a guided tour of the Franka Panda kinematics tools: "+
				"forward kinematics, inverse kinematics, singularities and the workspace.",
		),
		mcp.WithArgument("target",
			mcp.ArgumentDescription("IK target position in meters as 'x, y, z'. Default: "+DefaultTarget),
		),
		mcp.WithArgument("mode",
			mcp.ArgumentDescription(
				"Interaction mode: 'guided' (explain every result) or 'expert' (numbers only). Default: guided",
			),
		),
	)
}

// Handle processes the panda-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	target := DefaultTarget
	mode := "guided"
	if args := req.Params.Arguments; args != nil {
		if v := strings.TrimSpace(args["target"]); v != "" {
			target = v
		}
		if m := args["mode"]; m != "" {
			mode = m
		}
	}

	modeExplanation := "You're in **Guided mode**: after each step, explain what the numbers mean physically."
	if mode != "guided" {
		modeExplanation = "You're in **Expert mode**: report results compactly, no explanations unless I ask."
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Kinematics tour targeting [%s]", target),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to explore the Franka Panda kinematics.\n\n"+
						"Please:\n"+
						"1. Run `robot_info` and summarize the joint limits and reach\n"+
						"2. Run `robot_home` and show me where the end effector sits at home\n"+
						"3. Run `kinematics_inverse` with position=[%s] and tell me whether it converged\n"+
						"4. Run `kinematics_forward` on the solution to confirm the position\n"+
						"5. Run `kinematics_singularity` on the solution and explain the determinant\n"+
						"6. Run `workspace_calculate` with num_samples=10000 and summarize the bounds\n\n"+
						"%s",
					target, modeExplanation,
				)),
			},
		},
	}, nil
}
