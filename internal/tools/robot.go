package tools

import (
	"context"

	"github.com/HendryAvila/pandakin/internal/achievements"
	"github.com/HendryAvila/pandakin/internal/kinematics"
	"github.com/mark3labs/mcp-go/mcp"
)

// RobotInfoTool handles the robot_info MCP tool.
type RobotInfoTool struct{}

// NewRobotInfoTool creates a RobotInfoTool.
func NewRobotInfoTool() *RobotInfoTool {
	return &RobotInfoTool{}
}

// Definition returns the MCP tool definition for robot_info.
func (t *RobotInfoTool) Definition() mcp.Tool {
	return mcp.NewTool("robot_info",
		mcp.WithDescription("Describe the robot model: joint limits, DH parameters, maximum reach and home configuration."),
	)
}

// Handle processes the robot_info tool call.
func (t *RobotInfoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(kinematics.Describe())
}

// ─── HomeTool ────────────────────────────────────────────────────────────────

// HomeTool handles the robot_home MCP tool.
type HomeTool struct {
	engine kinematics.Engine
	events Events
}

// NewHomeTool creates a HomeTool.
func NewHomeTool(engine kinematics.Engine, events Events) *HomeTool {
	return &HomeTool{engine: engine, events: events}
}

// Definition returns the MCP tool definition for robot_home.
func (t *HomeTool) Definition() mcp.Tool {
	return mcp.NewTool("robot_home",
		mcp.WithDescription("Return the home joint configuration and the end-effector pose it produces."),
	)
}

type homeOutput struct {
	JointAngles     []float64                  `json:"joint_angles"`
	Pose            poseView                   `json:"end_effector_pose"`
	NewAchievements []achievements.Achievement `json:"new_achievements,omitempty"`
}

// Handle processes the robot_home tool call.
func (t *HomeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	home := kinematics.JointVector(kinematics.HomeConfiguration).Slice()
	pose, err := t.engine.ForwardKinematics(ctx, home)
	if err != nil {
		return engineError(err), nil
	}
	return jsonResult(homeOutput{
		JointAngles:     home,
		Pose:            viewPose(pose),
		NewAchievements: t.events.emit(achievements.EventHomeReturn),
	})
}
