package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/pandakin/internal/achievements"
	"github.com/HendryAvila/pandakin/internal/kinematics"
	"github.com/mark3labs/mcp-go/mcp"
)

var numberItems = map[string]any{"type": "number"}

func jointAnglesOption(required bool) mcp.ToolOption {
	opts := []mcp.PropertyOption{
		mcp.Description("Seven joint angles in radians, base to flange"),
		mcp.Items(numberItems),
	}
	if required {
		opts = append(opts, mcp.Required())
	}
	return mcp.WithArray("joint_angles", opts...)
}

// poseView is the JSON rendering of a pose.
type poseView struct {
	Transform   [][]float64 `json:"transform"`
	Position    [3]float64  `json:"position"`
	Orientation []float64   `json:"orientation"`
}

func viewPose(p *kinematics.Pose) poseView {
	return poseView{
		Transform:   p.Transform.Rows(),
		Position:    [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
		Orientation: p.Orientation.Slice(),
	}
}

// ─── ForwardTool ─────────────────────────────────────────────────────────────

// ForwardTool handles the kinematics_forward MCP tool.
type ForwardTool struct {
	engine kinematics.Engine
	events Events
}

// NewForwardTool creates a ForwardTool.
func NewForwardTool(engine kinematics.Engine, events Events) *ForwardTool {
	return &ForwardTool{engine: engine, events: events}
}

// Definition returns the MCP tool definition for kinematics_forward.
func (t *ForwardTool) Definition() mcp.Tool {
	return mcp.NewTool("kinematics_forward",
		mcp.WithDescription(
			"Compute the end-effector pose for seven joint angles. Returns the 4x4 homogeneous transform, "+
				"the position in meters and the orientation as a [w, x, y, z] quaternion. "+
				"Angles outside the joint limits are still evaluated and flagged with out_of_bounds.",
		),
		jointAnglesOption(true),
	)
}

type forwardOutput struct {
	poseView
	OutOfBounds     bool                       `json:"out_of_bounds"`
	NewAchievements []achievements.Achievement `json:"new_achievements,omitempty"`
}

// Handle processes the kinematics_forward tool call.
func (t *ForwardTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	angles, err := requireFloats(req, "joint_angles")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pose, err := t.engine.ForwardKinematics(ctx, angles)
	if err != nil {
		return engineError(err), nil
	}

	events := []achievements.Event{achievements.EventMovement}
	if pose.OutOfBounds {
		events = append(events, achievements.EventFKOutOfBounds)
	}
	return jsonResult(forwardOutput{
		poseView:        viewPose(pose),
		OutOfBounds:     pose.OutOfBounds,
		NewAchievements: t.events.emit(events...),
	})
}

// ─── InverseTool ─────────────────────────────────────────────────────────────

// IKDefaults are applied when a request leaves the solver limits unset.
type IKDefaults struct {
	MaxIterations int
	Tolerance     float64
}

// InverseTool handles the kinematics_inverse MCP tool.
type InverseTool struct {
	engine   kinematics.Engine
	defaults IKDefaults
	events   Events
}

// NewInverseTool creates an InverseTool. Zero defaults fall back to the
// solver's own.
func NewInverseTool(engine kinematics.Engine, defaults IKDefaults, events Events) *InverseTool {
	if defaults.MaxIterations <= 0 {
		defaults.MaxIterations = kinematics.DefaultMaxIterations
	}
	if !(defaults.Tolerance > 0) {
		defaults.Tolerance = kinematics.DefaultTolerance
	}
	return &InverseTool{engine: engine, defaults: defaults, events: events}
}

// Definition returns the MCP tool definition for kinematics_inverse.
func (t *InverseTool) Definition() mcp.Tool {
	return mcp.NewTool("kinematics_inverse",
		mcp.WithDescription(
			"Solve joint angles that place the end effector at a target position (meters, base frame). "+
				"The solver is position-only: a requested orientation is reported against but not enforced. "+
				"A target the solver cannot reach returns success=false with the closest angles found.",
		),
		mcp.WithArray("position",
			mcp.Required(),
			mcp.Description("Target [x, y, z] in meters"),
			mcp.Items(numberItems),
		),
		mcp.WithArray("orientation",
			mcp.Description("Optional target quaternion [w, x, y, z]; only used to report orientation_error"),
			mcp.Items(numberItems),
		),
		mcp.WithArray("initial_angles",
			mcp.Description("Seven seed angles in radians (default: home configuration)"),
			mcp.Items(numberItems),
		),
		mcp.WithNumber("max_iterations",
			mcp.Description(fmt.Sprintf("Iteration cap (default: %d)", t.defaults.MaxIterations)),
		),
		mcp.WithNumber("tolerance",
			mcp.Description(fmt.Sprintf("Position tolerance in meters (default: %g)", t.defaults.Tolerance)),
		),
	)
}

type inverseOutput struct {
	JointAngles      []float64                  `json:"joint_angles"`
	Success          bool                       `json:"success"`
	Iterations       int                        `json:"iterations"`
	OutOfBounds      bool                       `json:"out_of_bounds"`
	PositionError    float64                    `json:"position_error"`
	OrientationError *float64                   `json:"orientation_error,omitempty"`
	Message          string                     `json:"message"`
	NewAchievements  []achievements.Achievement `json:"new_achievements,omitempty"`
}

// Handle processes the kinematics_inverse tool call.
func (t *InverseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	position, err := requireFloats(req, "position")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	orientation, _, err := floatsArg(req, "orientation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	seed, _, err := floatsArg(req, "initial_angles")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	maxIter := intArg(req, "max_iterations", t.defaults.MaxIterations)
	if maxIter <= 0 {
		return mcp.NewToolResultError(fmt.Sprintf("'max_iterations' must be positive, got %d", maxIter)), nil
	}
	tol := floatArg(req, "tolerance", t.defaults.Tolerance)
	if !(tol > 0) {
		return mcp.NewToolResultError(fmt.Sprintf("'tolerance' must be positive, got %v", tol)), nil
	}

	res, err := t.engine.InverseKinematics(ctx, kinematics.IKRequest{
		TargetPosition:    position,
		TargetOrientation: orientation,
		InitialAngles:     seed,
		MaxIterations:     maxIter,
		Tolerance:         tol,
	})
	if err != nil {
		return engineError(err), nil
	}

	out := inverseOutput{
		JointAngles:      res.JointAngles,
		Success:          res.Success,
		Iterations:       res.Iterations,
		OutOfBounds:      res.OutOfBounds,
		PositionError:    res.PositionError,
		OrientationError: res.OrientationError,
	}
	if res.Success {
		out.Message = fmt.Sprintf("converged in %d iterations (error %.2e m)", res.Iterations, res.PositionError)
	} else {
		out.Message = fmt.Sprintf("did not converge after %d iterations (error %.2e m)", res.Iterations, res.PositionError)
	}

	var events []achievements.Event
	if res.OutOfBounds {
		events = append(events, achievements.EventIKOutOfBounds)
	}
	if res.Success && res.PositionError < achievements.PrecisionTolerance {
		events = append(events, achievements.EventPrecision)
	}
	out.NewAchievements = t.events.emit(events...)
	return jsonResult(out)
}

// ─── JacobianTool ────────────────────────────────────────────────────────────

// JacobianTool handles the kinematics_jacobian MCP tool.
type JacobianTool struct {
	engine kinematics.Engine
}

// NewJacobianTool creates a JacobianTool.
func NewJacobianTool(engine kinematics.Engine) *JacobianTool {
	return &JacobianTool{engine: engine}
}

// Definition returns the MCP tool definition for kinematics_jacobian.
func (t *JacobianTool) Definition() mcp.Tool {
	return mcp.NewTool("kinematics_jacobian",
		mcp.WithDescription(
			"Compute the 6x7 geometric Jacobian (rows: vx, vy, vz, wx, wy, wz) by finite differences, "+
				"plus the manipulability determinant det(J_lin * J_lin^T). Columns that could not be "+
				"evaluated are zero and listed in failed_columns.",
		),
		jointAnglesOption(true),
	)
}

type jacobianOutput struct {
	Matrix         [][]float64 `json:"matrix"`
	Manipulability float64     `json:"manipulability"`
	FailedColumns  []int       `json:"failed_columns,omitempty"`
}

// Handle processes the kinematics_jacobian tool call.
func (t *JacobianTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	angles, err := requireFloats(req, "joint_angles")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	j, err := t.engine.ComputeJacobian(ctx, angles)
	if err != nil {
		return engineError(err), nil
	}
	return jsonResult(jacobianOutput{
		Matrix:         j.Rows(),
		Manipulability: j.Manipulability(),
		FailedColumns:  j.FailedColumns,
	})
}

// ─── SingularityTool ─────────────────────────────────────────────────────────

// SingularityTool handles the kinematics_singularity MCP tool.
type SingularityTool struct {
	engine    kinematics.Engine
	threshold float64
	events    Events
}

// NewSingularityTool creates a SingularityTool. A non-positive threshold
// selects kinematics.DefaultSingularityThreshold.
func NewSingularityTool(engine kinematics.Engine, threshold float64, events Events) *SingularityTool {
	if !(threshold > 0) {
		threshold = kinematics.DefaultSingularityThreshold
	}
	return &SingularityTool{engine: engine, threshold: threshold, events: events}
}

// Definition returns the MCP tool definition for kinematics_singularity.
func (t *SingularityTool) Definition() mcp.Tool {
	return mcp.NewTool("kinematics_singularity",
		mcp.WithDescription(
			"Check whether a configuration is near a kinematic singularity. The measure is "+
				"det(J_lin * J_lin^T) of the translational Jacobian; the configuration is singular "+
				"when it falls below the threshold.",
		),
		jointAnglesOption(true),
		mcp.WithNumber("threshold",
			mcp.Description(fmt.Sprintf("Singularity threshold (default: %g)", t.threshold)),
		),
	)
}

type singularityOutput struct {
	kinematics.Singularity
	NewAchievements []achievements.Achievement `json:"new_achievements,omitempty"`
}

// Handle processes the kinematics_singularity tool call.
func (t *SingularityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	angles, err := requireFloats(req, "joint_angles")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := kinematics.ParseJointVector(angles); err != nil {
		return engineError(err), nil
	}

	threshold := floatArg(req, "threshold", t.threshold)
	s := t.engine.CheckSingularity(ctx, angles, threshold)

	out := singularityOutput{Singularity: s}
	if s.IsSingular {
		out.NewAchievements = t.events.emit(achievements.EventSingularityEncounter)
	}
	return jsonResult(out)
}
