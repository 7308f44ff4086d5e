// Package external delegates kinematics to a separate process that speaks a
// small JSON protocol: one invocation per call, the request on stdin and the
// response on stdout. It exists so a validated numeric backend can be
// swapped in without touching call sites, which only see
// kinematics.Engine.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/edaniels/golog"
	"github.com/google/shlex"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/HendryAvila/pandakin/internal/kinematics"
)

// DefaultTimeout bounds a single backend invocation.
const DefaultTimeout = 10 * time.Second

// Engine runs an external command for every kinematics call.
type Engine struct {
	argv    []string
	timeout time.Duration
	logger  golog.Logger
}

var (
	_ kinematics.Engine             = (*Engine)(nil)
	_ kinematics.SingularityChecker = (*Engine)(nil)
)

// New parses command with shell quoting rules. A non-positive timeout
// selects DefaultTimeout.
func New(command string, timeout time.Duration, logger golog.Logger) (*Engine, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, errors.Wrapf(err, "parse external command %q", command)
	}
	if len(argv) == 0 {
		return nil, errors.New("external command is empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{argv: argv, timeout: timeout, logger: logger}, nil
}

// Command returns the parsed argv.
func (e *Engine) Command() []string {
	return append([]string(nil), e.argv...)
}

func (e *Engine) call(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.argv[0], e.argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	e.logger.Debugw("external backend call", "op", req.Op, "elapsed", time.Since(start))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Wrapf(ctxErr, "%s: %s timed out after %s", req.Op, e.argv[0], e.timeout)
	}
	if runErr != nil {
		return nil, errors.Wrapf(runErr, "%s: run %s: %s", req.Op, e.argv[0], strings.TrimSpace(stderr.String()))
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, errors.Wrapf(err, "%s: decode response from %s", req.Op, e.argv[0])
	}
	if resp.Error != "" {
		return nil, errors.Errorf("%s: backend error: %s", req.Op, resp.Error)
	}
	return &resp, nil
}

// ForwardKinematics implements kinematics.Engine.
func (e *Engine) ForwardKinematics(ctx context.Context, angles []float64) (*kinematics.Pose, error) {
	q, err := kinematics.ParseJointVector(angles)
	if err != nil {
		return nil, err
	}
	resp, err := e.call(ctx, Request{Op: OpForward, JointAngles: q.Slice()})
	if err != nil {
		return nil, err
	}
	t, err := toTransform(resp.Transform)
	if err != nil {
		return nil, err
	}
	pose := &kinematics.Pose{
		Transform:   t,
		Position:    t.Translation(),
		Orientation: kinematics.RotationToQuaternion(t.Rotation()),
		OutOfBounds: resp.OutOfBounds,
	}
	if len(resp.Position) == 3 {
		pose.Position = r3.Vec{X: resp.Position[0], Y: resp.Position[1], Z: resp.Position[2]}
	}
	if len(resp.Orientation) == 4 {
		pose.Orientation = kinematics.QuaternionFromSlice(resp.Orientation)
	}
	return pose, nil
}

// InverseKinematics implements kinematics.Engine. Shapes are validated
// locally so malformed input never reaches the backend.
func (e *Engine) InverseKinematics(ctx context.Context, req kinematics.IKRequest) (*kinematics.IKResult, error) {
	if err := validateIK(req); err != nil {
		return nil, err
	}
	resp, err := e.call(ctx, Request{
		Op:                OpInverse,
		TargetPosition:    req.TargetPosition,
		TargetOrientation: req.TargetOrientation,
		InitialAngles:     req.InitialAngles,
		MaxIterations:     req.MaxIterations,
		Tolerance:         req.Tolerance,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.JointAngles) != kinematics.NumJoints {
		return nil, errors.Errorf("inverse: backend returned %d joint angles", len(resp.JointAngles))
	}

	res := &kinematics.IKResult{
		JointAngles: resp.JointAngles,
		Success:     resp.Success,
		Iterations:  resp.Iterations,
		OutOfBounds: resp.OutOfBounds,
	}
	// The protocol carries no error metrics; derive them from local FK.
	pose, err := kinematics.ForwardKinematics(resp.JointAngles)
	if err != nil {
		return nil, errors.Wrap(err, "inverse: evaluate backend solution")
	}
	target := r3.Vec{X: req.TargetPosition[0], Y: req.TargetPosition[1], Z: req.TargetPosition[2]}
	res.PositionError = r3.Norm(r3.Sub(target, pose.Position))
	if req.TargetOrientation != nil {
		angle := kinematics.AngleBetween(kinematics.QuaternionFromSlice(req.TargetOrientation), pose.Orientation)
		res.OrientationError = &angle
	}
	return res, nil
}

// ComputeJacobian implements kinematics.Engine. The backend reports no
// per-column failures, so FailedColumns is always empty.
func (e *Engine) ComputeJacobian(ctx context.Context, angles []float64) (*kinematics.Jacobian, error) {
	q, err := kinematics.ParseJointVector(angles)
	if err != nil {
		return nil, err
	}
	resp, err := e.call(ctx, Request{Op: OpJacobian, JointAngles: q.Slice()})
	if err != nil {
		return nil, err
	}
	if len(resp.Matrix) != 6 {
		return nil, errors.Errorf("jacobian: backend returned %d rows", len(resp.Matrix))
	}
	m := mat.NewDense(6, kinematics.NumJoints, nil)
	for i, row := range resp.Matrix {
		if len(row) != kinematics.NumJoints {
			return nil, errors.Errorf("jacobian: row %d has %d columns", i, len(row))
		}
		m.SetRow(i, row)
	}
	return &kinematics.Jacobian{Matrix: m}, nil
}

// TryCheckSingularity implements kinematics.SingularityChecker.
func (e *Engine) TryCheckSingularity(ctx context.Context, angles []float64, threshold float64) (kinematics.Singularity, error) {
	if threshold <= 0 {
		threshold = kinematics.DefaultSingularityThreshold
	}
	out := kinematics.Singularity{Threshold: threshold}
	q, err := kinematics.ParseJointVector(angles)
	if err != nil {
		return out, err
	}
	resp, err := e.call(ctx, Request{Op: OpSingularity, JointAngles: q.Slice(), Threshold: threshold})
	if err != nil {
		return out, err
	}
	out.IsSingular = resp.IsSingular
	out.Determinant = resp.Determinant
	return out, nil
}

// CheckSingularity implements kinematics.Engine. Failures are logged and
// reported as a non-singular result.
func (e *Engine) CheckSingularity(ctx context.Context, angles []float64, threshold float64) kinematics.Singularity {
	s, err := e.TryCheckSingularity(ctx, angles, threshold)
	if err != nil {
		e.logger.Warnw("external singularity check failed", "error", err)
		return kinematics.Singularity{Threshold: s.Threshold}
	}
	return s
}

func validateIK(req kinematics.IKRequest) error {
	if len(req.TargetPosition) != 3 {
		return errors.Wrapf(kinematics.ErrInvalidInput, "expected 3 target coordinates, got %d", len(req.TargetPosition))
	}
	if req.TargetOrientation != nil && len(req.TargetOrientation) != 4 {
		return errors.Wrapf(kinematics.ErrInvalidInput, "expected 4 quaternion components, got %d", len(req.TargetOrientation))
	}
	if req.InitialAngles != nil {
		if _, err := kinematics.ParseJointVector(req.InitialAngles); err != nil {
			return errors.Wrap(err, "initial angles")
		}
	}
	return nil
}

func toTransform(rows [][]float64) (kinematics.Transform, error) {
	var t kinematics.Transform
	if len(rows) != 4 {
		return t, errors.Errorf("forward: backend returned %d transform rows", len(rows))
	}
	for i, row := range rows {
		if len(row) != 4 {
			return t, errors.Errorf("forward: transform row %d has %d columns", i, len(row))
		}
		copy(t[i][:], row)
	}
	return t, nil
}
