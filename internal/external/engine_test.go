package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/HendryAvila/pandakin/internal/kinematics"
)

const helperEnv = "PANDAKIN_HELPER_MODE"

var home = kinematics.JointVector(kinematics.HomeConfiguration).Slice()

// TestHelperProcess is not a real test. It plays the external backend when
// the test binary is re-executed by newHelperEngine, answering with the
// local engine so results can be compared.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}
	defer os.Exit(0)

	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fmt.Fprintf(os.Stderr, "bad request: %v", err)
		os.Exit(2)
	}

	switch mode {
	case "crash":
		fmt.Fprint(os.Stderr, "segmentation fault")
		os.Exit(3)
	case "garbage":
		fmt.Print("not json")
		return
	case "error":
		_ = json.NewEncoder(os.Stdout).Encode(Response{Error: "engine not licensed"})
		return
	case "sleep":
		time.Sleep(10 * time.Second)
		return
	}

	_ = json.NewEncoder(os.Stdout).Encode(answer(req))
}

func answer(req Request) Response {
	ctx := context.Background()
	local := kinematics.NewLocal()
	switch req.Op {
	case OpForward:
		pose, err := local.ForwardKinematics(ctx, req.JointAngles)
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{
			Transform:   pose.Transform.Rows(),
			Position:    []float64{pose.Position.X, pose.Position.Y, pose.Position.Z},
			Orientation: pose.Orientation.Slice(),
			OutOfBounds: pose.OutOfBounds,
		}
	case OpInverse:
		res, err := local.InverseKinematics(ctx, kinematics.IKRequest{
			TargetPosition:    req.TargetPosition,
			TargetOrientation: req.TargetOrientation,
			InitialAngles:     req.InitialAngles,
			MaxIterations:     req.MaxIterations,
			Tolerance:         req.Tolerance,
		})
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{JointAngles: res.JointAngles, Success: res.Success, Iterations: res.Iterations, OutOfBounds: res.OutOfBounds}
	case OpJacobian:
		jac, err := local.ComputeJacobian(ctx, req.JointAngles)
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Matrix: jac.Rows()}
	case OpSingularity:
		s := local.CheckSingularity(ctx, req.JointAngles, req.Threshold)
		return Response{IsSingular: s.IsSingular, Determinant: s.Determinant}
	}
	return Response{Error: "unknown op " + string(req.Op)}
}

func newHelperEngine(t *testing.T, mode string, timeout time.Duration) *Engine {
	t.Helper()
	t.Setenv(helperEnv, mode)
	cmd := fmt.Sprintf("%q -test.run=^TestHelperProcess$", os.Args[0])
	e, err := New(cmd, timeout, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return e
}

func TestNew_SplitsCommand(t *testing.T) {
	e, err := New(`python3 -m "panda backend" --fast`, 0, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.Command(), test.ShouldResemble, []string{"python3", "-m", "panda backend", "--fast"})
	test.That(t, e.timeout, test.ShouldEqual, DefaultTimeout)

	_, err = New("   ", 0, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEngine_MatchesLocal(t *testing.T) {
	e := newHelperEngine(t, "ok", 30*time.Second)
	ctx := context.Background()

	pose, err := e.ForwardKinematics(ctx, home)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Position.X, test.ShouldAlmostEqual, 0.30702, 1e-4)
	test.That(t, pose.OutOfBounds, test.ShouldBeFalse)

	res, err := e.InverseKinematics(ctx, kinematics.IKRequest{TargetPosition: []float64{0.5, 0, 0.4}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Success, test.ShouldBeTrue)
	test.That(t, res.PositionError, test.ShouldBeLessThan, 1e-3)

	jac, err := e.ComputeJacobian(ctx, home)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, jac.Finite(), test.ShouldBeTrue)
	test.That(t, jac.Matrix.At(1, 0), test.ShouldAlmostEqual, 0.30702, 1e-4)

	s, err := e.TryCheckSingularity(ctx, home, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.IsSingular, test.ShouldBeFalse)
	test.That(t, s.Threshold, test.ShouldEqual, kinematics.DefaultSingularityThreshold)
}

func TestEngine_InvalidInputNeverRunsBackend(t *testing.T) {
	// "crash" would fail every call that reached the process.
	e := newHelperEngine(t, "crash", 30*time.Second)
	ctx := context.Background()

	_, err := e.ForwardKinematics(ctx, make([]float64, 6))
	test.That(t, errors.Is(err, kinematics.ErrInvalidInput), test.ShouldBeTrue)

	_, err = e.InverseKinematics(ctx, kinematics.IKRequest{TargetPosition: []float64{1}})
	test.That(t, errors.Is(err, kinematics.ErrInvalidInput), test.ShouldBeTrue)

	_, err = e.ComputeJacobian(ctx, make([]float64, 8))
	test.That(t, errors.Is(err, kinematics.ErrInvalidInput), test.ShouldBeTrue)
}

func TestEngine_BackendFailures(t *testing.T) {
	tests := []struct {
		mode    string
		timeout time.Duration
		want    string
	}{
		{"crash", 30 * time.Second, "segmentation fault"},
		{"garbage", 30 * time.Second, "decode response"},
		{"error", 30 * time.Second, "engine not licensed"},
		{"sleep", 300 * time.Millisecond, "timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			e := newHelperEngine(t, tt.mode, tt.timeout)
			_, err := e.ForwardKinematics(context.Background(), home)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tt.want)
			test.That(t, errors.Is(err, kinematics.ErrInvalidInput), test.ShouldBeFalse)

			s := e.CheckSingularity(context.Background(), home, 0)
			test.That(t, s.IsSingular, test.ShouldBeFalse)
			test.That(t, s.Determinant, test.ShouldEqual, 0)
		})
	}
}

func TestFallback_RevertsToLocal(t *testing.T) {
	e := newHelperEngine(t, "crash", 30*time.Second)
	logger := golog.NewTestLogger(t)
	f := &kinematics.Fallback{Primary: e, Secondary: kinematics.NewLocal(kinematics.WithLogger(logger)), Logger: logger}

	pose, err := f.ForwardKinematics(context.Background(), home)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Position.Z, test.ShouldAlmostEqual, 0.59027, 1e-4)

	s := f.CheckSingularity(context.Background(), home, 0)
	test.That(t, s.Determinant, test.ShouldBeGreaterThan, 1e-3)
}

func TestSchemas(t *testing.T) {
	schemas := Schemas()
	test.That(t, schemas, test.ShouldHaveLength, 2)
	test.That(t, schemas["response"], test.ShouldNotBeNil)

	raw, err := json.Marshal(schemas["request"])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(raw), test.ShouldContainSubstring, "joint_angles")
	test.That(t, string(raw), test.ShouldContainSubstring, "singularity")
}
