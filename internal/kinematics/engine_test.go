package kinematics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

// brokenEngine fails every call with err.
type brokenEngine struct {
	err   error
	calls int
}

func (b *brokenEngine) ForwardKinematics(context.Context, []float64) (*Pose, error) {
	b.calls++
	return nil, b.err
}

func (b *brokenEngine) InverseKinematics(context.Context, IKRequest) (*IKResult, error) {
	b.calls++
	return nil, b.err
}

func (b *brokenEngine) ComputeJacobian(context.Context, []float64) (*Jacobian, error) {
	b.calls++
	return nil, b.err
}

func (b *brokenEngine) CheckSingularity(context.Context, []float64, float64) Singularity {
	b.calls++
	return Singularity{}
}

func (b *brokenEngine) TryCheckSingularity(_ context.Context, _ []float64, threshold float64) (Singularity, error) {
	b.calls++
	return Singularity{Threshold: threshold}, b.err
}

func newFallback(t *testing.T, primary Engine) *Fallback {
	t.Helper()
	logger := golog.NewTestLogger(t)
	return &Fallback{Primary: primary, Secondary: NewLocal(WithLogger(logger)), Logger: logger}
}

func TestFallback_UsesSecondaryOnBackendError(t *testing.T) {
	primary := &brokenEngine{err: errors.New("backend exited with status 1")}
	f := newFallback(t, primary)
	ctx := context.Background()

	pose, err := f.ForwardKinematics(ctx, home())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Position.X, test.ShouldAlmostEqual, 0.30702, 1e-4)

	res, err := f.InverseKinematics(ctx, IKRequest{TargetPosition: []float64{0.5, 0, 0.4}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Success, test.ShouldBeTrue)

	jac, err := f.ComputeJacobian(ctx, home())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, jac.Finite(), test.ShouldBeTrue)

	s := f.CheckSingularity(ctx, foldedWrist, 0)
	test.That(t, s.IsSingular, test.ShouldBeTrue)

	test.That(t, primary.calls, test.ShouldEqual, 4)
}

func TestFallback_InvalidInputIsNotRetried(t *testing.T) {
	primary := &brokenEngine{err: fmt.Errorf("%w: expected 7 joint angles, got 6", ErrInvalidInput)}
	f := newFallback(t, primary)

	_, err := f.ForwardKinematics(context.Background(), make([]float64, 6))
	test.That(t, errors.Is(err, ErrInvalidInput), test.ShouldBeTrue)

	_, err = f.ComputeJacobian(context.Background(), make([]float64, 6))
	test.That(t, errors.Is(err, ErrInvalidInput), test.ShouldBeTrue)

	s := f.CheckSingularity(context.Background(), make([]float64, 6), 0)
	test.That(t, s.IsSingular, test.ShouldBeFalse)
	test.That(t, s.Determinant, test.ShouldEqual, 0)
}

func TestFallback_PrimarySuccessWins(t *testing.T) {
	f := newFallback(t, NewLocal(WithLogger(golog.NewTestLogger(t)), WithScheme(CentralDifference)))
	pose, err := f.ForwardKinematics(context.Background(), home())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.OutOfBounds, test.ShouldBeFalse)
}
