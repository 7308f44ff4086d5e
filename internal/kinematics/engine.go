package kinematics

import (
	"context"
	"errors"

	"github.com/edaniels/golog"
	"go.uber.org/zap"
)

// Engine is the capability every kinematics backend provides. Callers
// outside this package depend only on it.
type Engine interface {
	ForwardKinematics(ctx context.Context, angles []float64) (*Pose, error)
	InverseKinematics(ctx context.Context, req IKRequest) (*IKResult, error)
	ComputeJacobian(ctx context.Context, angles []float64) (*Jacobian, error)
	CheckSingularity(ctx context.Context, angles []float64, threshold float64) Singularity
}

// DifferenceScheme selects how Jacobian columns are approximated.
type DifferenceScheme int

const (
	// ForwardDifference perturbs each joint by +ε only.
	ForwardDifference DifferenceScheme = iota
	// CentralDifference perturbs by ±ε. Twice the FK calls, O(ε²) error.
	CentralDifference
)

// String returns the config name of the scheme.
func (s DifferenceScheme) String() string {
	if s == CentralDifference {
		return "central"
	}
	return "forward"
}

// ParseDifferenceScheme maps a config name to a scheme. Empty means forward.
func ParseDifferenceScheme(name string) (DifferenceScheme, bool) {
	switch name {
	case "", "forward":
		return ForwardDifference, true
	case "central":
		return CentralDifference, true
	}
	return ForwardDifference, false
}

const (
	// DefaultEpsilon is the finite-difference step, in radians.
	DefaultEpsilon = 1e-6
	// DefaultMaxCondition bounds the condition number of the linear Jacobian
	// block accepted by the IK solver.
	DefaultMaxCondition = 1e12
)

// Local is the in-process engine. The zero value is not usable; build one
// with NewLocal.
type Local struct {
	logger       golog.Logger
	scheme       DifferenceScheme
	epsilon      float64
	maxCondition float64
}

var _ Engine = (*Local)(nil)

// Option configures a Local engine.
type Option func(*Local)

// WithLogger sets the logger used for degenerate-Jacobian warnings and IK
// traces.
func WithLogger(logger golog.Logger) Option {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithScheme selects the finite-difference scheme.
func WithScheme(s DifferenceScheme) Option {
	return func(l *Local) { l.scheme = s }
}

// WithEpsilon overrides the finite-difference step. Non-positive values are
// ignored.
func WithEpsilon(eps float64) Option {
	return func(l *Local) {
		if eps > 0 {
			l.epsilon = eps
		}
	}
}

// WithMaxCondition overrides the IK condition-number limit. Non-positive
// values are ignored.
func WithMaxCondition(c float64) Option {
	return func(l *Local) {
		if c > 0 {
			l.maxCondition = c
		}
	}
}

// NewLocal builds an in-process engine.
func NewLocal(opts ...Option) *Local {
	l := &Local{
		logger:       zap.NewNop().Sugar(),
		scheme:       ForwardDifference,
		epsilon:      DefaultEpsilon,
		maxCondition: DefaultMaxCondition,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ForwardKinematics implements Engine.
func (l *Local) ForwardKinematics(_ context.Context, angles []float64) (*Pose, error) {
	return ForwardKinematics(angles)
}

// ComputeJacobian implements Engine.
func (l *Local) ComputeJacobian(_ context.Context, angles []float64) (*Jacobian, error) {
	q, err := ParseJointVector(angles)
	if err != nil {
		return nil, err
	}
	return l.jacobian(q, forward(q)), nil
}

// CheckSingularity implements Engine.
func (l *Local) CheckSingularity(_ context.Context, angles []float64, threshold float64) Singularity {
	return l.singularity(angles, threshold)
}

// InverseKinematics implements Engine.
func (l *Local) InverseKinematics(_ context.Context, req IKRequest) (*IKResult, error) {
	return l.inverse(req)
}

// ─── Fallback ───────────────────────────────────────────────────────────────

// Fallback prefers Primary and reverts to Secondary whenever Primary fails
// for a reason other than malformed input.
type Fallback struct {
	Primary   Engine
	Secondary Engine
	Logger    golog.Logger
}

var _ Engine = (*Fallback)(nil)

func (f *Fallback) logger() golog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return zap.NewNop().Sugar()
}

func (f *Fallback) shouldFallBack(op string, err error) bool {
	if err == nil || errors.Is(err, ErrInvalidInput) {
		return false
	}
	f.logger().Warnw("primary kinematics backend failed, using fallback", "op", op, "error", err)
	return true
}

// ForwardKinematics implements Engine.
func (f *Fallback) ForwardKinematics(ctx context.Context, angles []float64) (*Pose, error) {
	pose, err := f.Primary.ForwardKinematics(ctx, angles)
	if f.shouldFallBack("forward", err) {
		return f.Secondary.ForwardKinematics(ctx, angles)
	}
	return pose, err
}

// InverseKinematics implements Engine.
func (f *Fallback) InverseKinematics(ctx context.Context, req IKRequest) (*IKResult, error) {
	res, err := f.Primary.InverseKinematics(ctx, req)
	if f.shouldFallBack("inverse", err) {
		return f.Secondary.InverseKinematics(ctx, req)
	}
	return res, err
}

// ComputeJacobian implements Engine.
func (f *Fallback) ComputeJacobian(ctx context.Context, angles []float64) (*Jacobian, error) {
	jac, err := f.Primary.ComputeJacobian(ctx, angles)
	if f.shouldFallBack("jacobian", err) {
		return f.Secondary.ComputeJacobian(ctx, angles)
	}
	return jac, err
}

// SingularityChecker is implemented by engines that can report why a
// singularity check failed instead of collapsing the failure into a
// non-singular result.
type SingularityChecker interface {
	TryCheckSingularity(ctx context.Context, angles []float64, threshold float64) (Singularity, error)
}

// CheckSingularity implements Engine. The secondary is only consulted when
// the primary is a SingularityChecker and reports an error.
func (f *Fallback) CheckSingularity(ctx context.Context, angles []float64, threshold float64) Singularity {
	checker, ok := f.Primary.(SingularityChecker)
	if !ok {
		return f.Primary.CheckSingularity(ctx, angles, threshold)
	}
	s, err := checker.TryCheckSingularity(ctx, angles, threshold)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			f.logger().Warnw("singularity check rejected input", "error", err)
			return Singularity{Threshold: s.Threshold}
		}
		f.shouldFallBack("singularity", err)
		return f.Secondary.CheckSingularity(ctx, angles, threshold)
	}
	return s
}
