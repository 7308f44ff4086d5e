package kinematics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// DefaultMaxIterations bounds the IK loop when the request leaves it unset.
	DefaultMaxIterations = 100
	// DefaultTolerance is the position error (meters) treated as converged.
	DefaultTolerance = 1e-3
)

// IKRequest describes a position-only IK query.
type IKRequest struct {
	TargetPosition []float64
	// TargetOrientation is an optional [w, x, y, z] quaternion. It is
	// reported against, never solved for.
	TargetOrientation []float64
	// InitialAngles seeds the solver; HomeConfiguration when empty.
	InitialAngles []float64
	MaxIterations int
	Tolerance     float64
}

// IKResult is the solver outcome. A non-converged solve is a normal result
// with Success false, not an error.
type IKResult struct {
	JointAngles   []float64
	Success       bool
	Iterations    int
	OutOfBounds   bool
	PositionError float64
	// OrientationError is the angle (radians) between the requested and the
	// achieved orientation. Nil when no orientation was requested.
	OrientationError *float64
}

type ikProblem struct {
	target      r3.Vec
	orientation *Quaternion
	seed        JointVector
	maxIter     int
	tolerance   float64
}

func (r IKRequest) validate() (ikProblem, error) {
	p := ikProblem{
		seed:      HomeConfiguration,
		maxIter:   r.MaxIterations,
		tolerance: r.Tolerance,
	}
	if len(r.TargetPosition) != 3 {
		return p, fmt.Errorf("%w: expected 3 target coordinates, got %d", ErrInvalidInput, len(r.TargetPosition))
	}
	p.target = r3.Vec{X: r.TargetPosition[0], Y: r.TargetPosition[1], Z: r.TargetPosition[2]}

	if r.TargetOrientation != nil {
		if len(r.TargetOrientation) != 4 {
			return p, fmt.Errorf("%w: expected 4 quaternion components, got %d", ErrInvalidInput, len(r.TargetOrientation))
		}
		q := QuaternionFromSlice(r.TargetOrientation)
		p.orientation = &q
	}

	if r.InitialAngles != nil {
		seed, err := ParseJointVector(r.InitialAngles)
		if err != nil {
			return p, fmt.Errorf("initial angles: %w", err)
		}
		p.seed = seed
	}

	if p.maxIter <= 0 {
		p.maxIter = DefaultMaxIterations
	}
	if p.tolerance <= 0 {
		p.tolerance = DefaultTolerance
	}
	return p, nil
}

func (l *Local) inverse(req IKRequest) (*IKResult, error) {
	p, err := req.validate()
	if err != nil {
		return nil, err
	}

	current := p.seed
	for it := 0; it < p.maxIter; it++ {
		pose := forward(current)
		diff := r3.Sub(p.target, pose.Position)
		errNorm := r3.Norm(diff)
		l.logger.Debugw("ik iteration", "iteration", it, "error", errNorm)

		if errNorm < p.tolerance {
			return l.ikResult(p, current, pose, true, it+1), nil
		}
		if it == p.maxIter-1 {
			break
		}

		jac := l.jacobian(current, pose)
		pinv, ok := l.pseudoInverse(jac.Linear())
		if !ok {
			l.logger.Warnw("ik stopped on degenerate jacobian", "iteration", it, "failed_columns", jac.FailedColumns)
			break
		}

		var step mat.VecDense
		step.MulVec(pinv, mat.NewVecDense(3, []float64{diff.X, diff.Y, diff.Z}))
		for j := range current {
			current[j] += step.AtVec(j)
		}
		current = current.Clamped()
	}

	return l.ikResult(p, current, forward(current), false, p.maxIter), nil
}

func (l *Local) ikResult(p ikProblem, q JointVector, pose *Pose, success bool, iterations int) *IKResult {
	res := &IKResult{
		JointAngles:   q.Slice(),
		Success:       success,
		Iterations:    iterations,
		OutOfBounds:   q.OutOfBounds(),
		PositionError: r3.Norm(r3.Sub(p.target, pose.Position)),
	}
	if p.orientation != nil {
		angle := AngleBetween(*p.orientation, pose.Orientation)
		res.OrientationError = &angle
	}
	return res
}

// pseudoInverse returns the Moore–Penrose inverse of a via thin SVD. It
// reports false when the factorization fails, a is zero, or the condition
// number exceeds the engine limit.
func (l *Local) pseudoInverse(a mat.Matrix) (*mat.Dense, bool) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, false
	}
	values := svd.Values(nil)
	if len(values) == 0 || !finite(values...) {
		return nil, false
	}
	largest, smallest := values[0], values[len(values)-1]
	if largest == 0 || smallest == 0 || largest/smallest > l.maxCondition {
		return nil, false
	}

	inv := make([]float64, len(values))
	for i, v := range values {
		inv[i] = 1 / v
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vs, pinv mat.Dense
	vs.Mul(&v, mat.NewDiagDense(len(inv), inv))
	pinv.Mul(&vs, u.T())
	return &pinv, true
}
