package kinematics

import (
	"context"
	"fmt"
	"math"
)

// DefaultSingularityThreshold is used when a caller passes a non-positive
// threshold.
const DefaultSingularityThreshold = 1e-6

// Singularity is the outcome of a manipulability check.
type Singularity struct {
	IsSingular  bool    `json:"is_singular"`
	Determinant float64 `json:"determinant"`
	Threshold   float64 `json:"threshold"`
}

// TryCheckSingularity is CheckSingularity with the failure reason exposed.
func (l *Local) TryCheckSingularity(_ context.Context, angles []float64, threshold float64) (Singularity, error) {
	return l.trySingularity(angles, threshold)
}

func (l *Local) singularity(angles []float64, threshold float64) Singularity {
	s, err := l.trySingularity(angles, threshold)
	if err != nil {
		l.logger.Warnw("singularity check failed", "error", err)
		return Singularity{Threshold: s.Threshold}
	}
	return s
}

func (l *Local) trySingularity(angles []float64, threshold float64) (Singularity, error) {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultSingularityThreshold
	}
	out := Singularity{Threshold: threshold}
	q, err := ParseJointVector(angles)
	if err != nil {
		return out, err
	}
	jac := l.jacobian(q, forward(q))
	if len(jac.FailedColumns) > 0 {
		return out, fmt.Errorf("singularity: jacobian columns %v not finite", jac.FailedColumns)
	}
	det := jac.Manipulability()
	if !finite(det) {
		return out, fmt.Errorf("singularity: determinant %v not finite", det)
	}
	out.Determinant = det
	out.IsSingular = math.Abs(det) < threshold
	return out, nil
}
