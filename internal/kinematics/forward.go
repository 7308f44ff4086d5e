package kinematics

import "gonum.org/v1/gonum/spatial/r3"

// Pose is the end-effector frame relative to the base.
type Pose struct {
	Transform   Transform
	Position    r3.Vec
	Orientation Quaternion
	// OutOfBounds is set when any input joint was outside its limit. The
	// pose is computed regardless.
	OutOfBounds bool
}

// Finite reports whether every entry of the pose is a real number.
func (p *Pose) Finite() bool {
	return p.Transform.finite() && finite(p.Orientation[:]...)
}

// ForwardKinematics computes the flange pose for a set of joint angles.
// Out-of-limit angles are reported through Pose.OutOfBounds, never rejected.
func ForwardKinematics(angles []float64) (*Pose, error) {
	q, err := ParseJointVector(angles)
	if err != nil {
		return nil, err
	}
	return forward(q), nil
}

func forward(q JointVector) *Pose {
	t := Identity()
	for i, dh := range DHParameters {
		t = t.Mul(LinkTransform(dh.A, dh.Alpha, dh.D, q[i]+dh.Theta))
	}
	return &Pose{
		Transform:   t,
		Position:    t.Translation(),
		Orientation: RotationToQuaternion(t.Rotation()),
		OutOfBounds: q.OutOfBounds(),
	}
}
