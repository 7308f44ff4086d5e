// Package kinematics implements the numeric kinematics engine for the
// Franka Panda 7-DOF manipulator: forward kinematics from Denavit–Hartenberg
// parameters, a finite-difference Jacobian, a manipulability-based
// singularity check and an iterative pseudo-inverse IK solver.
//
// Every operation is a pure function of its inputs plus the read-only
// robot description declared in this file, so a single engine value is
// safe for concurrent use without locking.
package kinematics

import (
	"errors"
	"fmt"
	"math"
)

// NumJoints is the number of revolute joints in the arm.
const NumJoints = 7

// MaxReach is the datasheet maximum distance (meters) from the base to the
// flange. The engine never enforces it; collaborators use it as a filter.
const MaxReach = 0.855

// ErrInvalidInput is returned when a vector argument has the wrong length.
var ErrInvalidInput = errors.New("kinematics: invalid input")

// Limit is the closed [Min, Max] range of a joint, in radians.
type Limit struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Violated reports whether v lies strictly outside the range.
func (l Limit) Violated(v float64) bool {
	return v < l.Min || v > l.Max
}

// Clamp hard-clips v into the range.
func (l Limit) Clamp(v float64) float64 {
	return math.Min(math.Max(v, l.Min), l.Max)
}

// JointLimits are the official Panda datasheet limits.
var JointLimits = [NumJoints]Limit{
	{Min: -2.8973, Max: 2.8973},
	{Min: -1.7628, Max: 1.7628},
	{Min: -2.8973, Max: 2.8973},
	{Min: -3.0718, Max: -0.0698},
	{Min: -2.8973, Max: 2.8973},
	{Min: -0.0175, Max: 3.7525},
	{Min: -2.8973, Max: 2.8973},
}

// DHParameter describes one link: offset a, twist alpha, length d and the
// constant angle offset added to the joint variable.
type DHParameter struct {
	A     float64 `json:"a"`
	Alpha float64 `json:"alpha"`
	D     float64 `json:"d"`
	Theta float64 `json:"theta"`
}

// DHParameters is the kinematic geometry of the arm, base to flange.
var DHParameters = [NumJoints]DHParameter{
	{A: 0, Alpha: 0, D: 0.333, Theta: 0},
	{A: 0, Alpha: -math.Pi / 2, D: 0, Theta: 0},
	{A: 0, Alpha: math.Pi / 2, D: 0.316, Theta: 0},
	{A: 0.0825, Alpha: math.Pi / 2, D: 0, Theta: 0},
	{A: -0.0825, Alpha: -math.Pi / 2, D: 0.384, Theta: 0},
	{A: 0, Alpha: math.Pi / 2, D: 0, Theta: 0},
	{A: 0.088, Alpha: math.Pi / 2, D: 0.107, Theta: 0},
}

// HomeConfiguration is the ready pose used as the default IK seed.
var HomeConfiguration = [NumJoints]float64{0, -0.785, 0, -2.356, 0, 1.571, 0.785}

// JointVector is a full set of joint angles in radians.
type JointVector [NumJoints]float64

// ParseJointVector validates the length of angles and copies it.
func ParseJointVector(angles []float64) (JointVector, error) {
	var q JointVector
	if len(angles) != NumJoints {
		return q, fmt.Errorf("%w: expected %d joint angles, got %d", ErrInvalidInput, NumJoints, len(angles))
	}
	copy(q[:], angles)
	return q, nil
}

// Slice returns the angles as a freshly allocated slice.
func (q JointVector) Slice() []float64 {
	out := make([]float64, NumJoints)
	copy(out, q[:])
	return out
}

// OutOfBounds reports whether any joint lies strictly outside its limit.
func (q JointVector) OutOfBounds() bool {
	for i, v := range q {
		if JointLimits[i].Violated(v) {
			return true
		}
	}
	return false
}

// Clamped returns q with every joint clipped into its limit.
func (q JointVector) Clamped() JointVector {
	for i := range q {
		q[i] = JointLimits[i].Clamp(q[i])
	}
	return q
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Description is the static robot model, as reported to clients.
type Description struct {
	Name              string        `json:"name"`
	DOF               int           `json:"dof"`
	JointLimits       []Limit       `json:"joint_limits"`
	DHParameters      []DHParameter `json:"dh_parameters"`
	MaxReach          float64       `json:"max_reach"`
	HomeConfiguration []float64     `json:"home_configuration"`
	Description       string        `json:"description"`
}

// Describe returns the robot model.
func Describe() Description {
	return Description{
		Name:              "Franka Panda",
		DOF:               NumJoints,
		JointLimits:       append([]Limit(nil), JointLimits[:]...),
		DHParameters:      append([]DHParameter(nil), DHParameters[:]...),
		MaxReach:          MaxReach,
		HomeConfiguration: JointVector(HomeConfiguration).Slice(),
		Description:       "7-DOF collaborative arm by Franka Emika",
	}
}
