package kinematics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is a 4×4 homogeneous transform, row-major.
type Transform [4][4]float64

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// LinkTransform builds the DH transform of a single link.
func LinkTransform(a, alpha, d, theta float64) Transform {
	ct, st := math.Cos(theta), math.Sin(theta)
	ca, sa := math.Cos(alpha), math.Sin(alpha)
	return Transform{
		{ct, -st, 0, a},
		{st * ca, ct * ca, -sa, -d * sa},
		{st * sa, ct * sa, ca, d * ca},
		{0, 0, 0, 1},
	}
}

// Mul returns t·o.
func (t Transform) Mul(o Transform) Transform {
	var out Transform
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += t[i][k] * o[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// Rotation returns the upper-left 3×3 block.
func (t Transform) Rotation() Rotation {
	var r Rotation
	for i := 0; i < 3; i++ {
		copy(r[i][:], t[i][:3])
	}
	return r
}

// Translation returns the last column as a vector.
func (t Transform) Translation() r3.Vec {
	return r3.Vec{X: t[0][3], Y: t[1][3], Z: t[2][3]}
}

// Rows converts t into nested slices for serialization.
func (t Transform) Rows() [][]float64 {
	rows := make([][]float64, 4)
	for i := range t {
		rows[i] = append([]float64(nil), t[i][:]...)
	}
	return rows
}

func (t Transform) finite() bool {
	for i := range t {
		if !finite(t[i][:]...) {
			return false
		}
	}
	return true
}

// Rotation is a 3×3 rotation matrix, row-major.
type Rotation [3][3]float64

// Dense copies r into a gonum matrix.
func (r Rotation) Dense() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		m.SetRow(i, r[i][:])
	}
	return m
}

// Quaternion is a rotation in [w, x, y, z] order.
type Quaternion [4]float64

// Number converts q into a gonum quaternion.
func (q Quaternion) Number() quat.Number {
	return quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
}

// Norm is the Euclidean norm of the four components.
func (q Quaternion) Norm() float64 {
	return floats.Norm(q[:], 2)
}

// Slice returns q as a freshly allocated slice.
func (q Quaternion) Slice() []float64 {
	return append([]float64(nil), q[:]...)
}

// QuaternionFromSlice reads a [w, x, y, z] slice.
func QuaternionFromSlice(s []float64) Quaternion {
	var q Quaternion
	copy(q[:], s)
	return q
}

// RotationToQuaternion converts a rotation matrix to a quaternion using
// Shepperd's method. When the trace is not positive the branch is chosen by
// the largest diagonal element, which keeps the divisor away from zero.
func RotationToQuaternion(r Rotation) Quaternion {
	trace := r[0][0] + r[1][1] + r[2][2]
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		return Quaternion{
			0.25 * s,
			(r[2][1] - r[1][2]) / s,
			(r[0][2] - r[2][0]) / s,
			(r[1][0] - r[0][1]) / s,
		}
	case r[0][0] > r[1][1] && r[0][0] > r[2][2]:
		s := math.Sqrt(1+r[0][0]-r[1][1]-r[2][2]) * 2
		return Quaternion{
			(r[2][1] - r[1][2]) / s,
			0.25 * s,
			(r[0][1] + r[1][0]) / s,
			(r[0][2] + r[2][0]) / s,
		}
	case r[1][1] > r[2][2]:
		s := math.Sqrt(1+r[1][1]-r[0][0]-r[2][2]) * 2
		return Quaternion{
			(r[0][2] - r[2][0]) / s,
			(r[0][1] + r[1][0]) / s,
			0.25 * s,
			(r[1][2] + r[2][1]) / s,
		}
	default:
		s := math.Sqrt(1+r[2][2]-r[0][0]-r[1][1]) * 2
		return Quaternion{
			(r[1][0] - r[0][1]) / s,
			(r[0][2] + r[2][0]) / s,
			(r[1][2] + r[2][1]) / s,
			0.25 * s,
		}
	}
}

// AngleBetween returns the rotation angle (radians) taking a to b. Neither
// input needs to be normalized.
func AngleBetween(a, b Quaternion) float64 {
	na, nb := quat.Abs(a.Number()), quat.Abs(b.Number())
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	rel := quat.Mul(quat.Conj(a.Number()), b.Number())
	w := math.Abs(rel.Real) / (na * nb)
	return 2 * math.Acos(math.Min(w, 1))
}
