package kinematics

import (
	"gonum.org/v1/gonum/mat"
)

// Jacobian is the 6×7 numerical Jacobian of the flange pose. Rows 0-2 are
// the linear velocity block, rows 3-5 the angular block.
type Jacobian struct {
	Matrix *mat.Dense
	// FailedColumns lists joints whose perturbed pose was not finite. Those
	// columns are left at zero.
	FailedColumns []int
}

// Linear returns a view of the 3×7 linear block.
func (j *Jacobian) Linear() mat.Matrix {
	return j.Matrix.Slice(0, 3, 0, NumJoints)
}

// Manipulability returns det(J_lin·J_linᵀ).
func (j *Jacobian) Manipulability() float64 {
	lin := j.Linear()
	var jjt mat.Dense
	jjt.Mul(lin, lin.T())
	return mat.Det(&jjt)
}

// Rows converts the matrix into nested slices for serialization.
func (j *Jacobian) Rows() [][]float64 {
	r, _ := j.Matrix.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, j.Matrix)
	}
	return rows
}

// Finite reports whether every entry is a real number.
func (j *Jacobian) Finite() bool {
	r, _ := j.Matrix.Dims()
	for i := 0; i < r; i++ {
		if !finite(j.Matrix.RawRowView(i)...) {
			return false
		}
	}
	return true
}

// jacobian approximates the Jacobian at q, whose pose is base.
func (l *Local) jacobian(q JointVector, base *Pose) *Jacobian {
	jac := &Jacobian{Matrix: mat.NewDense(6, NumJoints, nil)}
	baseRT := base.Transform.Rotation().Dense().T()
	for i := 0; i < NumJoints; i++ {
		col, ok := l.column(q, i, base, baseRT)
		if !ok {
			jac.FailedColumns = append(jac.FailedColumns, i)
			l.logger.Warnw("degenerate jacobian column", "joint", i, "scheme", l.scheme.String())
			continue
		}
		jac.Matrix.SetCol(i, col[:])
	}
	return jac
}

// column computes one Jacobian column. Linear rows are the position
// derivative; angular rows are read from the skew part of dR·Rᵀ, halved.
func (l *Local) column(q JointVector, i int, base *Pose, baseRT mat.Matrix) ([6]float64, bool) {
	var col [6]float64
	eps := l.epsilon

	plus := q
	plus[i] += eps
	hi := forward(plus)
	if !hi.Finite() {
		return col, false
	}

	lo, span := base, eps
	if l.scheme == CentralDifference {
		minus := q
		minus[i] -= eps
		lo = forward(minus)
		if !lo.Finite() {
			return col, false
		}
		span = 2 * eps
	}

	col[0] = (hi.Position.X - lo.Position.X) / span
	col[1] = (hi.Position.Y - lo.Position.Y) / span
	col[2] = (hi.Position.Z - lo.Position.Z) / span

	var dR mat.Dense
	dR.Sub(hi.Transform.Rotation().Dense(), lo.Transform.Rotation().Dense())
	dR.Scale(1/span, &dR)
	var omega mat.Dense
	omega.Mul(&dR, baseRT)

	col[3] = omega.At(2, 1) / 2
	col[4] = omega.At(0, 2) / 2
	col[5] = omega.At(1, 0) / 2

	if !finite(col[:]...) {
		return [6]float64{}, false
	}
	return col, true
}
