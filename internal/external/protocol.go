package external

import (
	"github.com/invopop/jsonschema"
)

// Op names the engine operation a request asks for.
type Op string

const (
	OpForward     Op = "forward"
	OpInverse     Op = "inverse"
	OpJacobian    Op = "jacobian"
	OpSingularity Op = "singularity"
)

// Request is written as a single JSON document to the backend's stdin.
type Request struct {
	Op                Op        `json:"op" jsonschema:"required,enum=forward,enum=inverse,enum=jacobian,enum=singularity"`
	JointAngles       []float64 `json:"joint_angles,omitempty" jsonschema:"description=Joint angles in radians (forward / jacobian / singularity),minItems=7,maxItems=7"`
	TargetPosition    []float64 `json:"target_position,omitempty" jsonschema:"description=Target flange position in meters (inverse),minItems=3,maxItems=3"`
	TargetOrientation []float64 `json:"target_orientation,omitempty" jsonschema:"description=Optional target quaternion w x y z (inverse),minItems=4,maxItems=4"`
	InitialAngles     []float64 `json:"initial_angles,omitempty" jsonschema:"description=IK seed (inverse),minItems=7,maxItems=7"`
	MaxIterations     int       `json:"max_iterations,omitempty" jsonschema:"description=IK iteration budget (inverse)"`
	Tolerance         float64   `json:"tolerance,omitempty" jsonschema:"description=IK position tolerance in meters (inverse)"`
	Threshold         float64   `json:"threshold,omitempty" jsonschema:"description=Manipulability threshold (singularity)"`
}

// Response is read from the backend's stdout. Only the fields relevant to
// the requested op are expected; a non-empty Error fails the call.
type Response struct {
	Transform   [][]float64 `json:"transform,omitempty" jsonschema:"description=4x4 homogeneous transform (forward)"`
	Position    []float64   `json:"position,omitempty" jsonschema:"description=Flange position (forward)"`
	Orientation []float64   `json:"orientation,omitempty" jsonschema:"description=Quaternion w x y z (forward)"`
	OutOfBounds bool        `json:"out_of_bounds,omitempty"`
	JointAngles []float64   `json:"joint_angles,omitempty" jsonschema:"description=IK solution (inverse)"`
	Success     bool        `json:"success,omitempty"`
	Iterations  int         `json:"iterations,omitempty"`
	Matrix      [][]float64 `json:"matrix,omitempty" jsonschema:"description=6x7 Jacobian (jacobian)"`
	IsSingular  bool        `json:"is_singular,omitempty"`
	Determinant float64     `json:"determinant,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Schemas returns the JSON Schema documents for both protocol messages,
// keyed by message name.
func Schemas() map[string]*jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true}
	return map[string]*jsonschema.Schema{
		"request":  r.Reflect(&Request{}),
		"response": r.Reflect(&Response{}),
	}
}
