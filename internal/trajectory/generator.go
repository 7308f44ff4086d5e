// Package trajectory builds Cartesian paths for the arm to trace, solves IK
// for every point, and persists solved trajectories as JSON files.
package trajectory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/edaniels/golog"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/HendryAvila/pandakin/internal/kinematics"
)

// ─── Options ────────────────────────────────────────────────────────────────

// Options controls the letter geometry and the per-point IK budget.
type Options struct {
	Scale            float64
	Center           r3.Vec
	PointsPerSegment int
	MaxIterations    int
	Tolerance        float64
}

// DefaultOptions draws a 25 cm letter in front of the robot.
func DefaultOptions() Options {
	return Options{
		Scale:            0.25,
		Center:           r3.Vec{X: 0.5, Y: 0, Z: 0.4},
		PointsPerSegment: 40,
		MaxIterations:    50,
		Tolerance:        1e-3,
	}
}

// Validate rejects geometry that cannot produce a path.
func (o Options) Validate() error {
	if !(o.Scale > 0) {
		return fmt.Errorf("scale must be positive, got %v", o.Scale)
	}
	if o.PointsPerSegment < 2 {
		return fmt.Errorf("points per segment must be at least 2, got %d", o.PointsPerSegment)
	}
	if o.MaxIterations <= 0 || !(o.Tolerance > 0) {
		return fmt.Errorf("ik budget must be positive (max_iterations=%d, tolerance=%v)", o.MaxIterations, o.Tolerance)
	}
	return nil
}

// ─── Path ───────────────────────────────────────────────────────────────────

// LetterB returns the Cartesian path of a capital B on the YZ plane at
// x = center.X: the spine from top to bottom, then the lower and the upper
// bowl, each swept from -π/2 to π/2.
func LetterB(o Options) []r3.Vec {
	n := o.PointsPerSegment
	half := o.Scale / 2
	top := r3.Add(o.Center, r3.Vec{Z: half})
	bottom := r3.Sub(o.Center, r3.Vec{Z: half})

	path := make([]r3.Vec, 0, 3*n)

	zs := floats.Span(make([]float64, n), top.Z, bottom.Z)
	for _, z := range zs {
		path = append(path, r3.Vec{X: top.X, Y: top.Y, Z: z})
	}

	radius := o.Scale / 4
	thetas := floats.Span(make([]float64, n), -math.Pi/2, math.Pi/2)
	for _, c := range []r3.Vec{
		r3.Scale(0.5, r3.Add(bottom, o.Center)),
		r3.Scale(0.5, r3.Add(o.Center, top)),
	} {
		for _, th := range thetas {
			path = append(path, r3.Vec{
				X: o.Center.X,
				Y: c.Y + radius*math.Cos(th),
				Z: c.Z + radius*math.Sin(th),
			})
		}
	}
	return path
}

// ─── Generation ─────────────────────────────────────────────────────────────

// Point is one solved path sample.
type Point struct {
	JointAngles []float64  `json:"joint_angles"`
	Position    [3]float64 `json:"position"`
	Success     bool       `json:"success"`
}

// Trajectory is a solved path.
type Trajectory struct {
	Name       string    `json:"name,omitempty"`
	Letter     string    `json:"letter"`
	Points     []Point   `json:"trajectory"`
	Total      int       `json:"total_points"`
	Successful int       `json:"successful_points"`
	CreatedAt  time.Time `json:"created_at"`
}

// Generator solves paths point by point.
type Generator struct {
	engine kinematics.Engine
	logger golog.Logger
}

// NewGenerator creates a generator backed by engine.
func NewGenerator(engine kinematics.Engine, logger golog.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Generator{engine: engine, logger: logger}
}

// DrawB solves the letter B. Each point is seeded with the last successful
// solution, starting from the home configuration, so consecutive solutions
// stay close. Unsolved points are kept with Success false.
func (g *Generator) DrawB(ctx context.Context, o Options) (*Trajectory, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	path := LetterB(o)
	g.logger.Infow("generating letter trajectory", "letter", "B", "scale", o.Scale, "points", len(path))

	traj := &Trajectory{Letter: "B", Total: len(path), CreatedAt: time.Now().UTC()}
	seed := kinematics.JointVector(kinematics.HomeConfiguration).Slice()
	for i, p := range path {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := g.engine.InverseKinematics(ctx, kinematics.IKRequest{
			TargetPosition: []float64{p.X, p.Y, p.Z},
			InitialAngles:  seed,
			MaxIterations:  o.MaxIterations,
			Tolerance:      o.Tolerance,
		})
		if err != nil {
			return nil, fmt.Errorf("solving point %d: %w", i, err)
		}
		if res.Success {
			seed = res.JointAngles
			traj.Successful++
		}
		traj.Points = append(traj.Points, Point{
			JointAngles: res.JointAngles,
			Position:    [3]float64{p.X, p.Y, p.Z},
			Success:     res.Success,
		})
	}

	g.logger.Infow("trajectory generated", "letter", "B", "solved", traj.Successful, "total", traj.Total)
	return traj, nil
}
