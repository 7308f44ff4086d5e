// Package workspace estimates the reachable workspace of the arm by
// Monte-Carlo sampling of the joint space through a kinematics.Engine.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/edaniels/golog"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/HendryAvila/pandakin/internal/kinematics"
)

const (
	MinSamples     = 1000
	MaxSamples     = 100000
	DefaultSamples = 10000

	// Dexterous region shell, meters from the base origin.
	DexterousMin = 0.3
	DexterousMax = 0.7

	// SafeMargin is the fraction of each joint range, on both ends, that a
	// sample must stay clear of to count as safe.
	SafeMargin = 0.05
)

// ErrSampleCount is returned for a sample count outside [MinSamples, MaxSamples].
var ErrSampleCount = errors.New("workspace: sample count out of range")

// Region selects a subset of the sampled cloud.
type Region string

const (
	RegionReachable Region = "reachable"
	RegionDexterous Region = "dexterous"
	RegionSafe      Region = "safe"
)

// ParseRegion validates a region name. Empty means reachable.
func ParseRegion(name string) (Region, error) {
	switch Region(name) {
	case "", RegionReachable:
		return RegionReachable, nil
	case RegionDexterous, RegionSafe:
		return Region(name), nil
	}
	return "", fmt.Errorf("unknown workspace region %q (want reachable, dexterous or safe)", name)
}

// Point is one accepted sample.
type Point struct {
	Position r3.Vec
	Angles   kinematics.JointVector
}

// Cloud is the result of a sampling run.
type Cloud struct {
	Points  []Point
	Samples int
	Seed    uint64
	Workers int
}

// Bounds is the axis-aligned box around a set of points, [min, max] per axis.
type Bounds struct {
	X [2]float64 `json:"x"`
	Y [2]float64 `json:"y"`
	Z [2]float64 `json:"z"`
}

// Volume is the box volume in cubic meters.
func (b Bounds) Volume() float64 {
	return (b.X[1] - b.X[0]) * (b.Y[1] - b.Y[0]) * (b.Z[1] - b.Z[0])
}

// Stats summarizes a cloud.
type Stats struct {
	MaxReach   float64 `json:"max_reach"`
	Volume     float64 `json:"volume"`
	Bounds     Bounds  `json:"bounds"`
	PointCount int     `json:"point_count"`
}

// Sampler draws random joint vectors inside the limits and keeps the poses
// that are finite, within MaxReach and in bounds.
type Sampler struct {
	engine  kinematics.Engine
	workers int
	logger  golog.Logger
}

// NewSampler creates a sampler. workers <= 0 selects GOMAXPROCS.
func NewSampler(engine kinematics.Engine, workers int, logger golog.Logger) *Sampler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sampler{engine: engine, workers: workers, logger: logger}
}

// Sample runs n samples split across the worker pool. Every worker owns an
// RNG derived from (seed, worker index), so a given seed and worker count
// always yields the same cloud in the same order.
func (s *Sampler) Sample(ctx context.Context, n int, seed uint64) (*Cloud, error) {
	if n < MinSamples || n > MaxSamples {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrSampleCount, n, MinSamples, MaxSamples)
	}

	workers := min(s.workers, n)
	shards := make([][]Point, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		count := n / workers
		if w < n%workers {
			count++
		}
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seed, uint64(w)))
			pts, err := s.shard(ctx, rng, count)
			shards[w] = pts
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sampling workspace: %w", err)
	}

	cloud := &Cloud{Samples: n, Seed: seed, Workers: workers}
	for _, pts := range shards {
		cloud.Points = append(cloud.Points, pts...)
	}
	s.logger.Debugw("workspace sampled",
		"samples", humanize.Comma(int64(n)),
		"accepted", humanize.Comma(int64(len(cloud.Points))),
		"workers", workers)
	return cloud, nil
}

func (s *Sampler) shard(ctx context.Context, rng *rand.Rand, count int) ([]Point, error) {
	pts := make([]Point, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q := RandomJointVector(rng)
		pose, err := s.engine.ForwardKinematics(ctx, q.Slice())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Debugw("workspace sample rejected", "error", err)
			continue
		}
		if accept(pose) {
			pts = append(pts, Point{Position: pose.Position, Angles: q})
		}
	}
	return pts, nil
}

// RandomJointVector draws each joint uniformly from its limit range.
func RandomJointVector(rng *rand.Rand) kinematics.JointVector {
	var q kinematics.JointVector
	for i, lim := range kinematics.JointLimits {
		q[i] = lim.Min + rng.Float64()*(lim.Max-lim.Min)
	}
	return q
}

func accept(pose *kinematics.Pose) bool {
	p := pose.Position
	if math.IsNaN(p.X+p.Y+p.Z) || math.IsInf(p.X+p.Y+p.Z, 0) {
		return false
	}
	return r3.Norm(p) <= kinematics.MaxReach && !pose.OutOfBounds
}

// ComputeBounds returns the box around the points within MaxReach. An empty
// input yields the zero box.
func ComputeBounds(points []Point) Bounds {
	var xs, ys, zs []float64
	for _, p := range points {
		if r3.Norm(p.Position) > kinematics.MaxReach {
			continue
		}
		xs = append(xs, p.Position.X)
		ys = append(ys, p.Position.Y)
		zs = append(zs, p.Position.Z)
	}
	if len(xs) == 0 {
		return Bounds{}
	}
	return Bounds{
		X: [2]float64{floats.Min(xs), floats.Max(xs)},
		Y: [2]float64{floats.Min(ys), floats.Max(ys)},
		Z: [2]float64{floats.Min(zs), floats.Max(zs)},
	}
}

// ComputeStats returns the summary of points. Volume is the bounding-box
// volume, an upper bound of the true workspace volume.
func ComputeStats(points []Point) Stats {
	b := ComputeBounds(points)
	return Stats{
		MaxReach:   kinematics.MaxReach,
		Volume:     b.Volume(),
		Bounds:     b,
		PointCount: len(points),
	}
}

// Filter keeps the points that belong to region.
func Filter(points []Point, region Region) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		d := r3.Norm(p.Position)
		if d > kinematics.MaxReach {
			continue
		}
		switch region {
		case RegionDexterous:
			if d < DexterousMin || d > DexterousMax {
				continue
			}
		case RegionSafe:
			if !clearOfLimits(p.Angles) {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func clearOfLimits(q kinematics.JointVector) bool {
	for i, lim := range kinematics.JointLimits {
		margin := SafeMargin * (lim.Max - lim.Min)
		if q[i] < lim.Min+margin || q[i] > lim.Max-margin {
			return false
		}
	}
	return true
}

// Positions flattens points into [x, y, z] triples.
func Positions(points []Point) [][3]float64 {
	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = [3]float64{p.Position.X, p.Position.Y, p.Position.Z}
	}
	return out
}
