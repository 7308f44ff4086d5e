package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/HendryAvila/pandakin/internal/kinematics"
)

func newTestSampler(t *testing.T, workers int) *Sampler {
	t.Helper()
	logger := golog.NewTestLogger(t)
	return NewSampler(kinematics.NewLocal(kinematics.WithLogger(logger)), workers, logger)
}

type failingEngine struct{ kinematics.Engine }

func (failingEngine) ForwardKinematics(context.Context, []float64) (*kinematics.Pose, error) {
	return nil, errors.New("backend offline")
}

func TestSample_RejectsSampleCount(t *testing.T) {
	s := newTestSampler(t, 2)
	for _, n := range []int{0, 999, 100001} {
		_, err := s.Sample(context.Background(), n, 1)
		test.That(t, errors.Is(err, ErrSampleCount), test.ShouldBeTrue)
	}
}

func TestSample_Deterministic(t *testing.T) {
	s := newTestSampler(t, 4)
	a, err := s.Sample(context.Background(), MinSamples, 42)
	test.That(t, err, test.ShouldBeNil)
	b, err := s.Sample(context.Background(), MinSamples, 42)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Points, test.ShouldResemble, b.Points)

	c, err := s.Sample(context.Background(), MinSamples, 43)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Points, test.ShouldNotResemble, a.Points)
}

func TestSample_AcceptedPointsAreReachable(t *testing.T) {
	s := newTestSampler(t, 3)
	cloud, err := s.Sample(context.Background(), 2000, 7)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Samples, test.ShouldEqual, 2000)
	test.That(t, cloud.Workers, test.ShouldEqual, 3)
	test.That(t, len(cloud.Points), test.ShouldBeGreaterThan, 0)
	test.That(t, len(cloud.Points), test.ShouldBeLessThanOrEqualTo, 2000)

	for _, p := range cloud.Points {
		test.That(t, r3.Norm(p.Position), test.ShouldBeLessThanOrEqualTo, kinematics.MaxReach)
		test.That(t, p.Angles.OutOfBounds(), test.ShouldBeFalse)
	}
}

func TestSample_EngineErrorsAreSkipped(t *testing.T) {
	s := NewSampler(failingEngine{}, 2, golog.NewTestLogger(t))
	cloud, err := s.Sample(context.Background(), MinSamples, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Points, test.ShouldBeEmpty)
}

func TestSample_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestSampler(t, 2).Sample(ctx, MinSamples, 1)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestComputeStats(t *testing.T) {
	empty := ComputeStats(nil)
	test.That(t, empty.PointCount, test.ShouldEqual, 0)
	test.That(t, empty.Volume, test.ShouldEqual, 0)
	test.That(t, empty.MaxReach, test.ShouldEqual, kinematics.MaxReach)

	pts := []Point{
		{Position: r3.Vec{X: 0.1, Y: -0.2, Z: 0.3}},
		{Position: r3.Vec{X: 0.5, Y: 0.2, Z: 0.4}},
		{Position: r3.Vec{X: 0.9, Y: 0, Z: 0.5}}, // beyond reach, excluded from bounds
	}
	stats := ComputeStats(pts)
	test.That(t, stats.PointCount, test.ShouldEqual, 3)
	test.That(t, stats.Bounds.X, test.ShouldResemble, [2]float64{0.1, 0.5})
	test.That(t, stats.Bounds.Y, test.ShouldResemble, [2]float64{-0.2, 0.2})
	test.That(t, stats.Bounds.Z, test.ShouldResemble, [2]float64{0.3, 0.4})
	test.That(t, stats.Volume, test.ShouldAlmostEqual, 0.4*0.4*0.1, 1e-12)
}

func TestFilter(t *testing.T) {
	safe := kinematics.JointVector(kinematics.HomeConfiguration)
	nearLimit := safe
	nearLimit[0] = kinematics.JointLimits[0].Max - 0.01

	pts := []Point{
		{Position: r3.Vec{X: 0.2}, Angles: safe},
		{Position: r3.Vec{X: 0.5}, Angles: nearLimit},
		{Position: r3.Vec{X: 0.8}, Angles: safe},
		{Position: r3.Vec{X: 0.9}, Angles: safe},
	}

	tests := []struct {
		region Region
		want   []float64
	}{
		{RegionReachable, []float64{0.2, 0.5, 0.8}},
		{RegionDexterous, []float64{0.5}},
		{RegionSafe, []float64{0.2, 0.8}},
	}
	for _, tt := range tests {
		t.Run(string(tt.region), func(t *testing.T) {
			got := Filter(pts, tt.region)
			xs := make([]float64, len(got))
			for i, p := range got {
				xs[i] = p.Position.X
			}
			test.That(t, xs, test.ShouldResemble, tt.want)
		})
	}
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldEqual, RegionReachable)

	r, err = ParseRegion("dexterous")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldEqual, RegionDexterous)

	_, err = ParseRegion("everywhere")
	test.That(t, err, test.ShouldNotBeNil)
}
