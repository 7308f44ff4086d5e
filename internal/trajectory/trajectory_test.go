package trajectory

import (
	"context"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/edaniels/golog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/HendryAvila/pandakin/internal/kinematics"
)

func near(a, b r3.Vec) bool {
	return r3.Norm(r3.Sub(a, b)) < 1e-12
}

// --- Path geometry ---

func TestLetterB_Geometry(t *testing.T) {
	o := DefaultOptions()
	o.PointsPerSegment = 3
	path := LetterB(o)

	if len(path) != 9 {
		t.Fatalf("len(path) = %d, want 9", len(path))
	}

	want := []r3.Vec{
		{X: 0.5, Y: 0, Z: 0.525}, // spine top
		{X: 0.5, Y: 0, Z: 0.4},
		{X: 0.5, Y: 0, Z: 0.275}, // spine bottom
		{X: 0.5, Y: 0, Z: 0.275}, // lower bowl
		{X: 0.5, Y: 0.0625, Z: 0.3375},
		{X: 0.5, Y: 0, Z: 0.4},
		{X: 0.5, Y: 0, Z: 0.4}, // upper bowl
		{X: 0.5, Y: 0.0625, Z: 0.4625},
		{X: 0.5, Y: 0, Z: 0.525},
	}
	for i := range want {
		if !near(path[i], want[i]) {
			t.Errorf("path[%d] = %+v, want %+v", i, path[i], want[i])
		}
	}
}

func TestLetterB_StaysOnPlane(t *testing.T) {
	o := DefaultOptions()
	o.Center = r3.Vec{X: 0.45, Y: 0.1, Z: 0.5}
	for i, p := range LetterB(o) {
		if p.X != 0.45 {
			t.Fatalf("path[%d].X = %v, want 0.45", i, p.X)
		}
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero scale", func(o *Options) { o.Scale = 0 }},
		{"nan scale", func(o *Options) { o.Scale = math.NaN() }},
		{"single point", func(o *Options) { o.PointsPerSegment = 1 }},
		{"no iterations", func(o *Options) { o.MaxIterations = 0 }},
		{"no tolerance", func(o *Options) { o.Tolerance = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			if err := o.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("default options invalid: %v", err)
	}
}

// --- Generation ---

// scriptedEngine succeeds on every other call and records the seeds.
type scriptedEngine struct {
	kinematics.Engine
	seeds [][]float64
}

func (s *scriptedEngine) InverseKinematics(_ context.Context, req kinematics.IKRequest) (*kinematics.IKResult, error) {
	call := len(s.seeds)
	s.seeds = append(s.seeds, req.InitialAngles)
	angles := make([]float64, 7)
	angles[0] = float64(call)
	return &kinematics.IKResult{JointAngles: angles, Success: call%2 == 1, Iterations: 1}, nil
}

func TestDrawB_ChainsSeedsFromLastSuccess(t *testing.T) {
	eng := &scriptedEngine{}
	g := NewGenerator(eng, golog.NewTestLogger(t))
	o := DefaultOptions()
	o.PointsPerSegment = 2

	traj, err := g.DrawB(context.Background(), o)
	if err != nil {
		t.Fatalf("DrawB: %v", err)
	}
	if traj.Total != 6 || traj.Successful != 3 {
		t.Fatalf("total/successful = %d/%d, want 6/3", traj.Total, traj.Successful)
	}

	home := kinematics.JointVector(kinematics.HomeConfiguration).Slice()
	for i, seed := range eng.seeds {
		// Calls 0 and 1 start from home; call i>1 starts from the last odd call.
		if i <= 1 {
			if seed[1] != home[1] || seed[0] != home[0] {
				t.Errorf("seed %d = %v, want home", i, seed)
			}
			continue
		}
		wantFrom := float64(i - 1)
		if i%2 == 1 {
			wantFrom = float64(i - 2)
		}
		if seed[0] != wantFrom {
			t.Errorf("seed %d came from call %v, want %v", i, seed[0], wantFrom)
		}
	}
}

func TestDrawB_LocalEngine(t *testing.T) {
	logger := golog.NewTestLogger(t)
	g := NewGenerator(kinematics.NewLocal(kinematics.WithLogger(logger)), logger)
	o := DefaultOptions()
	o.PointsPerSegment = 10

	traj, err := g.DrawB(context.Background(), o)
	if err != nil {
		t.Fatalf("DrawB: %v", err)
	}
	if traj.Total != 30 || len(traj.Points) != 30 {
		t.Fatalf("total = %d, points = %d, want 30", traj.Total, len(traj.Points))
	}
	if !traj.Points[0].Success {
		t.Error("first point (spine top) should be solvable from home")
	}
	for i, p := range traj.Points {
		if !p.Success {
			continue
		}
		pose, err := kinematics.ForwardKinematics(p.JointAngles)
		if err != nil {
			t.Fatalf("FK of point %d: %v", i, err)
		}
		target := r3.Vec{X: p.Position[0], Y: p.Position[1], Z: p.Position[2]}
		if d := r3.Norm(r3.Sub(pose.Position, target)); d > o.Tolerance {
			t.Errorf("point %d: FK error %v exceeds tolerance", i, d)
		}
	}
}

func TestDrawB_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGenerator(&scriptedEngine{}, golog.NewTestLogger(t))
	if _, err := g.DrawB(ctx, DefaultOptions()); err == nil {
		t.Error("expected context error")
	}
}

// --- Store ---

func sampleTrajectory() *Trajectory {
	return &Trajectory{
		Name:   "My Letter B",
		Letter: "B",
		Points: []Point{
			{JointAngles: []float64{0, -0.785, 0, -2.356, 0, 1.571, 0.785}, Position: [3]float64{0.5, 0, 0.525}, Success: true},
			{JointAngles: []float64{0, -0.7, 0, -2.3, 0, 1.6, 0.785}, Position: [3]float64{0.5, 0, 0.5}, Success: false},
		},
		Total:      2,
		Successful: 1,
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	name, err := store.Save(sampleTrajectory())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if name != "my-letter-b" {
		t.Errorf("stored name = %q, want my-letter-b", name)
	}

	got, err := store.Load("My Letter B")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Total != 2 || got.Successful != 1 {
		t.Errorf("counters = %d/%d, want 2/1", got.Total, got.Successful)
	}
	if got.Points[1].JointAngles[3] != -2.3 {
		t.Errorf("joint angles not preserved: %v", got.Points[1].JointAngles)
	}
}

func TestFileStore_LoadRecomputesCounters(t *testing.T) {
	store := NewFileStore(t.TempDir())
	traj := sampleTrajectory()
	traj.Successful = 99
	if _, err := store.Save(traj); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load("my-letter-b")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Successful != 1 {
		t.Errorf("Successful = %d, want 1", got.Successful)
	}
}

func TestFileStore_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	if _, err := store.Load("missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Load(missing) error = %v, want not found", err)
	}

	if err := os.MkdirAll(store.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	bad := `{"letter":"B","trajectory":[{"joint_angles":[1,2,3],"position":[0,0,0],"success":true}]}`
	if err := os.WriteFile(store.Path("short"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("short"); err == nil {
		t.Error("expected error for point with 3 joint angles")
	}

	if err := os.WriteFile(store.Path("garbage"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("garbage"); err == nil {
		t.Error("expected parse error")
	}
}

func TestFileStore_List(t *testing.T) {
	store := NewFileStore(t.TempDir())

	if list, err := store.List(); err != nil || len(list) != 0 {
		t.Fatalf("List on empty store = %v, %v", list, err)
	}

	for _, n := range []string{"zeta", "alpha"} {
		traj := sampleTrajectory()
		traj.Name = n
		if _, err := store.Save(traj); err != nil {
			t.Fatalf("Save(%s): %v", n, err)
		}
	}
	list, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "zeta" {
		t.Errorf("List = %+v, want alpha then zeta", list)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Letter B (demo)", "letter-b-demo"},
		{"  spaced__out  ", "spaced-out"},
		{"", "trajectory"},
		{"!!!", "trajectory"},
		{strings.Repeat("ab-", 30), strings.TrimRight(strings.Repeat("ab-", 30)[:50], "-")},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
