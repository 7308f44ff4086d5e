package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/pandakin/internal/achievements"
	"github.com/HendryAvila/pandakin/internal/config"
	"github.com/HendryAvila/pandakin/internal/kinematics"
	"github.com/edaniels/golog"
	"github.com/mark3labs/mcp-go/server"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *server.MCPServer {
	t.Helper()
	s, cleanup, err := New(cfg, golog.NewTestLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(cleanup)
	return s
}

// rpc sends one JSON-RPC request through the server and returns the
// decoded response.
func rpc(t *testing.T, s *server.MCPServer, method string, params map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(s.HandleMessage(context.Background(), raw))
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["error"] != nil {
		t.Fatalf("%s returned error: %v", method, out["error"])
	}
	return out
}

func toolNames(t *testing.T, s *server.MCPServer) []string {
	t.Helper()
	result, _ := rpc(t, s, "tools/list", map[string]any{})["result"].(map[string]any)
	list, _ := result["tools"].([]any)
	var names []string
	for _, item := range list {
		if tool, ok := item.(map[string]any); ok {
			names = append(names, tool["name"].(string))
		}
	}
	sort.Strings(names)
	return names
}

func TestNew_RegistersTools(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	want := []string{
		"achievements_list", "achievements_progress", "achievements_record",
		"kinematics_forward", "kinematics_inverse", "kinematics_jacobian", "kinematics_singularity",
		"robot_home", "robot_info",
		"trajectory_draw_b", "trajectory_import", "trajectory_list",
		"workspace_bounds", "workspace_calculate",
	}
	got := toolNames(t, s)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tools = %v\nwant    %v", got, want)
	}
}

func TestNew_CallForward(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	resp := rpc(t, s, "tools/call", map[string]any{
		"name":      "kinematics_forward",
		"arguments": map[string]any{"joint_angles": []float64{0, -0.785, 0, -2.356, 0, 1.571, 0.785}},
	})
	data, _ := json.Marshal(resp["result"])
	text := string(data)
	if !strings.Contains(text, "position") || !strings.Contains(text, "first_movement") {
		t.Errorf("result = %s", text)
	}
}

func TestNew_ReadsRobotResource(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	resp := rpc(t, s, "resources/read", map[string]any{"uri": "panda://robot/info"})
	data, _ := json.Marshal(resp["result"])
	if !strings.Contains(string(data), "Franka Panda") {
		t.Errorf("result = %s", data)
	}
}

func TestNew_CleanupEndsSession(t *testing.T) {
	cfg := testConfig(t)
	_, cleanup, err := New(cfg, golog.NewTestLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	cleanup()

	tr, err := achievements.New(achievements.Config{DataDir: cfg.DataDir, Logger: golog.NewTestLogger(t)})
	if err != nil {
		t.Fatalf("reopening tracker: %v", err)
	}
	defer func() { _ = tr.Close() }()
	if _, err := tr.Stats(); err != nil {
		t.Errorf("Stats after cleanup: %v", err)
	}
}

func TestNew_TrackingDisabled(t *testing.T) {
	cfg := testConfig(t)
	// A regular file where the data directory should be makes the
	// tracker fail to open.
	blocker := filepath.Join(cfg.DataDir, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.DataDir = blocker

	s := newTestServer(t, cfg)
	for _, name := range toolNames(t, s) {
		if strings.HasPrefix(name, "achievements_") {
			t.Errorf("%s registered with tracking disabled", name)
		}
	}
}

func TestNewEngine(t *testing.T) {
	logger := golog.NewTestLogger(t)

	cfg := config.Default()
	engine, err := NewEngine(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := engine.(*kinematics.Local); !ok {
		t.Errorf("local backend = %T", engine)
	}

	cfg.Backend = config.BackendExternal
	cfg.External.Command = "python3 -m panda_backend"
	engine, err = NewEngine(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := engine.(*kinematics.Fallback); !ok {
		t.Errorf("external backend = %T, want *kinematics.Fallback", engine)
	}

	cfg.External.Command = "   "
	if _, err := NewEngine(cfg, logger); err == nil {
		t.Error("expected error for blank external command")
	}

	cfg = config.Default()
	cfg.Jacobian.Scheme = "backward"
	if _, err := NewEngine(cfg, logger); err == nil {
		t.Error("expected error for unknown scheme")
	}

	cfg = config.Default()
	cfg.Backend = "matlab"
	if _, err := NewEngine(cfg, logger); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSamplingEngine(t *testing.T) {
	local := kinematics.NewLocal()
	if got := samplingEngine(local); got != kinematics.Engine(local) {
		t.Errorf("local engine replaced by %T", got)
	}

	fb := &kinematics.Fallback{Primary: kinematics.NewLocal(), Secondary: local}
	if got := samplingEngine(fb); got != kinematics.Engine(local) {
		t.Errorf("sampling engine = %T, want the fallback's secondary", got)
	}
}

// redirect points *target at a temp file for the rest of the test and
// returns the file's path.
func redirect(t *testing.T, target **os.File) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stream")
	if err != nil {
		t.Fatal(err)
	}
	orig := *target
	*target = f
	t.Cleanup(func() {
		*target = orig
		_ = f.Close()
	})
	return f.Name()
}

func TestServeStdio_StdoutCarriesOnlyJSONRPC(t *testing.T) {
	stdoutPath := redirect(t, &os.Stdout)
	stderrPath := redirect(t, &os.Stderr)

	logger, err := NewLogger("pandakin")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	s, cleanup, err := New(testConfig(t), logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveStdio(ctx, s, inR, outW) }()

	replies := bufio.NewReader(outR)
	exchange := func(id int, method string, params map[string]any) map[string]any {
		t.Helper()
		raw, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": id, "method": method, "params": params})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := inW.Write(append(raw, '\n')); err != nil {
			t.Fatalf("writing %s: %v", method, err)
		}
		line, err := replies.ReadBytes('\n')
		if err != nil {
			t.Fatalf("reading %s reply: %v", method, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(line, &msg); err != nil {
			t.Fatalf("%s reply is not JSON: %q", method, line)
		}
		if msg["jsonrpc"] != "2.0" {
			t.Fatalf("%s reply = %q", method, line)
		}
		return msg
	}

	exchange(1, "initialize", map[string]any{
		"protocolVersion": "2025-03-26",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
	})
	reply := exchange(2, "tools/call", map[string]any{
		"name":      "kinematics_forward",
		"arguments": map[string]any{"joint_angles": []float64{0, -0.785, 0, -2.356, 0, 1.571, 0.785}},
	})
	if reply["result"] == nil {
		t.Fatalf("tools/call reply = %v", reply)
	}

	cancel()
	_ = inW.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serveStdio: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveStdio did not stop after cancel")
	}
	cleanup()
	_ = logger.Sync()

	stdout, err := os.ReadFile(stdoutPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(stdout) != 0 {
		t.Errorf("stdout carried non-protocol output: %q", stdout)
	}
	stderr, err := os.ReadFile(stderrPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"server ready", "achievement unlocked", "session ended"} {
		if !strings.Contains(string(stderr), want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}
