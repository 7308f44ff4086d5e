// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it picks the kinematics backend from the
// configuration, opens the achievement tracker and injects both into the
// tools, resources and prompts. No kinematics lives here, only wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/HendryAvila/pandakin/internal/achievements"
	"github.com/HendryAvila/pandakin/internal/config"
	"github.com/HendryAvila/pandakin/internal/external"
	"github.com/HendryAvila/pandakin/internal/kinematics"
	"github.com/HendryAvila/pandakin/internal/prompts"
	"github.com/HendryAvila/pandakin/internal/resources"
	"github.com/HendryAvila/pandakin/internal/tools"
	"github.com/HendryAvila/pandakin/internal/trajectory"
	"github.com/HendryAvila/pandakin/internal/workspace"
	"github.com/edaniels/golog"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags.
var Version = "dev"

// shutdownTimeout bounds the HTTP transport's graceful shutdown.
const shutdownTimeout = 5 * time.Second

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
//
// The returned cleanup function ends the achievement session and closes
// the tracker database; it is always non-nil and safe to call even if
// achievement tracking failed to start.
func New(cfg *config.Config, logger golog.Logger) (*server.MCPServer, func(), error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// --- Kinematics backend ---

	engine, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, noop, err
	}

	// --- Achievements ---
	//
	// Tracking is an independent subsystem: if the database cannot be
	// opened the kinematics tools keep working without it.

	cleanup := noop
	events := tools.Events{Logger: logger}
	tracker, session, err := startTracking(cfg, logger)
	if err != nil {
		logger.Warnw("achievement tracking disabled", "error", err)
	} else {
		events.Recorder = tracker.Recorder(session)
		cleanup = func() {
			if unlocked, err := tracker.EndSession(session); err != nil {
				logger.Warnw("ending session", "error", err)
			} else {
				for _, a := range unlocked {
					logger.Infow("achievement unlocked at shutdown", "id", a.ID)
				}
			}
			if err := tracker.Close(); err != nil {
				logger.Warnw("closing achievement tracker", "error", err)
			}
		}
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"pandakin",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register kinematics tools ---

	forwardTool := tools.NewForwardTool(engine, events)
	s.AddTool(forwardTool.Definition(), forwardTool.Handle)

	inverseTool := tools.NewInverseTool(engine, tools.IKDefaults{
		MaxIterations: cfg.IK.MaxIterations,
		Tolerance:     cfg.IK.Tolerance,
	}, events)
	s.AddTool(inverseTool.Definition(), inverseTool.Handle)

	jacobianTool := tools.NewJacobianTool(engine)
	s.AddTool(jacobianTool.Definition(), jacobianTool.Handle)

	singularityTool := tools.NewSingularityTool(engine, cfg.Singularity.Threshold, events)
	s.AddTool(singularityTool.Definition(), singularityTool.Handle)

	robotInfoTool := tools.NewRobotInfoTool()
	s.AddTool(robotInfoTool.Definition(), robotInfoTool.Handle)

	homeTool := tools.NewHomeTool(engine, events)
	s.AddTool(homeTool.Definition(), homeTool.Handle)

	// --- Register workspace tools ---

	sampler := workspace.NewSampler(samplingEngine(engine), cfg.Workspace.Workers, logger.Named("workspace"))
	wsDefaults := tools.WorkspaceDefaults{Samples: cfg.Workspace.Samples, Seed: cfg.Workspace.Seed}

	workspaceTool := tools.NewWorkspaceTool(sampler, wsDefaults, events)
	s.AddTool(workspaceTool.Definition(), workspaceTool.Handle)

	boundsTool := tools.NewBoundsTool(sampler, wsDefaults)
	s.AddTool(boundsTool.Definition(), boundsTool.Handle)

	// --- Register trajectory tools ---

	store := trajectory.NewFileStore(cfg.DataDir)
	generator := trajectory.NewGenerator(engine, logger.Named("trajectory"))

	drawTool := tools.NewDrawTool(generator, store, events)
	s.AddTool(drawTool.Definition(), drawTool.Handle)

	importTool := tools.NewImportTool(store, events)
	s.AddTool(importTool.Definition(), importTool.Handle)

	listTool := tools.NewListTool(store)
	s.AddTool(listTool.Definition(), listTool.Handle)

	// --- Register achievement tools ---

	var progress resources.ProgressSource
	if tracker != nil {
		progress = tracker

		achievementsTool := tools.NewAchievementsTool(tracker)
		s.AddTool(achievementsTool.Definition(), achievementsTool.Handle)

		progressTool := tools.NewProgressTool(tracker)
		s.AddTool(progressTool.Definition(), progressTool.Handle)

		recordTool := tools.NewRecordTool(events.Recorder)
		s.AddTool(recordTool.Definition(), recordTool.Handle)
	}

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	progressPrompt := prompts.NewProgressPrompt()
	s.AddPrompt(progressPrompt.Definition(), progressPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(progress)
	s.AddResource(resourceHandler.RobotInfoResource(), resourceHandler.HandleRobotInfo)
	s.AddResource(resourceHandler.ProgressResource(), resourceHandler.HandleProgress)

	logger.Infow("server ready", "version", Version, "backend", cfg.Backend, "data_dir", cfg.DataDir)
	return s, cleanup, nil
}

// NewEngine builds the kinematics backend selected by cfg. The external
// backend is always wrapped so that its failures fall back to the local
// engine.
func NewEngine(cfg *config.Config, logger golog.Logger) (kinematics.Engine, error) {
	scheme, ok := kinematics.ParseDifferenceScheme(cfg.Jacobian.Scheme)
	if !ok {
		return nil, fmt.Errorf("unknown jacobian scheme %q", cfg.Jacobian.Scheme)
	}
	local := kinematics.NewLocal(
		kinematics.WithLogger(logger.Named("kinematics")),
		kinematics.WithScheme(scheme),
		kinematics.WithMaxCondition(cfg.IK.MaxCondition),
	)

	switch cfg.Backend {
	case config.BackendLocal:
		return local, nil
	case config.BackendExternal:
		ext, err := external.New(cfg.External.Command, cfg.External.Timeout, logger.Named("external"))
		if err != nil {
			return nil, fmt.Errorf("creating external backend: %w", err)
		}
		return &kinematics.Fallback{Primary: ext, Secondary: local, Logger: logger.Named("fallback")}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// samplingEngine picks the engine for Monte-Carlo sampling. A single
// workspace estimate makes up to 100k FK calls, one subprocess each on the
// external backend, so sampling always runs on the in-process fallback.
func samplingEngine(engine kinematics.Engine) kinematics.Engine {
	if fb, ok := engine.(*kinematics.Fallback); ok && fb.Secondary != nil {
		return fb.Secondary
	}
	return engine
}

func startTracking(cfg *config.Config, logger golog.Logger) (*achievements.Tracker, *achievements.Session, error) {
	tracker, err := achievements.New(achievements.Config{DataDir: cfg.DataDir, Logger: logger.Named("achievements")})
	if err != nil {
		return nil, nil, err
	}
	session, err := tracker.StartSession()
	if err != nil {
		_ = tracker.Close()
		return nil, nil, err
	}
	if _, err := tracker.RecordIn(session, achievements.EventConnected); err != nil {
		logger.Warnw("recording connection", "error", err)
	}
	return tracker, session, nil
}

// Serve runs s on the configured transport until ctx is done or the
// transport fails.
func Serve(ctx context.Context, s *server.MCPServer, cfg *config.Config, logger golog.Logger) error {
	switch cfg.Transport {
	case config.TransportHTTP:
		httpServer := server.NewStreamableHTTPServer(s)
		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.Start(cfg.HTTPAddr) }()
		logger.Infow("serving MCP over HTTP", "addr", cfg.HTTPAddr)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		}
	default:
		return serveStdio(ctx, s, os.Stdin, os.Stdout)
	}
}

// serveStdio speaks JSON-RPC over in and out. Nothing else may write to
// out, which is why loggers go to stderr.
func serveStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// noop is a no-op cleanup function used when achievement tracking is
// disabled.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use pandakin effectively.
func serverInstructions() string {
	return `You have access to pandakin, a kinematics engine for the Franka Panda 7-DOF arm.

## Conventions
- Joint angles are radians, seven values ordered base to flange.
- Positions are meters in the robot base frame. Orientations are quaternions [w, x, y, z].
- The home configuration is [0, -0.785, 0, -2.356, 0, 1.571, 0.785].

## Tools
- kinematics_forward: joint angles to end-effector pose. Angles outside the limits are
  evaluated anyway and flagged with out_of_bounds.
- kinematics_inverse: target position to joint angles. Position-only: an orientation is
  reported against (orientation_error) but never enforced. success=false is a normal
  answer meaning the target was not reached within max_iterations.
- kinematics_jacobian: 6x7 Jacobian and the manipulability determinant.
- kinematics_singularity: whether a configuration is near a singularity.
- workspace_calculate / workspace_bounds: Monte-Carlo estimate of the reachable workspace.
- trajectory_draw_b / trajectory_import / trajectory_list: solve and store a letter path.
- robot_info / robot_home: static model data and the home pose.
- achievements_*: progress of the user's exploration.

## Guidance
1. Before IK, sanity-check the target against the maximum reach (0.855 m).
2. When IK fails, try a different initial_angles seed before concluding the target is unreachable.
3. Check kinematics_singularity before relying on a solution near the workspace boundary.`
}
