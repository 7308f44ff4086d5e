// Package tools implements the MCP tool handlers for the kinematics server.
//
// Each tool is a struct that receives its dependencies through a
// constructor and exposes Definition() and Handle(), the shape mcp-go's
// AddTool expects. Handlers never return Go errors for bad input or
// backend failures: those become tool error results the client can read.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HendryAvila/pandakin/internal/achievements"
	"github.com/HendryAvila/pandakin/internal/kinematics"
	"github.com/edaniels/golog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"
)

// ─── Argument parsing ────────────────────────────────────────────────────────

// floatsArg extracts a numeric array argument. present is false when the
// key is missing or null.
func floatsArg(req mcp.CallToolRequest, key string) (vals []float64, present bool, err error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, false, nil
	}
	if fs, ok := raw.([]float64); ok {
		return fs, true, nil
	}
	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, true, fmt.Errorf("'%s' must be an array of numbers", key)
	}
	vals = make([]float64, len(items))
	for i, item := range items {
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return nil, true, fmt.Errorf("'%s[%d]' is not a number: %v", key, i, item)
		}
		vals[i] = f
	}
	return vals, true, nil
}

// requireFloats is floatsArg for required arguments.
func requireFloats(req mcp.CallToolRequest, key string) ([]float64, error) {
	vals, present, err := floatsArg(req, key)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, fmt.Errorf("'%s' is required", key)
	}
	return vals, nil
}

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	raw := req.GetArguments()[key]
	if raw == nil {
		return defaultVal
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

// floatArg extracts a float argument, returning defaultVal if the key is
// missing or not a number.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	raw := req.GetArguments()[key]
	if raw == nil {
		return defaultVal
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

// boolArg extracts a boolean argument.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	raw := req.GetArguments()[key]
	if raw == nil {
		return defaultVal
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

// ─── Results ─────────────────────────────────────────────────────────────────

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// engineError turns an engine failure into a tool error result.
func engineError(err error) *mcp.CallToolResult {
	if errors.Is(err, kinematics.ErrInvalidInput) {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("kinematics backend failed: %v", err))
}

// ─── Events ──────────────────────────────────────────────────────────────────

// EventRecorder receives usage events. *achievements.Recorder and
// *achievements.Tracker both satisfy it.
type EventRecorder interface {
	Record(event achievements.Event) ([]achievements.Achievement, error)
}

// Events forwards usage events to the achievement tracker. The zero value
// drops every event. Tracking failures are logged and never fail a tool call.
type Events struct {
	Recorder EventRecorder
	Logger   golog.Logger
}

func (e Events) emit(events ...achievements.Event) []achievements.Achievement {
	if e.Recorder == nil {
		return nil
	}
	var unlocked []achievements.Achievement
	for _, ev := range events {
		got, err := e.Recorder.Record(ev)
		if err != nil {
			if e.Logger != nil {
				e.Logger.Warnw("recording event failed", "event", ev, "error", err)
			}
			continue
		}
		unlocked = append(unlocked, got...)
	}
	return unlocked
}
