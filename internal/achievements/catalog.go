package achievements

import (
	"fmt"
	"time"
)

// ─── Catalog ─────────────────────────────────────────────────────────────────

// Definition is a static catalog entry.
type Definition struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Points      int    `json:"points"`
}

// Achievement is a catalog entry joined with its unlock state.
type Achievement struct {
	Definition
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Achievement IDs.
const (
	FirstMovement       = "first_movement"
	HomeMaster          = "home_master"
	WorkspaceExplorer   = "workspace_explorer"
	SingularitySurvivor = "singularity_survivor"
	PathExecutor        = "path_executor"
	PrecisionMaster     = "precision_master"
	EnduranceChampion   = "endurance_champion"
	MovementMaster      = "movement_master"
	FKOutOfBounds       = "fk_out_of_bounds"
	IKOutOfBounds       = "ik_out_of_bounds"
	Importer            = "importer"
	Exporter            = "exporter"
)

// Unlock thresholds.
const (
	HomeReturnsForMaster   = 5
	MovementsForMaster     = 100
	SessionMinutesRequired = 30
	// PrecisionTolerance is the IK position error (meters) below which a
	// solve counts toward precision_master.
	PrecisionTolerance = 1e-4
)

var catalog = []Definition{
	{FirstMovement, "First Movement", "Move a robot joint for the first time", "🎯", 10},
	{HomeMaster, "Home Master", "Return to the home position 5 times", "🏠", 25},
	{WorkspaceExplorer, "Workspace Explorer", "Compute the robot workspace", "🌐", 50},
	{SingularitySurvivor, "Singularity Survivor", "Run into a singular configuration", "⚠️", 30},
	{PathExecutor, "Path Executor", "Execute a complete path", "🛤️", 40},
	{PrecisionMaster, "Precision Master", "Solve IK to within 0.1 mm", "🎯", 75},
	{EnduranceChampion, "Endurance Champion", "Use the system for more than 30 minutes", "⏰", 60},
	{MovementMaster, "Movement Master", "Make 100 joint movements", "🏃", 100},
	{FKOutOfBounds, "Forward Limits", "Feed forward kinematics joint angles outside the limits", "🚫", 15},
	{IKOutOfBounds, "Inverse Limits", "Request a pose whose IK solution leaves the joint limits", "⚠️", 20},
	{Importer, "Importer", "Import a path", "📥", 20},
	{Exporter, "Exporter", "Export a path", "📤", 20},
}

// Catalog returns a copy of every achievement definition, in display order.
func Catalog() []Definition {
	return append([]Definition(nil), catalog...)
}

func lookup(id string) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// ─── Events ──────────────────────────────────────────────────────────────────

// Event is something a client did that may unlock achievements.
type Event string

const (
	EventConnected            Event = "connected"
	EventMovement             Event = "movement"
	EventHomeReturn           Event = "home_return"
	EventWorkspaceCalculation Event = "workspace_calculation"
	EventSingularityEncounter Event = "singularity_encounter"
	EventPathExecution        Event = "path_execution"
	EventPathImport           Event = "path_import"
	EventPathExport           Event = "path_export"
	EventFKOutOfBounds        Event = "fk_out_of_bounds"
	EventIKOutOfBounds        Event = "ik_out_of_bounds"
	EventPrecision            Event = "precision"
)

// Stat counter names.
const (
	StatTotalMovements        = "total_movements"
	StatHomeReturns           = "home_returns"
	StatWorkspaceCalculations = "workspace_calculations"
	StatSingularityEncounters = "singularity_encounters"
	StatPathExecutions        = "path_executions"
	StatSessionTime           = "session_time"
	StatFKOutOfBounds         = "fk_out_of_bounds_count"
	StatIKOutOfBounds         = "ik_out_of_bounds_count"
)

// StatNames lists every counter, in report order.
var StatNames = []string{
	StatTotalMovements,
	StatHomeReturns,
	StatWorkspaceCalculations,
	StatSingularityEncounters,
	StatPathExecutions,
	StatSessionTime,
	StatFKOutOfBounds,
	StatIKOutOfBounds,
}

// rule maps an event to the counter it bumps and the achievements it may
// unlock once the counter reaches the given value.
type rule struct {
	stat   string
	unlock []threshold
}

type threshold struct {
	id  string
	min int64
}

var rules = map[Event]rule{
	EventConnected:            {},
	EventMovement:             {StatTotalMovements, []threshold{{FirstMovement, 1}, {MovementMaster, MovementsForMaster}}},
	EventHomeReturn:           {StatHomeReturns, []threshold{{HomeMaster, HomeReturnsForMaster}}},
	EventWorkspaceCalculation: {StatWorkspaceCalculations, []threshold{{WorkspaceExplorer, 1}}},
	EventSingularityEncounter: {StatSingularityEncounters, []threshold{{SingularitySurvivor, 1}}},
	EventPathExecution:        {StatPathExecutions, []threshold{{PathExecutor, 1}}},
	EventPathImport:           {"", []threshold{{Importer, 0}}},
	EventPathExport:           {"", []threshold{{Exporter, 0}}},
	EventFKOutOfBounds:        {StatFKOutOfBounds, []threshold{{FKOutOfBounds, 1}}},
	EventIKOutOfBounds:        {StatIKOutOfBounds, []threshold{{IKOutOfBounds, 1}}},
	EventPrecision:            {"", []threshold{{PrecisionMaster, 0}}},
}

// ParseEvent validates an event name.
func ParseEvent(name string) (Event, error) {
	e := Event(name)
	if _, ok := rules[e]; !ok {
		return "", fmt.Errorf("unknown event %q", name)
	}
	return e, nil
}

// Events lists every accepted event name.
func Events() []string {
	return []string{
		string(EventConnected), string(EventMovement), string(EventHomeReturn),
		string(EventWorkspaceCalculation), string(EventSingularityEncounter),
		string(EventPathExecution), string(EventPathImport), string(EventPathExport),
		string(EventFKOutOfBounds), string(EventIKOutOfBounds), string(EventPrecision),
	}
}
