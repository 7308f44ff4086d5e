// Package achievements tracks usage counters and unlockable achievements for
// a pandakin installation. State lives in SQLite under the data directory so
// progress survives restarts; sessions measure time spent for the endurance
// achievement.
package achievements

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DBFile is the database filename inside the data directory.
const DBFile = "achievements.db"

// ─── Types ───────────────────────────────────────────────────────────────────

// Config holds tracker configuration.
type Config struct {
	DataDir string
	Logger  golog.Logger
}

// Session is one server run.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// Progress summarizes unlock state and counters.
type Progress struct {
	TotalAchievements    int              `json:"total_achievements"`
	UnlockedAchievements int              `json:"unlocked_achievements"`
	CompletionPercentage float64          `json:"completion_percentage"`
	TotalPoints          int              `json:"total_points"`
	EarnedPoints         int              `json:"earned_points"`
	Stats                map[string]int64 `json:"stats"`
}

// Summary renders the progress as one human-readable line.
func (p *Progress) Summary() string {
	return fmt.Sprintf("%d/%d achievements unlocked (%s%%), %s/%s points",
		p.UnlockedAchievements, p.TotalAchievements,
		humanize.FtoaWithDigits(p.CompletionPercentage, 1),
		humanize.Comma(int64(p.EarnedPoints)), humanize.Comma(int64(p.TotalPoints)))
}

// ─── Tracker ─────────────────────────────────────────────────────────────────

// Tracker records events and unlocks achievements.
type Tracker struct {
	db     *sql.DB
	logger golog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// New opens (or creates) the tracker database under cfg.DataDir.
func New(cfg Config) (*Tracker, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("achievements: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(cfg.DataDir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("achievements: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("achievements: pragma %q: %w", p, err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	t := &Tracker{db: db, logger: logger, now: time.Now}
	if err := t.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("achievements: migration: %w", err)
	}
	return t, nil
}

// Close closes the underlying database connection.
func (t *Tracker) Close() error {
	return t.db.Close()
}

func (t *Tracker) migrate() error {
	_, err := t.db.Exec(`
		CREATE TABLE IF NOT EXISTS stats (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS unlocks (
			achievement_id TEXT PRIMARY KEY,
			session_id     TEXT,
			unlocked_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at   TEXT,
			minutes    INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

// ─── Recording ───────────────────────────────────────────────────────────────

// Record applies event and returns the achievements it unlocked. An
// achievement is returned at most once over the lifetime of the database.
func (t *Tracker) Record(event Event) ([]Achievement, error) {
	r, ok := rules[event]
	if !ok {
		return nil, fmt.Errorf("achievements: unknown event %q", event)
	}
	return t.apply(r, 1, "")
}

// RecordIn is Record attributed to a session.
func (t *Tracker) RecordIn(s *Session, event Event) ([]Achievement, error) {
	r, ok := rules[event]
	if !ok {
		return nil, fmt.Errorf("achievements: unknown event %q", event)
	}
	return t.apply(r, 1, sessionID(s))
}

// RecordSessionTime adds minutes of usage.
func (t *Tracker) RecordSessionTime(minutes int) ([]Achievement, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("achievements: negative session time %d", minutes)
	}
	return t.apply(rule{
		stat:   StatSessionTime,
		unlock: []threshold{{EnduranceChampion, SessionMinutesRequired}},
	}, int64(minutes), "")
}

func (t *Tracker) apply(r rule, delta int64, session string) ([]Achievement, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("achievements: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var value int64
	if r.stat != "" {
		if _, err := tx.Exec(
			`INSERT INTO stats (name, value) VALUES (?, ?)
			 ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`,
			r.stat, delta,
		); err != nil {
			return nil, fmt.Errorf("achievements: bump %s: %w", r.stat, err)
		}
		if err := tx.QueryRow(`SELECT value FROM stats WHERE name = ?`, r.stat).Scan(&value); err != nil {
			return nil, fmt.Errorf("achievements: read %s: %w", r.stat, err)
		}
	}

	now := t.now().UTC()
	var unlocked []Achievement
	for _, th := range r.unlock {
		if value < th.min {
			continue
		}
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO unlocks (achievement_id, session_id, unlocked_at) VALUES (?, ?, ?)`,
			th.id, nullableString(session), now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return nil, fmt.Errorf("achievements: unlock %s: %w", th.id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		def, _ := lookup(th.id)
		at := now
		unlocked = append(unlocked, Achievement{Definition: def, Unlocked: true, UnlockedAt: &at})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("achievements: commit: %w", err)
	}
	for _, a := range unlocked {
		t.logger.Infow("achievement unlocked", "id", a.ID, "points", a.Points)
	}
	return unlocked, nil
}

// ─── Sessions ────────────────────────────────────────────────────────────────

// StartSession registers a new session.
func (t *Tracker) StartSession() (*Session, error) {
	s := &Session{ID: uuid.NewString(), StartedAt: t.now().UTC()}
	if _, err := t.db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		s.ID, s.StartedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("achievements: start session: %w", err)
	}
	return s, nil
}

// EndSession closes s and credits its whole minutes toward session time.
func (t *Tracker) EndSession(s *Session) ([]Achievement, error) {
	end := t.now().UTC()
	minutes := int(end.Sub(s.StartedAt).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	res, err := t.db.Exec(
		`UPDATE sessions SET ended_at = ?, minutes = ? WHERE id = ? AND ended_at IS NULL`,
		end.Format(time.RFC3339Nano), minutes, s.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("achievements: end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("achievements: session %s not open", s.ID)
	}
	t.logger.Infow("session ended", "id", s.ID, "duration", humanize.RelTime(s.StartedAt, end, "", ""))
	return t.RecordSessionTime(minutes)
}

// ─── Queries ─────────────────────────────────────────────────────────────────

// Achievements returns the catalog with unlock state, in catalog order.
func (t *Tracker) Achievements(unlockedOnly bool) ([]Achievement, error) {
	unlocks, err := t.unlockTimes()
	if err != nil {
		return nil, err
	}
	var out []Achievement
	for _, def := range catalog {
		a := Achievement{Definition: def}
		if at, ok := unlocks[def.ID]; ok {
			a.Unlocked = true
			a.UnlockedAt = &at
		}
		if unlockedOnly && !a.Unlocked {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Stats returns every counter, zero when never bumped.
func (t *Tracker) Stats() (map[string]int64, error) {
	stats := make(map[string]int64, len(StatNames))
	for _, n := range StatNames {
		stats[n] = 0
	}
	rows, err := t.db.Query(`SELECT name, value FROM stats`)
	if err != nil {
		return nil, fmt.Errorf("achievements: query stats: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		stats[name] = value
	}
	return stats, rows.Err()
}

// Progress computes the progress summary.
func (t *Tracker) Progress() (*Progress, error) {
	all, err := t.Achievements(false)
	if err != nil {
		return nil, err
	}
	stats, err := t.Stats()
	if err != nil {
		return nil, err
	}

	p := &Progress{TotalAchievements: len(all), Stats: stats}
	for _, a := range all {
		p.TotalPoints += a.Points
		if a.Unlocked {
			p.UnlockedAchievements++
			p.EarnedPoints += a.Points
		}
	}
	if p.TotalAchievements > 0 {
		p.CompletionPercentage = float64(p.UnlockedAchievements) / float64(p.TotalAchievements) * 100
	}
	return p, nil
}

func (t *Tracker) unlockTimes() (map[string]time.Time, error) {
	rows, err := t.db.Query(`SELECT achievement_id, unlocked_at FROM unlocks`)
	if err != nil {
		return nil, fmt.Errorf("achievements: query unlocks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("achievements: parse unlock time for %s: %w", id, err)
		}
		out[id] = ts
	}
	return out, rows.Err()
}

func sessionID(s *Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Recorder records events on behalf of one session.
type Recorder struct {
	tracker *Tracker
	session *Session
}

// Recorder binds the tracker to s. A nil session records unattributed.
func (t *Tracker) Recorder(s *Session) *Recorder {
	return &Recorder{tracker: t, session: s}
}

// Record applies event within the bound session.
func (r *Recorder) Record(event Event) ([]Achievement, error) {
	return r.tracker.RecordIn(r.session, event)
}
