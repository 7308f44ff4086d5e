package trajectory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// Dir is the subdirectory of the data directory holding trajectories.
	Dir = "trajectories"
	// fileExt is appended to the slug of every stored trajectory.
	fileExt = ".json"
)

// Store defines the persistence interface for solved trajectories.
type Store interface {
	Save(t *Trajectory) (string, error)
	Load(name string) (*Trajectory, error)
	List() ([]Summary, error)
}

// Summary is the listing view of a stored trajectory.
type Summary struct {
	Name       string `json:"name"`
	Letter     string `json:"letter"`
	Total      int    `json:"total_points"`
	Successful int    `json:"successful_points"`
}

// FileStore keeps one JSON file per trajectory under <dataDir>/trajectories.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a filesystem-backed trajectory store.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{dir: filepath.Join(dataDir, Dir)}
}

// Path returns the file a trajectory name maps to.
func (fs *FileStore) Path(name string) string {
	return filepath.Join(fs.dir, Slugify(name)+fileExt)
}

// Save writes t under its slugified name, replacing any previous export of
// the same name. The stored name is returned.
func (fs *FileStore) Save(t *Trajectory) (string, error) {
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating trajectories directory: %w", err)
	}
	t.Name = Slugify(t.Name)

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling trajectory: %w", err)
	}
	if err := os.WriteFile(fs.Path(t.Name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing trajectory %q: %w", t.Name, err)
	}
	return t.Name, nil
}

// Load reads a trajectory by name. Counters are recomputed from the points
// so hand-edited files stay consistent.
func (fs *FileStore) Load(name string) (*Trajectory, error) {
	data, err := os.ReadFile(fs.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("trajectory %q not found", name)
		}
		return nil, fmt.Errorf("reading trajectory: %w", err)
	}

	var t Trajectory
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing trajectory %q: %w", name, err)
	}
	for i, p := range t.Points {
		if len(p.JointAngles) != 7 {
			return nil, fmt.Errorf("trajectory %q: point %d has %d joint angles", name, i, len(p.JointAngles))
		}
	}
	t.Total = len(t.Points)
	t.Successful = 0
	for _, p := range t.Points {
		if p.Success {
			t.Successful++
		}
	}
	return &t, nil
}

// List returns every readable trajectory, sorted by name.
func (fs *FileStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading trajectories directory: %w", err)
	}

	var result []Summary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		t, err := fs.Load(strings.TrimSuffix(entry.Name(), fileExt))
		if err != nil {
			continue // skip unreadable files
		}
		result = append(result, Summary{Name: t.Name, Letter: t.Letter, Total: t.Total, Successful: t.Successful})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

const maxSlugLen = 50

// Slugify converts a display name into a filesystem-safe slug.
// Example: "Letter B (demo)" → "letter-b-demo". Empty input yields
// "trajectory".
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	prevHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		case r == ' ' || r == '_' || r == '-':
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "trajectory"
	}
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}
