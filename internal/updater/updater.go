// Package updater checks GitHub for a newer pandakin release. It uses the
// public Releases API (no auth) and never modifies the installed binary:
// upgrading is left to `go install`.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// Repo is the GitHub repository releases are published from.
	Repo = "HendryAvila/pandakin"

	// InstallHint is printed when an update is available.
	InstallHint = "go install github.com/" + Repo + "/cmd/pandakin@latest"

	defaultEndpoint = "https://api.github.com/repos/" + Repo + "/releases/latest"
	checkTimeout    = 10 * time.Second
)

// release holds the fields we read from a GitHub release.
type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Result is the outcome of a version check.
type Result struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
}

// Checker queries the latest release.
type Checker struct {
	Endpoint string
	Client   *http.Client
}

// NewChecker returns a Checker for the public GitHub API.
func NewChecker() *Checker {
	return &Checker{Endpoint: defaultEndpoint, Client: &http.Client{Timeout: checkTimeout}}
}

// Check compares current against the latest release. On error the result
// still carries the normalized current version.
func (c *Checker) Check(ctx context.Context, current string) (*Result, error) {
	res := &Result{CurrentVersion: normalizeVersion(current)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return res, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "pandakin/"+current)

	resp, err := c.Client.Do(req)
	if err != nil {
		return res, fmt.Errorf("checking latest release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return res, fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return res, fmt.Errorf("parsing release info: %w", err)
	}

	res.LatestVersion = normalizeVersion(rel.TagName)
	res.ReleaseURL = rel.HTMLURL
	res.UpdateAvailable = isNewer(res.CurrentVersion, res.LatestVersion)
	return res, nil
}

// normalizeVersion strips the leading "v" from version strings.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewer reports whether latest is a higher major.minor.patch than
// current. Pre-release suffixes are ignored; "dev" builds never update.
func isNewer(current, latest string) bool {
	if current == "" || latest == "" || current == "dev" {
		return false
	}
	c, l := versionParts(current), versionParts(latest)
	for i := range c {
		if l[i] != c[i] {
			return l[i] > c[i]
		}
	}
	return false
}

func versionParts(v string) [3]int {
	v, _, _ = strings.Cut(v, "-")
	v, _, _ = strings.Cut(v, "+")
	var out [3]int
	for i, p := range strings.SplitN(v, ".", 3) {
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		out[i] = n
	}
	return out
}
