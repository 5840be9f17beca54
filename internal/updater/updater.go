// Package updater checks GitHub Releases for a newer confluence-mcp build.
//
// The check is advisory: serve runs it in the background and prints a notice
// on stderr, and the update command reports where to download the release.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
	"github.com/HendryAvila/confluence-mcp/internal/retry"
)

const (
	githubRepo = "HendryAvila/confluence-mcp"
	releaseURL = "https://api.github.com/repos/" + githubRepo + "/releases/latest"

	checkTimeout = 10 * time.Second

	// OpCheck names the release lookup in retry logs.
	OpCheck = "version_check"
)

// Overridden in tests.
var (
	releaseEndpoint = releaseURL
	httpClient      = &http.Client{Timeout: checkTimeout}
)

// Release holds the fields we read from a GitHub release.
type Release struct {
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

// Policy is the retry policy for the release lookup: one quick retry.
func Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxRetries = 1
	p.InitialDelay = 500 * time.Millisecond
	p.MaxDelay = 2 * time.Second
	return p
}

// Check fetches the latest release and compares it with current.
// A development build ("dev") never reports an update.
func Check(ctx context.Context, current string, p retry.Policy) (*Result, error) {
	result := &Result{CurrentVersion: normalizeVersion(current)}

	release, err := retry.Do(ctx, OpCheck, p, func(ctx context.Context) (*Release, error) {
		return fetchLatest(ctx, current)
	})
	if err != nil {
		return result, err
	}

	result.LatestVersion = normalizeVersion(release.TagName)
	result.ReleaseURL = release.HTMLURL
	result.UpdateAvailable = isNewer(result.CurrentVersion, result.LatestVersion)
	return result, nil
}

func fetchLatest(ctx context.Context, current string) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "confluence-mcp/"+current)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, apierr.Network(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromStatus(resp.StatusCode, "GitHub releases returned "+resp.Status, 0)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	if release.TagName == "" {
		return nil, fmt.Errorf("release has no tag")
	}
	return &release, nil
}

// normalizeVersion strips a single leading "v".
func normalizeVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

// isNewer reports whether latest is a higher semver than current.
// Missing parts count as zero; unparseable parts (like "dev") make the
// comparison false.
func isNewer(current, latest string) bool {
	if current == "" || latest == "" {
		return false
	}
	cur, ok := parseVersion(current)
	if !ok {
		return false
	}
	lat, ok := parseVersion(latest)
	if !ok {
		return false
	}
	for i := range cur {
		if lat[i] != cur[i] {
			return lat[i] > cur[i]
		}
	}
	return false
}

func parseVersion(v string) ([3]int, bool) {
	var out [3]int
	// Drop pre-release and build metadata.
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	if len(parts) > 3 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return out, false
		}
		out[i] = n
	}
	return out, true
}
