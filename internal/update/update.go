// Package update checks GitHub releases and swaps the running binary.
package update

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
)

const (
	// Repository the release binaries are published from.
	repoOwner = "cameronsjo"
	repoName  = "dinghy"
)

// Release describes a published dinghy version.
type Release struct {
	Version     string
	URL         string
	PublishedAt string
	Changelog   string
}

// IsDevBuild reports whether version names a development build rather
// than a published release. Self-update refuses to overwrite those: the
// binary on disk is newer than anything on GitHub.
func IsDevBuild(version string) bool {
	v := strings.TrimPrefix(version, "v")
	return v == "" || v == "dev" || strings.Contains(v, "-dev")
}

// ChangelogLines returns up to max lines of release notes plus the
// number of lines left out.
func ChangelogLines(changelog string, max int) ([]string, int) {
	changelog = strings.TrimSpace(changelog)
	if changelog == "" {
		return nil, 0
	}
	lines := strings.Split(changelog, "\n")
	if len(lines) <= max {
		return lines, 0
	}
	return lines[:max], len(lines) - max
}

func newUpdater() (*selfupdate.Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("create update source: %w", err)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{Source: source})
	if err != nil {
		return nil, fmt.Errorf("create updater: %w", err)
	}
	return updater, nil
}

func detectLatest(ctx context.Context, updater *selfupdate.Updater) (*selfupdate.Release, error) {
	latest, found, err := updater.DetectLatest(ctx, selfupdate.NewRepositorySlug(repoOwner, repoName))
	if err != nil {
		return nil, fmt.Errorf("detect latest version: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no releases found for %s/%s", repoOwner, repoName)
	}
	return latest, nil
}

func toRelease(latest *selfupdate.Release) *Release {
	return &Release{
		Version:     latest.Version(),
		URL:         latest.URL,
		PublishedAt: latest.PublishedAt.Format("2006-01-02"),
		Changelog:   latest.ReleaseNotes,
	}
}

// CheckForUpdate reports whether a release newer than currentVersion
// exists, without touching the binary.
func CheckForUpdate(ctx context.Context, currentVersion string) (*Release, bool, error) {
	updater, err := newUpdater()
	if err != nil {
		return nil, false, err
	}
	latest, err := detectLatest(ctx, updater)
	if err != nil {
		return nil, false, err
	}
	if latest.LessOrEqual(currentVersion) {
		return nil, false, nil
	}
	return toRelease(latest), true, nil
}

// Update replaces the running binary with the latest release. Returns
// nil when already up to date.
func Update(ctx context.Context, currentVersion string) (*Release, error) {
	if IsDevBuild(currentVersion) {
		return nil, fmt.Errorf("refusing to replace a development build (%s); install a release binary first", currentVersion)
	}

	updater, err := newUpdater()
	if err != nil {
		return nil, err
	}
	latest, err := detectLatest(ctx, updater)
	if err != nil {
		return nil, err
	}
	if latest.LessOrEqual(currentVersion) {
		return nil, nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return nil, fmt.Errorf("locate own binary: %w", err)
	}
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return nil, fmt.Errorf("update binary: %w", err)
	}
	return toRelease(latest), nil
}

// PlatformInfo returns the platform the release asset must match.
func PlatformInfo() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
