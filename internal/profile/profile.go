// Package profile locates per-plugin profile directories on disk (spec
// §6.1 JN_PROFILE_DIR, §4.2.4 "the plugin is responsible for its own
// profile resolution"). The resolver never opens profile content itself;
// it only tells each protocol plugin where to look.
package profile

import (
	"path/filepath"
)

// Source is a resolve.ProfileSource backed by a fixed project/user root
// pair, checked in that priority order, mirroring the layered precedence
// discovery uses for plugin directories (spec §4.1).
type Source struct {
	ProjectDir string // JN_PROJECT_DIR, optional
	UserDir    string // e.g. ~/.jn/profiles
}

// ProfileDir returns the directory a named plugin should search for its
// own profile files: "<root>/<plugin-name>/", preferring the project root
// over the user root when both exist conceptually (the resolver does not
// stat the filesystem here — a missing directory is the plugin's problem
// to report, not the resolver's).
func (s Source) ProfileDir(pluginName string) string {
	if s.ProjectDir != "" {
		return filepath.Join(s.ProjectDir, "profiles", pluginName)
	}
	if s.UserDir != "" {
		return filepath.Join(s.UserDir, pluginName)
	}
	return ""
}
