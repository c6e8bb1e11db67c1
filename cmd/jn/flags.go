package main

import (
	"os"
	"path/filepath"
	"time"
)

// rootFlags holds the persistent flags shared by every pipeline-shape
// subcommand (spec §6.4: "--env K=V (repeatable) and --param k=v
// (repeatable)", plus the plugin discovery and timeout knobs the core
// needs wired from somewhere).
type rootFlags struct {
	pluginDirs []string
	envPairs   []string
	paramPairs []string
	timeout    time.Duration
	verbose    bool
	humanLogs  bool
}

// defaultSearchPaths returns the project/user/bundled plugin directories
// in priority order (spec §4.1 "project > user > bundled"), used when
// --plugin-dir is not supplied.
func defaultSearchPaths(workingDir, projectDir string) []string {
	var paths []string
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".jn", "plugins"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".jn", "plugins"))
	}
	if jnHome := os.Getenv("JN_HOME"); jnHome != "" {
		paths = append(paths, filepath.Join(jnHome, "plugins"))
	}
	return paths
}

// detectProjectDir walks up from workingDir looking for a ".jn" directory,
// the signal a project configuration is present (spec §6.1 JN_PROJECT_DIR
// "optional, set when a project configuration is detected").
func detectProjectDir(workingDir string) string {
	dir := workingDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".jn")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
