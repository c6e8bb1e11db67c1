// Package resolve implements the address parser's companion half (spec
// §4.2): turning a parsed Address plus a plugin Registry into a concrete
// ExecutionPlan the executor can spawn.
package resolve

import (
	"github.com/jnpipe/jn/internal/plugin"
)

// StdioKind tags the closed set of stdin/stdout endpoints a Stage can have
// (spec §3.1 Stage, §9 "model as an enum-with-payload, not inheritance").
type StdioKind string

const (
	StdioInherited StdioKind = "inherited"
	StdioPipe      StdioKind = "pipe" // previous_stage_stdout / next_stage_stdin
	StdioFile      StdioKind = "file"
	StdioURL       StdioKind = "url"
)

// StdioSpec is the tagged-union payload for Stage.StdinSource/StdoutSink.
type StdioSpec struct {
	Kind StdioKind
	Path string // populated for StdioFile and StdioURL
}

// Stage is a single subprocess specification inside an ExecutionPlan (spec
// §3.1). Argv, Env, and Config are fully resolved except for template
// placeholders (${env.X}, ${params.Y}), which ApplyTemplate substitutes
// before spawn.
type Stage struct {
	Plugin      *plugin.Descriptor
	Argv        []string
	Env         map[string]string
	Cwd         string
	Mode        plugin.Mode
	Config      map[string]string
	StdinSource StdioSpec
	StdoutSink  StdioSpec
}

// ExecutionPlan is the ordered sequence of stages the executor wires
// together with N-1 pipes (spec §3.1). A plan always has at least one stage.
type ExecutionPlan struct {
	Stages []Stage
}

// ProfileSource supplies per-plugin profile directories the resolver wires
// into JN_PROFILE_DIR (spec §6.1). Protocol plugins are themselves
// responsible for locating profile content inside that directory; the
// resolver never opens or parses profile files.
type ProfileSource interface {
	ProfileDir(pluginName string) string
}

// NoProfileSource is a ProfileSource that supplies no directory, used when
// the caller has no project- or user-level profile root configured.
type NoProfileSource struct{}

// ProfileDir always returns the empty string.
func (NoProfileSource) ProfileDir(string) string { return "" }
