// Package plugin implements plugin discovery and the registry (spec §4.1):
// scanning plugin directories in priority order, extracting metadata, and
// producing a read-only, process-lifetime Registry.
package plugin

import "regexp"

// Role classifies what a plugin does (spec §3.1, §6.2).
type Role string

const (
	RoleFormat      Role = "format"
	RoleFilter      Role = "filter"
	RoleProtocol    Role = "protocol"
	RoleCompression Role = "compression"
)

// rolePrecedence ranks roles for tie-breaking equal-length pattern matches
// (spec §3.1 Registry invariant: "protocol > format > filter > compression").
// Lower is higher precedence.
var rolePrecedence = map[Role]int{
	RoleProtocol:    0,
	RoleFormat:      1,
	RoleFilter:      2,
	RoleCompression: 3,
}

// RolePrecedence returns a role's tie-break rank; unknown roles sort last.
func RolePrecedence(r Role) int {
	if p, ok := rolePrecedence[r]; ok {
		return p
	}
	return len(rolePrecedence)
}

// Mode is the operational intent a plugin is invoked with (spec §3.1, §6.1).
type Mode string

const (
	ModeRead             Mode = "read"
	ModeWrite            Mode = "write"
	ModeRaw              Mode = "raw"
	ModeFilter           Mode = "filter"
	ModeInspectProfiles  Mode = "inspect-profiles"
)

// Capabilities are the boolean flags a plugin declares in its metadata (spec §3.1, §6.2).
type Capabilities struct {
	ManagesParameters bool
	SupportsContainer bool
	EmitsNDJSON       bool
	AcceptsNDJSON     bool
}

// Descriptor is the immutable record discovery produces for one plugin
// (spec §3.1 PluginDescriptor). Descriptors are built once and shared
// read-only between the resolver and the executor.
type Descriptor struct {
	Name           string
	ExecutablePath string
	Role           Role
	Modes          map[Mode]bool
	Patterns       []string
	compiled       []compiledPattern
	Namespace      string
	ConfigParams   []string
	Capabilities   Capabilities
	PriorityLayer  int
	IsBinary       bool
	Version        string
}

// SupportsMode reports whether the plugin declared the given mode.
func (d *Descriptor) SupportsMode(m Mode) bool {
	if d == nil {
		return false
	}
	return d.Modes[m]
}

// compiledPattern pairs a raw pattern with its compiled regular expression.
type compiledPattern struct {
	source string
	re     *regexp.Regexp
}

// CompiledPatterns lazily compiles and caches the descriptor's regular
// expressions (spec §9: "use a full regex engine"). Invalid patterns are
// dropped rather than causing a panic — they simply never match.
func (d *Descriptor) CompiledPatterns() []compiledPattern {
	if d == nil {
		return nil
	}
	if d.compiled != nil || len(d.Patterns) == 0 {
		return d.compiled
	}
	compiled := make([]compiledPattern, 0, len(d.Patterns))
	for _, p := range d.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		compiled = append(compiled, compiledPattern{source: p, re: re})
	}
	d.compiled = compiled
	return d.compiled
}

// MatchesAddress reports whether any of the plugin's patterns match the
// given address text, and returns the length of the longest matching
// pattern's source text (used for longest-pattern-wins tie-breaking).
func (d *Descriptor) MatchesAddress(text string) (matched bool, longest int) {
	for _, cp := range d.CompiledPatterns() {
		if cp.re.MatchString(text) {
			matched = true
			if l := len(cp.source); l > longest {
				longest = l
			}
		}
	}
	return matched, longest
}
