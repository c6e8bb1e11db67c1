// Package pluginsdk is the shared subprocess contract (spec §6.1, §6.2)
// bundled reference plugins are built against: argv parsing for
// "--mode=…"/"--key=value" invocation, and metadata-JSON emission for
// "--jn-meta". It has no dependency on the orchestrator's internal
// packages, so a third-party plugin author could vendor just this one
// package without pulling in the resolver or executor.
package pluginsdk

import (
	"encoding/json"
	"io"
	"strings"
)

// MetaFlag is the argv the orchestrator passes to ask a plugin for its
// metadata (spec §6.1).
const MetaFlag = "--jn-meta"

// Metadata is the JSON object a plugin emits on stdout in response to
// MetaFlag (spec §6.2). Unknown fields received by a consumer are simply
// never populated into this struct — "tolerated and preserved" is the
// discovery side's job, not the plugin's.
type Metadata struct {
	Name              string   `json:"name"`
	Version           string   `json:"version,omitempty"`
	Role              string   `json:"role"`
	Modes             []string `json:"modes"`
	Matches           []string `json:"matches"`
	Namespace         string   `json:"namespace,omitempty"`
	ConfigParams      []string `json:"config_params,omitempty"`
	ManagesParameters bool     `json:"manages_parameters,omitempty"`
	SupportsContainer bool     `json:"supports_container,omitempty"`
}

// EmitMetadata writes m as the metadata JSON response and is the whole of
// a plugin's "--jn-meta" handling.
func EmitMetadata(w io.Writer, m Metadata) error {
	enc := json.NewEncoder(w)
	return enc.Encode(m)
}

// Invocation is a bundled plugin's parsed argv (spec §6.1's "<executable>
// --mode=<mode> [--key=value …] [positional_address]").
type Invocation struct {
	MetaRequested bool
	Mode          string
	Config        map[string]string
	Positional    string
}

// Parse decodes argv (os.Args[1:]) into an Invocation. It never errors: an
// unrecognized flag shape is simply treated as the positional address,
// leaving validation to the plugin's own mode handler.
func Parse(argv []string) Invocation {
	inv := Invocation{Config: map[string]string{}}
	for _, a := range argv {
		switch {
		case a == MetaFlag:
			inv.MetaRequested = true
		case strings.HasPrefix(a, "--mode="):
			inv.Mode = strings.TrimPrefix(a, "--mode=")
		case strings.HasPrefix(a, "--") && strings.Contains(a, "="):
			rest := strings.TrimPrefix(a, "--")
			key, value, _ := strings.Cut(rest, "=")
			inv.Config[key] = value
		default:
			inv.Positional = a
		}
	}
	return inv
}
