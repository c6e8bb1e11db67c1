package plugin

import "encoding/json"

// MetadataJSON mirrors the JSON object a plugin emits in response to
// `--jn-meta` (spec §6.2). Unknown fields are tolerated: json.Unmarshal
// into this struct silently ignores them, and we never round-trip the
// original bytes, so "preserved but unused" simply falls out of using a
// concrete struct instead of a map.
type MetadataJSON struct {
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

// ParseMetadataJSON decodes the `--jn-meta` response body.
func ParseMetadataJSON(data []byte) (MetadataJSON, error) {
	var m MetadataJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return MetadataJSON{}, err
	}
	return m, nil
}

// MetaFlag is the subprocess flag that asks a plugin to emit its metadata
// JSON to stdout and exit zero (spec §6.1).
const MetaFlag = "--jn-meta"

// InspectProfilesMode is the special mode that asks a protocol plugin to
// emit one NDJSON record per profile it owns (spec §6.1).
const InspectProfilesMode = "inspect-profiles"

func toDescriptor(m MetadataJSON, path string, layer int, isBinary bool) *Descriptor {
	modes := make(map[Mode]bool, len(m.Modes))
	for _, mm := range m.Modes {
		modes[Mode(mm)] = true
	}

	// EmitsNDJSON/AcceptsNDJSON follow from role+modes unless a future
	// metadata revision declares them explicitly; format/filter/protocol
	// plugins in read/filter modes emit NDJSON, and filter/write-mode
	// consumers accept it.
	role := Role(m.Role)
	emits := role == RoleFormat || role == RoleFilter || role == RoleProtocol
	accepts := role == RoleFilter || modes[ModeWrite]

	return &Descriptor{
		Name:           m.Name,
		ExecutablePath: path,
		Role:           role,
		Modes:          modes,
		Patterns:       append([]string(nil), m.Matches...),
		Namespace:      m.Namespace,
		ConfigParams:   append([]string(nil), m.ConfigParams...),
		Capabilities: Capabilities{
			ManagesParameters: m.ManagesParameters,
			SupportsContainer: m.SupportsContainer,
			EmitsNDJSON:       emits,
			AcceptsNDJSON:     accepts,
		},
		PriorityLayer: layer,
		IsBinary:      isBinary,
		Version:       m.Version,
	}
}
