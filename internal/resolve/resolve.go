package resolve

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jnpipe/jn/internal/address"
	"github.com/jnpipe/jn/internal/plugin"
	jnerrors "github.com/jnpipe/jn/pkg/errors"
)

// Resolve turns a raw address into an ExecutionPlan (spec §4.2). modeHint
// is the direction the caller needs (plugin.ModeRead for `cat`-shaped
// commands, plugin.ModeWrite for `put`-shaped ones).
func Resolve(raw string, registry *plugin.Registry, modeHint plugin.Mode, profiles ProfileSource) (*ExecutionPlan, error) {
	if profiles == nil {
		profiles = NoProfileSource{}
	}

	addr, err := address.Parse(raw)
	if err != nil {
		return nil, err
	}

	switch addr.Kind {
	case address.KindFile, address.KindURL:
		return resolveFileOrURL(addr, registry, modeHint, profiles)
	case address.KindProfile:
		return resolveProfile(addr, registry, profiles)
	case address.KindPlugin:
		return resolveDirectPlugin(addr, registry, modeHint, profiles)
	case address.KindStdio:
		return resolveStdio(addr, registry, modeHint, profiles)
	default:
		return nil, jnerrors.NewInternalError("unreachable address kind", fmt.Errorf("kind=%q", addr.Kind))
	}
}

// candidate pairs a descriptor with its selection rank so mode-aware
// fallback (spec §4.2.3) can walk candidates in rank order.
type candidate struct {
	desc    *plugin.Descriptor
	longest int
}

// rankedCandidates returns every descriptor whose patterns match text,
// ordered by priority layer, then longest matching pattern, then role
// precedence (spec §4.2.2 rule 4, §3.1 Registry invariant).
func rankedCandidates(registry *plugin.Registry, text string) []candidate {
	var out []candidate
	for _, d := range registry.All() {
		matched, longest := d.MatchesAddress(text)
		if !matched {
			continue
		}
		out = append(out, candidate{desc: d, longest: longest})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.desc.PriorityLayer != b.desc.PriorityLayer {
			return a.desc.PriorityLayer < b.desc.PriorityLayer
		}
		if a.longest != b.longest {
			return a.longest > b.longest
		}
		if p1, p2 := plugin.RolePrecedence(a.desc.Role), plugin.RolePrecedence(b.desc.Role); p1 != p2 {
			return p1 < p2
		}
		return a.desc.Name < b.desc.Name
	})
	return out
}

// selectForMode walks ranked candidates and returns the first one
// supporting the required mode — the mode-aware fallback rule (spec
// §4.2.3): a higher-ranked match that lacks the mode is skipped, never
// accepted as a near-miss.
func selectForMode(candidates []candidate, mode plugin.Mode) (*plugin.Descriptor, *plugin.Descriptor) {
	var best *plugin.Descriptor
	for i, c := range candidates {
		if i == 0 {
			best = c.desc
		}
		if c.desc.SupportsMode(mode) {
			return c.desc, best
		}
	}
	return nil, best
}

func resolveFileOrURL(addr address.Address, registry *plugin.Registry, modeHint plugin.Mode, profiles ProfileSource) (*ExecutionPlan, error) {
	formatPlugin, err := selectFormatPlugin(addr, registry, modeHint)
	if err != nil {
		return nil, err
	}

	// A protocol plugin matched directly by URL scheme (spec §4.2.2 rule
	// 3) manages its own fetch exactly like a "@ns/name" profile address
	// does (§4.2.4): it receives the URL as a --url config value and
	// keeps its own stdin/stdout, rather than the engine fetching the
	// URL itself and piping the response in as the plugin's stdin.
	if addr.Kind == address.KindURL && formatPlugin.Role == plugin.RoleProtocol {
		return resolveProtocolURL(addr, formatPlugin, profiles)
	}

	formatStage, err := buildConfiguredStage(formatPlugin, modeHint, addr.Parameters, profiles)
	if err != nil {
		return nil, err
	}

	stages := []Stage{formatStage}

	if addr.Compression != address.CompressionNone {
		compStage, err := selectCompressionStage(addr, registry, modeHint, profiles)
		if err != nil {
			return nil, err
		}
		// Read direction: decompress before parse. Write direction: the
		// stages appear in reverse order (spec §4.2.4 "Write direction").
		if modeHint == plugin.ModeWrite {
			stages = []Stage{formatStage, compStage}
		} else {
			stages = []Stage{compStage, formatStage}
		}
	}

	filterStage, hasFilter, err := synthesizeFilterStage(formatPlugin, addr.Parameters, registry, profiles)
	if err != nil {
		return nil, err
	}
	if hasFilter {
		stages = appendFilterStage(stages, filterStage, modeHint)
	}

	wireEndpoints(stages, addr, modeHint)

	return &ExecutionPlan{Stages: stages}, nil
}

// selectFormatPlugin applies selection rules 1 ("explicit format override")
// and 4 ("file extension on base") in that priority order (spec §4.2.2).
func selectFormatPlugin(addr address.Address, registry *plugin.Registry, modeHint plugin.Mode) (*plugin.Descriptor, error) {
	if addr.FormatOverride != "" {
		return selectByFormatName(addr.FormatOverride, registry, modeHint)
	}

	candidates := rankedCandidates(registry, addr.Base)
	desc, best := selectForMode(candidates, modeHint)
	if desc != nil {
		return desc, nil
	}
	if best != nil {
		return nil, jnerrors.NewModeUnsupportedError(best.Name, string(modeHint))
	}
	return nil, jnerrors.NewUnknownFormatError(addr.Base)
}

// selectByFormatName implements selection rule 1: a plugin whose name
// equals the override token, or whose patterns match "."+token.
func selectByFormatName(format string, registry *plugin.Registry, modeHint plugin.Mode) (*plugin.Descriptor, error) {
	if d, ok := registry.Get(format); ok {
		if !d.SupportsMode(modeHint) {
			return nil, jnerrors.NewModeUnsupportedError(d.Name, string(modeHint))
		}
		return d, nil
	}

	candidates := rankedCandidates(registry, "."+format)
	desc, best := selectForMode(candidates, modeHint)
	if desc != nil {
		return desc, nil
	}
	if best != nil {
		return nil, jnerrors.NewModeUnsupportedError(best.Name, string(modeHint))
	}
	return nil, jnerrors.NewUnknownFormatError(format)
}

func selectCompressionStage(addr address.Address, registry *plugin.Registry, modeHint plugin.Mode, profiles ProfileSource) (Stage, error) {
	text := "." + string(addr.Compression)
	candidates := rankedCandidates(registry, text)
	desc, best := selectForMode(candidates, plugin.ModeRaw)
	if desc == nil {
		if best != nil {
			return Stage{}, jnerrors.NewModeUnsupportedError(best.Name, string(plugin.ModeRaw))
		}
		return Stage{}, jnerrors.NewUnknownFormatError(text)
	}

	direction := "decompress"
	if modeHint == plugin.ModeWrite {
		direction = "compress"
	}

	stage := Stage{
		Plugin: desc,
		Mode:   plugin.ModeRaw,
		Config: map[string]string{"direction": direction},
		Env:    stageEnv(desc, profiles),
	}
	stage.Argv = buildArgv(desc, plugin.ModeRaw, stage.Config, "")
	return stage, nil
}

func resolveProfile(addr address.Address, registry *plugin.Registry, profiles ProfileSource) (*ExecutionPlan, error) {
	ns, _, _ := strings.Cut(strings.TrimPrefix(addr.Base, "@"), "/")

	var matches []*plugin.Descriptor
	for _, d := range registry.All() {
		if d.Role == plugin.RoleProtocol && d.Namespace == ns {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return nil, jnerrors.NewUnknownProfileError(ns)
	}

	minLayer := matches[0].PriorityLayer
	for _, d := range matches {
		if d.PriorityLayer < minLayer {
			minLayer = d.PriorityLayer
		}
	}
	var winners []*plugin.Descriptor
	for _, d := range matches {
		if d.PriorityLayer == minLayer {
			winners = append(winners, d)
		}
	}
	if len(winners) > 1 {
		return nil, jnerrors.NewInternalError("ambiguous profile namespace claim",
			fmt.Errorf("namespace %q claimed by multiple plugins at priority layer %d", ns, minLayer))
	}
	desc := winners[0]

	if !desc.SupportsMode(plugin.ModeRead) {
		return nil, jnerrors.NewModeUnsupportedError(desc.Name, string(plugin.ModeRead))
	}

	// addr.Base, not addr.Raw: the query suffix is already split out into
	// addr.Parameters above, so the url value must not carry it twice
	// (spec §8 S3's expected argv is "--url=@weather/current", not the
	// address with "?city=paris" still attached).
	config := map[string]string{"url": addr.Base}
	for k, v := range addr.Parameters {
		config[k] = v
	}

	stage := Stage{
		Plugin: desc,
		Mode:   plugin.ModeRead,
		Config: config,
		Env:    stageEnv(desc, profiles),
	}
	stage.Argv = buildArgv(desc, plugin.ModeRead, config, "")
	stage.StdinSource = StdioSpec{Kind: StdioInherited}
	stage.StdoutSink = StdioSpec{Kind: StdioInherited}

	return &ExecutionPlan{Stages: []Stage{stage}}, nil
}

// resolveProtocolURL builds the single-stage plan for a protocol plugin
// matched directly by its URL scheme (spec §4.2.2 rule 3), as opposed to
// the "@ns/name" profile syntax resolveProfile handles. The stage shape
// is the same either way (§4.2.4 "the plugin is responsible for its own
// profile resolution and emits NDJSON"): the address and every query
// parameter pass through as --key=value config, and the plugin owns its
// own stdin/stdout instead of the engine fetching the URL as raw bytes.
func resolveProtocolURL(addr address.Address, desc *plugin.Descriptor, profiles ProfileSource) (*ExecutionPlan, error) {
	if !desc.SupportsMode(plugin.ModeRead) {
		return nil, jnerrors.NewModeUnsupportedError(desc.Name, string(plugin.ModeRead))
	}

	config := map[string]string{"url": addr.Base}
	for k, v := range addr.Parameters {
		config[k] = v
	}

	stage := Stage{
		Plugin: desc,
		Mode:   plugin.ModeRead,
		Config: config,
		Env:    stageEnv(desc, profiles),
	}
	stage.Argv = buildArgv(desc, plugin.ModeRead, config, "")
	stage.StdinSource = StdioSpec{Kind: StdioInherited}
	stage.StdoutSink = StdioSpec{Kind: StdioInherited}

	return &ExecutionPlan{Stages: []Stage{stage}}, nil
}

// resolveDirectPlugin implements the "plugin-ref" grammar form (`@name`
// with no namespace separator, spec §6.3): a literal registry lookup by
// name rather than a namespace-routed search, distinguishing it from
// profile-ref resolution.
func resolveDirectPlugin(addr address.Address, registry *plugin.Registry, modeHint plugin.Mode, profiles ProfileSource) (*ExecutionPlan, error) {
	name := strings.TrimPrefix(addr.Base, "@")
	desc, ok := registry.Get(name)
	if !ok {
		return nil, jnerrors.NewUnknownPluginError(name)
	}
	if !desc.SupportsMode(modeHint) {
		return nil, jnerrors.NewModeUnsupportedError(desc.Name, string(modeHint))
	}

	config, err := classifyConfigParams(desc, addr.Parameters)
	if err != nil {
		return nil, err
	}

	stage := Stage{
		Plugin: desc,
		Mode:   modeHint,
		Config: config,
		Env:    stageEnv(desc, profiles),
	}
	stage.Argv = buildArgv(desc, modeHint, config, "")
	stage.StdinSource = StdioSpec{Kind: StdioInherited}
	stage.StdoutSink = StdioSpec{Kind: StdioInherited}

	return &ExecutionPlan{Stages: []Stage{stage}}, nil
}

// resolveStdio implements selection rule 5 (spec §4.2.2): insert the
// override-named format plugin, or default to the NDJSON identity plugin.
func resolveStdio(addr address.Address, registry *plugin.Registry, modeHint plugin.Mode, profiles ProfileSource) (*ExecutionPlan, error) {
	formatName := addr.FormatOverride
	if formatName == "" {
		formatName = "ndjson"
	}

	desc, err := selectByFormatName(formatName, registry, modeHint)
	if err != nil {
		return nil, err
	}

	stage, err := buildConfiguredStage(desc, modeHint, addr.Parameters, profiles)
	if err != nil {
		return nil, err
	}

	stages := []Stage{stage}
	filterStage, hasFilter, err := synthesizeFilterStage(desc, addr.Parameters, registry, profiles)
	if err != nil {
		return nil, err
	}
	if hasFilter {
		stages = appendFilterStage(stages, filterStage, modeHint)
	}

	wireStdio(stages, StdioSpec{Kind: StdioInherited}, StdioSpec{Kind: StdioInherited})

	return &ExecutionPlan{Stages: stages}, nil
}

// buildConfiguredStage classifies parameters and constructs the stage for
// the selected format/protocol plugin (§4.2.5).
func buildConfiguredStage(desc *plugin.Descriptor, mode plugin.Mode, params map[string]string, profiles ProfileSource) (Stage, error) {
	config, err := classifyConfigParams(desc, params)
	if err != nil {
		return Stage{}, err
	}

	stage := Stage{
		Plugin: desc,
		Mode:   mode,
		Config: config,
		Env:    stageEnv(desc, profiles),
	}
	stage.Argv = buildArgv(desc, mode, config, "")
	return stage, nil
}

// classifyConfigParams partitions parameters per §4.2.5: when the plugin
// manages its own parameters, everything passes through unchanged and no
// config-value validation runs (the plugin owns that contract). Otherwise
// only the plugin's declared config_params are kept here; the remainder is
// the caller's responsibility to surface as a filter stage.
func classifyConfigParams(desc *plugin.Descriptor, params map[string]string) (map[string]string, error) {
	if desc.Capabilities.ManagesParameters {
		return copyParams(params), nil
	}

	known := make(map[string]struct{}, len(desc.ConfigParams))
	for _, k := range desc.ConfigParams {
		known[k] = struct{}{}
	}

	config := map[string]string{}
	for k, v := range params {
		if _, ok := known[k]; !ok {
			continue
		}
		if err := validateIfNumericLooking(k, v); err != nil {
			return nil, err
		}
		config[k] = v
	}
	return config, nil
}

// filterParams returns the parameters left over after config
// classification — the synthesized filter stage's inputs (§4.2.5).
func filterParams(desc *plugin.Descriptor, params map[string]string) map[string]string {
	if desc.Capabilities.ManagesParameters {
		return nil
	}
	known := make(map[string]struct{}, len(desc.ConfigParams))
	for _, k := range desc.ConfigParams {
		known[k] = struct{}{}
	}
	out := map[string]string{}
	for k, v := range params {
		if _, ok := known[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}

// validateIfNumericLooking enforces §4.2.6's "numeric-looking but invalid"
// rule: a config value that begins like a number must parse as either an
// integer or a float, else it's InvalidConfigValue (distinct from a
// syntactic InvalidAddress).
func validateIfNumericLooking(key, value string) error {
	if value == "" {
		return nil
	}
	c := value[0]
	looksNumeric := c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
	if !looksNumeric {
		return nil
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return nil
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return nil
	}
	return jnerrors.NewConfigValueError(key, value, "integer or float", fmt.Errorf("numeric-looking value did not parse"))
}

// synthesizeFilterStage builds the downstream filter stage implied by
// leftover filter parameters (§4.2.5), if any remain.
func synthesizeFilterStage(desc *plugin.Descriptor, params map[string]string, registry *plugin.Registry, profiles ProfileSource) (Stage, bool, error) {
	leftover := filterParams(desc, params)
	if len(leftover) == 0 {
		return Stage{}, false, nil
	}

	var filterDesc *plugin.Descriptor
	for _, d := range registry.All() {
		if d.Role == plugin.RoleFilter && d.SupportsMode(plugin.ModeFilter) {
			filterDesc = d
			break
		}
	}
	if filterDesc == nil {
		return Stage{}, false, jnerrors.NewUnknownPluginError("filter")
	}

	stage := Stage{
		Plugin: filterDesc,
		Mode:   plugin.ModeFilter,
		Config: copyParams(leftover),
		Env:    stageEnv(filterDesc, profiles),
	}
	stage.Argv = buildArgv(filterDesc, plugin.ModeFilter, stage.Config, "")
	return stage, true, nil
}

// appendFilterStage splices the filter stage into the plan, respecting
// direction: for reads it trails the pipeline (closest to stdout); for
// writes it leads (closest to stdin), mirroring the write-direction
// reversal rule (§4.2.4).
func appendFilterStage(stages []Stage, filterStage Stage, modeHint plugin.Mode) []Stage {
	if modeHint == plugin.ModeWrite {
		return append([]Stage{filterStage}, stages...)
	}
	return append(stages, filterStage)
}

// wireEndpoints sets the first stage's stdin and the last stage's stdout
// to the address's own endpoint; everything in between is a pipe (spec
// §3.1 ExecutionPlan invariants, §4.3.1). Must run after every stage
// (including any synthesized filter stage) is already in final order.
func wireEndpoints(stages []Stage, addr address.Address, modeHint plugin.Mode) {
	endpoint := StdioSpec{Kind: StdioFile, Path: addressPath(addr)}
	if addr.Kind == address.KindURL {
		endpoint = StdioSpec{Kind: StdioURL, Path: addr.Raw}
	}

	if modeHint == plugin.ModeWrite {
		wireStdio(stages, StdioSpec{Kind: StdioInherited}, endpoint)
	} else {
		wireStdio(stages, endpoint, StdioSpec{Kind: StdioInherited})
	}
}

// addressPath reconstructs the on-disk path a file-kind address names,
// re-appending any compression suffix that detectCompression stripped from
// Base so the producing/consuming stage opens the real file (spec §4.2.1
// step 4 strips the suffix for format matching only, not for I/O).
func addressPath(addr address.Address) string {
	if addr.Compression == address.CompressionNone {
		return addr.Base
	}
	return addr.Base + "." + string(addr.Compression)
}

// wireStdio pipes every adjacent stage boundary and attaches the plan's
// true external endpoints at the two ends (spec §3.1 ExecutionPlan
// invariants: exactly one non-pipe stdin, exactly one non-pipe stdout).
func wireStdio(stages []Stage, start, end StdioSpec) {
	for i := range stages {
		if i > 0 {
			stages[i].StdinSource = StdioSpec{Kind: StdioPipe}
		} else {
			stages[i].StdinSource = start
		}
		if i < len(stages)-1 {
			stages[i].StdoutSink = StdioSpec{Kind: StdioPipe}
		} else {
			stages[i].StdoutSink = end
		}
	}
}

func stageEnv(desc *plugin.Descriptor, profiles ProfileSource) map[string]string {
	env := map[string]string{}
	if dir := profiles.ProfileDir(desc.Name); dir != "" {
		env["JN_PROFILE_DIR"] = dir
	}
	return env
}

// buildArgv constructs "<path> --mode=<mode> [--key=value ...] [address]"
// with config keys in deterministic (sorted) order (spec §6.1, §3.1 Stage.config).
func buildArgv(desc *plugin.Descriptor, mode plugin.Mode, config map[string]string, positional string) []string {
	argv := []string{desc.ExecutablePath, "--mode=" + string(mode)}

	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		argv = append(argv, fmt.Sprintf("--%s=%s", k, config[k]))
	}

	if positional != "" {
		argv = append(argv, positional)
	}
	return argv
}

func copyParams(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
