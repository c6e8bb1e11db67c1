package resolve

import (
	"testing"

	"github.com/jnpipe/jn/internal/plugin"
	jnerrors "github.com/jnpipe/jn/pkg/errors"
	"github.com/stretchr/testify/require"
)

// descriptorRegistry builds a Registry directly from in-memory descriptors
// (assigning ascending priority layers by argument order), bypassing
// filesystem discovery entirely: these tests exercise selection logic, not
// discovery.
func descriptorRegistry(t *testing.T, descs ...*plugin.Descriptor) *plugin.Registry {
	t.Helper()
	for i, d := range descs {
		if d.ExecutablePath == "" {
			d.ExecutablePath = "/fake/" + d.Name
		}
		d.PriorityLayer = i
	}
	return plugin.NewRegistry(descs)
}

func csvPlugin() *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:     "csv",
		Role:     plugin.RoleFormat,
		Modes:    map[plugin.Mode]bool{plugin.ModeRead: true, plugin.ModeWrite: true},
		Patterns: []string{`\.csv$`},
		Capabilities: plugin.Capabilities{EmitsNDJSON: true},
	}
}

func TestResolveSimpleFileRead(t *testing.T) {
	t.Parallel()
	reg := descriptorRegistry(t, csvPlugin())

	plan, err := Resolve("data.csv", reg, plugin.ModeRead, nil)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 1)
	require.Equal(t, "csv", plan.Stages[0].Plugin.Name)
	require.Equal(t, plugin.ModeRead, plan.Stages[0].Mode)
	require.Equal(t, StdioFile, plan.Stages[0].StdinSource.Kind)
	require.Equal(t, "data.csv", plan.Stages[0].StdinSource.Path)
	require.Equal(t, StdioInherited, plan.Stages[0].StdoutSink.Kind)
}

func TestResolveCompressedFileProducesTwoStages(t *testing.T) {
	t.Parallel()
	gz := &plugin.Descriptor{
		Name:     "gzip",
		Role:     plugin.RoleCompression,
		Modes:    map[plugin.Mode]bool{plugin.ModeRaw: true},
		Patterns: []string{`\.gz$`},
	}
	reg := descriptorRegistry(t, csvPlugin(), gz)

	plan, err := Resolve("data.csv.gz", reg, plugin.ModeRead, nil)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 2)
	require.Equal(t, "gzip", plan.Stages[0].Plugin.Name)
	require.Equal(t, plugin.ModeRaw, plan.Stages[0].Mode)
	require.Equal(t, "csv", plan.Stages[1].Plugin.Name)
	require.Equal(t, StdioPipe, plan.Stages[1].StdinSource.Kind)
	require.Equal(t, StdioFile, plan.Stages[0].StdinSource.Kind)
	require.Equal(t, "data.csv.gz", plan.Stages[0].StdinSource.Path)
}

func TestResolveWriteDirectionReversesCompressionOrder(t *testing.T) {
	t.Parallel()
	gz := &plugin.Descriptor{
		Name:     "gzip",
		Role:     plugin.RoleCompression,
		Modes:    map[plugin.Mode]bool{plugin.ModeRaw: true},
		Patterns: []string{`\.gz$`},
	}
	reg := descriptorRegistry(t, csvPlugin(), gz)

	plan, err := Resolve("out.csv.gz", reg, plugin.ModeWrite, nil)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 2)
	require.Equal(t, "csv", plan.Stages[0].Plugin.Name)
	require.Equal(t, "gzip", plan.Stages[1].Plugin.Name)
	require.Equal(t, StdioFile, plan.Stages[1].StdoutSink.Kind)
	require.Equal(t, "out.csv.gz", plan.Stages[1].StdoutSink.Path)
}

func TestResolveModeAwareFallback(t *testing.T) {
	t.Parallel()
	readOnly := &plugin.Descriptor{
		Name:     "fastcsv",
		Role:     plugin.RoleFormat,
		Modes:    map[plugin.Mode]bool{plugin.ModeRead: true},
		Patterns: []string{`\.csv$`},
	}
	readWrite := &plugin.Descriptor{
		Name:     "scriptcsv",
		Role:     plugin.RoleFormat,
		Modes:    map[plugin.Mode]bool{plugin.ModeRead: true, plugin.ModeWrite: true},
		Patterns: []string{`\.csv$`},
	}
	reg := descriptorRegistry(t, readOnly, readWrite)

	writePlan, err := Resolve("out.csv", reg, plugin.ModeWrite, nil)
	require.NoError(t, err)
	require.Equal(t, "scriptcsv", writePlan.Stages[0].Plugin.Name)

	readPlan, err := Resolve("out.csv", reg, plugin.ModeRead, nil)
	require.NoError(t, err)
	require.Equal(t, "fastcsv", readPlan.Stages[0].Plugin.Name)
}

func TestResolveUnknownFormat(t *testing.T) {
	t.Parallel()
	reg := descriptorRegistry(t, csvPlugin())

	_, err := Resolve("data.xyz", reg, plugin.ModeRead, nil)
	require.Error(t, err)
	var kinded jnerrors.Kinded
	require.ErrorAs(t, err, &kinded)
	require.Equal(t, jnerrors.KindUnknownFormat, kinded.Kind())
}

func TestResolveProfileAddress(t *testing.T) {
	t.Parallel()
	weather := &plugin.Descriptor{
		Name:      "weatherd",
		Role:      plugin.RoleProtocol,
		Namespace: "weather",
		Modes:     map[plugin.Mode]bool{plugin.ModeRead: true},
		Capabilities: plugin.Capabilities{ManagesParameters: true},
	}
	reg := descriptorRegistry(t, weather)

	plan, err := Resolve("@weather/current?city=paris", reg, plugin.ModeRead, nil)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 1)
	require.Equal(t, "weatherd", plan.Stages[0].Plugin.Name)
	require.Equal(t, "paris", plan.Stages[0].Config["city"])
	require.Equal(t, "@weather/current", plan.Stages[0].Config["url"])
}

func TestResolveProtocolURLScheme(t *testing.T) {
	t.Parallel()
	gitPlugin := &plugin.Descriptor{
		Name:         "git",
		Role:         plugin.RoleProtocol,
		Namespace:    "git",
		Modes:        map[plugin.Mode]bool{plugin.ModeRead: true},
		Patterns:     []string{`^git\+https://`},
		Capabilities: plugin.Capabilities{ManagesParameters: true},
	}
	reg := descriptorRegistry(t, gitPlugin)

	plan, err := Resolve("git+https://example.com/repo.git?branch=main", reg, plugin.ModeRead, nil)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 1)
	require.Equal(t, "git", plan.Stages[0].Plugin.Name)
	require.Equal(t, "git+https://example.com/repo.git", plan.Stages[0].Config["url"])
	require.Equal(t, "main", plan.Stages[0].Config["branch"])
	// A protocol plugin manages its own fetch; the engine must not try to
	// HTTP-GET the address itself and pipe the response in as stdin.
	require.Equal(t, StdioInherited, plan.Stages[0].StdinSource.Kind)
	require.Equal(t, StdioInherited, plan.Stages[0].StdoutSink.Kind)
}

func TestResolveUnknownProfile(t *testing.T) {
	t.Parallel()
	reg := descriptorRegistry(t, csvPlugin())

	_, err := Resolve("@weather/current", reg, plugin.ModeRead, nil)
	require.Error(t, err)
	var kinded jnerrors.Kinded
	require.ErrorAs(t, err, &kinded)
	require.Equal(t, jnerrors.KindUnknownProfile, kinded.Kind())
}

func TestResolveDirectPluginReference(t *testing.T) {
	t.Parallel()
	tool := &plugin.Descriptor{
		Name:  "mytool",
		Role:  plugin.RoleFormat,
		Modes: map[plugin.Mode]bool{plugin.ModeRead: true},
	}
	reg := descriptorRegistry(t, tool)

	plan, err := Resolve("@mytool", reg, plugin.ModeRead, nil)
	require.NoError(t, err)
	require.Equal(t, "mytool", plan.Stages[0].Plugin.Name)
}

func TestResolveUnknownPlugin(t *testing.T) {
	t.Parallel()
	reg := descriptorRegistry(t, csvPlugin())

	_, err := Resolve("@nosuchplugin", reg, plugin.ModeRead, nil)
	require.Error(t, err)
	var kinded jnerrors.Kinded
	require.ErrorAs(t, err, &kinded)
	require.Equal(t, jnerrors.KindUnknownPlugin, kinded.Kind())
}

func TestResolveStdioDefaultsToNDJSON(t *testing.T) {
	t.Parallel()
	ndjson := &plugin.Descriptor{
		Name:  "ndjson",
		Role:  plugin.RoleFormat,
		Modes: map[plugin.Mode]bool{plugin.ModeRead: true, plugin.ModeWrite: true},
	}
	reg := descriptorRegistry(t, ndjson)

	plan, err := Resolve("-", reg, plugin.ModeRead, nil)
	require.NoError(t, err)
	require.Equal(t, "ndjson", plan.Stages[0].Plugin.Name)
	require.Equal(t, StdioInherited, plan.Stages[0].StdinSource.Kind)
	require.Equal(t, StdioInherited, plan.Stages[0].StdoutSink.Kind)
}

func TestResolveFilterParamsSynthesizeFilterStage(t *testing.T) {
	t.Parallel()
	csv := &plugin.Descriptor{
		Name:         "csv",
		Role:         plugin.RoleFormat,
		Modes:        map[plugin.Mode]bool{plugin.ModeRead: true},
		Patterns:     []string{`\.csv$`},
		ConfigParams: []string{"delimiter"},
	}
	filter := &plugin.Descriptor{
		Name:  "filter",
		Role:  plugin.RoleFilter,
		Modes: map[plugin.Mode]bool{plugin.ModeFilter: true},
	}
	reg := descriptorRegistry(t, csv, filter)

	plan, err := Resolve("data.csv?delimiter=,&age>30=true", reg, plugin.ModeRead, nil)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 2)
	require.Equal(t, "csv", plan.Stages[0].Plugin.Name)
	require.Equal(t, ",", plan.Stages[0].Config["delimiter"])
	require.Equal(t, "filter", plan.Stages[1].Plugin.Name)
	require.Equal(t, "true", plan.Stages[1].Config["age>30"])
	require.Equal(t, StdioInherited, plan.Stages[1].StdoutSink.Kind)
}

func TestResolveManagesParametersSkipsFilterSynthesis(t *testing.T) {
	t.Parallel()
	proto := &plugin.Descriptor{
		Name:         "weatherd",
		Role:         plugin.RoleProtocol,
		Namespace:    "weather",
		Modes:        map[plugin.Mode]bool{plugin.ModeRead: true},
		Capabilities: plugin.Capabilities{ManagesParameters: true},
	}
	reg := descriptorRegistry(t, proto)

	plan, err := Resolve("@weather/current?anything=goes", reg, plugin.ModeRead, nil)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 1)
}

func TestResolveNumericLookingConfigValueMustParse(t *testing.T) {
	t.Parallel()
	csv := &plugin.Descriptor{
		Name:         "csv",
		Role:         plugin.RoleFormat,
		Modes:        map[plugin.Mode]bool{plugin.ModeRead: true},
		Patterns:     []string{`\.csv$`},
		ConfigParams: []string{"limit"},
	}
	reg := descriptorRegistry(t, csv)

	_, err := Resolve("data.csv?limit=12abc", reg, plugin.ModeRead, nil)
	require.Error(t, err)
	var kinded jnerrors.Kinded
	require.ErrorAs(t, err, &kinded)
	require.Equal(t, jnerrors.KindInvalidConfigValue, kinded.Kind())
}
