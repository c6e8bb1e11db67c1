package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFakePlugin(t *testing.T, dir, name, metaJSON string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"--jn-meta\" ]; then\n" +
		"  cat <<'EOF'\n" + metaJSON + "\nEOF\n" +
		"  exit 0\n" +
		"fi\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestBuildDiscoversBinaryPlugin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFakePlugin(t, dir, "csv", `{"name":"csv","role":"format","modes":["read","write"],"matches":["\\.csv$"]}`)

	reg, advisories := Build(context.Background(), []string{dir}, NewScanner())
	require.Empty(t, advisories)

	desc, ok := reg.Get("csv")
	require.True(t, ok)
	require.Equal(t, RoleFormat, desc.Role)
	require.True(t, desc.SupportsMode(ModeRead))
	require.True(t, desc.SupportsMode(ModeWrite))
}

func TestBuildHigherPriorityLayerWins(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	bundledDir := t.TempDir()

	writeFakePlugin(t, projectDir, "csv", `{"name":"csv","role":"format","modes":["read"],"matches":["\\.csv$"]}`)
	writeFakePlugin(t, bundledDir, "csv", `{"name":"csv","role":"format","modes":["read","write"],"matches":["\\.csv$","\\.tsv$"]}`)

	reg, _ := Build(context.Background(), []string{projectDir, bundledDir}, NewScanner())

	desc, ok := reg.Get("csv")
	require.True(t, ok)
	require.Equal(t, projectDir, filepath.Dir(desc.ExecutablePath))
	require.False(t, desc.SupportsMode(ModeWrite), "project layer plugin should win even though it declares fewer modes")
}

func TestBuildDuplicateWithinLayerPrefersLargerPatternSet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFakePlugin(t, dir, "csv-a", `{"name":"csv","role":"format","modes":["read"],"matches":["\\.csv$"]}`)
	writeFakePlugin(t, dir, "csv-b", `{"name":"csv","role":"format","modes":["read"],"matches":["\\.csv$","\\.tsv$"]}`)

	reg, advisories := Build(context.Background(), []string{dir}, NewScanner())
	require.NotEmpty(t, advisories)

	desc, ok := reg.Get("csv")
	require.True(t, ok)
	require.Len(t, desc.Patterns, 2)
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFakePlugin(t, dir, "csv", `{"name":"csv","role":"format","modes":["read"],"matches":["\\.csv$"]}`)
	writeFakePlugin(t, dir, "json", `{"name":"json","role":"format","modes":["read","write"],"matches":["\\.json$"]}`)

	reg1, _ := Build(context.Background(), []string{dir}, NewScanner())
	reg2, _ := Build(context.Background(), []string{dir}, NewScanner())

	require.Equal(t, len(reg1.All()), len(reg2.All()))
	for i := range reg1.All() {
		require.Equal(t, reg1.All()[i].Name, reg2.All()[i].Name)
	}
}

func TestBuildUnreadableDirectoryIsAdvisoryNotFatal(t *testing.T) {
	t.Parallel()

	reg, advisories := Build(context.Background(), []string{"/nonexistent/jn/plugins/dir"}, NewScanner())
	require.NotNil(t, reg)
	require.NotEmpty(t, advisories)
	require.Equal(t, "unreadable_dir", advisories[0].Code)
}

func TestBuildSkipsMalformedMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFakePlugin(t, dir, "broken", `not json`)

	reg, advisories := Build(context.Background(), []string{dir}, NewScanner())
	_, ok := reg.Get("broken")
	require.False(t, ok)
	require.NotEmpty(t, advisories)
	require.Equal(t, "metadata_error", advisories[0].Code)
}
