package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListCandidatesSkipsReservedAndDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cached.pyc"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.py"), []byte("#!/usr/bin/env python3\n"), 0o644))

	s := NewScanner()
	candidates, err := s.listCandidates(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "real.py", candidates[0].name)
	require.False(t, candidates[0].isBinary)
}

func TestDescribeScriptReadsDeclarativeHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := "#!/usr/bin/env python3\n" +
		headerStart + "\n" +
		"name: myformat\n" +
		"role: format\n" +
		"modes: [read, write]\n" +
		"matches: ['\\.myf$']\n" +
		headerEnd + "\n"
	path := filepath.Join(dir, "myformat.py")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	s := NewScanner()
	desc, err := s.describeScript(candidate{path: path, name: "myformat.py", isBinary: false}, 2)
	require.NoError(t, err)
	require.Equal(t, "myformat", desc.Name)
	require.Equal(t, RoleFormat, desc.Role)
	require.True(t, desc.SupportsMode(ModeRead))
	require.True(t, desc.SupportsMode(ModeWrite))
	require.False(t, desc.IsBinary)
	require.Equal(t, 2, desc.PriorityLayer)
}

func TestDescribeScriptMissingHeaderIsMetadataError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bare.py")
	require.NoError(t, os.WriteFile(path, []byte("#!/usr/bin/env python3\nprint('hi')\n"), 0o644))

	s := NewScanner()
	_, err := s.describeScript(candidate{path: path, name: "bare.py"}, 0)
	require.Error(t, err)
}

func TestDescribeBinaryUsesRunner(t *testing.T) {
	t.Parallel()

	s := NewScanner()
	s.Runner = func(ctx context.Context, path string, args ...string) ([]byte, error) {
		return []byte(`{"name":"zstd","role":"compression","modes":["read","write"],"matches":["\\.zst$"]}`), nil
	}

	desc, err := s.describeBinary(context.Background(), candidate{path: "/fake/zstd", name: "zstd", isBinary: true}, 0)
	require.NoError(t, err)
	require.Equal(t, "zstd", desc.Name)
	require.Equal(t, RoleCompression, desc.Role)
	require.True(t, desc.IsBinary)
}

func TestDescribeBinaryRunnerErrorIsMetadataError(t *testing.T) {
	t.Parallel()

	s := NewScanner()
	s.Runner = func(ctx context.Context, path string, args ...string) ([]byte, error) {
		return nil, os.ErrPermission
	}

	_, err := s.describeBinary(context.Background(), candidate{path: "/fake/broken"}, 0)
	require.Error(t, err)
}

func TestExtractHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	body := []byte("junk before\n" + headerStart + "\nname: x\n" + headerEnd + "\njunk after")
	header, ok := extractHeader(body)
	require.True(t, ok)
	require.Contains(t, string(header), "name: x")
}

func TestExtractHeaderMissingSentinel(t *testing.T) {
	t.Parallel()

	_, ok := extractHeader([]byte("no header here"))
	require.False(t, ok)
}
