package pluginsdk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExtractsModeAndConfig(t *testing.T) {
	t.Parallel()

	inv := Parse([]string{"--mode=read", "--delimiter=,", "data.csv"})
	require.Equal(t, "read", inv.Mode)
	require.Equal(t, map[string]string{"delimiter": ","}, inv.Config)
	require.Equal(t, "data.csv", inv.Positional)
	require.False(t, inv.MetaRequested)
}

func TestParseRecognizesMetaFlag(t *testing.T) {
	t.Parallel()

	inv := Parse([]string{"--jn-meta"})
	require.True(t, inv.MetaRequested)
}

func TestEmitMetadataWritesJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := EmitMetadata(&buf, Metadata{Name: "csv", Role: "format", Modes: []string{"read", "write"}})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"name":"csv"`)
	require.Contains(t, buf.String(), `"role":"format"`)
}
