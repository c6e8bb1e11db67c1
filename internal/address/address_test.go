package address

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleFile(t *testing.T) {
	t.Parallel()

	addr, err := Parse("data.csv")
	require.NoError(t, err)
	require.Equal(t, KindFile, addr.Kind)
	require.Equal(t, "data.csv", addr.Base)
	require.Empty(t, addr.FormatOverride)
	require.Equal(t, CompressionNone, addr.Compression)
	require.Empty(t, addr.Parameters)
}

func TestParseCompressedFile(t *testing.T) {
	t.Parallel()

	addr, err := Parse("data.csv.gz?delimiter=,")
	require.NoError(t, err)
	require.Equal(t, KindFile, addr.Kind)
	require.Equal(t, "data.csv", addr.Base)
	require.Equal(t, CompressionGzip, addr.Compression)
	require.Equal(t, ",", addr.Parameters["delimiter"])
}

func TestParseFormatOverride(t *testing.T) {
	t.Parallel()

	addr, err := Parse("-~ndjson")
	require.NoError(t, err)
	require.Equal(t, KindStdio, addr.Kind)
	require.Equal(t, "ndjson", addr.FormatOverride)
}

func TestParseProfileAddress(t *testing.T) {
	t.Parallel()

	addr, err := Parse("@weather/current?city=paris")
	require.NoError(t, err)
	require.Equal(t, KindProfile, addr.Kind)
	require.Equal(t, "@weather/current", addr.Base)
	require.Equal(t, "paris", addr.Parameters["city"])
}

func TestParsePluginAddress(t *testing.T) {
	t.Parallel()

	addr, err := Parse("@csv")
	require.NoError(t, err)
	require.Equal(t, KindPlugin, addr.Kind)
}

func TestParseURLWithSchemeAndFormatOverride(t *testing.T) {
	t.Parallel()

	addr, err := Parse("http://host/path~json?limit=10")
	require.NoError(t, err)
	require.Equal(t, KindURL, addr.Kind)
	require.Equal(t, "http://host/path", addr.Base)
	require.Equal(t, "json", addr.FormatOverride)
	require.Equal(t, "10", addr.Parameters["limit"])
}

func TestParseURLWithoutPathHasNoOverride(t *testing.T) {
	t.Parallel()

	addr, err := Parse("http://host")
	require.NoError(t, err)
	require.Equal(t, KindURL, addr.Kind)
	require.Empty(t, addr.FormatOverride)
}

func TestParseStdio(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"-", "stdin", "stdout"} {
		addr, err := Parse(raw)
		require.NoError(t, err)
		require.Equalf(t, KindStdio, addr.Kind, "raw=%s", raw)
	}
}

func TestParsePercentDecodesParameterValues(t *testing.T) {
	t.Parallel()

	addr, err := Parse("data.csv?name=a%20b")
	require.NoError(t, err)
	require.Equal(t, "a b", addr.Parameters["name"])
}

func TestParseDuplicateParameterLastWins(t *testing.T) {
	t.Parallel()

	addr, err := Parse("data.csv?k=1&k=2")
	require.NoError(t, err)
	require.Equal(t, "2", addr.Parameters["k"])
}

func TestParseMalformedQueryIsInvalidAddress(t *testing.T) {
	t.Parallel()

	_, err := Parse("data.csv?nope")
	require.Error(t, err)
}

func TestParseInvalidPercentEscapeIsInvalidAddress(t *testing.T) {
	t.Parallel()

	_, err := Parse("data.csv?k=%zz")
	require.Error(t, err)
}

func TestParseTotalityNeverPanics(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "~", "@", "@/", "???", "%", "a~b~c", "gz.gz.gz"}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			_, _ = Parse(in)
		})
	}
}
