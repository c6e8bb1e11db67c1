package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyValidLinesPassesThroughValidJSON(t *testing.T) {
	t.Parallel()

	in := `{"a":1}
{"b":2}
`
	var out bytes.Buffer
	require.NoError(t, copyValidLines(strings.NewReader(in), &out))
	require.Equal(t, in, out.String())
}

func TestCopyValidLinesSkipsBlankLines(t *testing.T) {
	t.Parallel()

	in := "{\"a\":1}\n\n{\"b\":2}\n"
	var out bytes.Buffer
	require.NoError(t, copyValidLines(strings.NewReader(in), &out))
	require.Equal(t, "{\"a\":1}\n{\"b\":2}\n", out.String())
}

func TestCopyValidLinesRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	in := "not json\n"
	var out bytes.Buffer
	require.Error(t, copyValidLines(strings.NewReader(in), &out))
}
