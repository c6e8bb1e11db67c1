package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSupportsMode(t *testing.T) {
	t.Parallel()

	d := &Descriptor{Modes: map[Mode]bool{ModeRead: true}}
	require.True(t, d.SupportsMode(ModeRead))
	require.False(t, d.SupportsMode(ModeWrite))
}

func TestMatchesAddressLongestPatternWins(t *testing.T) {
	t.Parallel()

	d := &Descriptor{Patterns: []string{`\.csv$`, `data\.csv$`}}
	matched, longest := d.MatchesAddress("data.csv")
	require.True(t, matched)
	require.Equal(t, len(`data\.csv$`), longest)
}

func TestMatchesAddressSkipsInvalidPattern(t *testing.T) {
	t.Parallel()

	d := &Descriptor{Patterns: []string{`(unclosed`, `\.json$`}}
	matched, _ := d.MatchesAddress("records.json")
	require.True(t, matched)
}

func TestMatchesAddressNoMatch(t *testing.T) {
	t.Parallel()

	d := &Descriptor{Patterns: []string{`\.csv$`}}
	matched, longest := d.MatchesAddress("records.json")
	require.False(t, matched)
	require.Equal(t, 0, longest)
}

func TestRolePrecedenceOrdering(t *testing.T) {
	t.Parallel()

	require.Less(t, RolePrecedence(RoleProtocol), RolePrecedence(RoleFormat))
	require.Less(t, RolePrecedence(RoleFormat), RolePrecedence(RoleFilter))
	require.Less(t, RolePrecedence(RoleFilter), RolePrecedence(RoleCompression))
}
