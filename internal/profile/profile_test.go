package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProfileDirPrefersProject(t *testing.T) {
	t.Parallel()
	src := Source{ProjectDir: "/proj", UserDir: "/home/user/.jn/profiles"}
	require.Equal(t, filepath.Join("/proj", "profiles", "weather"), src.ProfileDir("weather"))
}

func TestProfileDirFallsBackToUser(t *testing.T) {
	t.Parallel()
	src := Source{UserDir: "/home/user/.jn/profiles"}
	require.Equal(t, filepath.Join("/home/user/.jn/profiles", "weather"), src.ProfileDir("weather"))
}

func TestProfileDirEmptyWhenNeitherConfigured(t *testing.T) {
	t.Parallel()
	require.Equal(t, "", Source{}.ProfileDir("weather"))
}
