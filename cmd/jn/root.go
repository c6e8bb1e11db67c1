package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jnpipe/jn/internal/config"
	"github.com/jnpipe/jn/internal/plugin"
	"github.com/jnpipe/jn/internal/profile"
)

func newRootCmd(app *AppContext) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "jn",
		Short:         "jn composes data sources, formats, filters, and sinks into OS-piped pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupRegistry(cmd.Context(), app, flags)
		},
	}

	cmd.PersistentFlags().StringArrayVar(&flags.pluginDirs, "plugin-dir", nil, "plugin search directory (repeatable, highest priority first)")
	cmd.PersistentFlags().StringArrayVar(&flags.envPairs, "env", nil, "template variable K=V for ${env.K} substitution (repeatable)")
	cmd.PersistentFlags().StringArrayVar(&flags.paramPairs, "param", nil, "template variable k=v for ${params.k} substitution (repeatable)")
	cmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 0, "wall-clock deadline for the pipeline (0 disables)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "accepted but not read: logging stays at info level")
	cmd.PersistentFlags().BoolVar(&flags.humanLogs, "human-logs", term.IsTerminal(int(os.Stderr.Fd())), "accepted but not read: logs are human-readable exactly when stderr is a terminal, JSON otherwise")

	cmd.AddCommand(newCatCmd(app, flags))
	cmd.AddCommand(newPutCmd(app, flags))
	cmd.AddCommand(newFilterCmd(app, flags))
	cmd.AddCommand(newHeadCmd(app, flags))
	cmd.AddCommand(newTailCmd(app, flags))
	cmd.AddCommand(newJoinCmd(app, flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupRegistry builds the plugin Registry from the resolved search paths
// exactly once per invocation (spec §4.1 build_registry), caching the
// result through internal/plugin's snapshot cache.
func setupRegistry(ctx context.Context, app *AppContext, flags *rootFlags) error {
	if app.Registry != nil {
		return nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	app.WorkingDir = wd
	app.ProjectDir = detectProjectDir(wd)
	app.Home = os.Getenv("JN_HOME")

	searchPaths := flags.pluginDirs
	if len(searchPaths) == 0 {
		searchPaths = defaultSearchPaths(app.WorkingDir, app.ProjectDir)
	}

	cfg := &config.Config{
		Home:       app.Home,
		WorkingDir: app.WorkingDir,
		ProjectDir: app.ProjectDir,
		PluginDirs: append([]string(nil), searchPaths...),
		Timeout:    flags.timeout,
	}
	if cfg.Home == "" {
		cfg.Home = app.WorkingDir // permissive default when JN_HOME is unset
	}
	if len(cfg.PluginDirs) == 0 {
		cfg.PluginDirs = []string{filepath.Join(app.WorkingDir, ".jn", "plugins")}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cacheFile := filepath.Join(os.TempDir(), "jn-registry-cache.json")
	registry, advisories := plugin.BuildCached(ctx, cfg.PluginDirs, plugin.NewScanner(), plugin.NewCache(cacheFile))

	app.Registry = registry
	app.Advisories = advisories
	app.Profiles = profile.Source{ProjectDir: app.ProjectDir, UserDir: userProfileDir()}

	app.logAdvisories(nil)
	return nil
}

func userProfileDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".jn", "profiles")
}

