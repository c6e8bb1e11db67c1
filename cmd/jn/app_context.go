package main

import (
	"github.com/spf13/cobra"

	"github.com/jnpipe/jn/internal/logger"
	"github.com/jnpipe/jn/internal/plugin"
	"github.com/jnpipe/jn/internal/profile"
)

// AppContext bundles the long-lived services every pipeline-shape
// subcommand needs: the frozen plugin Registry, the structured logger,
// and the profile directory source (spec §4.1, §6.1). Built once in
// main and threaded through every newXCmd constructor, mirroring the
// teacher's AppContext.
type AppContext struct {
	Logger     *logger.Logger
	Registry   *plugin.Registry
	Advisories []plugin.Advisory
	Profiles   profile.Source
	Home       string
	WorkingDir string
	ProjectDir string
}

// LoggerFor derives a component-scoped child logger.
func (a *AppContext) LoggerFor(component string) *logger.Logger {
	if a == nil || a.Logger == nil {
		return nil
	}
	return a.Logger.With("component", component)
}

// logAdvisories reports every discovery advisory (spec §4.1 "Errors") to
// the CLI's logger at startup, once, instead of silently dropping them.
func (a *AppContext) logAdvisories(cmd *cobra.Command) {
	log := a.LoggerFor("discovery")
	if log == nil {
		return
	}
	for _, adv := range a.Advisories {
		log.Warn("discovery advisory", "code", adv.Code, "plugin", adv.Plugin, "detail", adv.Detail)
	}
}
