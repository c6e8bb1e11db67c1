package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jnpipe/jn/internal/plugin"
)

// newFilterCmd implements the "filter" pipeline shape (spec §6.4). It is
// sugar over resolve's own synthesized-filter-stage mechanism (§4.2.5):
// every "key=value" predicate becomes a query parameter on the source
// address, so a format plugin that doesn't declare it as a config
// parameter causes the resolver to append a filter stage automatically.
func newFilterCmd(app *AppContext, flags *rootFlags) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "filter <key=value>...",
		Short: "keep only records whose fields match the given key=value predicates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := addressWithPredicates(address, args)
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), app, flags, addr, plugin.ModeRead)
		},
	}

	cmd.Flags().StringVar(&address, "address", "-", "source address to filter (defaults to stdin as NDJSON)")
	return cmd
}

func addressWithPredicates(address string, predicates []string) (string, error) {
	values := url.Values{}
	for _, p := range predicates {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return "", fmt.Errorf("malformed filter predicate %q (want key=value)", p)
		}
		values.Set(key, value)
	}

	sep := "?"
	if strings.Contains(address, "?") {
		sep = "&"
	}
	return address + sep + values.Encode(), nil
}
