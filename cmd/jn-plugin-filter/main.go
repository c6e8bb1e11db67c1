// Command jn-plugin-filter is the bundled filter plugin the resolver
// synthesizes a stage for whenever leftover address parameters survive
// config classification (spec §4.2.5). It receives every leftover
// parameter as "--key=value" and keeps only NDJSON records whose field
// "key" stringifies to "value", ANDing across every supplied key.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/jnpipe/jn/pkg/pluginsdk"
)

func main() {
	inv := pluginsdk.Parse(os.Args[1:])

	if inv.MetaRequested {
		if err := pluginsdk.EmitMetadata(os.Stdout, metadata()); err != nil {
			fmt.Fprintln(os.Stderr, "filter: emit metadata:", err)
			os.Exit(1)
		}
		return
	}

	if inv.Mode != "filter" {
		fmt.Fprintf(os.Stderr, "filter: unsupported mode %q\n", inv.Mode)
		os.Exit(2)
	}

	program, err := compilePredicate(inv.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "filter: compile predicate:", err)
		os.Exit(1)
	}

	if err := run(os.Stdin, os.Stdout, program); err != nil {
		fmt.Fprintln(os.Stderr, "filter:", err)
		os.Exit(1)
	}
}

func metadata() pluginsdk.Metadata {
	return pluginsdk.Metadata{
		Name:              "filter",
		Version:           "1.0.0",
		Role:              "filter",
		Modes:             []string{"filter"},
		ManagesParameters: true,
	}
}

// compilePredicate builds a single expr-lang expression ANDing one
// equality clause per config key in sorted key order, e.g.
// {"country":"fr","active":"true"} becomes
// `string(record["active"]) == "true" && string(record["country"]) == "fr"`. An
// empty config set compiles to the always-true literal.
func compilePredicate(config map[string]string) (*vm.Program, error) {
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf("string(record[%q]) == %q", k, config[k]))
	}

	exprStr := "true"
	if len(clauses) > 0 {
		exprStr = strings.Join(clauses, " && ")
	}

	return expr.Compile(exprStr, expr.Env(map[string]interface{}{
		"record": map[string]interface{}{},
	}))
}

func run(r io.Reader, w io.Writer, program *vm.Program) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record map[string]interface{}
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}

		out, err := expr.Run(program, map[string]interface{}{"record": record})
		if err != nil {
			return fmt.Errorf("evaluate predicate: %w", err)
		}

		keep, ok := out.(bool)
		if !ok || !keep {
			continue
		}

		if _, err := bw.Write(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return scanner.Err()
}
