// Command jn-plugin-ndjson is the bundled NDJSON identity format plugin
// (spec §4.2.2 selection rule 5's default). It is a separate process
// invoked only through the subprocess contract in spec §6.1 — the core
// never imports this package.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jnpipe/jn/pkg/pluginsdk"
)

func main() {
	inv := pluginsdk.Parse(os.Args[1:])

	if inv.MetaRequested {
		if err := pluginsdk.EmitMetadata(os.Stdout, metadata()); err != nil {
			fmt.Fprintln(os.Stderr, "ndjson: emit metadata:", err)
			os.Exit(1)
		}
		return
	}

	switch inv.Mode {
	case "read", "write":
		if err := copyValidLines(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "ndjson:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "ndjson: unsupported mode %q\n", inv.Mode)
		os.Exit(2)
	}
}

func metadata() pluginsdk.Metadata {
	return pluginsdk.Metadata{
		Name:    "ndjson",
		Version: "1.0.0",
		Role:    "format",
		Modes:   []string{"read", "write"},
		Matches: []string{`\.ndjson$`, `\.jsonl$`, `^ndjson$`},
	}
}

// copyValidLines passes each line through unchanged, but rejects the
// stream the moment a line fails to parse as JSON — NDJSON both read and
// write directions are the same identity transform, since a stage's own
// stdin is already NDJSON here (unlike a real formatted source).
func copyValidLines(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return fmt.Errorf("invalid NDJSON line: %s", truncate(line, 120))
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

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
