// Command jn-plugin-gzip is the bundled compression plugin for the ".gz"
// suffix (spec §4.2.4 "compression boundary"). gzip is the one
// compression format no example repo in the retrieval pack reaches past
// the standard library for, so this plugin uses compress/gzip directly
// (see DESIGN.md).
package main

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/jnpipe/jn/pkg/pluginsdk"
)

func main() {
	inv := pluginsdk.Parse(os.Args[1:])

	if inv.MetaRequested {
		if err := pluginsdk.EmitMetadata(os.Stdout, metadata()); err != nil {
			fmt.Fprintln(os.Stderr, "gzip: emit metadata:", err)
			os.Exit(1)
		}
		return
	}

	if inv.Mode != "raw" {
		fmt.Fprintf(os.Stderr, "gzip: unsupported mode %q\n", inv.Mode)
		os.Exit(2)
	}

	var err error
	switch inv.Config["direction"] {
	case "compress":
		err = compress(os.Stdin, os.Stdout)
	default:
		err = decompress(os.Stdin, os.Stdout)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "gzip:", err)
		os.Exit(1)
	}
}

func metadata() pluginsdk.Metadata {
	return pluginsdk.Metadata{
		Name:         "gzip",
		Version:      "1.0.0",
		Role:         "compression",
		Modes:        []string{"raw"},
		Matches:      []string{`\.gz$`},
		ConfigParams: []string{"direction"},
	}
}

func decompress(r io.Reader, w io.Writer) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()
	_, err = io.Copy(w, zr)
	return err
}

func compress(r io.Reader, w io.Writer) error {
	zw := gzip.NewWriter(w)
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
