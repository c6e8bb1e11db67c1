// Command jn-plugin-zstd is the bundled compression plugin for the
// ".zst" suffix, grounded on klauspost/compress appearing in the
// retrieval pack (an indirect Prometheus dependency of kraklabs-cie) —
// its zstd codec is the one third-party package in the pack capable of
// both directions of this format.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/jnpipe/jn/pkg/pluginsdk"
)

func main() {
	inv := pluginsdk.Parse(os.Args[1:])

	if inv.MetaRequested {
		if err := pluginsdk.EmitMetadata(os.Stdout, metadata()); err != nil {
			fmt.Fprintln(os.Stderr, "zstd: emit metadata:", err)
			os.Exit(1)
		}
		return
	}

	if inv.Mode != "raw" {
		fmt.Fprintf(os.Stderr, "zstd: unsupported mode %q\n", inv.Mode)
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
		fmt.Fprintln(os.Stderr, "zstd:", err)
		os.Exit(1)
	}
}

func metadata() pluginsdk.Metadata {
	return pluginsdk.Metadata{
		Name:         "zstd",
		Version:      "1.0.0",
		Role:         "compression",
		Modes:        []string{"raw"},
		Matches:      []string{`\.zst$`},
		ConfigParams: []string{"direction"},
	}
}

func decompress(r io.Reader, w io.Writer) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("open zstd stream: %w", err)
	}
	defer zr.Close()
	_, err = io.Copy(w, zr)
	return err
}

func compress(r io.Reader, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("open zstd writer: %w", err)
	}
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
