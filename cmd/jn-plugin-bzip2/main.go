// Command jn-plugin-bzip2 is the bundled compression plugin for the
// ".bz2" suffix. It mirrors the split the retrieval pack itself uses:
// jmylchreest-tvarr decodes bzip2 with the standard library's
// compress/bzip2 (which has no writer) and only reaches for
// github.com/dsnet/compress/bzip2 where a writer is actually needed (its
// own test fixtures). JN has a genuine compress direction, so it follows
// the same split instead of picking one library for both.
package main

import (
	stdbzip2 "compress/bzip2"
	"fmt"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"

	"github.com/jnpipe/jn/pkg/pluginsdk"
)

func main() {
	inv := pluginsdk.Parse(os.Args[1:])

	if inv.MetaRequested {
		if err := pluginsdk.EmitMetadata(os.Stdout, metadata()); err != nil {
			fmt.Fprintln(os.Stderr, "bzip2: emit metadata:", err)
			os.Exit(1)
		}
		return
	}

	if inv.Mode != "raw" {
		fmt.Fprintf(os.Stderr, "bzip2: unsupported mode %q\n", inv.Mode)
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
		fmt.Fprintln(os.Stderr, "bzip2:", err)
		os.Exit(1)
	}
}

func metadata() pluginsdk.Metadata {
	return pluginsdk.Metadata{
		Name:         "bzip2",
		Version:      "1.0.0",
		Role:         "compression",
		Modes:        []string{"raw"},
		Matches:      []string{`\.bz2$`},
		ConfigParams: []string{"direction"},
	}
}

func decompress(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, stdbzip2.NewReader(r))
	return err
}

func compress(r io.Reader, w io.Writer) error {
	zw, err := bzip2.NewWriter(w, nil)
	if err != nil {
		return fmt.Errorf("open bzip2 writer: %w", err)
	}
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
