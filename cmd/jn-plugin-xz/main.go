// Command jn-plugin-xz is the bundled compression plugin for the ".xz"
// suffix, grounded on the retrieval pack's own use of ulikunitz/xz for xz
// decoding (jmylchreest-tvarr's m3u/xmltv parsers).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ulikunitz/xz"

	"github.com/jnpipe/jn/pkg/pluginsdk"
)

func main() {
	inv := pluginsdk.Parse(os.Args[1:])

	if inv.MetaRequested {
		if err := pluginsdk.EmitMetadata(os.Stdout, metadata()); err != nil {
			fmt.Fprintln(os.Stderr, "xz: emit metadata:", err)
			os.Exit(1)
		}
		return
	}

	if inv.Mode != "raw" {
		fmt.Fprintf(os.Stderr, "xz: unsupported mode %q\n", inv.Mode)
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
		fmt.Fprintln(os.Stderr, "xz:", err)
		os.Exit(1)
	}
}

func metadata() pluginsdk.Metadata {
	return pluginsdk.Metadata{
		Name:         "xz",
		Version:      "1.0.0",
		Role:         "compression",
		Modes:        []string{"raw"},
		Matches:      []string{`\.xz$`},
		ConfigParams: []string{"direction"},
	}
}

func decompress(r io.Reader, w io.Writer) error {
	zr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("open xz stream: %w", err)
	}
	_, err = io.Copy(w, zr)
	return err
}

func compress(r io.Reader, w io.Writer) error {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("open xz writer: %w", err)
	}
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
