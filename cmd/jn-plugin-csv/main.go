// Command jn-plugin-csv is the bundled CSV format plugin (spec §4.2.2
// selection rule 4, pattern `\.csv$`). No third-party CSV library appears
// anywhere in the retrieval pack, and encoding/csv is sufficient for this
// scope, so this plugin is one of the few places JN reaches for the
// standard library instead of an ecosystem dependency (see DESIGN.md).
package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/jnpipe/jn/pkg/pluginsdk"
)

func main() {
	inv := pluginsdk.Parse(os.Args[1:])

	if inv.MetaRequested {
		if err := pluginsdk.EmitMetadata(os.Stdout, metadata()); err != nil {
			fmt.Fprintln(os.Stderr, "csv: emit metadata:", err)
			os.Exit(1)
		}
		return
	}

	delimiter := delimiterRune(inv.Config["delimiter"])
	header := inv.Config["header"] != "false"

	var err error
	switch inv.Mode {
	case "read":
		err = readCSV(os.Stdin, os.Stdout, delimiter, header)
	case "write":
		err = writeCSV(os.Stdin, os.Stdout, delimiter, header)
	default:
		fmt.Fprintf(os.Stderr, "csv: unsupported mode %q\n", inv.Mode)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "csv:", err)
		os.Exit(1)
	}
}

func metadata() pluginsdk.Metadata {
	return pluginsdk.Metadata{
		Name:         "csv",
		Version:      "1.0.0",
		Role:         "format",
		Modes:        []string{"read", "write"},
		Matches:      []string{`\.csv$`},
		ConfigParams: []string{"delimiter", "header"},
	}
}

func delimiterRune(s string) rune {
	if s == "" {
		return ','
	}
	return []rune(s)[0]
}

// readCSV parses the CSV on r and emits one NDJSON object per data row,
// keyed by the header row unless header=false, in which case columns are
// named "col1", "col2", ….
func readCSV(r io.Reader, w io.Writer, delimiter rune, hasHeader bool) error {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	var columns []string
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("parse row: %w", err)
		}

		if first {
			first = false
			if hasHeader {
				columns = append([]string(nil), row...)
				continue
			}
			columns = syntheticColumns(len(row))
		}

		record := make(map[string]string, len(row))
		for i, v := range row {
			key := fmt.Sprintf("col%d", i+1)
			if i < len(columns) {
				key = columns[i]
			}
			record[key] = v
		}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}
	return bw.Flush()
}

func syntheticColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = "col" + strconv.Itoa(i+1)
	}
	return cols
}

// writeCSV reads NDJSON records from r and emits them as CSV on w. The
// header row is the sorted key set of the first record (spec §3.1
// "Stage.config serialized ... in deterministic order" — the same
// determinism principle applied here to column order).
func writeCSV(r io.Reader, w io.Writer, delimiter rune, withHeader bool) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	cw.Comma = delimiter
	defer cw.Flush()

	dec := json.NewDecoder(bufio.NewReader(r))

	var columns []string
	for {
		var record map[string]interface{}
		if err := dec.Decode(&record); err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("decode record: %w", err)
		}

		if columns == nil {
			columns = sortedKeys(record)
			if withHeader {
				if err := cw.Write(columns); err != nil {
					return fmt.Errorf("write header: %w", err)
				}
			}
		}

		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = stringify(record[col])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return bw.Flush()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
