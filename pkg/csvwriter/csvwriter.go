// Package csvwriter streams one CSV file per target table (spec §4.J,
// §6): UTF-8, LF line endings, no BOM, an empty field for null, ISO-8601
// timestamps and fixed-scale decimals passed through verbatim (the
// generators already format them that way — spec §6's "fixed-scale
// decimals" and "ISO-8601 timestamps" are a generator-output contract,
// not a writer-side reformatting step).
//
// This is the one component built directly on the standard library: the
// streaming/no-buffering requirement is exactly what encoding/csv.Writer
// already gives for free (it writes one record at a time through a
// bufio.Writer, never holding the full row set in memory), and nothing in
// the example pack wraps a CSV writer with anything this package would
// need beyond that.
package csvwriter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/schemamodel"
)

// TableWriter streams rows for a single table to <schema>.<table>.csv under
// outDir, writing the header (in schema column order) on construction.
type TableWriter struct {
	file    *os.File
	buf     *bufio.Writer
	csv     *csv.Writer
	columns []string
	written int64
}

// Open creates <outDir>/<schema>.<table>.csv and writes its header.
func Open(outDir, schema, table string, columns []schemamodel.Column) (*TableWriter, error) {
	path := filepath.Join(outDir, fmt.Sprintf("%s.%s.csv", schema, table))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csvwriter: create %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	w := csv.NewWriter(buf)
	// csv.Writer defaults to CRLF-free "\n" terminators already when
	// UseCRLF is left false — the zero value is exactly what spec §6 wants.

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	if err := w.Write(names); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csvwriter: write header for %s.%s: %w", schema, table, err)
	}

	return &TableWriter{file: f, buf: buf, csv: w, columns: names}, nil
}

// WriteRow emits one record, rendering each column's value through Format.
// Columns present in the header but absent from row (should not happen for
// a fully-resolved row, but defended against here) are emitted empty.
func (w *TableWriter) WriteRow(row map[string]gencontext.Value) error {
	record := make([]string, len(w.columns))
	for i, name := range w.columns {
		record[i] = Format(row[name])
	}
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("csvwriter: write row: %w", err)
	}
	w.written++
	return nil
}

// Flush pushes any buffered record data through to the underlying file
// without closing it, so a caller can inspect BytesWritten mid-stream.
func (w *TableWriter) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes and closes the underlying file.
func (w *TableWriter) Close() error {
	if err := w.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// RowsWritten reports how many data rows (excluding the header) have been
// written so far.
func (w *TableWriter) RowsWritten() int64 { return w.written }

// BytesWritten reports the file's current size on disk; call Flush first
// for an up-to-date number.
func (w *TableWriter) BytesWritten() (int64, error) {
	info, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Format renders a generator's output value as one CSV field: nil becomes
// the empty string (null), everything else uses its already-generator-
// formatted string form or Go's default scalar formatting.
func Format(v gencontext.Value) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
