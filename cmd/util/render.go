package util

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/cockroachdb/errors"
)

// Columns returns the field names of docs in order of first appearance
func Columns(docs []document.Document) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, d := range docs {
		for _, name := range d.Names() {
			if !seen[name] {
				seen[name] = true
				cols = append(cols, name)
			}
		}
	}
	return cols
}

// Cell renders a single value for the table output. Text is printed
// unquoted, nested values as JSON.
func Cell(v document.Value, ok bool) string {
	if !ok {
		return "-"
	}
	if s, isText := v.AsText(); isText {
		return s
	}
	return v.String()
}

// RenderTable writes docs as an aligned table with one column per field
func RenderTable(w io.Writer, docs []document.Document, columns []string) error {
	if len(columns) == 0 {
		columns = Columns(docs)
	}
	if len(docs) == 0 || len(columns) == 0 {
		_, err := fmt.Fprintln(w, "(no documents)")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	row := make([]string, len(columns))
	for _, d := range docs {
		for i, c := range columns {
			v, ok := d.Get(c)
			row[i] = Cell(v, ok)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// RenderJSON writes docs as a JSON array with one document per line
func RenderJSON(w io.Writer, docs []document.Document) error {
	if len(docs) == 0 {
		_, err := fmt.Fprintln(w, "[]")
		return err
	}
	var sb strings.Builder
	sb.WriteString("[\n")
	for i, d := range docs {
		b, err := d.MarshalJSON()
		if err != nil {
			return errors.Wrapf(err, "document %d", i+1)
		}
		sb.WriteString("  ")
		sb.Write(b)
		if i < len(docs)-1 {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("]\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// RenderReport writes the outcome of loading a data file
func RenderReport(w io.Writer, r LoadReport) error {
	_, err := fmt.Fprintf(w, "loaded %d documents into %q: %d inserted, %d updated, %d rejected\n",
		r.Total, r.Collection, r.Inserted, r.Updated, len(r.Rejected))
	if err != nil {
		return err
	}
	for _, rej := range r.Rejected {
		if _, err := fmt.Fprintf(w, "  #%d %s\n", rej.Index, DescribeError(rej.Err)); err != nil {
			return err
		}
	}
	return nil
}

// DescribeError renders engine errors as "Code (field): message" and any
// other error with its message
func DescribeError(err error) string {
	var e *common.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	out := e.Code.String()
	if e.Field != "" {
		out += " (" + e.Field + ")"
	}
	if e.Msg != "" {
		out += ": " + e.Msg
	}
	return out
}
