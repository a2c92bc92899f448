package exports

import (
	"encoding/csv"
	"io"
)

// WriteCSV writes the header row then every row, quoting per RFC 4180.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
