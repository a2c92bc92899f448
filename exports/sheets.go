package exports

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// TableWriter publishes a table to an external destination.
type TableWriter interface {
	WriteTable(ctx context.Context, t Table) error
}

// SheetsWriter replaces the contents of one tab of a spreadsheet.
type SheetsWriter struct {
	srv           *sheets.Service
	spreadsheetID string
	sheet         string
}

// NewSheetsWriter accepts service-account credentials as raw JSON or as a file path.
func NewSheetsWriter(ctx context.Context, credentials, spreadsheetID, sheet string) (*SheetsWriter, error) {
	creds := option.WithCredentialsFile(credentials)
	if strings.HasPrefix(strings.TrimSpace(credentials), "{") {
		creds = option.WithCredentialsJSON([]byte(credentials))
	}
	srv, err := sheets.NewService(ctx, creds, option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &SheetsWriter{srv: srv, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

// sheetValues converts a table, header first, into the API's cell matrix.
func sheetValues(t Table) [][]interface{} {
	values := make([][]interface{}, 0, len(t.Rows)+1)
	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	values = append(values, header)
	for _, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, c := range row {
			cells[i] = c
		}
		values = append(values, cells)
	}
	return values
}

func (s *SheetsWriter) WriteTable(ctx context.Context, t Table) error {
	if _, err := s.srv.Spreadsheets.Values.Clear(s.spreadsheetID, s.sheet, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear sheet %s: %w", s.sheet, err)
	}
	vr := &sheets.ValueRange{Values: sheetValues(t)}
	if _, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, s.sheet+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to write sheet %s: %w", s.sheet, err)
	}
	return nil
}
