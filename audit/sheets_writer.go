package audit

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"
)

// SheetsWriter appends audit rows through the Sheets API
type SheetsWriter struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewSheetsWriter creates a writer for one spreadsheet
func NewSheetsWriter(service *sheets.Service, spreadsheetID string) *SheetsWriter {
	return &SheetsWriter{
		service:       service,
		spreadsheetID: spreadsheetID,
	}
}

// AppendRow appends row after the last filled row of sheet
func (w *SheetsWriter) AppendRow(ctx context.Context, sheet string, row Row) error {
	values := &sheets.ValueRange{Values: [][]interface{}{row.Values()}}

	_, err := w.service.Spreadsheets.Values.
		Append(w.spreadsheetID, sheetRange(sheet), values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row to sheet %q: %w", sheet, err)
	}
	return nil
}

// sheetRange quotes the worksheet name for A1 notation
func sheetRange(sheet string) string {
	return fmt.Sprintf("'%s'!A1", strings.ReplaceAll(sheet, "'", "''"))
}
