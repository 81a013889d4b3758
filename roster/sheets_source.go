package roster

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"
)

// SheetsSource reads nicknames from one column of a Google spreadsheet
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
	column        int
	headerRows    int
}

// NewSheetsSource creates a source reading readRange (for example "Roster!A:B").
// column is zero-based within the range; headerRows leading rows are skipped.
func NewSheetsSource(service *sheets.Service, spreadsheetID, readRange string, column, headerRows int) *SheetsSource {
	if column < 0 {
		column = 0
	}
	if headerRows < 0 {
		headerRows = 0
	}
	return &SheetsSource{
		service:       service,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		column:        column,
		headerRows:    headerRows,
	}
}

// FetchNicknames reads the configured range
func (s *SheetsSource) FetchNicknames(ctx context.Context) ([]string, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster range %s: %w", s.readRange, err)
	}
	return extractNicknames(resp.Values, s.column, s.headerRows), nil
}

func extractNicknames(rows [][]interface{}, column, headerRows int) []string {
	var nicknames []string
	for i, row := range rows {
		if i < headerRows || len(row) <= column {
			continue
		}
		value := strings.TrimSpace(fmt.Sprint(row[column]))
		if value == "" {
			continue
		}
		nicknames = append(nicknames, value)
	}
	return nicknames
}
