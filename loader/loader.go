// Package loader reads Mythic Tools collection exports.
package loader

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aluiziolira/mythic-to-moxfield/models"
)

// Column names of a Mythic Tools export.
const (
	ColumnCardName        = "Card Name"
	ColumnQuantity        = "Quantity"
	ColumnSetCode         = "Set Code"
	ColumnCollectorNumber = "Collector Number"
	ColumnLanguage        = "Language"
	ColumnFinish          = "Finish"
	ColumnCondition       = "Condition"
)

const utf8BOM = "\ufeff"

// Load reads every data row of the export at path, in file order.
func Load(path string) ([]*models.SourceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return records, nil
}

// Read parses an export from r. Rows are not validated against the header:
// missing cells become empty strings and extra cells are ignored.
func Read(r io.Reader) ([]*models.SourceRecord, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	index := headerIndex(rows[0])
	records := make([]*models.SourceRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		field := func(column string) string {
			i, ok := index[column]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		records = append(records, &models.SourceRecord{
			Quantity:        field(ColumnQuantity),
			CardName:        field(ColumnCardName),
			SetCode:         field(ColumnSetCode),
			CollectorNumber: field(ColumnCollectorNumber),
			Language:        field(ColumnLanguage),
			Finish:          field(ColumnFinish),
			Condition:       field(ColumnCondition),
		})
	}
	return records, nil
}

// headerIndex maps column names to positions. The first occurrence of a
// duplicated name wins.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	return index
}
