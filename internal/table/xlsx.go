package table

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const xlsxSheet = "Sheet1"

// loadXLSX reads the first sheet of a workbook. The first row is the header.
func loadXLSX(path string) (*Table, error) {
	xlFile, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "table: open xlsx %s", path)
	}
	if len(xlFile.Sheets) == 0 {
		return nil, eris.New("table: xlsx has no sheets")
	}

	sheet := xlFile.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("table: xlsx sheet is empty")
	}

	header := rowStrings(sheet.Rows[0])
	width := len(header)
	for width > 0 && header[width-1] == "" {
		width--
	}
	header = header[:width]

	var rows [][]string
	for _, r := range sheet.Rows[1:] {
		if r == nil {
			continue
		}
		record := rowStrings(r)
		if len(record) > width {
			record = record[:width]
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, record)
	}
	return New(header, rows), nil
}

// saveXLSX writes the table as a single-sheet workbook with string cells.
func saveXLSX(path string, t *Table) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(xlsxSheet)
	if err != nil {
		return eris.Wrap(err, "table: add xlsx sheet")
	}

	addRow := func(values []string) {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	addRow(t.Header)
	for _, r := range t.Rows {
		addRow(r)
	}

	if err := file.Save(path); err != nil {
		return eris.Wrap(err, "table: save xlsx")
	}
	return nil
}

func rowStrings(r *xlsx.Row) []string {
	out := make([]string, len(r.Cells))
	for i, cell := range r.Cells {
		out[i] = strings.TrimSpace(cell.String())
	}
	return out
}

func isBlank(record []string) bool {
	for _, v := range record {
		if v != "" {
			return false
		}
	}
	return true
}
