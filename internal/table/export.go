package table

import (
	"bufio"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/petition-cli/internal/model"
)

// ExportFileName is the suggested download name, without extension.
const ExportFileName = "uk_parliament_petitions"

// SheetName is the worksheet name used by WriteXLSX.
const SheetName = "Petitions"

// WriteCSV writes a header row and one line per row with every field
// quoted.
func WriteCSV(w io.Writer, rows []model.Row) error {
	bw := bufio.NewWriter(w)

	header := make([]string, len(Columns))
	for i := range Columns {
		header[i] = Columns[i].Header
	}
	if err := writeQuoted(bw, header); err != nil {
		return eris.Wrap(err, "csv export: write header")
	}

	record := make([]string, len(Columns))
	for i := range rows {
		for j := range Columns {
			record[j] = Columns[j].Format(&rows[i])
		}
		if err := writeQuoted(bw, record); err != nil {
			return eris.Wrap(err, "csv export: write row")
		}
	}
	return eris.Wrap(bw.Flush(), "csv export: flush")
}

func writeQuoted(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(f, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// WriteXLSX writes the same columns as WriteCSV to a single worksheet.
// Numbers and timestamps are typed cells; missing values are blank.
func WriteXLSX(w io.Writer, rows []model.Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx export: add sheet")
	}

	header := sheet.AddRow()
	for i := range Columns {
		header.AddCell().SetString(Columns[i].Header)
	}

	for i := range rows {
		r := &rows[i]
		row := sheet.AddRow()
		for j := range Columns {
			col := &Columns[j]
			cell := row.AddCell()
			switch col.Kind {
			case KindInt:
				if v := col.Int(r); v != nil {
					cell.SetInt64(*v)
				}
			case KindTime:
				if v := col.Time(r); v != nil {
					cell.SetDateTime(v.UTC())
				}
			default:
				if v := col.Text(r); v != nil {
					cell.SetString(*v)
				}
			}
		}
	}

	return eris.Wrap(f.Write(w), "xlsx export: write")
}
