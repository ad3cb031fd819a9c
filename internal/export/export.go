package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
)

// SheetName is the name of the single worksheet in an exported workbook.
const SheetName = "Compatibility"

// ContentType is the MIME type of an exported workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Header fills.
const (
	fillTitle       = "BFBFBF"
	fillDevice      = "FFD966"
	fillDeviceSub   = "FFE699"
	fillPlatform    = "A9D18E"
	fillEwelink     = "C5E0B4"
	fillMatter      = "E2F0D9"
	fillHomeAssist  = "D5FEE9"
	columnWidth     = 24
	titleRowHeight  = 23.4
	headerRowHeight = 16.2
	leafRowHeight   = 50.4
)

// Build renders rows as an xlsx workbook.
//
// title heads the sheet; spec.Title overrides it when set, and DefaultTitle
// is used when both are empty. spec.Columns defaults to DefaultColumns().
// Rows are written in the order given.
//
// Returns:
//   - []byte: The encoded workbook
//   - error: ErrInvalidSpec or engine.ErrUnknownColumn (wrapped) for a bad
//     column tree, or an encoding error
func Build(rows []catalog.FlatRow, spec Spec, title string) ([]byte, error) {
	columns := spec.Columns
	if len(columns) == 0 {
		columns = DefaultColumns()
	}
	if err := Validate(columns); err != nil {
		return nil, err
	}
	if spec.Title != "" {
		title = spec.Title
	}
	if title == "" {
		title = DefaultTitle
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	w := sheetWriter{f: f}
	hdr := layoutHeader(columns)
	width := len(hdr.leaves)
	headerRows := 1 + len(hdr.rows)

	// Title row, then the header tree one row below it.
	w.setRow(0, padRow(title, width))
	if width > 1 {
		w.merge(engine.MergeRange{StartRow: 0, StartCol: 0, EndRow: 0, EndCol: width - 1})
	}
	for i, r := range hdr.rows {
		w.setRow(1+i, r)
	}
	for _, m := range hdr.merges {
		m.StartRow++
		m.EndRow++
		w.merge(m)
	}

	for i := range rows {
		values := make([]string, width)
		for c, def := range hdr.leaves {
			values[c] = cellText(&rows[i], def)
		}
		w.setRow(headerRows+i, values)
	}

	var mergeCols []int
	for c, def := range hdr.leaves {
		if def.Has(catalog.TraitMerge) {
			mergeCols = append(mergeCols, c)
		}
	}
	for _, m := range engine.MergeRanges(rows, headerRows, mergeCols) {
		w.merge(m)
	}

	w.styleHeader(hdr, headerRows)
	if len(rows) > 0 {
		w.styleData(headerRows, len(rows), width)
	}
	w.autoFilter(headerRows-1, width)
	w.layout(headerRows, width)

	if w.err != nil {
		return nil, w.err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func padRow(first string, width int) []string {
	out := make([]string, max(width, 1))
	out[0] = first
	return out
}

// sheetWriter addresses cells with 0-based coordinates and keeps the first
// error so the layout code reads straight through.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) cell(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil && w.err == nil {
		w.err = err
	}
	return name
}

func (w *sheetWriter) setRow(row int, values []string) {
	if w.err != nil {
		return
	}
	if err := w.f.SetSheetRow(SheetName, w.cell(row, 0), &values); err != nil {
		w.err = fmt.Errorf("writing row %d: %w", row+1, err)
	}
}

func (w *sheetWriter) merge(m engine.MergeRange) {
	if w.err != nil {
		return
	}
	if err := w.f.MergeCell(SheetName, w.cell(m.StartRow, m.StartCol), w.cell(m.EndRow, m.EndCol)); err != nil {
		w.err = fmt.Errorf("merging cells: %w", err)
	}
}

func (w *sheetWriter) style(s *excelize.Style, fromRow, fromCol, toRow, toCol int) {
	if w.err != nil {
		return
	}
	id, err := w.f.NewStyle(s)
	if err != nil {
		w.err = fmt.Errorf("creating style: %w", err)
		return
	}
	if err := w.f.SetCellStyle(SheetName, w.cell(fromRow, fromCol), w.cell(toRow, toCol), id); err != nil {
		w.err = fmt.Errorf("applying style: %w", err)
	}
}

func headerStyle(color string, bold bool) *excelize.Style {
	return &excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		Font:      &excelize.Font{Bold: bold},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	}
}

// styleHeader fills the title row grey, the first header level by
// device/platform and the deeper levels by each leaf's group.
func (w *sheetWriter) styleHeader(hdr header, headerRows int) {
	width := len(hdr.leaves)
	w.style(headerStyle(fillTitle, true), 0, 0, 0, max(width-1, 0))

	for c, def := range hdr.leaves {
		if headerRows > 1 {
			color := fillPlatform
			if def.Group == catalog.GroupDevice {
				color = fillDevice
			}
			w.style(headerStyle(color, true), 1, c, 1, c)
		}
		if headerRows > 2 {
			w.style(headerStyle(groupFill(def.Group), false), 2, c, headerRows-1, c)
		}
	}
}

func groupFill(g catalog.Group) string {
	switch g {
	case catalog.GroupEwelink:
		return fillEwelink
	case catalog.GroupMatter:
		return fillMatter
	case catalog.GroupHomeAssistant:
		return fillHomeAssist
	default:
		return fillDeviceSub
	}
}

func (w *sheetWriter) styleData(startRow, count, width int) {
	w.style(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	}, startRow, 0, startRow+count-1, width-1)
}

func (w *sheetWriter) autoFilter(row, width int) {
	if w.err != nil {
		return
	}
	ref := w.cell(row, 0) + ":" + w.cell(row, width-1)
	if err := w.f.AutoFilter(SheetName, ref, nil); err != nil {
		w.err = fmt.Errorf("setting autofilter: %w", err)
	}
}

func (w *sheetWriter) layout(headerRows, width int) {
	if w.err != nil {
		return
	}
	for r := 0; r < headerRows; r++ {
		height := headerRowHeight
		switch r {
		case 0:
			height = titleRowHeight
		case headerRows - 1:
			height = leafRowHeight
		}
		if err := w.f.SetRowHeight(SheetName, r+1, height); err != nil {
			w.err = fmt.Errorf("setting row height: %w", err)
			return
		}
	}

	last, err := excelize.ColumnNumberToName(width)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetColWidth(SheetName, "A", last, columnWidth); err != nil {
		w.err = fmt.Errorf("setting column width: %w", err)
	}
}
