// internal/report/xlsx.go
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/xkilldash9x/exam-autofill/internal/exam"
)

// SheetName is the name of the only sheet in a status workbook.
const SheetName = "Questions"

var statusHeaders = []string{
	"Index", "Label", "QID", "Element ID", "Type", "Answered", "Answer", "Visual Selection",
}

// WriteStatusWorkbook writes scan as a single-sheet xlsx workbook to w, one
// row per question in page order.
func WriteStatusWorkbook(w io.Writer, scan *exam.ScanResult) (err error) {
	if scan == nil {
		return errors.New("no scan result to export")
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close workbook: %w", cerr)
		}
	}()

	// Rename the default sheet rather than adding a second one.
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	if err := writeRow(f, 1, headerRow()); err != nil {
		return err
	}
	for i, q := range scan.Questions {
		if err := writeRow(f, i+2, questionRow(q)); err != nil {
			return err
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header row: %w", err)
	}
	if err := f.SetColWidth(SheetName, "G", "G", 40); err != nil {
		return fmt.Errorf("failed to size answer column: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

func headerRow() []interface{} {
	row := make([]interface{}, len(statusHeaders))
	for i, h := range statusHeaders {
		row[i] = h
	}
	return row
}

func questionRow(q exam.QuestionSummary) []interface{} {
	answer := ""
	if q.Answer != nil {
		answer = q.Answer.String()
	}
	return []interface{}{
		q.Index,
		q.DisplayNumber,
		q.QID,
		q.ElementID,
		q.Type,
		yesNo(q.Answered),
		answer,
		yesNo(q.HasVisualSelection),
	}
}

func writeRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
