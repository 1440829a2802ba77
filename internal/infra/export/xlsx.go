package export

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/survey-insight/internal/domain/survey"
	"github.com/bryanwahyu/survey-insight/internal/infra/ai/prompt"
)

const (
	sheet       = "Analysis"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{"#", "Question", "Sentiment", "Confidence", "Status", "Analysis"}

// XLSX renders a result collection as a single-sheet workbook, one row per
// question in collection order.
func XLSX(results survey.ResultCollection) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "F1", headStyle); err != nil {
		return nil, err
	}

	for i, r := range results {
		row := i + 2
		sentiment, confidence := "", ""
		status := "ok"
		if r.Failed() {
			status = "failed"
		} else {
			sentiment, confidence = prompt.Headline(r.Analysis)
		}
		values := []any{i + 1, string(r.Question), sentiment, confidence, status, clip(r.Analysis)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("row %d: %w", row, err)
			}
		}
	}

	if len(results) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), len(results)+1)
		if err := f.SetCellStyle(sheet, "A2", last, bodyStyle); err != nil {
			return nil, err
		}
	}
	widths := map[string]float64{"A": 5, "B": 40, "C": 12, "D": 12, "E": 10, "F": 100}
	for col, w := range widths {
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// clip keeps a cell under the spreadsheet per-cell character cap.
func clip(s string) string {
	if utf8.RuneCountInString(s) <= excelize.TotalCellChars {
		return s
	}
	r := []rune(s)
	return string(r[:excelize.TotalCellChars-1]) + "…"
}
