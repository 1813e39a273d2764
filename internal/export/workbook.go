// Package export writes scan results as a two-sheet spreadsheet.
package export

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	OccupiedSheet  = "Occupied IPs"
	AvailableSheet = "Available IPs"
)

var ErrExport = errors.New("エクスポートに失敗しました")

// Errorは書き込み先と原因を保持する
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (%s): %v", ErrExport, e.Path, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrExport, e.Err} }

// WriteWorkbookは使用中/空きアドレスをそれぞれ別シートに書き出す。
// 各シートの1行目はシート名と同じ見出し。
func WriteWorkbook(path string, occupied, available []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", OccupiedSheet); err != nil {
		return &Error{Path: path, Err: err}
	}
	if _, err := f.NewSheet(AvailableSheet); err != nil {
		return &Error{Path: path, Err: err}
	}
	if err := writeColumn(f, OccupiedSheet, occupied); err != nil {
		return &Error{Path: path, Err: err}
	}
	if err := writeColumn(f, AvailableSheet, available); err != nil {
		return &Error{Path: path, Err: err}
	}
	if err := f.SaveAs(path); err != nil {
		return &Error{Path: path, Err: err}
	}
	return nil
}

func writeColumn(f *excelize.File, sheet string, rows []string) error {
	col := make([]string, 0, len(rows)+1)
	col = append(col, sheet)
	col = append(col, rows...)
	return f.SetSheetCol(sheet, "A1", &col)
}
