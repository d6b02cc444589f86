// Package workbook renders record batches as an xlsx workbook, one sheet
// per batch.
package workbook

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bimmerbailey/logsheet/internal/record"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// MaxCellLength is the longest text a cell may hold. Longer values are
// cut and styled red.
const MaxCellLength = 32_767

// ContentType is the media type of the rendered workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Columns are the sheet headers in order.
var Columns = []string{
	"Row", "Log Name", "Date", "Time", "Priority", "Thread", "Category",
	"Message", "MessageValues", "Stack Trace", "Similar Rows Quantity", "Not parsed row",
}

// columnPixels are the display widths of Columns in pixels.
var columnPixels = []int{50, 150, 75, 75, 50, 100, 130, 200, 200, 200, 150, 100}

const defaultSheet = "Sheet1"

type styles struct {
	header    int
	truncated int
}

// Write renders batches and writes the workbook to w.
func Write(w io.Writer, batches [][]*record.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	for i, batch := range batches {
		name := SheetName(i)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return errors.Wrap(err, "rename first sheet")
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return errors.Wrapf(err, "create sheet %s", name)
		}
		if err := writeSheet(f, name, batch, st); err != nil {
			return errors.Wrapf(err, "write sheet %s", name)
		}
	}

	return errors.Wrap(f.Write(w), "write workbook")
}

// SaveFile writes the workbook to path. The file is replaced atomically
// while an exclusive lock on path+".lock" is held.
func SaveFile(path string, batches [][]*record.Record) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return errors.Wrapf(err, "lock %s", path)
	}
	if !locked {
		return errors.Errorf("%s is being written by another process", path)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(path + ".lock")
	}()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temporary workbook")
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, batches); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temporary workbook")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "replace %s", path)
}

// SheetName returns the name of the sheet holding batch i.
func SheetName(i int) string {
	return strconv.Itoa(i)
}

// ColumnWidth converts a pixel width to spreadsheet character units.
func ColumnWidth(px int) float64 {
	return float64(px*34) / 256
}

func newStyles(f *excelize.File) (styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Family: "Arial", Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return styles{}, errors.Wrap(err, "create header style")
	}
	truncated, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 10, Color: "FF0000"},
		Alignment: &excelize.Alignment{Horizontal: "left"},
	})
	if err != nil {
		return styles{}, errors.Wrap(err, "create truncation style")
	}
	return styles{header: header, truncated: truncated}, nil
}

func writeSheet(f *excelize.File, name string, batch []*record.Record, st styles) error {
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}

	for i, px := range columnPixels {
		if err := sw.SetColWidth(i+1, i+1, ColumnWidth(px)); err != nil {
			return err
		}
	}
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	header := make([]interface{}, len(Columns))
	for i, title := range Columns {
		header[i] = excelize.Cell{StyleID: st.header, Value: title}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, r := range batch {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row(r, st)); err != nil {
			return errors.Wrapf(err, "row %d", r.RowNumber)
		}
	}
	return sw.Flush()
}

func row(r *record.Record, st styles) []interface{} {
	return []interface{}{
		r.RowNumber,
		r.LogName,
		r.Date(),
		r.Time(),
		r.Priority.String(),
		r.Thread,
		r.Category,
		text(r.MessageStr, st),
		text(r.MessageValuesStr, st),
		text(r.StackTraceStr, st),
		r.SimilarRows,
		text(r.ErrorStr, st),
	}
}

// text returns a long-text cell, cut to MaxCellLength runes and styled
// red when it reaches the limit.
func text(s string, st styles) interface{} {
	if s == "" {
		return nil
	}
	if len(s) < MaxCellLength {
		return s
	}
	runes := []rune(s)
	if len(runes) < MaxCellLength {
		return s
	}
	return excelize.Cell{StyleID: st.truncated, Value: string(runes[:MaxCellLength])}
}
