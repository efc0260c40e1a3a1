// Package export writes tabular artifacts. One batch becomes exactly one
// CSV or XLSX file under the output directory; empty batches are never
// written.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"tgscraper/pkg/logger"
)

// FormatCSV and FormatXLSX are the supported artifact formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// utf8BOM makes CSV artifacts open correctly in spreadsheet applications.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Batch is a named, ordered collection of rows written atomically to one
// artifact.
type Batch struct {
	Prefix string
	Header []string
	Rows   [][]string
}

// Writer exports batches to timestamped artifacts under a directory.
type Writer struct {
	dir    string
	format string
	log    logger.Logger
	now    func() time.Time
}

// NewWriter creates an artifact writer for the given directory and format.
func NewWriter(dir, format string, log logger.Logger) (*Writer, error) {
	switch format {
	case FormatCSV, FormatXLSX:
	default:
		return nil, fmt.Errorf("unknown export format: %s", format)
	}
	return &Writer{
		dir:    dir,
		format: format,
		log:    log,
		now:    time.Now,
	}, nil
}

// Write exports one batch and returns the artifact path. An empty batch
// produces no file and returns an empty path.
func (w *Writer) Write(batch Batch) (string, error) {
	if len(batch.Rows) == 0 {
		w.log.WarnWithFields("no data to export", map[string]interface{}{
			"prefix": batch.Prefix,
		})
		return "", nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s", batch.Prefix, w.now().Format("20060102_150405"))
	path := w.uniquePath(name)

	var err error
	switch w.format {
	case FormatCSV:
		err = writeCSV(path, batch)
	case FormatXLSX:
		err = writeXLSX(path, batch)
	}
	if err != nil {
		return "", fmt.Errorf("failed to export %s: %w", batch.Prefix, err)
	}

	w.log.InfoWithFields("data exported", map[string]interface{}{
		"path": path,
		"rows": len(batch.Rows),
	})
	return path, nil
}

// uniquePath appends a numeric suffix when a rapid re-run would collide on
// the second-granularity timestamp.
func (w *Writer) uniquePath(name string) string {
	path := filepath.Join(w.dir, name+"."+w.format)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(w.dir, fmt.Sprintf("%s_%d.%s", name, i, w.format))
	}
}

func writeCSV(path string, batch Batch) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(file)
	if err := cw.Write(batch.Header); err != nil {
		return err
	}
	for _, row := range batch.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	return file.Close()
}

func writeXLSX(path string, batch Batch) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	if err := setRow(f, sheet, 1, batch.Header); err != nil {
		return err
	}
	for i, row := range batch.Rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheet, cell, &row)
}
