package db

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"student-records-go/models"
)

// ExportSheetName is the sheet written by ExportToExcel
const ExportSheetName = "Students"

var excelHeader = []interface{}{"Roll", "Name", "Class", "Parent Phone"}

// ImportFromExcel reads students from the first sheet of an Excel stream.
// Columns: A roll, B name, C class, D parent phone. Row 1 is a header.
// Rows whose cells hold a line break are skipped since the roster file cannot store them.
func ImportFromExcel(file io.Reader, logger *slog.Logger) ([]models.StudentRecord, LoadReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var report LoadReport

	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, report, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("error closing excel file", "error", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, report, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, report, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	records := []models.StudentRecord{}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		cells := make([]string, 4)
		copy(cells, row)
		if strings.Join(cells, "") == "" {
			continue
		}

		rollText, name := strings.TrimSpace(cells[0]), cells[1]
		if rollText == "" || name == "" {
			report.skip(i+1, "missing roll or name")
			logger.Warn("skipping excel row", "row", i+1, "reason", "missing roll or name")
			continue
		}
		roll, err := strconv.Atoi(rollText)
		if err != nil {
			reason := fmt.Sprintf("invalid roll number %q", rollText)
			report.skip(i+1, reason)
			logger.Warn("skipping excel row", "row", i+1, "reason", reason)
			continue
		}
		if strings.ContainsAny(strings.Join(cells[1:], ""), "\r\n") {
			report.skip(i+1, ErrUnencodable.Error())
			logger.Warn("skipping excel row", "row", i+1, "reason", ErrUnencodable.Error())
			continue
		}
		records = append(records, models.StudentRecord{
			Roll:         roll,
			Name:         name,
			StudentClass: cells[2],
			ParentPhone:  cells[3],
		})
	}
	report.Loaded = len(records)
	return records, report, nil
}

// ExportToExcel writes the roster as a single-sheet workbook.
func ExportToExcel(w io.Writer, records []models.StudentRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ExportSheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(ExportSheetName, "A1", &excelHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.Roll, r.Name, r.StudentClass, r.ParentPhone}
		if err := f.SetSheetRow(ExportSheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write roll %d: %w", r.Roll, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write excel file: %w", err)
	}
	return nil
}
