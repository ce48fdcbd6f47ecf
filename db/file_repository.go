package db

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"student-records-go/models"
)

// DefaultDataFile is the backing file used when none is configured
const DefaultDataFile = "studentdata.txt"

// Repository loads and saves whole roster snapshots.
type Repository interface {
	LoadAll() ([]models.StudentRecord, LoadReport, error)
	SaveAll(records []models.StudentRecord) error
}

// FileRepository persists the roster as one comma-delimited line per record.
// It keeps no state between calls.
type FileRepository struct {
	Path   string
	Logger *slog.Logger
}

// NewFileRepository creates a FileRepository for path, falling back to DefaultDataFile.
func NewFileRepository(path string, logger *slog.Logger) *FileRepository {
	if path == "" {
		path = DefaultDataFile
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRepository{Path: path, Logger: logger}
}

// LoadAll reads every record from the backing file. A missing or unreadable
// file yields zero records. Malformed lines are skipped and reported.
func (r *FileRepository) LoadAll() ([]models.StudentRecord, LoadReport, error) {
	records := []models.StudentRecord{}
	var report LoadReport

	f, err := os.Open(r.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.Logger.Warn("backing file unavailable, starting empty", "path", r.Path, "error", err)
		}
		return records, report, nil
	}
	defer f.Close()
	if info, err := f.Stat(); err != nil || info.IsDir() {
		r.Logger.Warn("backing file unavailable, starting empty", "path", r.Path)
		return records, report, nil
	}

	reader := bufio.NewReader(f)
	lineNo := 0
	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			report.Loaded = len(records)
			return records, report, fmt.Errorf("failed to read %s: %w", r.Path, readErr)
		}
		if line != "" {
			lineNo++
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			if line != "" {
				record, reason := decodeLine(line)
				if reason != "" {
					report.skip(lineNo, reason)
					r.Logger.Warn("skipping malformed line", "path", r.Path, "line", lineNo, "reason", reason)
				} else {
					records = append(records, record)
				}
			}
		}
		if readErr != nil {
			break
		}
	}
	report.Loaded = len(records)

	r.Logger.Debug("loaded roster", "path", r.Path, "records", report.Loaded, "skipped", len(report.Skipped))
	return records, report, nil
}

// SaveAll truncates the backing file and writes one line per record.
// Every record is encoded before the file is touched, so an unencodable
// record leaves the previous contents intact.
func (r *FileRepository) SaveAll(records []models.StudentRecord) error {
	var buf bytes.Buffer
	for _, record := range records {
		line, err := encodeLine(record)
		if err != nil {
			return fmt.Errorf("failed to encode roster: %w", err)
		}
		buf.WriteString(line)
	}

	if err := os.WriteFile(r.Path, buf.Bytes(), 0o644); err != nil {
		r.Logger.Error("failed to save roster", "path", r.Path, "error", err)
		return fmt.Errorf("failed to write %s: %w", r.Path, err)
	}
	r.Logger.Debug("saved roster", "path", r.Path, "records", len(records))
	return nil
}
