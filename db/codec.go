package db

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"student-records-go/models"
)

const (
	fieldDelimiter = ","
	fieldCount     = 4
)

// encodeLine renders a record as one line of the backing file, newline included.
// Fields without a comma or quote are written verbatim so legacy files stay
// byte-identical; others are CSV-quoted.
func encodeLine(r models.StudentRecord) (string, error) {
	var b strings.Builder
	b.WriteString(strconv.Itoa(r.Roll))
	for _, field := range []string{r.Name, r.StudentClass, r.ParentPhone} {
		if strings.ContainsAny(field, "\r\n") {
			return "", fmt.Errorf("roll %d: %w", r.Roll, ErrUnencodable)
		}
		b.WriteString(fieldDelimiter)
		if strings.ContainsAny(field, `,"`) {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(field, `"`, `""`))
			b.WriteByte('"')
			continue
		}
		b.WriteString(field)
	}
	b.WriteByte('\n')
	return b.String(), nil
}

// decodeLine parses one non-empty line. On rejection it returns the reason.
func decodeLine(line string) (models.StudentRecord, string) {
	fields := splitLine(line)
	if len(fields) != fieldCount {
		return models.StudentRecord{}, fmt.Sprintf("expected %d fields, got %d", fieldCount, len(fields))
	}
	roll, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return models.StudentRecord{}, fmt.Sprintf("invalid roll number %q", fields[0])
	}
	return models.StudentRecord{
		Roll:         roll,
		Name:         fields[1],
		StudentClass: fields[2],
		ParentPhone:  fields[3],
	}, ""
}

// splitLine honours CSV quoting when the line carries a quote and falls back
// to the legacy split on every comma otherwise.
func splitLine(line string) []string {
	if strings.Contains(line, `"`) {
		r := csv.NewReader(strings.NewReader(line))
		r.LazyQuotes = true
		r.FieldsPerRecord = -1
		if fields, err := r.Read(); err == nil && len(fields) == fieldCount {
			return fields
		}
	}
	return strings.Split(line, fieldDelimiter)
}
