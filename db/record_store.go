package db

import (
	"fmt"

	"student-records-go/models"
)

// RecordStore owns the ordered roster for the lifetime of the process.
// It is not safe for concurrent use; callers issue one operation at a time.
type RecordStore struct {
	records          []models.StudentRecord
	rejectDuplicates bool
}

// StoreOption configures a RecordStore
type StoreOption func(*RecordStore)

// WithRejectDuplicates makes Add refuse a roll that is already present.
func WithRejectDuplicates(reject bool) StoreOption {
	return func(s *RecordStore) {
		s.rejectDuplicates = reject
	}
}

// NewRecordStore creates a store seeded with the given records, usually the
// result of Repository.LoadAll. The slice is copied.
func NewRecordStore(records []models.StudentRecord, opts ...StoreOption) *RecordStore {
	s := &RecordStore{
		records: make([]models.StudentRecord, len(records)),
	}
	copy(s.records, records)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends a record to the end of the roster.
func (s *RecordStore) Add(record models.StudentRecord) error {
	if s.rejectDuplicates && s.indexOf(record.Roll) >= 0 {
		return fmt.Errorf("add roll %d: %w", record.Roll, ErrDuplicateRoll)
	}
	s.records = append(s.records, record)
	return nil
}

// FindByRoll returns the first record with the given roll.
func (s *RecordStore) FindByRoll(roll int) (models.StudentRecord, bool) {
	i := s.indexOf(roll)
	if i < 0 {
		return models.StudentRecord{}, false
	}
	return s.records[i], true
}

// Edit overwrites name, class and phone of the first record with the given roll.
// The roll itself never changes.
func (s *RecordStore) Edit(roll int, name, studentClass, parentPhone string) error {
	i := s.indexOf(roll)
	if i < 0 {
		return fmt.Errorf("edit roll %d: %w", roll, ErrNotFound)
	}
	s.records[i].Name = name
	s.records[i].StudentClass = studentClass
	s.records[i].ParentPhone = parentPhone
	return nil
}

// Delete removes the first record with the given roll, keeping the order of the rest.
func (s *RecordStore) Delete(roll int) error {
	i := s.indexOf(roll)
	if i < 0 {
		return fmt.Errorf("delete roll %d: %w", roll, ErrNotFound)
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	return nil
}

// ListAll returns a snapshot of the roster in insertion order.
func (s *RecordStore) ListAll() []models.StudentRecord {
	out := make([]models.StudentRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len reports the number of records
func (s *RecordStore) Len() int {
	return len(s.records)
}

// Classes groups the roster by class label in first-seen order.
func (s *RecordStore) Classes() []models.ClassSummary {
	classes := []models.ClassSummary{}
	pos := make(map[string]int)
	for _, r := range s.records {
		if i, ok := pos[r.StudentClass]; ok {
			classes[i].Count++
			continue
		}
		pos[r.StudentClass] = len(classes)
		classes = append(classes, models.ClassSummary{Name: r.StudentClass, Count: 1})
	}
	return classes
}

func (s *RecordStore) indexOf(roll int) int {
	for i := range s.records {
		if s.records[i].Roll == roll {
			return i
		}
	}
	return -1
}
