package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"student-records-go/db"
	"student-records-go/logging"
	"student-records-go/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryRepo struct {
	saved   []models.StudentRecord
	saveErr error
}

func (m *memoryRepo) LoadAll() ([]models.StudentRecord, db.LoadReport, error) {
	return m.saved, db.LoadReport{Loaded: len(m.saved)}, nil
}

func (m *memoryRepo) SaveAll(records []models.StudentRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = records
	return nil
}

func seedRecords() []models.StudentRecord {
	return []models.StudentRecord{
		{Roll: 1, Name: "Alice", StudentClass: "5A", ParentPhone: "555-0101"},
		{Roll: 2, Name: "Bob", StudentClass: "5B", ParentPhone: "555-0102"},
	}
}

func newTestServer(t *testing.T, opts ...db.StoreOption) (*gin.Engine, *APIHandler, *memoryRepo) {
	t.Helper()
	repo := &memoryRepo{}
	store := db.NewRecordStore(seedRecords(), opts...)
	h := NewAPIHandler(store, repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewRouter(h), h, repo
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListStudents(t *testing.T) {
	t.Parallel()
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/students", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.StudentRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, seedRecords(), got)
}

func TestListStudentsEmptyIsArray(t *testing.T) {
	t.Parallel()
	h := NewAPIHandler(db.NewRecordStore(nil), &memoryRepo{}, nil)

	rec := doJSON(t, NewRouter(h), http.MethodGet, "/api/students", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetStudent(t *testing.T) {
	t.Parallel()
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/students/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"roll":2,"name":"Bob","studentClass":"5B","parentPhone":"555-0102"}`, rec.Body.String())

	require.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/students/9", "").Code)
	require.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/students/abc", "").Code)
}

func TestAddStudent(t *testing.T) {
	t.Parallel()
	router, h, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/students", `{"roll":3,"name":"Chen","studentClass":"5A","parentPhone":"555-0103"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 3, h.Store.Len())

	got, ok := h.Store.FindByRoll(3)
	require.True(t, ok)
	require.Equal(t, "Chen", got.Name)
}

func TestAddStudentValidation(t *testing.T) {
	t.Parallel()
	router, h, _ := newTestServer(t)

	require.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPost, "/api/students", `{"name":"No Roll"}`).Code)
	require.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPost, "/api/students", `{"roll":4}`).Code)
	require.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPost, "/api/students", `{"roll":4,"name":"Two\nLines"}`).Code)
	require.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPost, "/api/students", `not json`).Code)
	require.Equal(t, 2, h.Store.Len())
}

func TestAddStudentDuplicate(t *testing.T) {
	t.Parallel()

	router, h, _ := newTestServer(t)
	rec := doJSON(t, router, http.MethodPost, "/api/students", `{"roll":1,"name":"Alice Again"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 3, h.Store.Len())

	strictRouter, strict, _ := newTestServer(t, db.WithRejectDuplicates(true))
	rec = doJSON(t, strictRouter, http.MethodPost, "/api/students", `{"roll":1,"name":"Alice Again"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 2, strict.Store.Len())
}

func TestEditStudent(t *testing.T) {
	t.Parallel()
	router, h, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPut, "/api/students/1", `{"roll":99,"name":"Alicia","studentClass":"6A","parentPhone":"555-1111"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"roll":1,"name":"Alicia","studentClass":"6A","parentPhone":"555-1111"}`, rec.Body.String())

	_, moved := h.Store.FindByRoll(99)
	require.False(t, moved)

	rec = doJSON(t, router, http.MethodPut, "/api/students/42", `{"name":"Ghost"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, 2, h.Store.Len())
}

func TestDeleteStudent(t *testing.T) {
	t.Parallel()
	router, h, _ := newTestServer(t)

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodDelete, "/api/students/1", "").Code)
	require.Equal(t, 1, h.Store.Len())
	require.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodDelete, "/api/students/1", "").Code)
	require.Equal(t, 1, h.Store.Len())
}

func TestGetClasses(t *testing.T) {
	t.Parallel()
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/classes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"name":"5A","count":1},{"name":"5B","count":1}]`, rec.Body.String())
}

func TestSaveRoster(t *testing.T) {
	t.Parallel()
	router, _, repo := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/save", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, seedRecords(), repo.saved)
}

func TestSaveRosterReportsFailure(t *testing.T) {
	t.Parallel()
	router, h, repo := newTestServer(t)
	repo.saveErr = errors.New("disk full")

	rec := doJSON(t, router, http.MethodPost, "/api/save", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "disk full")
	require.Error(t, h.Close())
}

func TestExportThenImportStudents(t *testing.T) {
	t.Parallel()
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/export/students", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	target := NewAPIHandler(db.NewRecordStore(nil), &memoryRepo{}, nil)
	targetRouter := NewRouter(target)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "students.xlsx")
	require.NoError(t, err)
	_, err = part.Write(rec.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/students", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	importRec := httptest.NewRecorder()
	targetRouter.ServeHTTP(importRec, req)

	require.Equal(t, http.StatusOK, importRec.Code)
	var resp struct {
		ImportedCount int `json:"importedCount"`
	}
	require.NoError(t, json.Unmarshal(importRec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.ImportedCount)
	require.Equal(t, seedRecords(), target.Store.ListAll())
}

func TestImportStudentsRequiresFile(t *testing.T) {
	t.Parallel()
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/import/students", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPing(t *testing.T) {
	t.Parallel()
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Pong!"}`, rec.Body.String())
}

func uploadWorkbook(t *testing.T, router http.Handler, rows [][]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var workbook bytes.Buffer
	_, err := f.WriteTo(&workbook)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "students.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/students", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestImportStudentsReportsLineBreakRow(t *testing.T) {
	t.Parallel()
	h := NewAPIHandler(db.NewRecordStore(nil), &memoryRepo{}, nil)

	rec := uploadWorkbook(t, NewRouter(h), [][]interface{}{
		{"Roll", "Name", "Class", "Parent Phone"},
		{1, "Alice", "5A", "555-0101"},
		{2, "Bob\nJr", "5B", "555-0102"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ImportedCount int               `json:"importedCount"`
		Skipped       []db.SkippedEntry `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.ImportedCount)
	require.Equal(t, []db.SkippedEntry{{Line: 3, Reason: db.ErrUnencodable.Error()}}, resp.Skipped)
	require.Equal(t, 1, h.Store.Len())
}

func TestAddAndEditLogRecordWithoutPhone(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	logger, closer, err := logging.New(logging.Options{Level: "debug", Stderr: &logs})
	require.NoError(t, err)
	defer closer.Close()
	router := NewRouter(NewAPIHandler(db.NewRecordStore(nil), &memoryRepo{}, logger))

	rec := doJSON(t, router, http.MethodPost, "/api/students", `{"roll":3,"name":"Chen","studentClass":"5A","parentPhone":"555-0103"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPut, "/api/students/3", `{"name":"Chen","studentClass":"5A","parentPhone":"555-0199"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Contains(t, logs.String(), "student.name=Chen")
	require.Contains(t, logs.String(), "student.parent_phone=[REDACTED]")
	require.NotContains(t, logs.String(), "555-0103")
	require.NotContains(t, logs.String(), "555-0199")
}
