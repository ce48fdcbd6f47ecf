package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"student-records-go/db"
	"student-records-go/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// APIHandler exposes the roster over HTTP. Every handler holds mu for its
// whole run so store operations never interleave.
type APIHandler struct {
	Store  *db.RecordStore
	Repo   db.Repository
	Logger *slog.Logger

	mu sync.Mutex
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(store *db.RecordStore, repo db.Repository, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{
		Store:  store,
		Repo:   repo,
		Logger: logger,
	}
}

// NewRouter registers the API routes on a fresh gin engine
func NewRouter(h *APIHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(h.Logger))

	api := router.Group("/api")
	{
		// Student routes
		api.GET("/students", h.ListStudents)
		api.GET("/students/:roll", h.GetStudent)
		api.POST("/students", h.AddStudent)
		api.PUT("/students/:roll", h.EditStudent)
		api.DELETE("/students/:roll", h.DeleteStudent)

		api.GET("/classes", h.GetClasses)

		// Excel exchange
		api.POST("/import/students", h.ImportStudents)
		api.GET("/export/students", h.ExportStudents)

		api.POST("/save", h.SaveRoster)
		api.GET("/ping", PingHandler)
	}
	return router
}

// RequestLogger logs one line per request through slog
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

type addStudentRequest struct {
	Roll         *int   `json:"roll" binding:"required"`
	Name         string `json:"name" binding:"required"`
	StudentClass string `json:"studentClass"`
	ParentPhone  string `json:"parentPhone"`
}

type editStudentRequest struct {
	Name         string `json:"name" binding:"required"`
	StudentClass string `json:"studentClass"`
	ParentPhone  string `json:"parentPhone"`
}

// studentAttr carries the whole record; the process logger masks parent_phone.
func studentAttr(s models.StudentRecord) slog.Attr {
	return slog.Group("student",
		slog.Int("roll", s.Roll),
		slog.String("name", s.Name),
		slog.String("class", s.StudentClass),
		slog.String("parent_phone", s.ParentPhone),
	)
}

func hasLineBreak(fields ...string) bool {
	for _, f := range fields {
		if strings.ContainsAny(f, "\r\n") {
			return true
		}
	}
	return false
}

func rollParam(c *gin.Context) (int, bool) {
	roll, err := strconv.Atoi(c.Param("roll"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Roll number must be an integer"})
		return 0, false
	}
	return roll, true
}

// --- Student Handlers ---

// ListStudents handles GET /api/students
func (h *APIHandler) ListStudents(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.JSON(http.StatusOK, h.Store.ListAll())
}

// GetStudent handles GET /api/students/:roll
func (h *APIHandler) GetStudent(c *gin.Context) {
	roll, ok := rollParam(c)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	student, found := h.Store.FindByRoll(roll)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}
	c.JSON(http.StatusOK, student)
}

// AddStudent handles POST /api/students
func (h *APIHandler) AddStudent(c *gin.Context) {
	var req addStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if hasLineBreak(req.Name, req.StudentClass, req.ParentPhone) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fields must not contain line breaks"})
		return
	}

	student := models.StudentRecord{
		Roll:         *req.Roll,
		Name:         req.Name,
		StudentClass: req.StudentClass,
		ParentPhone:  req.ParentPhone,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Add(student); err != nil {
		if errors.Is(err, db.ErrDuplicateRoll) {
			c.JSON(http.StatusConflict, gin.H{"error": "Roll number already exists"})
			return
		}
		h.Logger.Error("add student failed", "roll", student.Roll, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add student"})
		return
	}
	h.Logger.Info("student added", "roll", student.Roll)
	h.Logger.Debug("student record", studentAttr(student))
	c.JSON(http.StatusCreated, student)
}

// EditStudent handles PUT /api/students/:roll
func (h *APIHandler) EditStudent(c *gin.Context) {
	roll, ok := rollParam(c)
	if !ok {
		return
	}
	var req editStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if hasLineBreak(req.Name, req.StudentClass, req.ParentPhone) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fields must not contain line breaks"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Edit(roll, req.Name, req.StudentClass, req.ParentPhone); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
			return
		}
		h.Logger.Error("edit student failed", "roll", roll, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update student"})
		return
	}
	student, _ := h.Store.FindByRoll(roll)
	h.Logger.Info("student updated", "roll", roll)
	h.Logger.Debug("student record", studentAttr(student))
	c.JSON(http.StatusOK, student)
}

// DeleteStudent handles DELETE /api/students/:roll
func (h *APIHandler) DeleteStudent(c *gin.Context) {
	roll, ok := rollParam(c)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Delete(roll); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
			return
		}
		h.Logger.Error("delete student failed", "roll", roll, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete student"})
		return
	}
	h.Logger.Info("student deleted", "roll", roll)
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully", "roll": roll})
}

// --- Class Handlers ---

// GetClasses handles GET /api/classes
func (h *APIHandler) GetClasses(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.JSON(http.StatusOK, h.Store.Classes())
}

// --- Import/Export Handlers ---

// ImportStudents handles POST /api/import/students
func (h *APIHandler) ImportStudents(c *gin.Context) {
	file, header, err := c.Request.FormFile("file") // "file" is the name attribute in the form
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	h.Logger.Info("received roster upload", "filename", header.Filename)

	records, report, err := db.ImportFromExcel(file, h.Logger)
	if err != nil {
		h.Logger.Error("import failed", "filename", header.Filename, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"message": "Failed to import students: " + err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	importedCount := 0
	skipped := report.Skipped
	for _, student := range records {
		if err := h.Store.Add(student); err != nil {
			skipped = append(skipped, db.SkippedEntry{Reason: err.Error()})
			continue
		}
		importedCount++
	}

	h.Logger.Info("imported students", "filename", header.Filename, "imported", importedCount, "skipped", len(skipped))
	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": importedCount,
		"skipped":       skipped,
	})
}

// ExportStudents handles GET /api/export/students
func (h *APIHandler) ExportStudents(c *gin.Context) {
	h.mu.Lock()
	records := h.Store.ListAll()
	h.mu.Unlock()

	var buf bytes.Buffer
	if err := db.ExportToExcel(&buf, records); err != nil {
		h.Logger.Error("export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export students"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="students.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// SaveRoster handles POST /api/save
func (h *APIHandler) SaveRoster(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	records := h.Store.ListAll()
	if err := h.Repo.SaveAll(records); err != nil {
		h.Logger.Error("save failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save roster: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Roster saved", "count": len(records)})
}

// Close persists the roster one last time. Used at shutdown.
func (h *APIHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.Repo.SaveAll(h.Store.ListAll())
}

// --- Ping Handler ---
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
