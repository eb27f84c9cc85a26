package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/cyclecount_backend/config"
	"bitbucket.org/mmdatafocus/cyclecount_backend/models"
	"bitbucket.org/mmdatafocus/cyclecount_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const defaultPort = "8080"

// stores groups the durable-state owners handlers close over.
type stores struct {
	Assignments *models.AssignmentStore
	Submissions *models.SubmissionLog
	Mapping     *models.MappingStore
	Reference   *models.ReferenceStore
}

func newStores(dataDir string, logger *logrus.Logger) *stores {
	return &stores{
		Assignments: models.NewAssignmentStore(dataDir, config.LockMinutes(), config.EnforceAssignmentClaims(), logger),
		Submissions: models.NewSubmissionLog(dataDir, logger),
		Mapping:     models.NewMappingStore(dataDir, logger),
		Reference:   models.NewReferenceStore(dataDir, logger),
	}
}

type createAssignmentRequest struct {
	Assignee    string `json:"assignee" binding:"required"`
	PalletID    string `json:"pallet_id" binding:"required"`
	Location    string `json:"location" binding:"required"`
	ExpectedQty *int   `json:"expected_qty"`
}

func createAssignmentHandler(s *stores, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAssignmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !models.IsKnownCounter(req.Assignee) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "assignee is not a known counter"})
			return
		}

		// Resolver is best-effort: a miss falls back to 0, never an error.
		expectedQty := utils.DereferencePtr(req.ExpectedQty, -1)
		if expectedQty < 0 {
			expectedQty = 0
			if mapping := s.Mapping.Load(); mapping != nil {
				table := s.Reference.LoadTable(mapping.SheetName, mapping.HeaderRow)
				if qty, ok := models.ResolveExpectedQty(table, mapping, models.LookupKey{
					Pallet:   req.PalletID,
					Location: req.Location,
				}); ok {
					expectedQty = qty
				}
			}
		}

		id, err := s.Assignments.Create(req.Assignee, req.PalletID, req.Location, expectedQty)
		if err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			config.LogError(logger, "server.go", "createAssignmentHandler", "Create", req, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist assignment"})
			return
		}

		a, _ := s.Assignments.Get(id)
		c.JSON(http.StatusOK, gin.H{"id": id, "assignment": a})
	}
}

func getAssignmentHandler(s *stores) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		a, err := s.Assignments.Get(id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"assignment": a,
			"locked":     s.Assignments.IsLocked(id),
		})
	}
}

func listAssignmentsHandler(s *stores) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.Query("user"))
		if user == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user is required"})
			return
		}

		active := s.Assignments.ListActiveForUser(user)
		items := make([]gin.H, 0, len(active))
		for _, a := range active {
			items = append(items, gin.H{
				"assignment": a,
				"locked":     s.Assignments.IsLocked(a.ID),
			})
		}
		c.JSON(http.StatusOK, gin.H{"assignments": items})
	}
}

type claimAssignmentRequest struct {
	Holder string `json:"holder" binding:"required"`
}

func claimAssignmentHandler(s *stores) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req claimAssignmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "holder is required"})
			return
		}

		claimed, err := s.Assignments.TryClaim(c.Param("id"), req.Holder)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !claimed {
			c.JSON(http.StatusConflict, gin.H{"claimed": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"claimed": true})
	}
}

type submitCountRequest struct {
	AssignmentID string `json:"assignment_id"`
	User         string `json:"user" binding:"required"`
	Location     string `json:"location"`
	SKU          string `json:"sku"`
	Lot          string `json:"lot"`
	ExpectedQty  string `json:"expected_qty"`
	CountedQty   string `json:"counted_qty" binding:"required"`
	IssueType    string `json:"issue_type" binding:"required"`
	ActualPallet string `json:"actual_pallet"`
	Note         string `json:"note"`
}

func submitCountHandler(s *stores, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitCountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !validIssueType(req.IssueType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown issue_type"})
			return
		}

		row := models.Submission{
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			User:         req.User,
			Location:     req.Location,
			SKU:          req.SKU,
			Lot:          req.Lot,
			ExpectedQty:  req.ExpectedQty,
			CountedQty:   req.CountedQty,
			IssueType:    req.IssueType,
			ActualPallet: req.ActualPallet,
			Note:         req.Note,
		}
		if err := s.Submissions.Append(row); err != nil {
			config.LogError(logger, "server.go", "submitCountHandler", "Append", row, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record submission"})
			return
		}

		// Completing an unknown or absent assignment id is a no-op.
		if req.AssignmentID != "" {
			if err := s.Assignments.Complete(req.AssignmentID, req.User); err != nil {
				if utils.IsValidationError(err) {
					// Count is recorded either way; claim enforcement only
					// blocks the completion.
					c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "recorded": true})
					return
				}
				config.LogError(logger, "server.go", "submitCountHandler", "Complete", req.AssignmentID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete assignment"})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"recorded": true})
	}
}

func validIssueType(issueType string) bool {
	for _, t := range models.IssueTypeOptions {
		if t == issueType {
			return true
		}
	}
	return false
}

func listSubmissionsHandler(s *stores, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := s.Submissions.ReadAll()
		if err != nil {
			config.LogError(logger, "server.go", "listSubmissionsHandler", "ReadAll", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read submission log"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"submissions": subs})
	}
}

func nonMatchesHandler(s *stores, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := s.Submissions.ReadAll()
		if err != nil {
			config.LogError(logger, "server.go", "nonMatchesHandler", "ReadAll", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read submission log"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"non_matches": models.NonMatches(subs)})
	}
}

func bulkDiscrepanciesHandler(s *stores, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := s.Submissions.ReadAll()
		if err != nil {
			config.LogError(logger, "server.go", "bulkDiscrepanciesHandler", "ReadAll", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read submission log"})
			return
		}
		groups := models.BulkDiscrepancies(models.NonMatches(subs))
		c.JSON(http.StatusOK, gin.H{"bulk_discrepancies": groups})
	}
}

func exportDiscrepanciesHandler(s *stores, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := s.Submissions.ReadAll()
		if err != nil {
			config.LogError(logger, "server.go", "exportDiscrepanciesHandler", "ReadAll", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read submission log"})
			return
		}
		groups := models.BulkDiscrepancies(models.NonMatches(subs))

		f := excelize.NewFile()
		sheet := "Bulk Discrepancies"
		if _, err := f.NewSheet(sheet); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build export"})
			return
		}
		f.DeleteSheet("Sheet1")

		// Add headers
		f.SetCellValue(sheet, "A1", "Location")
		f.SetCellValue(sheet, "B1", "ActualPallet")
		f.SetCellValue(sheet, "C1", "SKU")
		f.SetCellValue(sheet, "D1", "Lot")
		f.SetCellValue(sheet, "E1", "Count")

		// Add data
		for i, g := range groups {
			f.SetCellValue(sheet, "A"+fmt.Sprint(i+2), g.Location)
			f.SetCellValue(sheet, "B"+fmt.Sprint(i+2), g.ActualPallet)
			f.SetCellValue(sheet, "C"+fmt.Sprint(i+2), g.SKU)
			f.SetCellValue(sheet, "D"+fmt.Sprint(i+2), g.Lot)
			f.SetCellValue(sheet, "E"+fmt.Sprint(i+2), g.Count)
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=discrepancies.xlsx")
		c.Status(http.StatusOK)
		if err := f.Write(c.Writer); err != nil {
			config.LogError(logger, "server.go", "exportDiscrepanciesHandler", "Write", nil, err)
		}
	}
}

func getMappingHandler(s *stores) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := s.Mapping.Load()
		if m == nil {
			c.JSON(http.StatusOK, gin.H{"mapping": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"mapping": m})
	}
}

func saveMappingHandler(s *stores, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m models.ColumnMapping
		if err := c.ShouldBindJSON(&m); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := s.Mapping.Save(m); err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			config.LogError(logger, "server.go", "saveMappingHandler", "Save", m, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist mapping"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"mapping": m})
	}
}

func listCountersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"counters": models.AssignNameOptions})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// newRouter wires the full HTTP surface; split out so tests can run the
// API against a temp data directory.
func newRouter(s *stores, logger *logrus.Logger) *gin.Engine {
	r := gin.New()

	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/api")
	api.POST("/inventory", uploadInventoryHandler(s, logger))
	api.GET("/inventory/sheets", listSheetsHandler(s))
	api.GET("/inventory/columns", listColumnsHandler(s))
	api.GET("/mapping", getMappingHandler(s))
	api.POST("/mapping", saveMappingHandler(s, logger))
	api.GET("/counters", listCountersHandler())
	api.POST("/assignments", createAssignmentHandler(s, logger))
	api.GET("/assignments", listAssignmentsHandler(s))
	api.GET("/assignments/:id", getAssignmentHandler(s))
	api.POST("/assignments/:id/claim", claimAssignmentHandler(s))
	api.POST("/submissions", submitCountHandler(s, logger))
	api.GET("/submissions", listSubmissionsHandler(s, logger))
	api.GET("/dashboard/non-matches", nonMatchesHandler(s, logger))
	api.GET("/dashboard/bulk-discrepancies", bulkDiscrepanciesHandler(s, logger))
	api.GET("/dashboard/export", exportDiscrepanciesHandler(s, logger))

	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	// Best-effort: a missing .env is fine in deployed environments.
	_ = godotenv.Load()

	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.WithFields(logrus.Fields{"field": "startup", "data_dir": dataDir}).
			Fatal("cannot create data directory: " + err.Error())
	}
	s := newStores(dataDir, logger)

	// Migrate the submission log up front so the first append does not
	// pay for it mid-request.
	if err := s.Submissions.EnsureSchema(); err != nil {
		logger.WithFields(logrus.Fields{"field": "startup"}).
			Fatal("submission log unavailable: " + err.Error())
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(s, logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("cycle count API listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{"correlation_id": cid}).Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
