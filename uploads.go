package main

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/cyclecount_backend/config"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 10 * 1024 * 1024

var spreadsheetMimeTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/octet-stream": true, // some scan-gun browsers send this for xlsx
}

// uploadInventoryHandler stores the uploaded reference spreadsheet bytes
// verbatim and answers with the sheet list so the mapping UI can proceed.
func uploadInventoryHandler(s *stores, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size <= 0 || fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
			return
		}
		if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != ".xlsx" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "only .xlsx files are supported"})
			return
		}
		if mime := fileHeader.Header.Get("Content-Type"); mime != "" && !spreadsheetMimeTypes[mime] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload"})
			return
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxUploadSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload"})
			return
		}
		if int64(len(data)) > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
			return
		}

		if err := s.Reference.SaveBlob(data); err != nil {
			config.LogError(logger, "uploads.go", "uploadInventoryHandler", "SaveBlob", fileHeader.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store reference table"})
			return
		}

		sheets := s.Reference.ListSheets()
		logger.WithFields(logrus.Fields{
			"file_name": fileHeader.Filename,
			"size":      fileHeader.Size,
			"sheets":    len(sheets),
		}).Info("[inventory.upload]")

		c.JSON(http.StatusOK, gin.H{"sheets": sheets})
	}
}

func listSheetsHandler(s *stores) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sheets": s.Reference.ListSheets()})
	}
}

// listColumnsHandler previews the column names for a sheet + header row.
// An empty column list means "mapping/preview unavailable", not a failure.
func listColumnsHandler(s *stores) gin.HandlerFunc {
	return func(c *gin.Context) {
		sheet := strings.TrimSpace(c.Query("sheet"))
		if sheet == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sheet is required"})
			return
		}
		headerRow := 0
		if v := strings.TrimSpace(c.Query("header_row")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "header_row must be a non-negative integer"})
				return
			}
			headerRow = n
		}

		table := s.Reference.LoadTable(sheet, headerRow)
		c.JSON(http.StatusOK, gin.H{"columns": table.Columns})
	}
}
