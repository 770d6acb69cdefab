package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleListReports(c *gin.Context) {
	limit, offset := pagination(c)
	reports, total, err := s.services.Reports.List(c.Request.Context(), domain.ReportFilter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reports": reports,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) handleGetReport(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	report, err := s.services.Reports.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

func (s *Server) handleMonthlyReport(c *gin.Context) {
	stats, err := s.services.Reports.Monthly(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"month":   stats.Month,
		"year":    stats.Year,
		"stats":   stats,
	})
}

func (s *Server) handleWeeklyReport(c *gin.Context) {
	stats, err := s.services.Reports.Weekly(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"period":  "7 days",
		"stats":   stats,
	})
}

// handleExportReports answers JSON exports inline and xlsx exports as a
// file download.
func (s *Server) handleExportReports(c *gin.Context) {
	var req service.ExportRequest
	// An empty body exports everything as JSON.
	if c.Request.ContentLength != 0 && !s.bindJSON(c, &req) {
		return
	}

	result, err := s.services.Reports.Export(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if result.Format == service.ExportFormatXLSX {
		c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
		c.Data(http.StatusOK, xlsxContentType, result.File)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"format":        result.Format,
		"exportedCount": result.Count,
		"data":          result.Reports,
		"generatedAt":   result.GeneratedAt,
	})
}
