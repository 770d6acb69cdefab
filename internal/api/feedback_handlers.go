package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/service"
)

// handleReviewDiagnosis records a clinician's verdict on a diagnosis.
func (s *Server) handleReviewDiagnosis(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	var in service.ReviewInput
	if c.Request.ContentLength != 0 && !s.bindJSON(c, &in) {
		return
	}

	review, err := s.services.Feedback.Review(c.Request.Context(), id, in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "feedback": review})
}

func (s *Server) handleGetReview(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	review, err := s.services.Feedback.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "feedback": review})
}

func (s *Server) handleListReviews(c *gin.Context) {
	limit, offset := pagination(c)
	reviews, total, err := s.services.Feedback.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"feedback": reviews,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleReviewSummary(c *gin.Context) {
	summary, err := s.services.Feedback.Summary(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

func (s *Server) handleExportReviews(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.services.Feedback.Export(c.Request.Context(), &buf); err != nil {
		s.writeError(c, err)
		return
	}
	name := "feedback-" + time.Now().UTC().Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}
