package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/service"
)

func (s *Server) handleCommunityStats(c *gin.Context) {
	stats, err := s.services.Community.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"stats":       stats,
		"lastUpdated": time.Now().UTC(),
	})
}

func (s *Server) handleListOutbreaks(c *gin.Context) {
	outbreaks, err := s.services.Community.Outbreaks(c.Request.Context(), c.Query("status"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"outbreaks": outbreaks,
		"total":     len(outbreaks),
	})
}

func (s *Server) handleReportOutbreak(c *gin.Context) {
	var in service.OutbreakInput
	if !s.bindJSON(c, &in) {
		return
	}
	outbreak, err := s.services.Community.ReportOutbreak(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"outbreak": outbreak,
		"message":  "Outbreak reported successfully",
	})
}

func (s *Server) handleUpdateOutbreakStatus(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if !s.bindJSON(c, &req) {
		return
	}
	outbreak, err := s.services.Community.UpdateOutbreakStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"outbreak": outbreak,
		"message":  "Outbreak status updated successfully",
	})
}

func (s *Server) handleTrends(c *gin.Context) {
	trends, err := s.services.Community.Trends(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"trends":       trends,
		"period":       c.DefaultQuery("period", "week"),
		"calculatedAt": time.Now().UTC(),
	})
}

func (s *Server) handleVillage(c *gin.Context) {
	village, err := s.services.Community.Village(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "village": village})
}

func (s *Server) handleRecommendations(c *gin.Context) {
	recs, err := s.services.Community.Recommendations(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"recommendations": recs,
		"generatedAt":     time.Now().UTC(),
	})
}
