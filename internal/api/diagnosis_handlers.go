package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/service"
)

// handleSubmitDiagnosis accepts the multipart form from the field app: an
// image file plus the patient fields.
func (s *Server) handleSubmitDiagnosis(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			s.writeError(c, err)
		case errors.Is(err, http.ErrMissingFile):
			s.writeError(c, domain.NewValidationError("image", "is required", nil))
		default:
			s.badRequest(c, "Invalid multipart form", err.Error())
		}
		return
	}

	f, err := file.Open()
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil {
		s.writeError(c, err)
		return
	}

	// A malformed age becomes 0 and fails patient validation.
	age, _ := strconv.Atoi(strings.TrimSpace(c.PostForm("age")))
	nearby := c.PostForm("nearby_cases")
	if nearby == "" {
		nearby = c.PostForm("nearbyCases")
	}

	diagnosis, err := s.services.Diagnoses.Submit(c.Request.Context(), service.SubmitRequest{
		Patient: domain.PatientContext{
			Name:        strings.TrimSpace(c.PostForm("name")),
			Age:         age,
			Gender:      strings.TrimSpace(c.PostForm("gender")),
			Symptoms:    strings.TrimSpace(c.PostForm("symptoms")),
			Duration:    strings.TrimSpace(c.PostForm("duration")),
			Severity:    strings.TrimSpace(c.PostForm("severity")),
			Fever:       strings.TrimSpace(c.PostForm("fever")),
			NearbyCases: strings.TrimSpace(nearby),
		},
		Image: image,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"diagnosis": diagnosis.Summary(),
	})
}

func (s *Server) handleGetDiagnosis(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	diagnosis, err := s.services.Diagnoses.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "diagnosis": diagnosis})
}

func (s *Server) handleListDiagnoses(c *gin.Context) {
	limit, offset := pagination(c)
	diagnoses, total, err := s.services.Diagnoses.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}

	items := make([]domain.DiagnosisListItem, 0, len(diagnoses))
	for _, d := range diagnoses {
		items = append(items, d.ListItem())
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"diagnoses": items,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateDiagnosisStatus(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if !s.bindJSON(c, &req) {
		return
	}

	diagnosis, err := s.services.Diagnoses.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Status updated successfully",
		"diagnosis": gin.H{
			"id":        diagnosis.ID,
			"status":    diagnosis.Status,
			"updatedAt": diagnosis.UpdatedAt,
		},
	})
}
