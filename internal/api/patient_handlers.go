package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/service"
)

func (s *Server) handleListPatients(c *gin.Context) {
	limit, offset := pagination(c)
	patients, total, err := s.services.Patients.List(c.Request.Context(), domain.PatientFilter{
		Search:  c.Query("search"),
		Village: c.Query("village"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"patients": patients,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetPatient(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	patient, err := s.services.Patients.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "patient": patient})
}

func (s *Server) handleCreatePatient(c *gin.Context) {
	var in service.CreatePatientInput
	if !s.bindJSON(c, &in) {
		return
	}
	patient, err := s.services.Patients.Create(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "patient": patient})
}

func (s *Server) handleUpdatePatient(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	var in service.UpdatePatientInput
	if !s.bindJSON(c, &in) {
		return
	}
	patient, err := s.services.Patients.Update(c.Request.Context(), id, in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "patient": patient})
}

func (s *Server) handlePatientHistory(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	patient, history, err := s.services.Patients.History(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"patient": gin.H{
			"id":      patient.ID,
			"name":    patient.Name,
			"age":     patient.Age,
			"gender":  patient.Gender,
			"village": patient.Village,
		},
		"history": history,
	})
}

func (s *Server) handlePatientStats(c *gin.Context) {
	stats, err := s.services.Patients.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
