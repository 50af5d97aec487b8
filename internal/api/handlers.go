package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oncodiag-server/internal/domain"
)

// submitRequest is the consultation submission body sent by a UI collaborator.
type submitRequest struct {
	PatientID      string `json:"patient_id" binding:"required"`
	PatientName    string `json:"patient_name"`
	PatientAge     int    `json:"patient_age"`
	Description    string `json:"description" binding:"required"`
	FileName       string `json:"file_name"`
	FileType       string `json:"file_type"`
	PreviewPayload string `json:"preview_payload"`
	Mode           string `json:"mode"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// handleSubmitConsultation runs one orchestrated submission. A report is
// always produced for a valid submission; degraded reports carry the flag so
// the UI can warn the clinician.
func (s *Server) handleSubmitConsultation(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := domain.Submission{
		PatientID:      req.PatientID,
		PatientName:    req.PatientName,
		PatientAge:     req.PatientAge,
		Description:    req.Description,
		FileName:       req.FileName,
		FileType:       domain.FileType(req.FileType),
		PreviewPayload: req.PreviewPayload,
		Mode:           domain.SelectionMode(req.Mode),
	}

	built, err := s.submissions.Submit(c.Request.Context(), sub)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrEmptyDescription) ||
			errors.Is(err, domain.ErrEmptyPatientID) ||
			errors.Is(err, domain.ErrInvalidMode) ||
			errors.Is(err, domain.ErrInvalidFileType) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"report": built,
	})
}

// handleListPatients returns the roster with last-known summaries.
func (s *Server) handleListPatients(c *gin.Context) {
	query := c.Query("q")
	patients := s.records.Search(query)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"patients": patients,
	})
}

// handleGetPatient returns a single patient by id.
func (s *Server) handleGetPatient(c *gin.Context) {
	patient, ok := s.records.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "patient not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"patient": patient,
	})
}

// handleListReports returns a patient's report history in insertion order.
func (s *Server) handleListReports(c *gin.Context) {
	reports := s.records.ListReports(c.Param("id"))
	if reports == nil {
		reports = []domain.MedicalReport{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reports": reports,
	})
}
