package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/services"
)

type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type NoteRequest struct {
	Note string `json:"note" binding:"required"`
}

type VerdictRequest struct {
	Verdict string `json:"verdict" binding:"required"`
	Reason  string `json:"reason"`
}

type BulkUpdateRequest struct {
	ReportIDs []string `json:"reportIds" binding:"required,min=1"`
	Status    string   `json:"status" binding:"required"`
	Notes     string   `json:"notes"`
}

// submitReport accepts JSON or a multipart form carrying "attachments" files.
func (s *Server) submitReport(c *gin.Context) {
	var in services.SubmitReportInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			s.respondError(c, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		in = services.SubmitReportInput{
			EmailSubject: formValue(form, "emailSubject"),
			SenderEmail:  formValue(form, "senderEmail"),
			SenderName:   formValue(form, "senderName"),
			EmailContent: formValue(form, "emailContent"),
			EmailHeaders: formValue(form, "emailHeaders"),
			ReportType:   formValue(form, "reportType"),
			Severity:     formValue(form, "severity"),
		}
		for _, fh := range form.File["attachments"] {
			f, err := fh.Open()
			if err != nil {
				s.respondError(c, http.StatusBadRequest, "Invalid attachment", err.Error())
				return
			}
			defer f.Close()
			in.Attachments = append(in.Attachments, services.AttachmentUpload{
				OriginalName: fh.Filename,
				Mimetype:     fh.Header.Get("Content-Type"),
				Size:         fh.Size,
				Content:      f,
			})
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		s.bindError(c, err)
		return
	}
	in.IPAddress = c.ClientIP()
	in.UserAgent = c.GetHeader("User-Agent")

	report, err := s.services.Reports.Submit(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"message":   "Report submitted successfully",
		"reportId":  report.ID,
		"status":    report.Status,
		"riskScore": report.AnalysisResults.RiskScore,
		"report":    report,
	})
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func (s *Server) myReports(c *gin.Context) {
	page, err := s.services.Reports.ListMine(c.Request.Context(), actorFrom(c), queryInt(c, "page", 1), queryInt(c, "limit", 10))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) getReport(c *gin.Context) {
	report, err := s.services.Reports.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (s *Server) updateReportStatus(c *gin.Context) {
	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	report, err := s.services.Reports.UpdateStatus(c.Request.Context(), actorFrom(c), c.Param("id"), models.ReportStatus(req.Status), req.Notes)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Report status updated",
		"report":  report,
	})
}

func (s *Server) addReportNote(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	report, err := s.services.Reports.AddNote(c.Request.Context(), actorFrom(c), c.Param("id"), req.Note)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Note added",
		"report":  report,
	})
}

func (s *Server) setReportVerdict(c *gin.Context) {
	var req VerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	report, err := s.services.Reports.SetVerdict(c.Request.Context(), actorFrom(c), c.Param("id"), models.Verdict(req.Verdict), req.Reason)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Verdict updated",
		"report":  report,
	})
}

func (s *Server) bulkUpdateStatus(c *gin.Context) {
	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	result, err := s.services.Reports.BulkUpdateStatus(c.Request.Context(), actorFrom(c), req.ReportIDs, models.ReportStatus(req.Status), req.Notes)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    fmt.Sprintf("Updated %d of %d reports", result.Successful, len(req.ReportIDs)),
		"results":    result.Results,
		"successful": result.Successful,
		"failed":     result.Failed,
	})
}

func (s *Server) trendingSenders(c *gin.Context) {
	days := queryInt(c, "days", 30)
	senders, err := s.services.Reports.Trending(c.Request.Context(), actorFrom(c), days)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"senders": senders, "days": days})
}

func (s *Server) downloadAttachment(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		s.respondError(c, http.StatusNotFound, "Not found", "Attachment not found")
		return
	}

	att, body, err := s.services.Reports.OpenAttachment(c.Request.Context(), actorFrom(c), c.Param("id"), index)
	if err != nil {
		s.handleError(c, err)
		return
	}
	defer body.Close()

	contentType := att.Mimetype
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, att.Size, contentType, body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", att.OriginalName),
	})
}
