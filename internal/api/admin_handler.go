package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/services"
)

type RoleUpdateRequest struct {
	Role string `json:"role" binding:"required"`
}

func (s *Server) dashboard(c *gin.Context) {
	overview, err := s.services.Dashboard.Overview(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) listReports(c *gin.Context) {
	startDate, err := queryDate(c, "startDate", false)
	if err != nil {
		s.handleError(c, err)
		return
	}
	endDate, err := queryDate(c, "endDate", true)
	if err != nil {
		s.handleError(c, err)
		return
	}

	page, err := s.services.Reports.List(c.Request.Context(), actorFrom(c), services.ReportQuery{
		Status:     c.Query("status"),
		ReportType: c.Query("reportType"),
		Severity:   c.Query("severity"),
		StartDate:  startDate,
		EndDate:    endDate,
		Page:       queryInt(c, "page", 1),
		Limit:      queryInt(c, "limit", 20),
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) exportReports(c *gin.Context) {
	startDate, err := queryDate(c, "startDate", false)
	if err != nil {
		s.handleError(c, err)
		return
	}
	endDate, err := queryDate(c, "endDate", true)
	if err != nil {
		s.handleError(c, err)
		return
	}

	export, err := s.services.Export.ExportReports(c.Request.Context(), actorFrom(c), services.ExportRequest{
		Format:   services.ExportFormat(c.DefaultQuery("format", string(services.FormatCSV))),
		DateFrom: startDate,
		DateTo:   endDate,
		Status:   c.Query("status"),
	})
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Content)
}

func (s *Server) listUsers(c *gin.Context) {
	page, err := s.services.Users.ListUsers(c.Request.Context(), actorFrom(c), services.UserQuery{
		Role:       c.Query("role"),
		Department: c.Query("department"),
		Search:     c.Query("search"),
		Page:       queryInt(c, "page", 1),
		Limit:      queryInt(c, "limit", 20),
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) updateUserRole(c *gin.Context) {
	var req RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	user, err := s.services.Users.UpdateRole(c.Request.Context(), actorFrom(c), c.Param("id"), req.Role)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User role updated",
		"user":    user,
	})
}

func (s *Server) auditLogs(c *gin.Context) {
	page, err := s.services.Dashboard.AuditLog(c.Request.Context(), actorFrom(c), queryInt(c, "page", 1), queryInt(c, "limit", 50))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) systemHealth(c *gin.Context) {
	health, err := s.services.Dashboard.Health(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) metricsSnapshot(c *gin.Context) {
	snapshot, err := s.services.Dashboard.Metrics(actorFrom(c))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
