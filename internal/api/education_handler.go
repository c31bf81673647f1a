package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/services"
)

func (s *Server) listModules(c *gin.Context) {
	modules, err := s.services.Education.List(c.Request.Context(), actorFrom(c), c.Query("category"), c.Query("difficulty"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules, "count": len(modules)})
}

func (s *Server) getModule(c *gin.Context) {
	module, err := s.services.Education.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"module": module})
}

func (s *Server) createModule(c *gin.Context) {
	var in services.ModuleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.bindError(c, err)
		return
	}
	module, err := s.services.Education.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "module": module})
}

func (s *Server) updateModule(c *gin.Context) {
	var in services.ModuleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.bindError(c, err)
		return
	}
	module, err := s.services.Education.Update(c.Request.Context(), actorFrom(c), c.Param("id"), in)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "module": module})
}

func (s *Server) deactivateModule(c *gin.Context) {
	if err := s.services.Education.Deactivate(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Module deactivated"})
}

func (s *Server) submitQuiz(c *gin.Context) {
	var sub services.QuizSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		s.bindError(c, err)
		return
	}
	result, err := s.services.Education.SubmitQuiz(c.Request.Context(), actorFrom(c), c.Param("id"), sub)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) moduleStats(c *gin.Context) {
	stats, err := s.services.Education.Stats(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) learningProgress(c *gin.Context) {
	progress, err := s.services.Education.Progress(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
