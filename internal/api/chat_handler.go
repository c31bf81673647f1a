package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/services"
)

func (s *Server) chat(c *gin.Context) {
	var req services.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	reply, err := s.services.Chat.Reply(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}
