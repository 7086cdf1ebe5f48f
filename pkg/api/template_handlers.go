package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gamenightbot/gamenight/pkg/services"
)

func (s *Server) handleListTemplates(c *gin.Context) {
	templates, err := s.templates.List(c.Request.Context(), currentGuild(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	template, err := s.templates.Get(c.Request.Context(), currentGuild(c).ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": template})
}

func (s *Server) handleCreateTemplate(c *gin.Context) {
	if !s.requireManage(c) {
		return
	}

	var req services.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error()})
		return
	}

	template, err := s.templates.Create(c.Request.Context(), currentGuild(c).ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": template})
}

func (s *Server) handleUpdateTemplate(c *gin.Context) {
	if !s.requireManage(c) {
		return
	}

	var req services.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error()})
		return
	}

	template, err := s.templates.Update(c.Request.Context(), currentGuild(c).ID, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": template})
}

func (s *Server) handleDeleteTemplate(c *gin.Context) {
	if !s.requireManage(c) {
		return
	}

	if err := s.templates.Delete(c.Request.Context(), currentGuild(c).ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSetDefaultTemplate(c *gin.Context) {
	if !s.requireManage(c) {
		return
	}

	if err := s.templates.SetDefault(c.Request.Context(), currentGuild(c).ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReorderTemplates(c *gin.Context) {
	if !s.requireManage(c) {
		return
	}

	var req struct {
		Order []string `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error()})
		return
	}

	if err := s.templates.Reorder(c.Request.Context(), currentGuild(c).ID, req.Order); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
