package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/craftforge/backend/internal/repository"
	"github.com/craftforge/backend/internal/service"
	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	service *service.BuildService
}

func NewProjectHandler(service *service.BuildService) *ProjectHandler {
	return &ProjectHandler{
		service: service,
	}
}

type createProjectRequest struct {
	Name   string `json:"name" binding:"required"`
	Prompt string `json:"prompt" binding:"required"`
}

// Create 提交构建请求
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.service.Submit(req.Name, req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidName):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNameInUse):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, project)
}

func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.service.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	project, err := h.service.Get(uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, project)
}

// Cancel 取消正在执行的构建
func (h *ProjectHandler) Cancel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if !h.service.Cancel(uint(id)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no running build for this project"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "build cancel requested"})
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.service.Delete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}

// Artifact 下载构建产物 jar
func (h *ProjectHandler) Artifact(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	project, err := h.service.Get(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	if project.ArtifactPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no artifact for this project"})
		return
	}

	c.FileAttachment(project.ArtifactPath, filepath.Base(project.ArtifactPath))
}

// QueueStatus 编排器当前负载
func (h *ProjectHandler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.QueueStatus())
}
