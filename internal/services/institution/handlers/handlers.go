package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaptermaps/institution-service/internal/domain/apperr"
	"github.com/chaptermaps/institution-service/internal/domain/institution"
	"github.com/chaptermaps/institution-service/internal/services/institution/service"
	"github.com/chaptermaps/institution-service/pkg/logger"
)

type InstitutionHandlers struct {
	service *service.InstitutionService
	logger  logger.Logger
}

func NewInstitutionHandlers(service *service.InstitutionService, log logger.Logger) *InstitutionHandlers {
	return &InstitutionHandlers{service: service, logger: log}
}

type CreateInstitutionRequest struct {
	Name                   string `json:"name" binding:"required"`
	Country                string `json:"country" binding:"required"`
	Address                string `json:"address" binding:"required"`
	ChapterName            string `json:"chapter_name" binding:"required"`
	OSMMapping             int    `json:"OSM_mapping"`
	ContributorFullName    string `json:"contributor_full_name" binding:"required"`
	ContributorEmail       string `json:"contributor_email" binding:"required,email"`
	ContributorPhoneNumber string `json:"contributor_phone_number" binding:"required"`
	RoleInChapter          string `json:"role_in_chapter"`
}

type UpdateInstitutionRequest struct {
	Name                   *string `json:"name"`
	Country                *string `json:"country"`
	Address                *string `json:"address"`
	ChapterName            *string `json:"chapter_name"`
	OSMMapping             *int    `json:"OSM_mapping"`
	ContributorFullName    *string `json:"contributor_full_name"`
	ContributorEmail       *string `json:"contributor_email"`
	ContributorPhoneNumber *string `json:"contributor_phone_number"`
	RoleInChapter          *string `json:"role_in_chapter"`
}

func (h *InstitutionHandlers) List(c *gin.Context) {
	institutions, err := h.service.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, institutions)
}

func (h *InstitutionHandlers) Get(c *gin.Context) {
	inst, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

func (h *InstitutionHandlers) Create(c *gin.Context) {
	var req CreateInstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, err := h.service.Create(c.Request.Context(), institution.Institution{
		Name:                   req.Name,
		Country:                req.Country,
		Address:                req.Address,
		ChapterName:            req.ChapterName,
		OSMMapping:             req.OSMMapping,
		ContributorFullName:    req.ContributorFullName,
		ContributorEmail:       req.ContributorEmail,
		ContributorPhoneNumber: req.ContributorPhoneNumber,
		RoleInChapter:          req.RoleInChapter,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, inst)
}

func (h *InstitutionHandlers) Update(c *gin.Context) {
	var req UpdateInstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, err := h.service.Update(c.Request.Context(), c.Param("id"), service.Updates{
		Name:                   req.Name,
		Country:                req.Country,
		Address:                req.Address,
		ChapterName:            req.ChapterName,
		OSMMapping:             req.OSMMapping,
		ContributorFullName:    req.ContributorFullName,
		ContributorEmail:       req.ContributorEmail,
		ContributorPhoneNumber: req.ContributorPhoneNumber,
		RoleInChapter:          req.RoleInChapter,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inst)
}

func (h *InstitutionHandlers) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "institution deleted successfully"})
}

func (h *InstitutionHandlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConversion:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("institution request failed", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, gin.H{"error": apperr.Message(err)})
}
