package license

import (
	"net/http"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/v1")
	v1.POST("/licenses", h.CreateLicense)
	v1.GET("/licenses/:tenant_id", h.GetLicense)

	authed := v1.Group("", middleware.BearerAuth())
	authed.POST("/apps/register", h.RegisterApplication)
	authed.POST("/jobs/start", h.StartJob)
}

func (h *Handler) CreateLicense(c *gin.Context) {
	var req CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid request body", errutil.WithErr(err)))
		return
	}

	resp, err := h.svc.CreateLicense(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetLicense(c *gin.Context) {
	lic, err := h.svc.GetLicense(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, lic)
}

func (h *Handler) RegisterApplication(c *gin.Context) {
	var req RegisterApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid request body", errutil.WithErr(err)))
		return
	}

	resp, err := h.svc.RegisterApplication(c.Request.Context(), middleware.BearerToken(c), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) StartJob(c *gin.Context) {
	var req StartJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid request body", errutil.WithErr(err)))
		return
	}

	resp, err := h.svc.StartJob(c.Request.Context(), middleware.BearerToken(c), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
