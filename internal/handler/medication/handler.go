package medication

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/handler"
	"github.com/jwalitptl/dispensing-api/internal/middleware"
	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/rbac"
)

type Service interface {
	Delivered(ctx context.Context, filter *model.MedicationFilter) ([]*model.Medication, error)
	Pending(ctx context.Context, filter *model.MedicationFilter) ([]*model.Medication, error)
	MarkDelivered(ctx context.Context, id string, actor uuid.UUID) (*model.Medication, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	meds := r.Group("/medications", auth.Authenticate(), auth.RequireCapability(rbac.CapMedicationRecord))
	{
		meds.GET("/delivered", h.ListDelivered)
		meds.GET("/pending", h.ListPending)
		meds.POST("/:id/deliver", h.MarkDelivered)
	}
}

func (h *Handler) ListDelivered(c *gin.Context) {
	h.list(c, h.service.Delivered)
}

func (h *Handler) ListPending(c *gin.Context) {
	h.list(c, h.service.Pending)
}

func (h *Handler) list(c *gin.Context, fetch func(context.Context, *model.MedicationFilter) ([]*model.Medication, error)) {
	var filter model.MedicationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	meds, err := fetch(c.Request.Context(), &filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(meds))
}

func (h *Handler) MarkDelivered(c *gin.Context) {
	actor := middleware.IdentityFrom(c)
	med, err := h.service.MarkDelivered(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(med))
}
