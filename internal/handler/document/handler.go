package document

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/handler"
	"github.com/jwalitptl/dispensing-api/internal/middleware"
	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/rbac"
	"github.com/jwalitptl/dispensing-api/internal/service/document"
)

type Service interface {
	Consult(ctx context.Context, kind model.SearchKind, term string) (*document.ConsultationResult, error)
	List(ctx context.Context, filter *model.DocumentFilter) ([]*model.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
	File(ctx context.Context, id uuid.UUID) (*model.Document, []byte, error)
	Delete(ctx context.Context, id, actor uuid.UUID) error
	Attach(ctx context.Context, id uuid.UUID, fileName string, data []byte) (*model.Document, error)
}

type Handler struct {
	service   Service
	maxUpload int64
}

func NewHandler(service Service, maxUpload int64) *Handler {
	return &Handler{service: service, maxUpload: maxUpload}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	docs := r.Group("/documents", auth.Authenticate())
	{
		docs.GET("/consult", auth.RequireCapability(rbac.CapDocumentConsultation), h.Consult)

		view := docs.Group("", auth.RequireCapability(rbac.CapSavedDocuments))
		view.GET("", h.List)
		view.GET("/:id", h.Get)
		view.GET("/:id/file", h.Download)

		manage := docs.Group("", auth.RequireCapability(rbac.CapSavedDocumentsManage))
		manage.DELETE("/:id", h.Delete)
		manage.POST("/:id/file", h.Attach)
	}
}

// Consult searches saved documents by national ID or MSD number. Without a
// term the result is an empty, unsearched page.
func (h *Handler) Consult(c *gin.Context) {
	result, err := h.service.Consult(c.Request.Context(), model.SearchKind(c.Query("type")), c.Query("q"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) List(c *gin.Context) {
	var filter model.DocumentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	docs, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(docs))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	doc, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doc))
}

func (h *Handler) Download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	doc, data, err := h.service.File(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, data)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	actor := middleware.IdentityFrom(c)
	if err := h.service.Delete(c.Request.Context(), id, actor.ID); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse("document deleted successfully"))
}

// Attach uploads the file of a pending document from the multipart field "file".
func (h *Handler) Attach(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	name, data, ok := handler.ReadUpload(c, "file", h.maxUpload)
	if !ok {
		return
	}

	doc, err := h.service.Attach(c.Request.Context(), id, name, data)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doc))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid document ID"))
		return uuid.Nil, false
	}
	return id, true
}

