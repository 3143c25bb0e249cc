package capture

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/camera"
	flow "github.com/jwalitptl/dispensing-api/internal/capture"
	"github.com/jwalitptl/dispensing-api/internal/handler"
	"github.com/jwalitptl/dispensing-api/internal/lookup"
	"github.com/jwalitptl/dispensing-api/internal/middleware"
	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/rbac"
	capturesvc "github.com/jwalitptl/dispensing-api/internal/service/capture"
	apperrors "github.com/jwalitptl/dispensing-api/pkg/errors"
)

// Registry hands out the capture flow of a session.
type Registry interface {
	Flow(sessionID string, owner uuid.UUID) *flow.Flow
	Camera(sessionID string, owner uuid.UUID) (*camera.PushDevice, error)
	End(sessionID string)
}

type Handler struct {
	flows     Registry
	maxUpload int64
	maxFrame  int64
}

func NewHandler(flows Registry, maxUpload, maxFrame int64) *Handler {
	return &Handler{flows: flows, maxUpload: maxUpload, maxFrame: maxFrame}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	group := r.Group("/capture", auth.Authenticate(), auth.RequireCapability(rbac.CapDocumentCapture))
	{
		group.GET("", h.Snapshot)
		group.DELETE("", h.Reset)
		group.POST("/search", h.Search)
		group.POST("/save", h.Save)

		cam := group.Group("/camera")
		cam.POST("/permission", h.Permission)
		cam.POST("/open", h.OpenCamera)
		cam.POST("/frames", h.PushFrame)
		cam.POST("/capture", h.Capture)
		cam.POST("/confirm-back", h.ConfirmBackSide)
		cam.POST("/cancel", h.Cancel)

		group.POST("/documents/:category", h.Upload)
		group.DELETE("/documents/:category", h.Remove)
		group.DELETE("/documents/:category/:index", h.RemoveAt)
	}
}

type searchRequest struct {
	Type model.SearchKind `json:"type"`
	Term string           `json:"term"`
}

type categoryRequest struct {
	Category model.Category `json:"category" binding:"required"`
}

type permissionRequest struct {
	Granted *bool `json:"granted" binding:"required"`
}

// result carries the artifact an action produced, if any, and the flow as it
// now stands.
type result struct {
	Artifact *flow.ArtifactView `json:"artifact,omitempty"`
	Receipt  *model.SaveReceipt `json:"receipt,omitempty"`
	Flow     flow.Snapshot      `json:"flow"`
}

func (h *Handler) flow(c *gin.Context) *flow.Flow {
	identity := middleware.IdentityFrom(c)
	return h.flows.Flow(middleware.SessionIDFrom(c), identity.ID)
}

func (h *Handler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.flow(c).Snapshot()))
}

// Reset drops the flow of the session with everything collected in it.
func (h *Handler) Reset(c *gin.Context) {
	h.flows.End(middleware.SessionIDFrom(c))
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.flow(c).Snapshot()))
}

func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if req.Type == "" {
		req.Type = model.SearchByNationalID
	}

	f := h.flow(c)
	if _, err := f.Search(c.Request.Context(), req.Type, req.Term); err != nil {
		fail(c, searchError(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result{Flow: f.Snapshot()}))
}

func (h *Handler) Permission(c *gin.Context) {
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("granted is required"))
		return
	}

	identity := middleware.IdentityFrom(c)
	device, err := h.flows.Camera(middleware.SessionIDFrom(c), identity.ID)
	if err != nil {
		fail(c, err)
		return
	}
	device.Grant(*req.Granted)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"granted": device.Granted()}))
}

func (h *Handler) OpenCamera(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("category is required"))
		return
	}

	f := h.flow(c)
	if err := f.OpenCamera(c.Request.Context(), req.Category); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result{Flow: f.Snapshot()}))
}

// PushFrame takes one PNG or JPEG frame as the raw request body.
func (h *Handler) PushFrame(c *gin.Context) {
	identity := middleware.IdentityFrom(c)
	device, err := h.flows.Camera(middleware.SessionIDFrom(c), identity.ID)
	if err != nil {
		fail(c, err)
		return
	}

	body := c.Request.Body
	if h.maxFrame > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxFrame)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		fail(c, camera.ErrFrameTooLarge)
		return
	}
	if err := device.Push(data); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Capture(c *gin.Context) {
	f := h.flow(c)
	artifact, err := f.Capture(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result{Artifact: artifact, Flow: f.Snapshot()}))
}

func (h *Handler) ConfirmBackSide(c *gin.Context) {
	f := h.flow(c)
	if err := f.ConfirmBackSide(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result{Flow: f.Snapshot()}))
}

func (h *Handler) Cancel(c *gin.Context) {
	f := h.flow(c)
	f.Cancel()
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result{Flow: f.Snapshot()}))
}

// Upload stores the multipart field "file" under the category in the path.
func (h *Handler) Upload(c *gin.Context) {
	category := model.Category(c.Param("category"))
	if !category.Valid() {
		fail(c, flow.ErrInvalidCategory)
		return
	}

	name, data, ok := handler.ReadUpload(c, "file", h.maxUpload)
	if !ok {
		return
	}

	f := h.flow(c)
	artifact, err := f.Upload(category, name, data)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(result{Artifact: artifact, Flow: f.Snapshot()}))
}

func (h *Handler) Remove(c *gin.Context) {
	f := h.flow(c)
	if err := f.Remove(model.Category(c.Param("category"))); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result{Flow: f.Snapshot()}))
}

func (h *Handler) RemoveAt(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid document index"))
		return
	}

	f := h.flow(c)
	if err := f.RemoveAt(model.Category(c.Param("category")), index); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result{Flow: f.Snapshot()}))
}

func (h *Handler) Save(c *gin.Context) {
	var opts flow.SaveOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
	}

	f := h.flow(c)
	receipt, err := f.Save(c.Request.Context(), opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(result{Receipt: receipt, Flow: f.Snapshot()}))
}

// searchError reports lookup failures that are not flow errors as upstream errors.
func searchError(err error) error {
	if known(err) {
		return err
	}
	return apperrors.Upstream(lookup.ErrUpstream.Error(), err)
}

func known(err error) bool {
	if flow.IsValidation(err) {
		return true
	}
	for _, target := range []error{
		flow.ErrPatientNotFound,
		flow.ErrInvalidState,
		flow.ErrSuperseded,
		flow.ErrFlowClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fail maps flow and camera errors onto statuses. A save missing mandatory
// documents lists them in the response data.
func fail(c *gin.Context, err error) {
	var verr *flow.ValidationError
	if errors.As(err, &verr) {
		if len(verr.Missing) > 0 {
			handler.FailWith(c, http.StatusUnprocessableEntity, verr.Error(), gin.H{"missing": verr.Missing})
			return
		}
		handler.FailWith(c, http.StatusBadRequest, verr.Message, gin.H{"field": verr.Field})
		return
	}
	handler.Fail(c, mapError(err))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, flow.ErrPatientNotFound):
		return apperrors.NotFound("patient", err)
	case errors.Is(err, flow.ErrArtifactNotFound):
		return apperrors.NotFound("document", err)
	case errors.Is(err, flow.ErrInvalidCategory):
		return apperrors.BadRequest(err.Error(), err)
	case errors.Is(err, flow.ErrUnsupportedFile),
		errors.Is(err, flow.ErrFileTooLarge),
		errors.Is(err, flow.ErrEmptyFile),
		errors.Is(err, camera.ErrFrameTooLarge),
		errors.Is(err, camera.ErrBadFrame):
		return apperrors.Unprocessable(rootMessage(err), err)
	case errors.Is(err, flow.ErrCameraPermission),
		errors.Is(err, flow.ErrCameraBusy),
		errors.Is(err, flow.ErrCameraUnavailable),
		errors.Is(err, flow.ErrNoFrame),
		errors.Is(err, flow.ErrNoActivePatient),
		errors.Is(err, flow.ErrInvalidState),
		errors.Is(err, flow.ErrSuperseded),
		errors.Is(err, flow.ErrFlowClosed),
		errors.Is(err, camera.ErrNotStreaming),
		errors.Is(err, capturesvc.ErrNoPushCamera):
		return apperrors.Conflict(rootMessage(err), err)
	}
	return err
}

// rootMessage is the message of the innermost sentinel in err.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
