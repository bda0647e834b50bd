package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"complaintbot/internal/auth"
	"complaintbot/internal/models"
	"complaintbot/internal/service/intake"
	"complaintbot/internal/worker"
)

// EventProcessor is the per-user serialized pipeline behind the webhook.
type EventProcessor interface {
	Process(ctx context.Context, ev models.Event) (models.Reply, error)
	ResetUser(chatID int64)
}

// Handler wires HTTP routes to the intake service and the event pipeline.
type Handler struct {
	intake    *intake.Service
	auth      *auth.Service
	processor EventProcessor
	uploadDir string
	exportDir string
}

// NewHandler constructs a Handler instance.
func NewHandler(service *intake.Service, authService *auth.Service, processor EventProcessor, uploadDir, exportDir string) *Handler {
	return &Handler{
		intake:    service,
		auth:      authService,
		processor: processor,
		uploadDir: uploadDir,
		exportDir: exportDir,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/webhook/events", h.handleEvent)
	router.Static("/uploads", h.uploadDir)
	router.Static("/exports", h.exportDir)

	api := router.Group("/api")
	api.POST("/operators/register", h.registerOperator)
	api.POST("/operators/login", h.loginOperator)

	authMW := h.auth.Middleware()
	protected := api.Group("")
	protected.Use(authMW, h.auth.CSRFMiddleware())
	protected.POST("/operators/logout", h.logoutOperator)
	protected.POST("/sessions/:chat_id/reset", h.resetSession)
	protected.GET("/complaints", h.listComplaints)
	protected.GET("/complaints/:id", h.getComplaint)
	protected.PATCH("/complaints/:id/status", h.updateComplaintStatus)
	protected.POST("/complaints/export", h.exportComplaints)
}

// Transport webhook.
func (h *Handler) handleEvent(c *gin.Context) {
	var ev models.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if ev.ChatID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id is required"})
		return
	}
	switch ev.Kind {
	case models.EventText, models.EventVoice, models.EventCommand:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event kind"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()
	reply, err := h.processor.Process(ctx, ev)
	if err != nil {
		if errors.Is(err, worker.ErrBusy) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many pending messages, please retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

// Operator create & login interface.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) registerOperator(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	op, err := h.intake.RegisterOperator(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         op.ID,
		"username":   op.Username,
		"created_at": op.CreatedAt,
	})
}

func (h *Handler) loginOperator(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	op, err := h.intake.LoginOperator(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), op.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":         op.ID,
		"username":   op.Username,
		"created_at": op.CreatedAt,
		"auth_token": authToken,
	})
}

func (h *Handler) logoutOperator(c *gin.Context) {
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

// resetSession lets an operator unstick a reporter: the in-flight flow is
// discarded and the worker (with its cached session) dropped.
func (h *Handler) resetSession(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	session, err := h.intake.GetOrCreateSession(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	session.ResetFlow()
	if err := h.intake.SaveSession(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.processor.ResetUser(chatID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) listComplaints(c *gin.Context) {
	complaints, err := h.intake.ListComplaints(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if complaints == nil {
		complaints = make([]models.Complaint, 0)
	}
	c.JSON(http.StatusOK, gin.H{"complaints": complaints})
}

func (h *Handler) getComplaint(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid complaint id"})
		return
	}
	complaint, err := h.intake.GetComplaint(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "complaint not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (h *Handler) updateComplaintStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid complaint id"})
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	status := models.ComplaintStatus(strings.TrimSpace(req.Status))
	if err := h.intake.UpdateComplaintStatus(c.Request.Context(), id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "complaint not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) exportComplaints(c *gin.Context) {
	export, err := h.intake.ExportComplaintsCSV(c.Request.Context())
	if err != nil {
		if errors.Is(err, intake.ErrNoComplaints) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no complaints yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"file_name":  export.FileName,
		"url":        "/exports/" + export.FileName,
		"records":    export.Records,
		"expires_at": export.ExpiresAt,
	})
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	maxAge := int(h.auth.TokenTTL().Seconds())
	c.SetCookie(h.auth.AuthCookieName(), authToken, maxAge, "/", "", false, true)
	c.SetCookie(h.auth.CSRFCookieName(), csrfToken, maxAge, "/", "", false, false)
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	c.SetCookie(h.auth.AuthCookieName(), "", -1, "/", "", false, true)
	c.SetCookie(h.auth.CSRFCookieName(), "", -1, "/", "", false, false)
}
