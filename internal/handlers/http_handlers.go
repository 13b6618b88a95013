package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"

	"zapwheel/internal/models"
	"zapwheel/internal/services"
	"zapwheel/internal/store"
	"zapwheel/internal/wheel"
	"zapwheel/pkg/speedapi"
)

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	store         *store.Store
	spins         *services.SpinService
	gateway       *speedapi.Client
	defaultAmount int64
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(st *store.Store, spins *services.SpinService, gateway *speedapi.Client, defaultAmount int64) *HTTPHandler {
	return &HTTPHandler{
		store:         st,
		spins:         spins,
		gateway:       gateway,
		defaultAmount: defaultAmount,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/status", h.GetStatus)
		api.GET("/sessions", h.ListSessions)
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions/:id", h.GetSession)
		api.DELETE("/sessions/:id", h.EndSession)
		api.POST("/sessions/:id/checkin", h.CheckIn)
		api.GET("/sessions/:id/participants", h.ListParticipants)
		api.POST("/sessions/:id/spin", h.Spin)
		api.POST("/sessions/:id/payouts", h.RecordPayout)
		api.GET("/participants/:id", h.GetParticipant)
		api.DELETE("/participants/:id", h.RemoveParticipant)
	}
}

// abortWithError maps store and wheel errors onto HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidAmount),
		errors.Is(err, wheel.ErrEmptyPool):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GetStatus reports the gateway mode, wallet balance and store counters.
func (h *HTTPHandler) GetStatus(c *gin.Context) {
	balance := h.gateway.Balance(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"gateway":       h.gateway.Status(),
		"balance":       balance.Amount,
		"balance_error": balance.Err,
		"store":         h.store.Status(),
		"wheel":         h.spins.Phase().String(),
	})
}

// ListSessions returns all active sessions.
func (h *HTTPHandler) ListSessions(c *gin.Context) {
	sessions := h.store.ListSessions()
	active := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Active {
			active = append(active, s)
		}
	}
	c.JSON(http.StatusOK, active)
}

type createSessionRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateSession opens a new session and returns the viewer-facing URLs.
func (h *HTTPHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	session, err := h.store.CreateSession(uuid.NewString(), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	logger.Infof("created session %s (%s)", session.ID, session.Name)

	baseURL := requestBaseURL(c)
	c.JSON(http.StatusOK, gin.H{
		"sessionId":  session.ID,
		"name":       session.Name,
		"checkInUrl": fmt.Sprintf("%s/checkin/%s", baseURL, session.ID),
		"adminUrl":   fmt.Sprintf("%s/admin/%s", baseURL, session.ID),
		"wheelUrl":   fmt.Sprintf("%s/wheel/%s", baseURL, session.ID),
	})
}

// GetSession ensures the session exists and returns it with its pool
// and derived stats. Ensure, not get: a session link must stay
// resolvable even when the process that created it is gone.
func (h *HTTPHandler) GetSession(c *gin.Context) {
	id := c.Param("id")
	session := h.store.EnsureSession(id, "")
	c.JSON(http.StatusOK, gin.H{
		"session":      session,
		"participants": h.store.ListParticipants(id),
		"stats":        h.store.SessionStats(id),
	})
}

// EndSession soft-closes a session.
func (h *HTTPHandler) EndSession(c *gin.Context) {
	if err := h.store.DeactivateSession(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session ended successfully"})
}

type checkInRequest struct {
	Username     string `json:"username"`
	SpeedAddress string `json:"speedAddress"`
}

// CheckIn registers a viewer into the session's pool.
func (h *HTTPHandler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and Speed address are required"})
		return
	}

	registrant, err := h.store.RegisterParticipant(c.Param("id"), req.Username, req.SpeedAddress)
	if err != nil {
		abortWithError(c, err)
		return
	}
	logger.Infof("new registrant in session %s: %s", registrant.SessionID, registrant.Name)
	c.JSON(http.StatusOK, gin.H{
		"message":     "Successfully checked in!",
		"participant": registrant,
	})
}

// ListParticipants returns the session's pool in registration order.
func (h *HTTPHandler) ListParticipants(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.ListParticipants(c.Param("id")))
}

// GetParticipant returns a single registrant.
func (h *HTTPHandler) GetParticipant(c *gin.Context) {
	registrant, err := h.store.GetParticipant(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, registrant)
}

// RemoveParticipant drops a registrant from the pool.
func (h *HTTPHandler) RemoveParticipant(c *gin.Context) {
	if err := h.store.RemoveParticipant(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Participant removed"})
}

type spinRequest struct {
	Amount int64 `json:"amount"`
}

// Spin starts a selection against the session's current pool. The
// response carries the drawn rotation and duration; the payout fires
// when the wheel settles.
func (h *HTTPHandler) Spin(c *gin.Context) {
	req := spinRequest{Amount: h.defaultAmount}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Amount == 0 {
			req.Amount = h.defaultAmount
		}
	}

	spin, err := h.spins.Start(c.Param("id"), req.Amount)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"rotation":    spin.Rotation,
		"duration_ms": spin.Duration.Milliseconds(),
		"pool_size":   spin.PoolSize,
		"amount":      req.Amount,
	})
}

type payoutRequest struct {
	RegistrantID string `json:"registrantId" binding:"required"`
	Amount       int64  `json:"amount"`
}

// RecordPayout pays a caller-chosen winner and records the outcome.
func (h *HTTPHandler) RecordPayout(c *gin.Context) {
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Winner participant ID is required"})
		return
	}
	if req.Amount == 0 {
		req.Amount = h.defaultAmount
	}

	record, result, err := h.spins.PayDirect(c.Param("id"), req.RegistrantID, req.Amount)
	if err != nil {
		abortWithError(c, err)
		return
	}

	message := "Winner selected but zap failed"
	if result.Success {
		if result.Simulated {
			message = "Winner selected and zap simulated!"
		} else {
			message = "Winner selected and zap sent!"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   message,
		"payout":    record,
		"zapResult": result,
	})
}

func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}
