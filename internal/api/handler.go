package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/service"
	"marketplace-service/internal/session"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// SessionHeader carries the session id in both directions
	SessionHeader = "X-Session-ID"
	// UserHeader identifies the calling user
	UserHeader = "X-User-ID"

	sessionContextKey = "session"
)

// Services are the collaborators the handlers call into
type Services struct {
	Sessions *session.Manager
	Checkout *service.CheckoutService
	Promos   *service.PromoService
	Listings *service.ListingService
	Payouts  *service.PayoutService
	Accounts *service.AccountService
	// Ready reports whether backing infrastructure is reachable. Nil means
	// always ready.
	Ready func(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	sessions *session.Manager
	checkout *service.CheckoutService
	promos   *service.PromoService
	listings *service.ListingService
	payouts  *service.PayoutService
	accounts *service.AccountService
	ready    func(ctx context.Context) error
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(s Services) *Handler {
	return &Handler{
		sessions: s.Sessions,
		checkout: s.Checkout,
		promos:   s.Promos,
		listings: s.Listings,
		payouts:  s.Payouts,
		accounts: s.Accounts,
		ready:    s.Ready,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.sessionMiddleware())
	{
		v1.GET("/session", h.getSession)
		v1.POST("/session", h.login)
		v1.DELETE("/session", h.logout)
		v1.PATCH("/session/preferences", h.updatePreferences)

		v1.GET("/categories", h.listCategories)
		v1.GET("/categories/:id/form", h.categoryForm)

		v1.POST("/promos/validate", h.validatePromo)

		v1.POST("/checkout/quote", h.quote)
		v1.POST("/checkout/orders", h.placeOrder)
		v1.GET("/orders/:id", h.getOrder)

		wiz := v1.Group("/listings/wizard")
		{
			wiz.POST("", h.startWizard)
			wiz.GET("/:id", h.getWizard)
			wiz.PATCH("/:id", h.updateWizard)
			wiz.POST("/:id/next", h.nextStep)
			wiz.POST("/:id/prev", h.prevStep)
			wiz.POST("/:id/draft", h.saveDraft)
			wiz.POST("/:id/publish", h.publishListing)
		}

		v1.GET("/sellers/:id/payouts", h.listPayouts)

		v1.GET("/me/payment-methods", h.listPaymentMethods)
		v1.GET("/me/kyc-documents", h.listKYCDocuments)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"details": err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// sessionMiddleware loads the caller's session and puts it in the request
// context, where the REST backend picks up the bearer token.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := h.sessions.Init(c.Request.Context(), c.GetHeader(SessionHeader))
		if err != nil {
			h.logger.Error("Failed to initialise session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to load session",
				"details": err.Error(),
			})
			return
		}

		c.Header(SessionHeader, s.ID)
		c.Set(sessionContextKey, s)
		c.Request = c.Request.WithContext(session.WithSession(c.Request.Context(), s))
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionContextKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

type sessionResponse struct {
	ID               string `json:"id"`
	Authenticated    bool   `json:"authenticated"`
	SidebarCollapsed bool   `json:"sidebar_collapsed"`
}

func sessionView(s *session.Session) sessionResponse {
	return sessionResponse{
		ID:               s.ID,
		Authenticated:    s.Authenticated(),
		SidebarCollapsed: s.SidebarCollapsed,
	}
}

func (h *Handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionView(currentSession(c)))
}

type loginRequest struct {
	Token string `json:"token" binding:"required"`
}

// login stores the bearer token issued by the identity provider
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s := currentSession(c)
	if err := h.sessions.Set(c.Request.Context(), s, req.Token); err != nil {
		if errors.Is(err, session.ErrEmptyToken) {
			badRequest(c, err)
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

func (h *Handler) logout(c *gin.Context) {
	s := currentSession(c)
	if err := h.sessions.Clear(c.Request.Context(), s); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

type preferencesRequest struct {
	SidebarCollapsed *bool `json:"sidebar_collapsed" binding:"required"`
}

func (h *Handler) updatePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s := currentSession(c)
	if err := h.sessions.SetSidebarCollapsed(c.Request.Context(), s, *req.SidebarCollapsed); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

func (h *Handler) listPaymentMethods(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	methods, err := h.accounts.PaymentMethods(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
}

func (h *Handler) listKYCDocuments(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	docs, err := h.accounts.KYCDocuments(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kyc_documents": docs})
}

func (h *Handler) listPayouts(c *gin.Context) {
	payouts, err := h.payouts.ListPayouts(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": payouts})
}

func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(UserHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": UserHeader + " header is required",
		})
		return "", false
	}
	return userID, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
