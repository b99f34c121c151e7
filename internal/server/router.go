package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sigillo-app/backend/internal/accounts"
	"github.com/sigillo-app/backend/internal/auth"
	"github.com/sigillo-app/backend/internal/catalog"
	"github.com/sigillo-app/backend/internal/checkout"
	"github.com/sigillo-app/backend/internal/finance"
	"github.com/sigillo-app/backend/internal/messaging"
	"github.com/sigillo-app/backend/internal/submissions"
	"go.uber.org/zap"
)

const (
	userIDContextKey = "sigillo_user_id"
	roleContextKey   = "sigillo_role"
)

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingAccounts      = errors.New("account service dependency required")
	errMissingSubmissions   = errors.New("submission service dependency required")
	errMissingMessaging     = errors.New("messaging service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// SessionTokenManager issues and validates dashboard session tokens.
type SessionTokenManager interface {
	IssueSessionToken(ctx context.Context, identity auth.Identity) (string, int64, error)
	ValidateToken(token string) (auth.Identity, error)
}

// Dependencies carries every collaborator the HTTP layer needs.
type Dependencies struct {
	TokenManager SessionTokenManager
	Accounts     *accounts.Service
	Submissions  *submissions.Service
	Messaging    *messaging.Service
	Finance      *finance.Service
	Catalog      *catalog.Store
	Checkout     *checkout.Bridge
	Realtime     *RealtimeDispatcher
	Logger       *zap.Logger
}

// NewHTTPHandler assembles the API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.Submissions == nil {
		return nil, errMissingSubmissions
	}
	if deps.Messaging == nil {
		return nil, errMissingMessaging
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:      deps.TokenManager,
		accounts:    deps.Accounts,
		submissions: deps.Submissions,
		messaging:   deps.Messaging,
		finance:     deps.Finance,
		catalog:     deps.Catalog,
		checkout:    deps.Checkout,
		realtime:    deps.Realtime,
		logger:      logger,
	}

	router.POST("/auth/session", handler.handleLogin)
	if deps.Checkout != nil {
		router.POST("/checkout/session", handler.handleCheckoutSession)
	}

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)

	api.GET("/submissions", handler.handleListSubmissions)
	api.GET("/submissions/:id", handler.handleGetSubmission)
	api.GET("/submissions/:id/messages", handler.handleListMessages)
	api.POST("/submissions/:id/messages", handler.handleSendMessage)
	api.POST("/submissions/:id/messages/read", handler.handleMarkRead)
	api.GET("/submissions/:id/messages/stream", handler.handleMessageStream)
	api.GET("/messages/unread-count", handler.handleUnreadCount)

	admin := api.Group("/")
	admin.Use(handler.requireRole(auth.RoleAdmin))
	admin.POST("/submissions/:id/status", handler.handleUpdateStatus)
	admin.POST("/submissions/:id/assign", handler.handleAssignNotary)
	admin.POST("/submissions/:id/pricing", handler.handleSetPricing)

	if deps.Finance != nil {
		admin.GET("/finance/kpis", handler.handleKPIs)
		admin.GET("/payouts", handler.handleListPayouts)
		admin.POST("/payouts", handler.handleCreatePayout)
		admin.POST("/payouts/:id/status", handler.handleAdvancePayout)
		admin.DELETE("/payouts/:id", handler.handleDeletePayout)
		admin.GET("/costs", handler.handleListCosts)
		admin.POST("/costs/webservice", handler.handleCreateWebserviceCost)
		admin.PUT("/costs/webservice/:id", handler.handleUpdateWebserviceCost)
		admin.DELETE("/costs/webservice/:id", handler.handleDeleteWebserviceCost)
		admin.POST("/costs/ads", handler.handleCreateAdCost)
		admin.DELETE("/costs/ads/:id", handler.handleDeleteAdCost)
		admin.POST("/costs/other", handler.handleCreateOtherCost)
		admin.DELETE("/costs/other/:id", handler.handleDeleteOtherCost)
	}
	if deps.Catalog != nil {
		admin.GET("/catalog/services", handler.handleListCatalogServices)
		admin.POST("/catalog/services", handler.handleCreateCatalogService)
		admin.PUT("/catalog/services/:id", handler.handleUpdateCatalogService)
		admin.DELETE("/catalog/services/:id", handler.handleDeleteCatalogService)
		admin.GET("/catalog/options", handler.handleListCatalogOptions)
		admin.POST("/catalog/options", handler.handleCreateCatalogOption)
		admin.PUT("/catalog/options/:id", handler.handleUpdateCatalogOption)
		admin.DELETE("/catalog/options/:id", handler.handleDeleteCatalogOption)
	}

	return router, nil
}

type httpHandler struct {
	tokens      SessionTokenManager
	accounts    *accounts.Service
	submissions *submissions.Service
	messaging   *messaging.Service
	finance     *finance.Service
	catalog     *catalog.Store
	checkout    *checkout.Bridge
	realtime    *RealtimeDispatcher
	logger      *zap.Logger
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	subject := account.ID
	if account.Role == auth.RoleNotary {
		notary, err := h.accounts.NotaryByAccount(c.Request.Context(), account.ID)
		if err != nil {
			h.logger.Warn("notary profile lookup failed", zap.String("account_id", account.ID), zap.Error(err))
			c.JSON(http.StatusForbidden, gin.H{"error": "no_notary_profile"})
			return
		}
		subject = notary.ID
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), auth.Identity{
		Subject: subject,
		Role:    account.Role,
	})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Role:        account.Role,
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	identity, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, identity.Subject)
	c.Set(roleContextKey, identity.Role)
	c.Next()
}

// bearerToken extracts the session token from the Authorization header, or
// from the access_token query parameter for EventSource clients that cannot
// set headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.Query("access_token"))
}

func (h *httpHandler) requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(roleContextKey)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "forbidden",
			"hint":  "this action requires the " + strings.Join(roles, " or ") + " role",
		})
	}
}

// codedError is satisfied by the per-service error types carrying dotted
// operation codes.
type codedError interface {
	error
	Code() string
}

// respondServiceError maps a service failure onto an HTTP status from its
// operation code suffix, keeping the code in the payload for the dashboard.
func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	var coded codedError
	if !errors.As(err, &coded) {
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	code := coded.Code()
	status := http.StatusInternalServerError
	switch {
	case strings.HasSuffix(code, ".not_found"):
		status = http.StatusNotFound
	case strings.HasSuffix(code, ".illegal_transition"):
		status = http.StatusConflict
	case strings.Contains(code, ".missing_"),
		strings.Contains(code, ".invalid_"),
		strings.Contains(code, ".empty_"),
		strings.HasSuffix(code, ".inactive_notary"),
		strings.HasSuffix(code, ".notary_mismatch"),
		strings.HasSuffix(code, ".all_uploads_failed"):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": coded.Error(), "code": code})
}
