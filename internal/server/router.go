package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/auth"
	"github.com/Sanskarlajurkar07/memeverse/internal/feed"
	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
	"github.com/Sanskarlajurkar07/memeverse/internal/metrics"
	"github.com/Sanskarlajurkar07/memeverse/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "memeverse_user_id"

var (
	errMissingUserDirectory   = errors.New("user directory dependency required")
	errMissingTokenIssuer     = errors.New("token issuer dependency required")
	errMissingSessionVerifier = errors.New("session validator dependency required")
	errMissingFeedRegistry    = errors.New("feed registry dependency required")
)

// UserDirectory is the account store behind the auth and profile routes.
type UserDirectory interface {
	Register(ctx context.Context, input users.RegistrationInput) (users.User, error)
	Authenticate(ctx context.Context, email, secret string) (users.User, error)
	Lookup(ctx context.Context, userID string) (users.User, error)
	UpdateProfile(ctx context.Context, userID string, update users.ProfileUpdate) (users.User, error)
}

// SessionTokenIssuer signs session cookies.
type SessionTokenIssuer interface {
	Issue(ctx context.Context, identity auth.Identity) (string, time.Time, error)
}

// SessionVerifier reads and validates the session cookie of a request.
type SessionVerifier interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

type Dependencies struct {
	Users          UserDirectory
	Tokens         SessionTokenIssuer
	Sessions       SessionVerifier
	Feeds          *feed.Registry
	Realtime       *RealtimeDispatcher
	Metrics        *metrics.Recorder
	IDProvider     memes.IDProvider
	Clock          func() time.Time
	AllowedOrigins []string
	PageSize       int
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Users == nil {
		return nil, errMissingUserDirectory
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionVerifier
	}
	if deps.Feeds == nil {
		return nil, errMissingFeedRegistry
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := deps.IDProvider
	if ids == nil {
		ids = memes.NewUUIDProvider()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		users:    deps.Users,
		tokens:   deps.Tokens,
		sessions: deps.Sessions,
		feeds:    deps.Feeds,
		realtime: realtime,
		ids:      ids,
		clock:    clock,
		pageSize: deps.PageSize,
		logger:   logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/logout", handler.handleLogout)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/me", handler.handleProfile)
	protected.PATCH("/me", handler.handleUpdateProfile)
	protected.GET("/memes", handler.handleListMemes)
	protected.POST("/memes", handler.handleUpload)
	protected.POST("/memes/reload", handler.handleReload)
	protected.GET("/memes/trending", handler.handleTrending)
	protected.GET("/memes/top", handler.handleTop)
	protected.GET("/memes/liked", handler.handleLiked)
	protected.GET("/memes/uploads", handler.handleUploads)
	protected.GET("/memes/:id", handler.handleItem)
	protected.POST("/memes/:id/like", handler.handleToggleLike)
	protected.POST("/memes/:id/comments", handler.handleAddComment)
	protected.GET("/events", handler.handleEvents)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Accept", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := make([]string, 0, len(allowedOrigins))
	wildcard := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "*" {
			wildcard = true
			continue
		}
		if trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if wildcard {
		// Credentialed requests need the request origin echoed rather than "*".
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

type httpHandler struct {
	users    UserDirectory
	tokens   SessionTokenIssuer
	sessions SessionVerifier
	feeds    *feed.Registry
	realtime *RealtimeDispatcher
	ids      memes.IDProvider
	clock    func() time.Time
	pageSize int
	logger   *zap.Logger
}

type registerRequestPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileUpdatePayload struct {
	Name           *string `json:"name"`
	Bio            *string `json:"bio"`
	ProfilePicture *string `json:"profilePicture"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	user, err := h.users.Register(c.Request.Context(), users.RegistrationInput{
		DisplayName: request.Name,
		Email:       request.Email,
		Secret:      request.Password,
	})
	if err != nil {
		h.respondError(c, "registration failed", err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, "login failed", err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	if claims, err := h.sessions.ValidateRequest(c.Request); err == nil {
		h.feeds.Drop(claims.UserID)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleProfile(c *gin.Context) {
	user, err := h.users.Lookup(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, "profile lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var request profileUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), c.GetString(userIDContextKey), users.ProfileUpdate{
		DisplayName: request.Name,
		Bio:         request.Bio,
		AvatarURL:   request.ProfilePicture,
	})
	if err != nil {
		h.respondError(c, "profile update failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// startSession issues the session cookie for user. It reports false after writing an error response.
func (h *httpHandler) startSession(c *gin.Context, user users.User) bool {
	token, expiresAt, err := h.tokens.Issue(c.Request.Context(), auth.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
	})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err), zap.String("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return false
	}
	maxAge := int(expiresAt.Sub(h.clock()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), token, maxAge, "/", "", false, true)
	return true
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.UserID)
	c.Next()
}

// feedSession resolves the session of the authenticated user. It reports false after writing an error response.
func (h *httpHandler) feedSession(c *gin.Context) (*feed.Session, bool) {
	session, err := h.feeds.Session(context.WithoutCancel(c.Request.Context()), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, "feed session unavailable", err)
		return nil, false
	}
	return session, true
}

func (h *httpHandler) respondError(c *gin.Context, message string, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	} else {
		h.logger.Debug(message, zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, memes.ErrValidation),
		errors.Is(err, memes.ErrInvalidItemID),
		errors.Is(err, users.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, users.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
