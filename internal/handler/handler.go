package handler

import (
	"account_service/internal/models"
	"account_service/internal/service"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	serviceLayer service.Service
	log          *slog.Logger
	metrics      *HTTPMetrics
	gatherer     prometheus.Gatherer
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string         `json:"access"`
	Refresh string         `json:"refresh"`
	User    models.Account `json:"user"`
}

// refreshRequest takes the token under the same key as logout; "refresh"
// mirrors the login response and is still accepted.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Refresh      string `json:"refresh"`
}

func (r refreshRequest) token() string {
	if r.RefreshToken != "" {
		return r.RefreshToken
	}
	return r.Refresh
}

type refreshResponse struct {
	Access string `json:"access"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// profileRequest is the self-service body; admin and password fields are
// not part of it and are dropped by the JSON decoder.
type profileRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Phone    *string `json:"phone"`
}

type accountRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Phone    *string `json:"phone"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  *bool   `json:"is_admin"`
}

func NewHandler(srvc service.Service, lgr *slog.Logger, registry *prometheus.Registry) (*Handler, error) {
	const op = "handler.NewHandler"

	metrics, err := NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Handler{
		serviceLayer: srvc,
		log:          lgr,
		metrics:      metrics,
		gatherer:     registry,
	}, nil
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.CustomRecovery(h.recoverPanic), RequestID(), RequestLogger(h.log), h.metrics.Handler())

	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	requireAuth := h.AuthMiddleware()

	auth := router.Group("/auth")
	{
		auth.POST("/login/", h.Login)
		auth.POST("/refresh/", h.Refresh)
		auth.POST("/logout/", requireAuth, h.Logout)
	}

	users := router.Group("/users")
	{
		users.POST("/", h.Register)
		users.GET("/", requireAuth, h.ListAccounts)

		users.GET("/me/", requireAuth, h.GetProfile)
		users.PUT("/me/", requireAuth, h.UpdateProfile)
		users.PATCH("/me/", requireAuth, h.UpdateProfile)

		users.GET("/:id/", requireAuth, h.GetAccount)
		users.PUT("/:id/", requireAuth, h.UpdateAccount)
		users.PATCH("/:id/", requireAuth, h.UpdateAccount)
		users.DELETE("/:id/", requireAuth, h.DeleteAccount)
	}

	return router
}

// recoverPanic keeps the error body shape for handler panics.
func (h *Handler) recoverPanic(c *gin.Context, recovered any) {
	h.log.Error("panic recovered",
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("path", c.Request.URL.Path),
		slog.Any("panic", recovered),
	)

	newErrorResponse(c, http.StatusInternalServerError, "internal error")
}

// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// POST /users/
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.log.With(slog.String("op", op))

	var draft models.AccountDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	account, err := h.serviceLayer.Register(c.Request.Context(), draft)
	if err != nil {
		respondWithMappedError(c, log, err, serviceErrorCases)

		return
	}

	c.JSON(http.StatusCreated, account)
}

// POST /auth/login/
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	result, err := h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithMappedError(c, log, err, serviceErrorCases)

		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Access:  result.Tokens.Access,
		Refresh: result.Tokens.Refresh,
		User:    result.Account,
	})
}

// POST /auth/refresh/
func (h *Handler) Refresh(c *gin.Context) {
	const op = "handler.Refresh"

	log := h.log.With(slog.String("op", op))

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	access, err := h.serviceLayer.Refresh(c.Request.Context(), req.token())
	if err != nil {
		respondWithMappedError(c, log, err, serviceErrorCases)

		return
	}

	c.JSON(http.StatusOK, refreshResponse{Access: access})
}

// POST /auth/logout/
func (h *Handler) Logout(c *gin.Context) {
	const op = "handler.Logout"

	log := h.log.With(slog.String("op", op))

	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	if err := h.serviceLayer.Logout(c.Request.Context(), principalFrom(c), req.RefreshToken); err != nil {
		respondWithMappedError(c, log, err, serviceErrorCases)

		return
	}

	c.Status(http.StatusResetContent)
}

// GET /users/me/
func (h *Handler) GetProfile(c *gin.Context) {
	const op = "handler.GetProfile"

	account, err := h.serviceLayer.GetProfile(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondWithMappedError(c, h.log.With(slog.String("op", op)), err, serviceErrorCases)

		return
	}

	c.JSON(http.StatusOK, account)
}

// PUT, PATCH /users/me/
func (h *Handler) UpdateProfile(c *gin.Context) {
	const op = "handler.UpdateProfile"

	log := h.log.With(slog.String("op", op))

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	if c.Request.Method == http.MethodPut && (req.Email == nil || req.Username == nil) {
		newErrorResponse(c, http.StatusBadRequest, "email and username are required")

		return
	}

	patch := models.AccountPatch{
		Email:    req.Email,
		Username: req.Username,
		Phone:    req.Phone,
	}

	account, err := h.serviceLayer.UpdateProfile(c.Request.Context(), principalFrom(c), patch)
	if err != nil {
		respondWithMappedError(c, log, err, serviceErrorCases)

		return
	}

	c.JSON(http.StatusOK, account)
}

// GET /users/
func (h *Handler) ListAccounts(c *gin.Context) {
	const op = "handler.ListAccounts"

	accounts, err := h.serviceLayer.ListAccounts(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondWithMappedError(c, h.log.With(slog.String("op", op)), err, serviceErrorCases)

		return
	}

	c.JSON(http.StatusOK, accounts)
}

// GET /users/:id/
func (h *Handler) GetAccount(c *gin.Context) {
	const op = "handler.GetAccount"

	account, err := h.serviceLayer.GetAccount(c.Request.Context(), principalFrom(c), accountID(c))
	if err != nil {
		respondWithMappedError(c, h.log.With(slog.String("op", op)), err, serviceErrorCases)

		return
	}

	c.JSON(http.StatusOK, account)
}

// PUT, PATCH /users/:id/
func (h *Handler) UpdateAccount(c *gin.Context) {
	const op = "handler.UpdateAccount"

	log := h.log.With(slog.String("op", op))

	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	if c.Request.Method == http.MethodPut && (req.Email == nil || req.Username == nil) {
		newErrorResponse(c, http.StatusBadRequest, "email and username are required")

		return
	}

	patch := models.AccountPatch{
		Email:    req.Email,
		Username: req.Username,
		Phone:    req.Phone,
		IsActive: req.IsActive,
		IsAdmin:  req.IsAdmin,
	}

	account, err := h.serviceLayer.UpdateAccount(c.Request.Context(), principalFrom(c), accountID(c), patch)
	if err != nil {
		respondWithMappedError(c, log, err, serviceErrorCases)

		return
	}

	c.JSON(http.StatusOK, account)
}

// DELETE /users/:id/
func (h *Handler) DeleteAccount(c *gin.Context) {
	const op = "handler.DeleteAccount"

	err := h.serviceLayer.DeleteAccount(c.Request.Context(), principalFrom(c), accountID(c))
	if err != nil {
		respondWithMappedError(c, h.log.With(slog.String("op", op)), err, serviceErrorCases)

		return
	}

	c.Status(http.StatusNoContent)
}

// accountID returns uuid.Nil for ids that do not parse. No account has the
// nil id, so admins get 404 while non-admins still fail authorization first.
func accountID(c *gin.Context) uuid.UUID {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		return uuid.Nil
	}
	return id
}
