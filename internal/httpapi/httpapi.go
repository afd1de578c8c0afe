package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/service"
	"posledger/backend/internal/store"
)

const (
	defaultListLimit = 100
	maxBodyBytes     = 1 << 20
	actorKey         = "actor"
)

func init() {
	binding.EnableDecoderDisallowUnknownFields = true
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	listLimitMax  int
	loginLimiter  *attemptLimiter
	logger        *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, listLimitMax int, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if listLimitMax < 1 {
		listLimitMax = 500
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: strings.TrimSpace(allowedOrigin),
		listLimitMax:  listLimitMax,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		logger:        logger,
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

// Allow records an attempt for key and reports whether it fits in the window.
func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[key][:0]
	for _, ts := range l.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func (a *API) Handler() http.Handler {
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.CustomRecovery(a.handlePanic))
	r.Use(a.requestLogger())
	r.Use(securityHeaders())
	if a.allowedOrigin != "" {
		r.Use(cors.New(a.corsConfig()))
	}
	r.Use(limitBody())

	r.GET("/healthz", a.handleHealth)
	r.POST("/auth/login", a.handleLogin)

	r.POST("/sales", a.requireAuth(ActionSaleCreate), a.handleCreateSale)
	r.GET("/sales", a.requireAuth(ActionSaleList), a.handleListSales)
	r.GET("/sales/:id", a.requireAuth(ActionSaleRead), a.handleGetSale)
	r.POST("/sales/:id/refund", a.requireAuth(ActionSaleRefund), a.handleRefundSale)

	r.GET("/products", a.requireAuth(ActionProductRead), a.handleListProducts)
	r.POST("/products", a.requireAuth(ActionProductWrite), a.handleCreateProduct)
	r.GET("/products/:id", a.requireAuth(ActionProductRead), a.handleGetProduct)
	r.POST("/products/:id/receive-stock", a.requireAuth(ActionStockReceive), a.handleReceiveStock)
	r.GET("/stock-in-logs", a.requireAuth(ActionStockInList), a.handleListStockInLogs)

	r.GET("/customers", a.requireAuth(ActionCustomerRead), a.handleListCustomers)
	r.POST("/customers", a.requireAuth(ActionCustomerCreate), a.handleCreateCustomer)
	r.GET("/customers/:id", a.requireAuth(ActionCustomerRead), a.handleGetCustomer)
	r.POST("/customers/:id/redeem-points", a.requireAuth(ActionCustomerRedeem), a.handleRedeemPoints)

	r.GET("/vendors", a.requireAuth(ActionVendorRead), a.handleListVendors)
	r.POST("/vendors", a.requireAuth(ActionVendorWrite), a.handleCreateVendor)

	r.GET("/users", a.requireAuth(ActionUserWrite), a.handleListUsers)
	r.POST("/users", a.requireAuth(ActionUserWrite), a.handleCreateUser)

	r.GET("/stores", a.requireAuth(ActionStoreWrite), a.handleListStores)
	r.POST("/stores", a.requireAuth(ActionStoreWrite), a.handleCreateStore)
	r.DELETE("/stores/:id", a.requireAuth(ActionStoreWrite), a.handleDeleteStore)

	r.GET("/reports/sales-summary", a.requireAuth(ActionReportRead), a.handleSalesSummary)
	r.GET("/reports/stock-summary", a.requireAuth(ActionReportRead), a.handleStockSummary)
	r.GET("/audit-logs", a.requireAuth(ActionAuditRead), a.handleAuditLogs)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, a.logger, http.StatusNotFound, errors.New("route not found"))
	})
	return r
}

func (a *API) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if a.allowedOrigin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = strings.Split(a.allowedOrigin, ",")
		for i := range cfg.AllowOrigins {
			cfg.AllowOrigins[i] = strings.TrimSpace(cfg.AllowOrigins[i])
		}
	}
	return cfg
}

// requireAuth authenticates the bearer token against the current account,
// checks CanPerform and puts the actor on the request context for the
// service layer.
func (a *API) requireAuth(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(c, a.logger, http.StatusUnauthorized, errors.New("missing bearer token"))
			c.Abort()
			return
		}

		actor, err := a.auth.Authenticate(c.Request.Context(), strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			status := http.StatusUnauthorized
			if !errors.Is(err, errInvalidToken) && !errors.Is(err, errInactiveAccount) {
				status = http.StatusInternalServerError
			}
			writeError(c, a.logger, status, err)
			c.Abort()
			return
		}
		if !CanPerform(actor, action) {
			writeError(c, a.logger, http.StatusForbidden, errors.New("forbidden role"))
			c.Abort()
			return
		}

		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(startedAt)),
		}
		if actor, ok := c.Get(actorKey); ok {
			fields = append(fields, zap.String("user_id", actor.(domain.Actor).UserID))
		}
		a.logger.Info("request", fields...)
	}
}

func (a *API) handlePanic(c *gin.Context, recovered any) {
	a.logger.Error("panic serving request", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
	writeError(c, a.logger, http.StatusInternalServerError, errors.New("panic"))
	c.Abort()
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		c.Next()
	}
}

func limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		c.Next()
	}
}

// statusForError maps the store error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrInsufficientPoints):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyRefunded),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrForeignKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(c *gin.Context, err error) {
	writeError(c, a.logger, statusForError(err), err)
}

// bindJSON decodes the body and writes a 400 on failure.
func (a *API) bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, a.logger, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
			return false
		}
		writeError(c, a.logger, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (a *API) limit(c *gin.Context) int {
	return parsePositiveLimit(c.Query("limit"), defaultListLimit, a.listLimitMax)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeError masks 5xx messages; 4xx messages are meant for the client.
func writeError(c *gin.Context, logger *zap.Logger, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("internal error", zap.Int("status", status), zap.String("path", c.Request.URL.Path), zap.Error(err))
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}
