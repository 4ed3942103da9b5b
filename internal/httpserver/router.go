package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/service/cart"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type ProductService interface {
	List(ctx context.Context, category string) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Save(ctx context.Context, p domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

type CategoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
	Save(ctx context.Context, c domain.Category) (*domain.Category, error)
}

type OrderService interface {
	PlaceOrder(ctx context.Context, userID, cartID string, shipping domain.Shipping, resolved domain.ResolvedCart) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

type UserService interface {
	GetOrCreate(ctx context.Context, u domain.User) (*domain.User, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// CookieConfig describes the cookie that carries a browser's cart id.
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// Deps groups the collaborators of the HTTP layer.
type Deps struct {
	Store      pinger
	Carts      *cart.Engine
	Projector  *cart.Projector
	Bus        events.Bus
	Products   ProductService
	Categories CategoryService
	Orders     OrderService
	Users      UserService
	Verifier   auth.Verifier
	// DevTokens enables POST /dev/token when set.
	DevTokens   *auth.DevVerifier
	Gatherer    prometheus.Gatherer
	Cookie      CookieConfig
	CORSOrigins []string
}

func (d Deps) validate() error {
	switch {
	case d.Carts == nil:
		return errors.New("httpserver: cart engine is required")
	case d.Projector == nil:
		return errors.New("httpserver: cart projector is required")
	case d.Products == nil, d.Categories == nil:
		return errors.New("httpserver: catalog services are required")
	case d.Orders == nil:
		return errors.New("httpserver: order service is required")
	case d.Users == nil:
		return errors.New("httpserver: user service is required")
	case d.Verifier == nil:
		return errors.New("httpserver: token verifier is required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger zerolog.Logger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "shoppingCartId"
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := &handlers{deps: deps, logger: logger}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Store))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/", authenticate(deps.Verifier))

	api.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)
	api.GET("/categories", h.listCategories)

	api.GET("/cart", h.getCart)
	api.PUT("/cart/items/:productId", h.setCartItem)
	api.POST("/cart/items/:productId", h.addCartItem)
	api.DELETE("/cart", h.emptyCart)
	api.GET("/cart/events", h.cartEvents)

	api.POST("/session/login", requireUser(), h.login)
	api.POST("/session/logout", h.logout)

	api.POST("/orders", requireUser(), h.placeOrder)
	api.GET("/orders/:id", requireUser(), h.getOrder)
	api.GET("/my/orders", requireUser(), h.myOrders)

	admin := api.Group("/admin", requireUser(), requireAdmin(deps.Users))
	admin.GET("/orders", h.allOrders)
	admin.PUT("/products/:id", h.saveProduct)
	admin.DELETE("/products/:id", h.deleteProduct)
	admin.PUT("/categories/:id", h.saveCategory)

	if deps.DevTokens != nil {
		router.POST("/dev/token", h.devToken)
	}

	return router, nil
}

type handlers struct {
	deps   Deps
	logger zerolog.Logger
}

// requestLogger emits one log event per request.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("error", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("url", c.Request.URL.String()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request completed")
	}
}

const userCtxKey = "user"

// authenticate resolves an optional bearer token. A present but invalid
// token is rejected.
func authenticate(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}
		user, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userCtxKey, user)
		c.Next()
	}
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == nil {
			writeError(c, domain.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

func requireAdmin(users UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := users.IsAdmin(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		if !ok {
			writeError(c, domain.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(userCtxKey)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}

func currentUserID(c *gin.Context) string {
	if u := currentUser(c); u != nil {
		return u.ID
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var comm *domain.CommunicationError
	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &comm):
		c.JSON(http.StatusBadGateway, gin.H{"error": comm.Err.Error(), "operation": comm.Op})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "fields": invalid.Fields})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrCartChanged):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptyCart), errors.Is(err, domain.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
}
