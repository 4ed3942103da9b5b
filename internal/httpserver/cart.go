package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/service/cart"
)

type setQuantityRequest struct {
	Count *int `json:"count" binding:"required"`
}

type addQuantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

func (h *handlers) getCart(c *gin.Context) {
	cartID, err := h.resolver(c).Active()
	if err != nil {
		writeError(c, err)
		return
	}
	h.writeCart(c, cartID)
}

// setCartItem sets the product's count; zero or less removes it.
func (h *handlers) setCartItem(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	productID := c.Param("productId")
	if *req.Count > 0 && !h.productExists(c, productID) {
		return
	}
	cartID, err := h.resolver(c).Active()
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.deps.Carts.SetQuantity(c.Request.Context(), cartID, currentUserID(c), productID, *req.Count); err != nil {
		writeError(c, err)
		return
	}
	h.writeCart(c, cartID)
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	productID := c.Param("productId")
	if req.Delta > 0 && !h.productExists(c, productID) {
		return
	}
	cartID, err := h.resolver(c).Active()
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.deps.Carts.AddQuantity(c.Request.Context(), cartID, currentUserID(c), productID, req.Delta); err != nil {
		writeError(c, err)
		return
	}
	h.writeCart(c, cartID)
}

func (h *handlers) emptyCart(c *gin.Context) {
	cartID, err := h.resolver(c).Active()
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.deps.Carts.Empty(c.Request.Context(), cartID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// cartEvents streams the resolved cart as server-sent events until the
// client goes away.
func (h *handlers) cartEvents(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := cart.Open(ctx, h.deps.Carts, h.deps.Projector, h.resolver(c), h.deps.Bus, h.logger)
	if err != nil {
		writeError(c, err)
		return
	}
	defer session.Close()

	updates, cancel := session.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return
		case resolved, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("cart", resolved)
			c.Writer.Flush()
		}
	}
}

type loginResponse struct {
	User domain.User         `json:"user"`
	Cart domain.ResolvedCart `json:"cart"`
}

// login records the user and binds them to the browser's cart.
func (h *handlers) login(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.deps.Users.GetOrCreate(ctx, *currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}

	session, err := cart.Open(ctx, h.deps.Carts, h.deps.Projector, h.resolver(c), nil, h.logger)
	if err != nil {
		writeError(c, err)
		return
	}
	defer session.Close()

	if err := session.BindUser(ctx, user.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{User: *user, Cart: session.Snapshot()})
}

// logout moves the browser off a cart that belongs to a user.
func (h *handlers) logout(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := cart.Open(ctx, h.deps.Carts, h.deps.Projector, h.resolver(c), nil, h.logger)
	if err != nil {
		writeError(c, err)
		return
	}
	defer session.Close()

	if err := session.UnbindUser(ctx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (h *handlers) writeCart(c *gin.Context, cartID string) {
	resolved, err := h.deps.Projector.Resolve(c.Request.Context(), cartID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolved)
}

// productExists writes a response and returns false when the product is
// not in the catalog.
func (h *handlers) productExists(c *gin.Context, productID string) bool {
	_, err := h.deps.Products.Get(c.Request.Context(), productID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown product"})
		return false
	}
	if err != nil {
		writeError(c, err)
		return false
	}
	return true
}
