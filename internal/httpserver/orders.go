package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

type placeOrderRequest struct {
	Shipping domain.Shipping `json:"shipping"`
}

// placeOrder checks out the browser's cart and moves the browser to a new
// cart id.
func (h *handlers) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	resolver := h.resolver(c)
	cartID, err := resolver.Active()
	if err != nil {
		writeError(c, err)
		return
	}
	resolved, err := h.deps.Projector.Resolve(ctx, cartID)
	if err != nil {
		writeError(c, err)
		return
	}
	order, err := h.deps.Orders.PlaceOrder(ctx, currentUserID(c), cartID, req.Shipping, resolved)
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := resolver.Rotate(); err != nil {
		h.logger.Warn().Err(err).Str("cart_id", cartID).Msg("rotate cart id after order")
	}
	c.JSON(http.StatusCreated, order)
}

func (h *handlers) getOrder(c *gin.Context) {
	ctx := c.Request.Context()
	order, err := h.deps.Orders.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	user := currentUser(c)
	if order.UserID != user.ID {
		admin, err := h.deps.Users.IsAdmin(ctx, user.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		if !admin {
			writeError(c, domain.ErrForbidden)
			return
		}
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) myOrders(c *gin.Context) {
	orders, err := h.deps.Orders.ListByUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *handlers) allOrders(c *gin.Context) {
	orders, err := h.deps.Orders.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orders)
}
