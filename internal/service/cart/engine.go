// Package cart keeps a cart root and its line items consistent: a cart
// exists exactly while it has at least one line item.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/docstore"
	"storefront/internal/domain"
	"storefront/internal/events"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/lineitem"
	"storefront/internal/telemetry"
)

// Operation names reported in CommunicationError.Op.
const (
	OpCreateCart     = "create cart"
	OpUpdateCartItem = "update cart item"
	OpRemoveCartItem = "remove cart item"
	OpEmptyCart      = "empty cart"
	OpPlaceOrder     = "place order"
	OpAssignCart     = "assign cart"
	OpReadCart       = "read cart"
)

// Engine applies quantity changes to carts in the document store.
type Engine struct {
	store   docstore.Ops
	bus     events.Bus
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEngine builds an Engine on store. bus and metrics may be nil.
func NewEngine(store docstore.Ops, bus events.Bus, metrics *telemetry.Metrics, logger zerolog.Logger) *Engine {
	return &Engine{store: store, bus: bus, metrics: metrics, logger: logger, now: time.Now}
}

// SetQuantity sets productID to count in cartID, creating or deleting the
// cart as needed. userID, when set, is stamped on a newly created cart.
func (e *Engine) SetQuantity(ctx context.Context, cartID, userID, productID string, count int) (Plan, error) {
	return e.mutate(ctx, cartID, userID, productID, func(int) int { return count })
}

// AddQuantity changes productID's count by delta, reading the current count
// in the same unit of work as the write.
func (e *Engine) AddQuantity(ctx context.Context, cartID, userID, productID string, delta int) (Plan, error) {
	return e.mutate(ctx, cartID, userID, productID, func(current int) int { return current + delta })
}

func (e *Engine) mutate(ctx context.Context, cartID, userID, productID string, next func(current int) int) (Plan, error) {
	if cartID == "" || productID == "" {
		return Plan{}, errors.New("cart id and product id required")
	}

	var plan Plan
	op := OpReadCart
	err := docstore.RunAtomic(ctx, e.store, func(ctx context.Context, ops docstore.Ops) error {
		op = OpReadCart
		exists, snapshot, err := readCart(ctx, ops, cartID)
		if err != nil {
			return err
		}
		current := 0
		for _, it := range snapshot {
			if it.ProductID == productID {
				current = it.Count
			}
		}
		plan = Decide(exists, snapshot, productID, next(current))
		op = plan.operation()
		return e.apply(ctx, ops, cartID, userID, plan)
	})
	if err != nil {
		return Plan{}, e.fail(op, cartID, err)
	}

	log := e.logger.With().Str("cart_id", cartID).Str("product_id", productID).Logger()
	if plan.Repair != "" {
		log.Warn().Str("repair", plan.Repair).Msg("cart invariant violation repaired")
	}
	if plan.Transition == TransitionNone {
		return plan, nil
	}
	log.Debug().Str("transition", string(plan.Transition)).Int("items", plan.Items).Msg("cart updated")
	e.metrics.Transition(string(plan.Transition), plan.Items)

	kind := events.KindUpdated
	if plan.Emptied {
		e.metrics.Emptied()
		kind = events.KindEmptied
	}
	e.publish(ctx, cartID, kind)
	return plan, nil
}

func readCart(ctx context.Context, ops docstore.Ops, cartID string) (bool, []domain.LineItem, error) {
	exists := true
	if _, err := cartrepo.New(ops).Get(ctx, cartID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return false, nil, err
		}
		exists = false
	}
	snapshot, err := lineitem.New(ops, cartID).List(ctx)
	if err != nil {
		return false, nil, err
	}
	return exists, snapshot, nil
}

func (e *Engine) apply(ctx context.Context, ops docstore.Ops, cartID, userID string, plan Plan) error {
	carts := cartrepo.New(ops)
	items := lineitem.New(ops, cartID)

	if plan.CreateRoot {
		root := domain.Cart{ID: cartID, DateCreated: e.now().UTC()}
		if userID != "" {
			root.UserID = &userID
		}
		if err := carts.Create(ctx, root); err != nil {
			return err
		}
	}
	if plan.PutItem != nil {
		if err := items.Put(ctx, *plan.PutItem); err != nil {
			return err
		}
	}
	if plan.RemoveItem != "" {
		if err := items.Remove(ctx, plan.RemoveItem); err != nil {
			return err
		}
	}
	if plan.DeleteRoot {
		if err := carts.Delete(ctx, cartID); err != nil {
			return err
		}
	}
	return nil
}

// Empty deletes every line item of cartID and then its root.
func (e *Engine) Empty(ctx context.Context, cartID string) error {
	var removed int
	err := docstore.RunAtomic(ctx, e.store, func(ctx context.Context, ops docstore.Ops) error {
		td, err := PrepareTeardown(ctx, ops, cartID)
		if err != nil {
			return err
		}
		removed = len(td.Items)
		return td.Apply(ctx, ops)
	})
	if err != nil {
		return e.fail(OpEmptyCart, cartID, err)
	}
	e.logger.Debug().Str("cart_id", cartID).Int("items", removed).Msg("cart emptied")
	if removed > 0 {
		e.metrics.Emptied()
	}
	e.publish(ctx, cartID, events.KindEmptied)
	return nil
}

// RemoveProductEverywhere sets productID to zero in every cart. Failures are
// collected and do not stop the sweep. Only carts with a root are visited:
// line items left without a root by an interrupted sequential write are not
// reachable from a listing and stay until the next SetQuantity on that cart
// repairs it. The projection drops them in the meantime.
func (e *Engine) RemoveProductEverywhere(ctx context.Context, productID string) error {
	carts, err := cartrepo.New(e.store).List(ctx)
	if err != nil {
		return e.fail(OpReadCart, "", err)
	}
	var errs []error
	for _, c := range carts {
		if _, err := e.SetQuantity(ctx, c.ID, "", productID, 0); err != nil {
			errs = append(errs, fmt.Errorf("cart %s: %w", c.ID, err))
		}
	}
	return errors.Join(errs...)
}

// AssignUser sets or clears the owner of an existing cart. It returns
// domain.ErrNotFound when cartID has no root.
func (e *Engine) AssignUser(ctx context.Context, cartID string, userID *string) error {
	err := docstore.RunAtomic(ctx, e.store, func(ctx context.Context, ops docstore.Ops) error {
		carts := cartrepo.New(ops)
		if _, err := carts.Get(ctx, cartID); err != nil {
			return err
		}
		return carts.SetUser(ctx, cartID, userID)
	})
	if err != nil {
		return e.fail(OpAssignCart, cartID, err)
	}
	e.publish(ctx, cartID, events.KindRebound)
	return nil
}

// Root returns the cart root of cartID.
func (e *Engine) Root(ctx context.Context, cartID string) (*domain.Cart, error) {
	c, err := cartrepo.New(e.store).Get(ctx, cartID)
	if err != nil {
		return nil, e.fail(OpReadCart, cartID, err)
	}
	return c, nil
}

// FindUserCart returns the cart owned by userID.
func (e *Engine) FindUserCart(ctx context.Context, userID string) (*domain.Cart, error) {
	c, err := cartrepo.New(e.store).FindByUser(ctx, userID)
	if err != nil {
		return nil, e.fail(OpReadCart, "", err)
	}
	return c, nil
}

// fail reports store failures as CommunicationError. Domain errors pass
// through unchanged.
func (e *Engine) fail(op, cartID string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidQuantity) || errors.Is(err, context.Canceled) {
		return err
	}
	e.metrics.CommunicationError(op)
	e.logger.Error().Err(err).Str("cart_id", cartID).Str("operation", op).Msg("cart store operation failed")
	return domain.Communication(op, err)
}

func (e *Engine) publish(ctx context.Context, cartID string, kind events.Kind) {
	if e.bus == nil {
		return
	}
	ev := events.CartChanged{CartID: cartID, Kind: kind, At: e.now().UTC()}
	if err := e.bus.Publish(ctx, ev); err != nil {
		e.logger.Warn().Err(err).Str("cart_id", cartID).Msg("publish cart event")
	}
}
