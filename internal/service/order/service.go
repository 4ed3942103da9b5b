package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront/internal/docstore"
	"storefront/internal/domain"
	"storefront/internal/events"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	"storefront/internal/service/cart"
	"storefront/internal/telemetry"
)

type Service struct {
	store   docstore.Ops
	bus     events.Bus
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
}

func New(store docstore.Ops, bus events.Bus, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// PlaceOrder writes an order for resolved and tears down cartID in the same
// unit of work. On a transactional store either both happen or neither.
// resolved must still match the stored cart; otherwise ErrCartChanged is
// returned and nothing is written. Without a transaction the check and the
// teardown are not isolated, and an item added in between is deleted
// without being ordered.
func (s *Service) PlaceOrder(ctx context.Context, userID, cartID string, shipping domain.Shipping, resolved domain.ResolvedCart) (*domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if resolved.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}
	if resolved.CartID != cartID {
		return nil, &domain.ValidationError{Fields: []string{"shoppingCartId"}}
	}
	if err := domain.Validate(shipping); err != nil {
		return nil, err
	}

	o := domain.Order{
		ID:          s.newID(),
		UserID:      userID,
		CartID:      cartID,
		DateOrdered: s.now().UTC(),
		TotalPrice:  resolved.TotalPrice,
		Shipping:    shipping,
		Products:    make([]domain.OrderProduct, 0, len(resolved.Items)),
	}
	for _, it := range resolved.Items {
		o.Products = append(o.Products, domain.OrderProduct{ID: it.ProductID, Name: it.Name, Price: it.Price, Count: it.Count})
	}

	err := docstore.RunAtomic(ctx, s.store, func(ctx context.Context, ops docstore.Ops) error {
		td, err := cart.PrepareTeardown(ctx, ops, cartID)
		if err != nil {
			return err
		}
		if err := s.checkUnchanged(ctx, ops, td.Items, resolved); err != nil {
			return err
		}
		if err := orderrepo.New(ops).Create(ctx, o); err != nil {
			return err
		}
		return td.Apply(ctx, ops)
	})
	if errors.Is(err, domain.ErrCartChanged) {
		s.logger.Info().Str("cart_id", cartID).Msg("cart changed before order")
		return nil, err
	}
	if err != nil {
		s.metrics.CommunicationError(cart.OpPlaceOrder)
		s.logger.Error().Err(err).Str("cart_id", cartID).Str("order_id", o.ID).Msg("place order")
		return nil, domain.Communication(cart.OpPlaceOrder, err)
	}

	s.metrics.OrderPlaced(o.TotalPrice)
	s.logger.Info().Str("order_id", o.ID).Str("cart_id", cartID).Str("user_id", userID).Float64("total", o.TotalPrice).Msg("order placed")
	if s.bus != nil {
		ev := events.CartChanged{CartID: cartID, Kind: events.KindOrdered, At: o.DateOrdered}
		if err := s.bus.Publish(ctx, ev); err != nil {
			s.logger.Warn().Err(err).Str("cart_id", cartID).Msg("publish cart event")
		}
	}
	return &o, nil
}

// checkUnchanged compares the stored items with the ones being ordered.
// Stored items of deleted products are not orderable and are ignored.
func (s *Service) checkUnchanged(ctx context.Context, ops docstore.Ops, stored []domain.LineItem, resolved domain.ResolvedCart) error {
	want := make(map[string]int, len(resolved.Items))
	for _, it := range resolved.Items {
		want[it.ProductID] = it.Count
	}
	products := productrepo.New(ops, s.logger)
	for _, it := range stored {
		count, ok := want[it.ProductID]
		if ok {
			if count != it.Count {
				return domain.ErrCartChanged
			}
			delete(want, it.ProductID)
			continue
		}
		_, err := products.Get(ctx, it.ProductID)
		switch {
		case err == nil:
			return domain.ErrCartChanged
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
	}
	if len(want) > 0 {
		return domain.ErrCartChanged
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return orderrepo.New(s.store).Get(ctx, id)
}

// ListByUser returns userID's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return orderrepo.New(s.store).ListByUser(ctx, userID)
}

func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	return orderrepo.New(s.store).List(ctx)
}
