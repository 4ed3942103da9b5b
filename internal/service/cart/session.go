package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"storefront/internal/cartid"
	"storefront/internal/domain"
	"storefront/internal/events"
)

var ErrSessionClosed = errors.New("cart session closed")

// Session is one client's view of its active cart. It owns the active cart
// id and the signed-in user, and republishes the resolved cart to
// subscribers after every confirmed change. Safe for concurrent use.
type Session struct {
	engine    *Engine
	projector *Projector
	resolver  *cartid.Resolver
	bus       events.Bus
	logger    zerolog.Logger

	// opMu serialises operations so that calls apply in issue order.
	opMu sync.Mutex

	mu            sync.Mutex
	cartID        string
	userID        string
	current       domain.ResolvedCart
	subs          map[int]chan domain.ResolvedCart
	nextSub       int
	cancelBus     func()
	cancelCatalog func()
	closed        bool

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// Open resolves the active cart id, loads the cart and, when bus is set,
// follows changes made by other sessions and catalog changes that re-price it.
func Open(ctx context.Context, engine *Engine, projector *Projector, resolver *cartid.Resolver, bus events.Bus, logger zerolog.Logger) (*Session, error) {
	id, err := resolver.Active()
	if err != nil {
		return nil, err
	}
	s := &Session{
		engine:    engine,
		projector: projector,
		resolver:  resolver,
		bus:       bus,
		logger:    logger,
		cartID:    id,
		current:   domain.ResolvedCart{CartID: id, Items: []domain.ResolvedCartItem{}},
		subs:      make(map[int]chan domain.ResolvedCart),
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	if err := s.follow(id); err != nil {
		return nil, err
	}
	if err := s.followCatalog(); err != nil {
		s.mu.Lock()
		cancel := s.cancelBus
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return nil, err
	}
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

func (s *Session) CartID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartID
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Snapshot returns the last resolved cart.
func (s *Session) Snapshot() domain.ResolvedCart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a channel that first yields the current cart and then
// every later one. A slow reader only misses intermediate values, never the
// latest. The channel is closed by cancel or Close.
func (s *Session) Subscribe() (<-chan domain.ResolvedCart, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan domain.ResolvedCart, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.current

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Refresh re-reads the cart from the store and notifies subscribers.
func (s *Session) Refresh(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.refresh(ctx)
}

func (s *Session) SetQuantity(ctx context.Context, productID string, count int) error {
	return s.change(ctx, func(cartID, userID string) error {
		_, err := s.engine.SetQuantity(ctx, cartID, userID, productID, count)
		return err
	})
}

// Add changes productID's count by delta; a result <= 0 removes it.
func (s *Session) Add(ctx context.Context, productID string, delta int) error {
	return s.change(ctx, func(cartID, userID string) error {
		_, err := s.engine.AddQuantity(ctx, cartID, userID, productID, delta)
		return err
	})
}

func (s *Session) Empty(ctx context.Context) error {
	return s.change(ctx, func(cartID, _ string) error {
		return s.engine.Empty(ctx, cartID)
	})
}

func (s *Session) change(ctx context.Context, fn func(cartID, userID string) error) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := fn(s.CartID(), s.UserID()); err != nil {
		return err
	}
	return s.refresh(ctx)
}

// BindUser associates the session with userID. When the user already owns a
// cart the session switches to it; otherwise the current cart, if it exists,
// is stamped with the user. Line items are never merged.
func (s *Session) BindUser(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	cartID := s.CartID()
	owned, err := s.engine.FindUserCart(ctx, userID)
	switch {
	case err == nil && owned.ID != cartID:
		if err := s.resolver.Use(owned.ID); err != nil {
			return err
		}
		if err := s.switchTo(owned.ID); err != nil {
			return err
		}
		s.logger.Info().Str("user_id", userID).Str("cart_id", owned.ID).Str("previous_cart_id", cartID).Msg("switched to user cart")
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		if err := s.engine.AssignUser(ctx, cartID, &userID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	default:
		return err
	}

	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
	return s.refresh(ctx)
}

// UnbindUser forgets the user. When the active cart belongs to a user the
// session moves to a fresh cart id so the next visitor starts empty.
func (s *Session) UnbindUser(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	root, err := s.engine.Root(ctx, s.CartID())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()

	if root == nil || root.UserID == nil {
		return nil
	}
	return s.rotate(ctx)
}

// Rotate moves the session to a new cart id. The old cart is left untouched.
func (s *Session) Rotate(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.rotate(ctx)
}

func (s *Session) rotate(ctx context.Context) error {
	id, err := s.resolver.Rotate()
	if err != nil {
		return err
	}
	if err := s.switchTo(id); err != nil {
		return err
	}
	return s.refresh(ctx)
}

// Close stops following the bus and closes every subscriber channel.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, cancelCatalog := s.cancelBus, s.cancelCatalog
	s.cancelBus, s.cancelCatalog = nil, nil
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cancelCatalog != nil {
		cancelCatalog()
	}
	close(s.done)
	s.wg.Wait()
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) refresh(ctx context.Context) error {
	cartID := s.CartID()
	resolved, err := s.projector.Resolve(ctx, cartID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.cartID != cartID {
		return nil
	}
	s.current = resolved
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- resolved
	}
	return nil
}

func (s *Session) switchTo(id string) error {
	s.mu.Lock()
	s.cartID = id
	s.current = domain.ResolvedCart{CartID: id, Items: []domain.ResolvedCartItem{}}
	s.mu.Unlock()
	return s.follow(id)
}

// follow moves the bus subscription to cartID.
func (s *Session) follow(cartID string) error {
	if s.bus == nil {
		return nil
	}
	cancel, err := s.bus.Subscribe(cartID, s.poke)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.cancelBus
	s.cancelBus = cancel
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
	return nil
}

// followCatalog refreshes the cart whenever a product is saved or deleted.
func (s *Session) followCatalog() error {
	if s.bus == nil {
		return nil
	}
	cancel, err := s.bus.Subscribe(events.CatalogKey, s.poke)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cancelCatalog = cancel
	s.mu.Unlock()
	return nil
}

func (s *Session) poke(events.CartChanged) {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Session) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.kick:
			if err := s.Refresh(context.Background()); err != nil && !errors.Is(err, ErrSessionClosed) {
				s.logger.Warn().Err(err).Str("cart_id", s.CartID()).Msg("refresh after cart event")
			}
		}
	}
}
