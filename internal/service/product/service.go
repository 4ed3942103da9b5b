package product

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/events"
	productrepo "storefront/internal/repository/product"
)

// cartSweeper removes a product from every cart.
type cartSweeper interface {
	RemoveProductEverywhere(ctx context.Context, productID string) error
}

type Service struct {
	repo   productrepo.Repository
	carts  cartSweeper
	bus    events.Bus
	logger zerolog.Logger
}

// New builds the catalog service. carts and bus may be nil; with a bus every
// save and delete announces a catalog change so open carts re-price.
func New(repo productrepo.Repository, carts cartSweeper, bus events.Bus, logger zerolog.Logger) *Service {
	return &Service{repo: repo, carts: carts, bus: bus, logger: logger}
}

// List returns all products, or those of category when it is set.
func (s *Service) List(ctx context.Context, category string) ([]domain.Product, error) {
	if category != "" {
		return s.repo.ListByCategory(ctx, category)
	}
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.Get(ctx, id)
}

// Save validates and stores p, minting an id when p has none.
func (s *Service) Save(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := domain.Validate(p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	s.announce(ctx, p.ID)
	return &p, nil
}

// Delete removes the product and then takes it out of every cart.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	defer s.announce(ctx, id)
	if s.carts == nil {
		return nil
	}
	if err := s.carts.RemoveProductEverywhere(ctx, id); err != nil {
		return fmt.Errorf("remove %s from carts: %w", id, err)
	}
	return nil
}

func (s *Service) announce(ctx context.Context, productID string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, events.CatalogChanged(productID, time.Now().UTC())); err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("publish catalog change")
	}
}
