package category

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository/category"
)

type Service struct {
	repo category.Repository
}

func New(repo category.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Category, error) {
	return s.repo.List(ctx)
}

func (s *Service) Save(ctx context.Context, c domain.Category) (*domain.Category, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" {
		return nil, errors.New("id required")
	}
	if c.Name == "" {
		return nil, &domain.ValidationError{Fields: []string{"name"}}
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}
