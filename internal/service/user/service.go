package user

import (
	"context"
	"errors"

	"storefront/internal/domain"
	userrepo "storefront/internal/repository/user"
)

type Service struct {
	repo   userrepo.Repository
	admins map[string]bool
}

// New builds a Service. adminIDs are treated as admins regardless of the
// stored flag.
func New(repo userrepo.Repository, adminIDs []string) *Service {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		if id != "" {
			admins[id] = true
		}
	}
	return &Service{repo: repo, admins: admins}
}

// GetOrCreate returns the stored user for u.ID, creating it from u on first
// login. Name and email are refreshed from u when they change.
func (s *Service) GetOrCreate(ctx context.Context, u domain.User) (*domain.User, error) {
	if u.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	stored, err := s.repo.Get(ctx, u.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		u.IsAdmin = false
		if err := s.repo.Save(ctx, u); err != nil {
			return nil, err
		}
		stored = &u
	case err != nil:
		return nil, err
	case (u.Name != "" && u.Name != stored.Name) || (u.Email != "" && u.Email != stored.Email):
		if u.Name != "" {
			stored.Name = u.Name
		}
		if u.Email != "" {
			stored.Email = u.Email
		}
		if err := s.repo.Save(ctx, *stored); err != nil {
			return nil, err
		}
	}
	out := *stored
	out.IsAdmin = out.IsAdmin || s.admins[out.ID]
	return &out, nil
}

func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if s.admins[userID] {
		return true, nil
	}
	u, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}
