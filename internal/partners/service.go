package partners

import (
	"context"
)

// RepositoryPort defines data access methods for partners.
type RepositoryPort interface {
	Create(ctx context.Context, input PartnerInput) (*Partner, error)
	Get(ctx context.Context, id int64) (*Partner, error)
	List(ctx context.Context, search string, limit, offset int) ([]Partner, error)
	Update(ctx context.Context, id int64, input PartnerInput) (*Partner, error)
	SoftDelete(ctx context.Context, id int64) error
}

// Service handles partner business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a new partner.
func (s *Service) Create(ctx context.Context, input PartnerInput) (*Partner, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, input)
}

// Get returns one partner.
func (s *Service) Get(ctx context.Context, id int64) (*Partner, error) {
	return s.repo.Get(ctx, id)
}

// List returns partners matching the optional search term.
func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]Partner, error) {
	return s.repo.List(ctx, search, limit, offset)
}

// Update overwrites partner fields.
func (s *Service) Update(ctx context.Context, id int64, input PartnerInput) (*Partner, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, input)
}

// Delete soft-deletes a partner; it stays restorable from the trash.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.SoftDelete(ctx, id)
}
