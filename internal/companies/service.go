package companies

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-assist/meridian/internal/platform/objstore"
	"github.com/meridian-assist/meridian/internal/shared"
)

// RepositoryPort defines data access methods for our companies.
type RepositoryPort interface {
	Create(ctx context.Context, input CompanyInput) (*Company, error)
	Get(ctx context.Context, id int64) (*Company, error)
	List(ctx context.Context, limit, offset int) ([]Company, error)
	Update(ctx context.Context, id int64, input CompanyInput) (*Company, error)
	SetLogo(ctx context.Context, id int64, key, url string) (*Company, error)
	SoftDelete(ctx context.Context, id int64) error
}

// Service handles company business logic.
type Service struct {
	repo  RepositoryPort
	store objstore.Store
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, store objstore.Store) *Service {
	return &Service{repo: repo, store: store}
}

// Create registers a new issuing company.
func (s *Service) Create(ctx context.Context, input CompanyInput) (*Company, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, input)
}

// Get returns one company.
func (s *Service) Get(ctx context.Context, id int64) (*Company, error) {
	return s.repo.Get(ctx, id)
}

// List returns all active companies.
func (s *Service) List(ctx context.Context) ([]Company, error) {
	return s.repo.List(ctx, 0, 0)
}

// Update overwrites company fields.
func (s *Service) Update(ctx context.Context, id int64, input CompanyInput) (*Company, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, input)
}

// UploadLogo stores a logo image and records its key and public URL. A
// previous logo object is removed best-effort after the row update.
func (s *Service) UploadLogo(ctx context.Context, id int64, filename, contentType string, data []byte) (*Company, error) {
	if len(data) == 0 {
		return nil, shared.Validationf("logo file is empty")
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("companies/%d/logo/%s%s", id, uuid.NewString(), path.Ext(filename))
	url, err := s.store.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, shared.WrapError(shared.KindUploadError, "logo upload failed", err)
	}

	company, err := s.repo.SetLogo(ctx, id, key, url)
	if err != nil {
		return nil, err
	}
	if current.LogoKey != "" && current.LogoKey != key {
		_ = s.store.Delete(ctx, current.LogoKey)
	}
	return company, nil
}

// Delete soft-deletes a company; it stays restorable from the trash.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) validate(input CompanyInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return shared.Validationf("company name is required")
	}
	if prefix := strings.TrimSpace(input.InvoicePrefix); prefix != "" && len(prefix) > 10 {
		return shared.Validationf("invoice prefix too long")
	}
	return nil
}
