package cases

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-assist/meridian/internal/platform/objstore"
	"github.com/meridian-assist/meridian/internal/shared"
)

// RepositoryPort defines data access methods for cases.
type RepositoryPort interface {
	CreateCase(ctx context.Context, input CaseInput) (*Case, error)
	GetCase(ctx context.Context, id int64) (*Case, error)
	ListCases(ctx context.Context, filter ListFilter) ([]Case, error)
	UpdateCase(ctx context.Context, id int64, input CaseInput) (*Case, error)
	SoftDeleteCase(ctx context.Context, id int64) error

	AddAction(ctx context.Context, caseID int64, input ActionInput) (*CaseAction, error)
	UpdateAction(ctx context.Context, actionID int64, input ActionInput) (*CaseAction, error)
	DeleteAction(ctx context.Context, actionID int64) error
	ListActions(ctx context.Context, caseID int64) ([]CaseAction, error)

	AddDocument(ctx context.Context, doc CaseDocument) (*CaseDocument, error)
	DeleteDocument(ctx context.Context, docID int64) (*CaseDocument, error)
	ListDocuments(ctx context.Context, caseID int64, categories []DocumentCategory) ([]CaseDocument, error)
}

// ReportInvalidator bumps the reporting cache after a mutation. Optional.
type ReportInvalidator interface {
	Bump(ctx context.Context) error
}

// Service handles case business logic. Every action mutation reconciles the
// parent's derived totals before the call returns.
type Service struct {
	repo        RepositoryPort
	store       objstore.Store
	invalidator ReportInvalidator
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, store objstore.Store, invalidator ReportInvalidator) *Service {
	return &Service{repo: repo, store: store, invalidator: invalidator}
}

// Create opens a new case. The case number comes from the monthly counter.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CaseInput) (*Case, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}
	if input.HandlerID == 0 {
		input.HandlerID = actor.ID
	}
	created, err := s.repo.CreateCase(ctx, input)
	if err != nil {
		return nil, err
	}
	s.bump(ctx)
	return created, nil
}

// Get returns one case.
func (s *Service) Get(ctx context.Context, id int64) (*Case, error) {
	return s.repo.GetCase(ctx, id)
}

// List returns cases matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Case, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, shared.Validationf("unknown case status %q", filter.Status)
	}
	return s.repo.ListCases(ctx, filter)
}

// Update overwrites case fields. Derived totals cannot be set this way.
func (s *Service) Update(ctx context.Context, id int64, input CaseInput) (*Case, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateCase(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.bump(ctx)
	return updated, nil
}

// Delete soft-deletes a case. Children stay intact until a permanent purge.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDeleteCase(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// AddAction appends a billable service line and reconciles totals.
func (s *Service) AddAction(ctx context.Context, caseID int64, input ActionInput) (*CaseAction, error) {
	if err := s.validateAction(&input); err != nil {
		return nil, err
	}
	action, err := s.repo.AddAction(ctx, caseID, input)
	if err != nil {
		return nil, err
	}
	s.bump(ctx)
	return action, nil
}

// UpdateAction overwrites a service line and reconciles totals.
func (s *Service) UpdateAction(ctx context.Context, actionID int64, input ActionInput) (*CaseAction, error) {
	if err := s.validateAction(&input); err != nil {
		return nil, err
	}
	action, err := s.repo.UpdateAction(ctx, actionID, input)
	if err != nil {
		return nil, err
	}
	s.bump(ctx)
	return action, nil
}

// DeleteAction removes a service line and reconciles totals.
func (s *Service) DeleteAction(ctx context.Context, actionID int64) error {
	if err := s.repo.DeleteAction(ctx, actionID); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// ListActions returns a case's service lines in display order.
func (s *Service) ListActions(ctx context.Context, caseID int64) ([]CaseAction, error) {
	if _, err := s.repo.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.repo.ListActions(ctx, caseID)
}

// UploadDocument stores a file in object storage and records it on the case.
func (s *Service) UploadDocument(ctx context.Context, actor shared.Actor, caseID int64, category DocumentCategory, filename, contentType string, data []byte) (*CaseDocument, error) {
	if !ValidCategory(category) {
		return nil, shared.Validationf("unknown document category %q", category)
	}
	if len(data) == 0 {
		return nil, shared.Validationf("document file is empty")
	}
	if _, err := s.repo.GetCase(ctx, caseID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("cases/%d/documents/%s%s", caseID, uuid.NewString(), path.Ext(filename))
	url, err := s.store.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, shared.WrapError(shared.KindUploadError, "document upload failed", err)
	}

	doc, err := s.repo.AddDocument(ctx, CaseDocument{
		CaseID:      caseID,
		Category:    category,
		Filename:    filename,
		ObjectKey:   key,
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedBy:  actor.ID,
	})
	if err != nil {
		// the row never landed; drop the orphaned object
		_ = s.store.Delete(ctx, key)
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes the record and its stored object.
func (s *Service) DeleteDocument(ctx context.Context, docID int64) error {
	removed, err := s.repo.DeleteDocument(ctx, docID)
	if err != nil {
		return err
	}
	if removed.ObjectKey != "" {
		_ = s.store.Delete(ctx, removed.ObjectKey)
	}
	return nil
}

// ListDocuments returns a case's documents.
func (s *Service) ListDocuments(ctx context.Context, caseID int64, categories []DocumentCategory) ([]CaseDocument, error) {
	for _, c := range categories {
		if !ValidCategory(c) {
			return nil, shared.Validationf("unknown document category %q", c)
		}
	}
	return s.repo.ListDocuments(ctx, caseID, categories)
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidator != nil {
		_ = s.invalidator.Bump(ctx)
	}
}

func (s *Service) validate(input *CaseInput) error {
	if strings.TrimSpace(input.PatientName) == "" {
		return shared.Validationf("patient name is required")
	}
	if input.Status == "" {
		input.Status = StatusOpen
	}
	if !ValidStatus(input.Status) {
		return shared.Validationf("unknown case status %q", input.Status)
	}
	return nil
}

func (s *Service) validateAction(input *ActionInput) error {
	if strings.TrimSpace(input.ServiceName) == "" {
		return shared.Validationf("service name is required")
	}
	if input.ServiceCost < 0 || input.AssistanceCost < 0 || input.CommissionCost < 0 {
		return shared.Validationf("costs cannot be negative")
	}
	for _, currency := range []string{input.ServiceCurrency, input.AssistanceCurrency, input.CommissionCurrency} {
		if currency != "" && len(currency) != 3 {
			return shared.Validationf("currency code %q is not 3 letters", currency)
		}
	}
	return nil
}
