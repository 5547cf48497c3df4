package cases

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-assist/meridian/internal/shared"
)

type memoryCaseRepo struct {
	cases      map[int64]*Case
	actions    map[int64]*CaseAction
	documents  map[int64]*CaseDocument
	nextCaseID int64
	nextAction int64
	nextDoc    int64
}

func newMemoryCaseRepo() *memoryCaseRepo {
	return &memoryCaseRepo{
		cases:     make(map[int64]*Case),
		actions:   make(map[int64]*CaseAction),
		documents: make(map[int64]*CaseDocument),
	}
}

func (r *memoryCaseRepo) reconcile(caseID int64) {
	c, ok := r.cases[caseID]
	if !ok {
		return
	}
	var t Totals
	for _, a := range r.actions {
		if a.CaseID != caseID {
			continue
		}
		t.ServiceCost += a.ServiceCost
		t.AssistanceCost += a.AssistanceCost
		t.CommissionCost += a.CommissionCost
		t.ActionsCount++
	}
	c.TotalServiceCost = t.ServiceCost
	c.TotalAssistanceCost = t.AssistanceCost
	c.TotalCommissionCost = t.CommissionCost
	c.ActionsCount = t.ActionsCount
	c.DocumentsCount = 0
	for _, d := range r.documents {
		if d.CaseID == caseID {
			c.DocumentsCount++
		}
	}
	c.UpdatedAt = time.Now()
}

func (r *memoryCaseRepo) CreateCase(ctx context.Context, input CaseInput) (*Case, error) {
	r.nextCaseID++
	c := &Case{
		ID:          r.nextCaseID,
		Number:      fmt.Sprintf("CASE-202501-%04d", r.nextCaseID),
		Status:      input.Status,
		HandlerID:   input.HandlerID,
		PatientName: input.PatientName,
		Description: input.Description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.cases[c.ID] = c
	return c, nil
}

func (r *memoryCaseRepo) GetCase(ctx context.Context, id int64) (*Case, error) {
	c, ok := r.cases[id]
	if !ok || c.DeletedAt != nil {
		return nil, shared.NotFound("case")
	}
	copied := *c
	return &copied, nil
}

func (r *memoryCaseRepo) ListCases(ctx context.Context, filter ListFilter) ([]Case, error) {
	var out []Case
	for _, c := range r.cases {
		if c.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *memoryCaseRepo) UpdateCase(ctx context.Context, id int64, input CaseInput) (*Case, error) {
	c, ok := r.cases[id]
	if !ok || c.DeletedAt != nil {
		return nil, shared.NotFound("case")
	}
	c.Status = input.Status
	c.HandlerID = input.HandlerID
	c.PatientName = input.PatientName
	c.Description = input.Description
	if input.Status == StatusCompleted {
		if c.ClosedAt == nil {
			now := time.Now()
			c.ClosedAt = &now
		}
	} else {
		c.ClosedAt = nil
	}
	c.UpdatedAt = time.Now()
	copied := *c
	return &copied, nil
}

func (r *memoryCaseRepo) SoftDeleteCase(ctx context.Context, id int64) error {
	c, ok := r.cases[id]
	if !ok || c.DeletedAt != nil {
		return shared.NotFound("case")
	}
	now := time.Now()
	c.DeletedAt = &now
	return nil
}

func (r *memoryCaseRepo) AddAction(ctx context.Context, caseID int64, input ActionInput) (*CaseAction, error) {
	if _, ok := r.cases[caseID]; !ok || r.cases[caseID].DeletedAt != nil {
		return nil, shared.NotFound("case")
	}
	r.nextAction++
	maxOrder := 0
	for _, a := range r.actions {
		if a.CaseID == caseID && a.SortOrder > maxOrder {
			maxOrder = a.SortOrder
		}
	}
	a := &CaseAction{
		ID:                 r.nextAction,
		CaseID:             caseID,
		PartnerID:          input.PartnerID,
		ServiceName:        input.ServiceName,
		Comment:            input.Comment,
		ServiceCost:        input.ServiceCost,
		ServiceCurrency:    input.ServiceCurrency,
		AssistanceCost:     input.AssistanceCost,
		AssistanceCurrency: input.AssistanceCurrency,
		CommissionCost:     input.CommissionCost,
		CommissionCurrency: input.CommissionCurrency,
		SortOrder:          maxOrder + 1,
		ServiceDate:        input.ServiceDate,
	}
	r.actions[a.ID] = a
	r.reconcile(caseID)
	copied := *a
	return &copied, nil
}

func (r *memoryCaseRepo) UpdateAction(ctx context.Context, actionID int64, input ActionInput) (*CaseAction, error) {
	a, ok := r.actions[actionID]
	if !ok {
		return nil, shared.NotFound("case action")
	}
	a.PartnerID = input.PartnerID
	a.ServiceName = input.ServiceName
	a.Comment = input.Comment
	a.ServiceCost = input.ServiceCost
	a.ServiceCurrency = input.ServiceCurrency
	a.AssistanceCost = input.AssistanceCost
	a.AssistanceCurrency = input.AssistanceCurrency
	a.CommissionCost = input.CommissionCost
	a.CommissionCurrency = input.CommissionCurrency
	a.ServiceDate = input.ServiceDate
	r.reconcile(a.CaseID)
	copied := *a
	return &copied, nil
}

func (r *memoryCaseRepo) DeleteAction(ctx context.Context, actionID int64) error {
	a, ok := r.actions[actionID]
	if !ok {
		return shared.NotFound("case action")
	}
	caseID := a.CaseID
	delete(r.actions, actionID)
	// close the sort-order gap
	var remaining []*CaseAction
	for _, act := range r.actions {
		if act.CaseID == caseID {
			remaining = append(remaining, act)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].SortOrder < remaining[j].SortOrder })
	for i, act := range remaining {
		act.SortOrder = i + 1
	}
	r.reconcile(caseID)
	return nil
}

func (r *memoryCaseRepo) ListActions(ctx context.Context, caseID int64) ([]CaseAction, error) {
	var out []CaseAction
	for _, a := range r.actions {
		if a.CaseID == caseID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *memoryCaseRepo) AddDocument(ctx context.Context, doc CaseDocument) (*CaseDocument, error) {
	r.nextDoc++
	doc.ID = r.nextDoc
	doc.CreatedAt = time.Now()
	stored := doc
	r.documents[doc.ID] = &stored
	r.reconcile(doc.CaseID)
	return &doc, nil
}

func (r *memoryCaseRepo) DeleteDocument(ctx context.Context, docID int64) (*CaseDocument, error) {
	d, ok := r.documents[docID]
	if !ok {
		return nil, shared.NotFound("case document")
	}
	delete(r.documents, docID)
	r.reconcile(d.CaseID)
	return d, nil
}

func (r *memoryCaseRepo) ListDocuments(ctx context.Context, caseID int64, categories []DocumentCategory) ([]CaseDocument, error) {
	var out []CaseDocument
	for _, d := range r.documents {
		if d.CaseID != caseID {
			continue
		}
		if len(categories) > 0 {
			match := false
			for _, c := range categories {
				if d.Category == c {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *d)
	}
	return out, nil
}

type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.objects[key] = data
	return "http://storage.local/docs/" + key, nil
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func newTestService() (*Service, *memoryCaseRepo, *memoryStore) {
	repo := newMemoryCaseRepo()
	store := newMemoryStore()
	return NewService(repo, store, nil), repo, store
}

var testActor = shared.Actor{ID: 11, Role: "handler"}

func TestCreateCaseDefaultsToOpen(t *testing.T) {
	svc, _, _ := newTestService()
	created, err := svc.Create(context.Background(), testActor, CaseInput{PatientName: "A. Beridze"})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, created.Status)
	require.Equal(t, testActor.ID, created.HandlerID)
	require.NotEmpty(t, created.Number)
}

func TestCreateCaseRequiresPatientName(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), testActor, CaseInput{})
	require.Error(t, err)
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestActionMutationsReconcileTotals(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testActor, CaseInput{PatientName: "A. Beridze"})
	require.NoError(t, err)

	a1, err := svc.AddAction(ctx, created.ID, ActionInput{
		ServiceName: "ambulance transfer", ServiceCost: 100, ServiceCurrency: "EUR",
	})
	require.NoError(t, err)

	c, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, c.TotalServiceCost)
	require.Equal(t, 1, c.ActionsCount)

	_, err = svc.AddAction(ctx, created.ID, ActionInput{
		ServiceName: "clinic visit", ServiceCost: 50, ServiceCurrency: "EUR",
	})
	require.NoError(t, err)

	c, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 150.0, c.TotalServiceCost)
	require.Equal(t, 2, c.ActionsCount)

	require.NoError(t, svc.DeleteAction(ctx, a1.ID))

	c, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 50.0, c.TotalServiceCost)
	require.Equal(t, 1, c.ActionsCount)
}

func TestActionUpdateReconcilesAllThreeCostFields(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testActor, CaseInput{PatientName: "P. Kipiani"})
	require.NoError(t, err)

	action, err := svc.AddAction(ctx, created.ID, ActionInput{
		ServiceName:        "hospitalization",
		ServiceCost:        500, ServiceCurrency: "GEL",
		AssistanceCost:     80, AssistanceCurrency: "USD",
		CommissionCost:     40, CommissionCurrency: "EUR",
	})
	require.NoError(t, err)

	_, err = svc.UpdateAction(ctx, action.ID, ActionInput{
		ServiceName:        "hospitalization",
		ServiceCost:        450, ServiceCurrency: "GEL",
		AssistanceCost:     90, AssistanceCurrency: "USD",
		CommissionCost:     40, CommissionCurrency: "EUR",
	})
	require.NoError(t, err)

	c, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 450.0, c.TotalServiceCost)
	require.Equal(t, 90.0, c.TotalAssistanceCost)
	require.Equal(t, 40.0, c.TotalCommissionCost)
	require.Equal(t, 1, c.ActionsCount)
}

func TestSortOrderStaysDenseAfterDelete(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testActor, CaseInput{PatientName: "N. Oniani"})
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 3; i++ {
		a, err := svc.AddAction(ctx, created.ID, ActionInput{ServiceName: "svc", ServiceCost: 1})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	require.NoError(t, svc.DeleteAction(ctx, ids[1]))

	actions, err := svc.ListActions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	require.Equal(t, 1, actions[0].SortOrder)
	require.Equal(t, 2, actions[1].SortOrder)
}

func TestActionValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testActor, CaseInput{PatientName: "Z. Gelashvili"})
	require.NoError(t, err)

	_, err = svc.AddAction(ctx, created.ID, ActionInput{ServiceCost: 10})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = svc.AddAction(ctx, created.ID, ActionInput{ServiceName: "x", ServiceCost: -5})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = svc.AddAction(ctx, created.ID, ActionInput{ServiceName: "x", ServiceCurrency: "EURO"})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestSoftDeletedCaseHiddenFromReads(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testActor, CaseInput{PatientName: "G. Davitashvili"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))

	listed, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Empty(t, listed)

	// adding an action to a trashed case must fail too
	_, err = svc.AddAction(ctx, created.ID, ActionInput{ServiceName: "x"})
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestUploadDocumentStoresObjectAndReconcilesCount(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testActor, CaseInput{PatientName: "L. Abashidze"})
	require.NoError(t, err)

	doc, err := svc.UploadDocument(ctx, testActor, created.ID, DocMedical, "scan.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, DocMedical, doc.Category)
	require.Len(t, store.objects, 1)

	c, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, c.DocumentsCount)

	require.NoError(t, svc.DeleteDocument(ctx, doc.ID))
	require.Empty(t, store.objects)

	c, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 0, c.DocumentsCount)
}

func TestUploadDocumentRejectsUnknownCategory(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testActor, CaseInput{PatientName: "T. Chkheidze"})
	require.NoError(t, err)

	_, err = svc.UploadDocument(ctx, testActor, created.ID, "legal", "a.pdf", "application/pdf", []byte("x"))
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestCompletingCaseStampsClosedAt(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testActor, CaseInput{PatientName: "M. Janelidze"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, CaseInput{
		PatientName: created.PatientName, HandlerID: created.HandlerID, Status: StatusCompleted,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ClosedAt)

	reopened, err := svc.Update(ctx, created.ID, CaseInput{
		PatientName: created.PatientName, HandlerID: created.HandlerID, Status: StatusInProgress,
	})
	require.NoError(t, err)
	require.Nil(t, reopened.ClosedAt)
}
