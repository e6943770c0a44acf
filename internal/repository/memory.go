package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
)

type memState struct {
	accounts map[string]*models.Account
	groups   map[string]*models.AccountGroup
	orders   map[string]*models.PaymentOrder
	events   map[string][]models.OrderEvent
	eventSeq int64
}

func newMemState() *memState {
	return &memState{
		accounts: make(map[string]*models.Account),
		groups:   make(map[string]*models.AccountGroup),
		orders:   make(map[string]*models.PaymentOrder),
		events:   make(map[string][]models.OrderEvent),
	}
}

// Memory is an in-process Store. Transactions run serially on a copy of the state that
// replaces the original on commit, which gives the same isolation the row locks provide.
type Memory struct {
	mu    sync.RWMutex
	state *memState
}

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *Memory) view() *memState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Reads go to the committed state; a committed state is never mutated afterwards.
func (m *Memory) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return m.view().GetAccount(ctx, id)
}

func (m *Memory) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return m.view().ListAccounts(ctx)
}

func (m *Memory) GetGroup(ctx context.Context, id string) (*models.AccountGroup, error) {
	return m.view().GetGroup(ctx, id)
}

func (m *Memory) ListGroups(ctx context.Context) ([]models.AccountGroup, error) {
	return m.view().ListGroups(ctx)
}

func (m *Memory) GetOrder(ctx context.Context, id string) (*models.PaymentOrder, error) {
	return m.view().GetOrder(ctx, id)
}

func (m *Memory) ListOrders(ctx context.Context, f models.OrderFilter) (*models.OrderPage, error) {
	return m.view().ListOrders(ctx, f)
}

func (m *Memory) ExportRows(ctx context.Context, f models.OrderFilter) ([]models.ExportRow, error) {
	return m.view().ExportRows(ctx, f)
}

func (m *Memory) WaitingOrderIDs(ctx context.Context, accountID string) ([]string, error) {
	return m.view().WaitingOrderIDs(ctx, accountID)
}

func (m *Memory) StaleOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return m.view().StaleOrderIDs(ctx, cutoff, limit)
}

func (s *memState) clone() *memState {
	c := newMemState()
	for id, a := range s.accounts {
		c.accounts[id] = cloneAccount(a)
	}
	for id, g := range s.groups {
		c.groups[id] = cloneGroup(g)
	}
	for id, o := range s.orders {
		c.orders[id] = cloneOrder(o)
	}
	for id, ev := range s.events {
		c.events[id] = append([]models.OrderEvent(nil), ev...)
	}
	c.eventSeq = s.eventSeq
	return c
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.Signers = append([]models.Signer(nil), a.Signers...)
	return &c
}

func cloneGroup(g *models.AccountGroup) *models.AccountGroup {
	c := *g
	c.AccountIDs = append([]string(nil), g.AccountIDs...)
	return &c
}

func cloneOrder(o *models.PaymentOrder) *models.PaymentOrder {
	c := *o
	c.Items = append([]models.LineItem(nil), o.Items...)
	c.Approvers = append([]models.Approver(nil), o.Approvers...)
	c.History = nil
	return &c
}

func (s *memState) GetAccount(_ context.Context, id string) (*models.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, errs.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (s *memState) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *memState) ListAccounts(context.Context) ([]models.Account, error) {
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memState) CreateAccount(_ context.Context, a *models.Account) error {
	for _, existing := range s.accounts {
		if existing.IBAN == a.IBAN {
			return errs.Conflict("an account with IBAN %s already exists", a.IBAN)
		}
	}
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *memState) UpdateAccount(_ context.Context, a *models.Account) error {
	stored, ok := s.accounts[a.ID]
	if !ok || stored.Version != a.Version {
		return errs.ErrVersionConflict
	}
	stored.Title = a.Title
	stored.MinSignatures = a.MinSignatures
	stored.Enabled = a.Enabled
	stored.UpdatedAt = a.UpdatedAt
	stored.Version++
	a.Version++
	return nil
}

func (s *memState) CreateSigner(_ context.Context, sg *models.Signer) error {
	a, ok := s.accounts[sg.AccountID]
	if !ok {
		return errs.ErrAccountNotFound
	}
	if _, dup := a.SignerByUser(sg.UserID); dup {
		return errs.ErrDuplicateSigner
	}
	a.Signers = append(a.Signers, *sg)
	return nil
}

func (s *memState) UpdateSigner(_ context.Context, sg *models.Signer) error {
	a, ok := s.accounts[sg.AccountID]
	if !ok {
		return errs.ErrSignerNotFound
	}
	for i := range a.Signers {
		if a.Signers[i].ID == sg.ID {
			a.Signers[i].Name = sg.Name
			a.Signers[i].Phone = sg.Phone
			a.Signers[i].Status = sg.Status
			a.Signers[i].UpdatedAt = sg.UpdatedAt
			return nil
		}
	}
	return errs.ErrSignerNotFound
}

func (s *memState) GetGroup(_ context.Context, id string) (*models.AccountGroup, error) {
	g, ok := s.groups[id]
	if !ok {
		return nil, errs.ErrGroupNotFound
	}
	return cloneGroup(g), nil
}

func (s *memState) ListGroups(context.Context) ([]models.AccountGroup, error) {
	out := make([]models.AccountGroup, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, *cloneGroup(g))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memState) CreateGroup(_ context.Context, g *models.AccountGroup) error {
	s.groups[g.ID] = cloneGroup(g)
	return nil
}

func (s *memState) UpdateGroup(_ context.Context, g *models.AccountGroup) error {
	stored, ok := s.groups[g.ID]
	if !ok {
		return errs.ErrGroupNotFound
	}
	stored.Title = g.Title
	stored.Description = g.Description
	stored.Enabled = g.Enabled
	stored.UpdatedAt = g.UpdatedAt
	return nil
}

func (s *memState) DeleteGroup(_ context.Context, id string) error {
	if _, ok := s.groups[id]; !ok {
		return errs.ErrGroupNotFound
	}
	delete(s.groups, id)
	return nil
}

func (s *memState) AddGroupAccount(_ context.Context, groupID, accountID string) error {
	g, ok := s.groups[groupID]
	if !ok {
		return errs.ErrGroupNotFound
	}
	if _, ok := s.accounts[accountID]; !ok {
		return errs.ErrAccountNotFound
	}
	for _, id := range g.AccountIDs {
		if id == accountID {
			return errs.ErrDuplicateMember
		}
	}
	g.AccountIDs = append(g.AccountIDs, accountID)
	sort.Strings(g.AccountIDs)
	return nil
}

func (s *memState) RemoveGroupAccount(_ context.Context, groupID, accountID string) error {
	g, ok := s.groups[groupID]
	if !ok {
		return errs.ErrGroupNotFound
	}
	for i, id := range g.AccountIDs {
		if id == accountID {
			g.AccountIDs = append(g.AccountIDs[:i], g.AccountIDs[i+1:]...)
			return nil
		}
	}
	return errs.ErrAccountNotFound
}

func (s *memState) GetOrder(ctx context.Context, id string) (*models.PaymentOrder, error) {
	o, err := s.LockOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	o.History = append([]models.OrderEvent(nil), s.events[id]...)
	return o, nil
}

func (s *memState) LockOrder(_ context.Context, id string) (*models.PaymentOrder, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, errs.ErrOrderNotFound
	}
	c := cloneOrder(o)
	c.StatusLabel = c.Status.Label()
	return c, nil
}

func (s *memState) matching(f models.OrderFilter) []*models.PaymentOrder {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	var out []*models.PaymentOrder
	for _, o := range s.orders {
		if f.AccountID != "" && o.AccountID != f.AccountID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !o.CreatedAt.Before(*f.To) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(o.Title), q) &&
			!strings.Contains(strings.ToLower(o.Description), q) &&
			!strings.Contains(strings.ToLower(o.ID), q) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func containsStatus(list []models.OrderStatus, s models.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (s *memState) ListOrders(_ context.Context, f models.OrderFilter) (*models.OrderPage, error) {
	matched := s.matching(f)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	page := &models.OrderPage{Total: len(matched), Page: f.Page, PageSize: f.PageSize, Orders: []models.PaymentOrder{}}
	start := f.Offset()
	if start < 0 || start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if f.PageSize > 0 && start+f.PageSize < end {
		end = start + f.PageSize
	}
	for _, o := range matched[start:end] {
		c := cloneOrder(o)
		c.Items, c.Approvers = nil, nil
		c.StatusLabel = c.Status.Label()
		page.Orders = append(page.Orders, *c)
	}
	return page, nil
}

func (s *memState) ExportRows(_ context.Context, f models.OrderFilter) ([]models.ExportRow, error) {
	matched := s.matching(f)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	var out []models.ExportRow
	for _, o := range matched {
		for _, it := range o.Items {
			out = append(out, models.ExportRow{
				OrderID:         o.ID,
				OrderTitle:      o.Title,
				AccountID:       o.AccountID,
				OrderStatus:     o.Status,
				Seq:             it.Seq,
				DestinationIBAN: it.DestinationIBAN,
				BeneficiaryName: it.BeneficiaryName,
				Amount:          it.Amount,
				Currency:        o.Currency,
				ItemStatus:      it.Status,
				BankReference:   it.BankReference,
				CreatedAt:       o.CreatedAt,
			})
		}
	}
	return out, nil
}

func (s *memState) WaitingOrderIDs(_ context.Context, accountID string) ([]string, error) {
	var waiting []*models.PaymentOrder
	for _, o := range s.orders {
		if o.AccountID == accountID && o.Status == models.OrderWaitingForOwnersApproval {
			waiting = append(waiting, o)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		if !waiting[i].CreatedAt.Equal(waiting[j].CreatedAt) {
			return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
		}
		return waiting[i].ID < waiting[j].ID
	})
	ids := make([]string, len(waiting))
	for i, o := range waiting {
		ids[i] = o.ID
	}
	return ids, nil
}

func (s *memState) StaleOrderIDs(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	var stale []*models.PaymentOrder
	for _, o := range s.orders {
		if o.Status == models.OrderWaitingForOwnersApproval && o.SubmittedAt != nil && o.SubmittedAt.Before(cutoff) {
			stale = append(stale, o)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].SubmittedAt.Equal(*stale[j].SubmittedAt) {
			return stale[i].SubmittedAt.Before(*stale[j].SubmittedAt)
		}
		return stale[i].ID < stale[j].ID
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	ids := make([]string, len(stale))
	for i, o := range stale {
		ids[i] = o.ID
	}
	return ids, nil
}

func (s *memState) CreateOrder(_ context.Context, o *models.PaymentOrder) error {
	if _, ok := s.accounts[o.AccountID]; !ok {
		return errs.ErrAccountNotFound
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *memState) UpdateOrder(_ context.Context, o *models.PaymentOrder) error {
	stored, ok := s.orders[o.ID]
	if !ok || stored.Version != o.Version {
		return errs.ErrVersionConflict
	}
	stored.Status = o.Status
	stored.SubmittedAt = o.SubmittedAt
	stored.ApprovedAt = o.ApprovedAt
	stored.SentAt = o.SentAt
	stored.ProcessedAt = o.ProcessedAt
	stored.UpdatedAt = o.UpdatedAt
	stored.Version++
	o.Version++
	o.StatusLabel = o.Status.Label()
	return nil
}

func (s *memState) CreateApprovers(_ context.Context, orderID string, approvers []models.Approver) error {
	o, ok := s.orders[orderID]
	if !ok {
		return errs.ErrOrderNotFound
	}
	for _, a := range approvers {
		a.OrderID = orderID
		o.Approvers = append(o.Approvers, a)
	}
	return nil
}

func (s *memState) UpdateApprover(_ context.Context, a *models.Approver) error {
	o, ok := s.orders[a.OrderID]
	if !ok {
		return errs.ErrOrderNotFound
	}
	for i := range o.Approvers {
		if o.Approvers[i].SignerID == a.SignerID {
			o.Approvers[i].Status = a.Status
			o.Approvers[i].DecidedAt = a.DecidedAt
			o.Approvers[i].Comment = a.Comment
			return nil
		}
	}
	return errs.ErrSignerNotFound
}

func (s *memState) UpdateLineItem(_ context.Context, it *models.LineItem) error {
	o, ok := s.orders[it.OrderID]
	if !ok {
		return errs.ErrOrderNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == it.ID {
			o.Items[i].Status = it.Status
			o.Items[i].BankReference = it.BankReference
			o.Items[i].FailureReason = it.FailureReason
			o.Items[i].UpdatedAt = it.UpdatedAt
			return nil
		}
	}
	return errs.ErrItemNotFound
}

func (s *memState) AppendEvent(_ context.Context, e *models.OrderEvent) error {
	s.eventSeq++
	e.ID = s.eventSeq
	s.events[e.OrderID] = append(s.events[e.OrderID], *e)
	return nil
}
