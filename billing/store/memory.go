// Package store provides billing.Store implementations.
package store

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/tally/billable-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	s  state
}

type state struct {
	users       map[billing.UserID]billing.User
	usersByName map[string]billing.UserID
	profiles    map[billing.UserID]billing.BillingProfile
	companies   map[billing.CompanyID]billing.Company
	projects    map[billing.ProjectID]billing.Project
	entries     map[entryKey]billing.HourEntry
	invoices    map[billing.InvoiceID]billing.Invoice
	items       map[billing.InvoiceID][]billing.InvoiceItem
}

// entryKey uses the date's string form so the struct is a safe map key.
type entryKey struct {
	company billing.CompanyID
	project billing.ProjectID
	date    string
}

func keyOf(k billing.EntryKey) entryKey {
	return entryKey{company: k.CompanyID, project: k.ProjectID, date: k.Date.String()}
}

func NewMemory() *Memory {
	return &Memory{s: newState()}
}

func newState() state {
	return state{
		users:       make(map[billing.UserID]billing.User),
		usersByName: make(map[string]billing.UserID),
		profiles:    make(map[billing.UserID]billing.BillingProfile),
		companies:   make(map[billing.CompanyID]billing.Company),
		projects:    make(map[billing.ProjectID]billing.Project),
		entries:     make(map[entryKey]billing.HourEntry),
		invoices:    make(map[billing.InvoiceID]billing.Invoice),
		items:       make(map[billing.InvoiceID][]billing.InvoiceItem),
	}
}

func (st state) clone() state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.usersByName {
		c.usersByName[k] = v
	}
	for k, v := range st.profiles {
		c.profiles[k] = v
	}
	for k, v := range st.companies {
		c.companies[k] = v
	}
	for k, v := range st.projects {
		c.projects[k] = v
	}
	for k, v := range st.entries {
		c.entries[k] = v
	}
	for k, v := range st.invoices {
		c.invoices[k] = v
	}
	for k, v := range st.items {
		c.items[k] = append([]billing.InvoiceItem{}, v...)
	}
	return c
}

// =============================================================================
// TRANSACTIONS - Snapshot plus rollback under one lock
// =============================================================================

// WithTx executes fn while holding the write lock, which makes transactions
// serializable. On error the pre-transaction state is restored.
func (m *Memory) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.s.clone()
	if err := fn(&txView{m: m}); err != nil {
		m.s = snapshot
		return err
	}
	return nil
}

// txView exposes the store to code running inside WithTx. The parent's lock
// is already held, so methods go straight to the locked helpers.
type txView struct {
	m *Memory
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) CreateUser(_ context.Context, u billing.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createUserLocked(u)
}

func (m *Memory) createUserLocked(u billing.User) error {
	if _, taken := m.s.usersByName[u.Username]; taken {
		return billing.ErrAlreadyExists
	}
	m.s.users[u.ID] = u
	m.s.usersByName[u.Username] = u.ID
	return nil
}

func (m *Memory) GetUser(_ context.Context, id billing.UserID) (billing.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getUserLocked(id)
}

func (m *Memory) getUserLocked(id billing.UserID) (billing.User, error) {
	u, ok := m.s.users[id]
	if !ok {
		return billing.User{}, billing.ErrNotFound
	}
	return u, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (billing.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.s.usersByName[username]
	if !ok {
		return billing.User{}, billing.ErrNotFound
	}
	return m.getUserLocked(id)
}

// =============================================================================
// BILLING PROFILES
// =============================================================================

func (m *Memory) PutBillingProfile(_ context.Context, p billing.BillingProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.profiles[p.UserID] = p
	return nil
}

func (m *Memory) GetBillingProfile(_ context.Context, userID billing.UserID) (billing.BillingProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBillingProfileLocked(userID)
}

func (m *Memory) getBillingProfileLocked(userID billing.UserID) (billing.BillingProfile, error) {
	p, ok := m.s.profiles[userID]
	if !ok {
		return billing.BillingProfile{}, billing.ErrNotFound
	}
	return p, nil
}

// =============================================================================
// COMPANIES
// =============================================================================

func (m *Memory) CreateCompany(_ context.Context, c billing.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.companies[c.ID] = c
	return nil
}

func (m *Memory) GetCompany(_ context.Context, id billing.CompanyID) (billing.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCompanyLocked(id)
}

func (m *Memory) getCompanyLocked(id billing.CompanyID) (billing.Company, error) {
	c, ok := m.s.companies[id]
	if !ok {
		return billing.Company{}, billing.ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListCompanies(_ context.Context, userID billing.UserID) ([]billing.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []billing.Company
	for _, c := range m.s.companies {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) UpdateCompany(_ context.Context, c billing.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.s.companies[c.ID]; !ok {
		return billing.ErrNotFound
	}
	m.s.companies[c.ID] = c
	return nil
}

// DeleteCompany cascades to the company's projects and entries. Invoices
// stay: they are immutable records a tenant must not lose by accident.
func (m *Memory) DeleteCompany(_ context.Context, id billing.CompanyID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCompanyLocked(id)
}

func (m *Memory) deleteCompanyLocked(id billing.CompanyID) error {
	if _, ok := m.s.companies[id]; !ok {
		return billing.ErrNotFound
	}
	delete(m.s.companies, id)
	for pid, p := range m.s.projects {
		if p.CompanyID == id {
			delete(m.s.projects, pid)
		}
	}
	for k := range m.s.entries {
		if k.company == id {
			delete(m.s.entries, k)
		}
	}
	return nil
}

// =============================================================================
// PROJECTS
// =============================================================================

func (m *Memory) CreateProject(_ context.Context, p billing.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.projects[p.ID] = p
	return nil
}

func (m *Memory) GetProject(_ context.Context, id billing.ProjectID) (billing.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.s.projects[id]
	if !ok {
		return billing.Project{}, billing.ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListProjects(_ context.Context, companyID billing.CompanyID) ([]billing.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []billing.Project
	for _, p := range m.s.projects {
		if p.CompanyID == companyID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) DeleteProject(_ context.Context, id billing.ProjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.s.projects[id]
	if !ok {
		return billing.ErrNotFound
	}
	delete(m.s.projects, id)
	for k := range m.s.entries {
		if k.company == project.CompanyID && k.project == id {
			delete(m.s.entries, k)
		}
	}
	return nil
}

// =============================================================================
// HOUR ENTRIES
// =============================================================================

func (m *Memory) GetEntry(_ context.Context, k billing.EntryKey) (billing.HourEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEntryLocked(k)
}

func (m *Memory) getEntryLocked(k billing.EntryKey) (billing.HourEntry, error) {
	e, ok := m.s.entries[keyOf(k)]
	if !ok {
		return billing.HourEntry{}, billing.ErrNotFound
	}
	return e, nil
}

func (m *Memory) PutEntry(_ context.Context, e billing.HourEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putEntryLocked(e)
	return nil
}

func (m *Memory) putEntryLocked(e billing.HourEntry) {
	m.s.entries[keyOf(e.Key())] = e
}

func (m *Memory) DeleteEntry(_ context.Context, k billing.EntryKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk := keyOf(k)
	if _, ok := m.s.entries[mk]; !ok {
		return billing.ErrNotFound
	}
	delete(m.s.entries, mk)
	return nil
}

func (m *Memory) ListEntries(_ context.Context, f billing.EntryFilter) ([]billing.HourEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEntriesLocked(f)
}

func (m *Memory) listEntriesLocked(f billing.EntryFilter) ([]billing.HourEntry, error) {
	var result []billing.HourEntry
	for _, e := range m.s.entries {
		if e.CompanyID != f.CompanyID {
			continue
		}
		if f.Project != nil && e.ProjectID != *f.Project {
			continue
		}
		if f.From != nil && e.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && e.Date.After(*f.To) {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ProjectID < result[j].ProjectID
	})
	return result, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) CreateInvoice(_ context.Context, inv billing.Invoice, items []billing.InvoiceItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createInvoiceLocked(inv, items)
}

func (m *Memory) createInvoiceLocked(inv billing.Invoice, items []billing.InvoiceItem) error {
	for _, existing := range m.s.invoices {
		if existing.UserID == inv.UserID && existing.Number == inv.Number {
			return billing.ErrConflict
		}
	}
	m.s.invoices[inv.ID] = inv
	m.s.items[inv.ID] = append([]billing.InvoiceItem{}, items...)
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id billing.InvoiceID) (billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.s.invoices[id]
	if !ok {
		return billing.Invoice{}, billing.ErrNotFound
	}
	return inv, nil
}

func (m *Memory) ListInvoices(_ context.Context, userID billing.UserID) ([]billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []billing.Invoice
	for _, inv := range m.s.invoices {
		if inv.UserID == userID {
			result = append(result, inv)
		}
	}
	sortInvoices(result)
	return result, nil
}

// sortInvoices orders by the numeric value of Number. Zero-padding stops at
// three digits, so a plain string sort would put "1000" before "999".
func sortInvoices(invoices []billing.Invoice) {
	sort.Slice(invoices, func(i, j int) bool {
		a, errA := strconv.Atoi(invoices[i].Number)
		b, errB := strconv.Atoi(invoices[j].Number)
		if errA != nil || errB != nil {
			return invoices[i].Number < invoices[j].Number
		}
		return a < b
	})
}

func (m *Memory) ListInvoiceItems(_ context.Context, id billing.InvoiceID) ([]billing.InvoiceItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]billing.InvoiceItem{}, m.s.items[id]...), nil
}

func (m *Memory) UpdateInvoiceStatus(_ context.Context, id billing.InvoiceID, status billing.InvoiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.s.invoices[id]
	if !ok {
		return billing.ErrNotFound
	}
	inv.Status = status
	m.s.invoices[id] = inv
	return nil
}

func (m *Memory) DeleteInvoice(_ context.Context, id billing.InvoiceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.s.invoices[id]; !ok {
		return billing.ErrNotFound
	}
	delete(m.s.invoices, id)
	delete(m.s.items, id)
	return nil
}

func (m *Memory) MaxInvoiceNumber(_ context.Context, userID billing.UserID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInvoiceNumberLocked(userID)
}

func (m *Memory) maxInvoiceNumberLocked(userID billing.UserID) (int, error) {
	max := 0
	for _, inv := range m.s.invoices {
		if inv.UserID != userID {
			continue
		}
		if n, err := strconv.Atoi(inv.Number); err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

// =============================================================================
// TX VIEW METHODS - Same operations, lock already held by WithTx
// =============================================================================

func (tv *txView) CreateUser(_ context.Context, u billing.User) error { return tv.m.createUserLocked(u) }

func (tv *txView) GetUser(_ context.Context, id billing.UserID) (billing.User, error) {
	return tv.m.getUserLocked(id)
}

func (tv *txView) GetUserByUsername(_ context.Context, username string) (billing.User, error) {
	id, ok := tv.m.s.usersByName[username]
	if !ok {
		return billing.User{}, billing.ErrNotFound
	}
	return tv.m.getUserLocked(id)
}

func (tv *txView) PutBillingProfile(_ context.Context, p billing.BillingProfile) error {
	tv.m.s.profiles[p.UserID] = p
	return nil
}

func (tv *txView) GetBillingProfile(_ context.Context, userID billing.UserID) (billing.BillingProfile, error) {
	return tv.m.getBillingProfileLocked(userID)
}

func (tv *txView) CreateCompany(_ context.Context, c billing.Company) error {
	tv.m.s.companies[c.ID] = c
	return nil
}

func (tv *txView) GetCompany(_ context.Context, id billing.CompanyID) (billing.Company, error) {
	return tv.m.getCompanyLocked(id)
}

func (tv *txView) ListCompanies(ctx context.Context, userID billing.UserID) ([]billing.Company, error) {
	var result []billing.Company
	for _, c := range tv.m.s.companies {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (tv *txView) UpdateCompany(_ context.Context, c billing.Company) error {
	if _, ok := tv.m.s.companies[c.ID]; !ok {
		return billing.ErrNotFound
	}
	tv.m.s.companies[c.ID] = c
	return nil
}

func (tv *txView) DeleteCompany(_ context.Context, id billing.CompanyID) error {
	return tv.m.deleteCompanyLocked(id)
}

func (tv *txView) CreateProject(_ context.Context, p billing.Project) error {
	tv.m.s.projects[p.ID] = p
	return nil
}

func (tv *txView) GetProject(_ context.Context, id billing.ProjectID) (billing.Project, error) {
	p, ok := tv.m.s.projects[id]
	if !ok {
		return billing.Project{}, billing.ErrNotFound
	}
	return p, nil
}

func (tv *txView) ListProjects(_ context.Context, companyID billing.CompanyID) ([]billing.Project, error) {
	var result []billing.Project
	for _, p := range tv.m.s.projects {
		if p.CompanyID == companyID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (tv *txView) DeleteProject(_ context.Context, id billing.ProjectID) error {
	if _, ok := tv.m.s.projects[id]; !ok {
		return billing.ErrNotFound
	}
	delete(tv.m.s.projects, id)
	return nil
}

func (tv *txView) GetEntry(_ context.Context, k billing.EntryKey) (billing.HourEntry, error) {
	return tv.m.getEntryLocked(k)
}

func (tv *txView) PutEntry(_ context.Context, e billing.HourEntry) error {
	tv.m.putEntryLocked(e)
	return nil
}

func (tv *txView) DeleteEntry(_ context.Context, k billing.EntryKey) error {
	mk := keyOf(k)
	if _, ok := tv.m.s.entries[mk]; !ok {
		return billing.ErrNotFound
	}
	delete(tv.m.s.entries, mk)
	return nil
}

func (tv *txView) ListEntries(_ context.Context, f billing.EntryFilter) ([]billing.HourEntry, error) {
	return tv.m.listEntriesLocked(f)
}

func (tv *txView) CreateInvoice(_ context.Context, inv billing.Invoice, items []billing.InvoiceItem) error {
	return tv.m.createInvoiceLocked(inv, items)
}

func (tv *txView) GetInvoice(_ context.Context, id billing.InvoiceID) (billing.Invoice, error) {
	inv, ok := tv.m.s.invoices[id]
	if !ok {
		return billing.Invoice{}, billing.ErrNotFound
	}
	return inv, nil
}

func (tv *txView) ListInvoices(_ context.Context, userID billing.UserID) ([]billing.Invoice, error) {
	var result []billing.Invoice
	for _, inv := range tv.m.s.invoices {
		if inv.UserID == userID {
			result = append(result, inv)
		}
	}
	sortInvoices(result)
	return result, nil
}

func (tv *txView) ListInvoiceItems(_ context.Context, id billing.InvoiceID) ([]billing.InvoiceItem, error) {
	return append([]billing.InvoiceItem{}, tv.m.s.items[id]...), nil
}

func (tv *txView) UpdateInvoiceStatus(_ context.Context, id billing.InvoiceID, status billing.InvoiceStatus) error {
	inv, ok := tv.m.s.invoices[id]
	if !ok {
		return billing.ErrNotFound
	}
	inv.Status = status
	tv.m.s.invoices[id] = inv
	return nil
}

func (tv *txView) DeleteInvoice(_ context.Context, id billing.InvoiceID) error {
	if _, ok := tv.m.s.invoices[id]; !ok {
		return billing.ErrNotFound
	}
	delete(tv.m.s.invoices, id)
	delete(tv.m.s.items, id)
	return nil
}

func (tv *txView) MaxInvoiceNumber(_ context.Context, userID billing.UserID) (int, error) {
	return tv.m.maxInvoiceNumberLocked(userID)
}
