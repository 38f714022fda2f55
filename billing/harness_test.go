package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally/billable-engine/billing"
	"github.com/tally/billable-engine/billing/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	owner    billing.UserID = "user-1"
	intruder billing.UserID = "user-2"
)

func hours(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func d(s string) billing.Date { return billing.MustDate(s) }

// fixture wires a memory store with one owner, one company at rate 50000,
// and one project, plus a second user owning nothing.
type fixture struct {
	store   *store.Memory
	company billing.CompanyID
	project billing.ProjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	for _, id := range []billing.UserID{owner, intruder} {
		err := mem.CreateUser(ctx, billing.User{ID: id, Username: string(id), CreatedAt: time.Now()})
		if err != nil {
			t.Fatalf("create user %s: %v", id, err)
		}
	}

	company := billing.Company{
		ID:              "company-1",
		UserID:          owner,
		Name:            "Acme Consulting",
		HourlyRate:      decimal.NewFromInt(50000),
		BillingCycleDay: 1,
		CreatedAt:       time.Now(),
	}
	if err := mem.CreateCompany(ctx, company); err != nil {
		t.Fatalf("create company: %v", err)
	}

	project := billing.Project{
		ID:        "project-1",
		CompanyID: company.ID,
		UserID:    owner,
		Name:      "Backend",
		CreatedAt: time.Now(),
	}
	if err := mem.CreateProject(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}

	return &fixture{store: mem, company: company.ID, project: project.ID}
}

// seedEntry writes an entry directly, bypassing the reconciler, for tests
// that need a known starting state.
func (f *fixture) seedEntry(t *testing.T, projectID billing.ProjectID, date string, h float64) {
	t.Helper()
	err := f.store.PutEntry(context.Background(), billing.HourEntry{
		CompanyID: f.company,
		ProjectID: projectID,
		Date:      d(date),
		Hours:     hours(h),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed entry %s: %v", date, err)
	}
}

// seedProfile gives the owner a billing profile so invoices can be created.
func (f *fixture) seedProfile(t *testing.T) {
	t.Helper()
	err := f.store.PutBillingProfile(context.Background(), billing.BillingProfile{
		UserID:           owner,
		LegalName:        "Jane Freelancer",
		IDType:           "NIF",
		IDNumber:         "12345678Z",
		Address:          "Calle Mayor 1, Madrid",
		BankName:         "Banco Uno",
		BankAccount:      "ES91 2100 0418 4502 0005 1332",
		LegalDeclaration: "Exempt under article 20",
		UpdatedAt:        time.Now(),
	})
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}
