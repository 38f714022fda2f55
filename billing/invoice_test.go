package billing_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally/billable-engine/billing"
)

func draftInvoice(t *testing.T, f *fixture) billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoicer(f.store).CreateInvoice(context.Background(), billing.CreateInvoiceInput{
		UserID:      owner,
		CompanyID:   f.company,
		PeriodStart: d("2024-03-01"),
		PeriodEnd:   d("2024-03-31"),
		Concept:     "March services",
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return inv
}

// =============================================================================
// CREATION
// =============================================================================

func TestCreateInvoice_AggregatesPeriod(t *testing.T) {
	// GIVEN: 8h and 6h entries in March at a 50000 hourly rate
	// WHEN:  invoicing the month
	// THEN:  14 hours, 700000 total, exactly one line item, number 001
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)
	f.seedEntry(t, billing.NoProject, "2024-03-05", 6)
	f.seedEntry(t, billing.NoProject, "2024-04-01", 5) // outside the period

	iv := billing.NewInvoicer(f.store)
	inv := draftInvoice(t, f)

	assert.Equal(t, "001", inv.Number)
	assert.Equal(t, billing.StatusDraft, inv.Status)
	assert.Equal(t, "14", inv.TotalHours.String())
	assert.Equal(t, "50000", inv.HourlyRate.String())
	assert.Equal(t, "700000", inv.TotalAmount.String())

	_, items, err := iv.Get(context.Background(), owner, inv.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "March services", items[0].Concept)
	assert.Equal(t, "14", items[0].Hours.String())
	assert.Equal(t, "700000", items[0].Total.String())
}

func TestCreateInvoice_ProjectScoped(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)
	f.seedEntry(t, f.project, "2024-03-04", 2)

	iv := billing.NewInvoicer(f.store)
	inv, err := iv.CreateInvoice(context.Background(), billing.CreateInvoiceInput{
		UserID:      owner,
		CompanyID:   f.company,
		PeriodStart: d("2024-03-01"),
		PeriodEnd:   d("2024-03-31"),
		Project:     &f.project,
		Concept:     "Backend only",
	})
	require.NoError(t, err)

	assert.Equal(t, "2", inv.TotalHours.String())
	assert.Equal(t, "100000", inv.TotalAmount.String())
}

func TestCreateInvoice_EmptyPeriodRejected(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t)

	iv := billing.NewInvoicer(f.store)
	_, err := iv.CreateInvoice(context.Background(), billing.CreateInvoiceInput{
		UserID:      owner,
		CompanyID:   f.company,
		PeriodStart: d("2024-03-01"),
		PeriodEnd:   d("2024-03-31"),
	})
	assert.ErrorIs(t, err, billing.ErrEmptyPeriod)
}

func TestCreateInvoice_RequiresBillingProfile(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)

	iv := billing.NewInvoicer(f.store)
	_, err := iv.CreateInvoice(context.Background(), billing.CreateInvoiceInput{
		UserID:      owner,
		CompanyID:   f.company,
		PeriodStart: d("2024-03-01"),
		PeriodEnd:   d("2024-03-31"),
	})
	assert.ErrorIs(t, err, billing.ErrPreconditionFailed)
}

func TestCreateInvoice_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)

	iv := billing.NewInvoicer(f.store)
	_, err := iv.CreateInvoice(context.Background(), billing.CreateInvoiceInput{
		UserID:      intruder,
		CompanyID:   f.company,
		PeriodStart: d("2024-03-01"),
		PeriodEnd:   d("2024-03-31"),
	})
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

// =============================================================================
// NUMBERING
// =============================================================================

func TestCreateInvoice_SequentialNumbers(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t)
	iv := billing.NewInvoicer(f.store)
	ctx := context.Background()

	var numbers []string
	for month := 1; month <= 4; month++ {
		f.seedEntry(t, billing.NoProject, fmt.Sprintf("2024-%02d-15", month), 8)
		inv, err := iv.CreateInvoice(ctx, billing.CreateInvoiceInput{
			UserID:      owner,
			CompanyID:   f.company,
			PeriodStart: billing.MustDate(fmt.Sprintf("2024-%02d-01", month)),
			PeriodEnd:   billing.MustDate(fmt.Sprintf("2024-%02d-28", month)),
		})
		require.NoError(t, err)
		numbers = append(numbers, inv.Number)
	}
	assert.Equal(t, []string{"001", "002", "003", "004"}, numbers)
}

func TestCreateInvoice_NumberSurvivesDeletedDraft(t *testing.T) {
	// Allocation is max-plus-one over surviving invoices, so deleting the
	// latest draft hands its number to the next creation.
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)
	iv := billing.NewInvoicer(f.store)
	ctx := context.Background()

	first := draftInvoice(t, f)
	require.Equal(t, "001", first.Number)
	require.NoError(t, iv.Delete(ctx, owner, first.ID))

	second := draftInvoice(t, f)
	assert.Equal(t, "001", second.Number, "max-plus-one reuses the freed tail number")
}

func TestCreateInvoice_ConcurrentCreationsNeverShareANumber(t *testing.T) {
	// Two goroutines invoicing the same user at once must come away with
	// distinct numbers; the allocation runs inside one store transaction.
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)
	iv := billing.NewInvoicer(f.store)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := iv.CreateInvoice(context.Background(), billing.CreateInvoiceInput{
				UserID:      owner,
				CompanyID:   f.company,
				PeriodStart: d("2024-03-01"),
				PeriodEnd:   d("2024-03-31"),
			})
			if err == nil {
				results <- inv.Number
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	for num := range results {
		assert.False(t, seen[num], "number %s allocated twice", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

func TestFormatInvoiceNumber(t *testing.T) {
	cases := map[int]string{1: "001", 42: "042", 999: "999", 1000: "1000"}
	for n, want := range cases {
		assert.Equal(t, want, billing.FormatInvoiceNumber(n))
	}
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func TestCreateInvoice_SnapshotsAreFrozen(t *testing.T) {
	// Editing the billing profile or the company after invoicing must not
	// change what the stored invoice says about issuer or client.
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)
	iv := billing.NewInvoicer(f.store)
	ctx := context.Background()

	inv := draftInvoice(t, f)
	require.Equal(t, "Jane Freelancer", inv.Issuer.LegalName)
	require.Equal(t, "Acme Consulting", inv.Client.Name)

	profile, err := f.store.GetBillingProfile(ctx, owner)
	require.NoError(t, err)
	profile.LegalName = "Jane Renamed"
	require.NoError(t, f.store.PutBillingProfile(ctx, profile))

	company, err := f.store.GetCompany(ctx, f.company)
	require.NoError(t, err)
	company.Name = "Acme Rebranded"
	require.NoError(t, f.store.UpdateCompany(ctx, company))

	stored, _, err := iv.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Freelancer", stored.Issuer.LegalName)
	assert.Equal(t, "Acme Consulting", stored.Client.Name)
}

// =============================================================================
// STATUS MACHINE
// =============================================================================

func TestTransition_LegalPaths(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)
	iv := billing.NewInvoicer(f.store)
	ctx := context.Background()

	inv := draftInvoice(t, f)

	sent, err := iv.Transition(ctx, owner, inv.ID, billing.StatusSent)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusSent, sent.Status)

	paid, err := iv.Transition(ctx, owner, inv.ID, billing.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, paid.Status)
}

func TestTransition_DraftDirectlyToPaid(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)
	iv := billing.NewInvoicer(f.store)

	inv := draftInvoice(t, f)
	paid, err := iv.Transition(context.Background(), owner, inv.ID, billing.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, paid.Status)
}

func TestTransition_IllegalMoves(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)
	iv := billing.NewInvoicer(f.store)
	ctx := context.Background()

	inv := draftInvoice(t, f)
	_, err := iv.Transition(ctx, owner, inv.ID, billing.StatusPaid)
	require.NoError(t, err)

	// paid is terminal
	for _, to := range []billing.InvoiceStatus{billing.StatusDraft, billing.StatusSent, billing.StatusCancelled} {
		_, err := iv.Transition(ctx, owner, inv.ID, to)
		assert.ErrorIs(t, err, billing.ErrInvalidTransition, "paid -> %s", to)
	}

	_, err = iv.Transition(ctx, owner, inv.ID, billing.InvoiceStatus("archived"))
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)
}

func TestCanTransition_Table(t *testing.T) {
	assert.True(t, billing.CanTransition(billing.StatusDraft, billing.StatusSent))
	assert.True(t, billing.CanTransition(billing.StatusDraft, billing.StatusCancelled))
	assert.True(t, billing.CanTransition(billing.StatusSent, billing.StatusPaid))
	assert.False(t, billing.CanTransition(billing.StatusSent, billing.StatusDraft))
	assert.False(t, billing.CanTransition(billing.StatusCancelled, billing.StatusSent))
	assert.False(t, billing.CanTransition(billing.StatusPaid, billing.StatusPaid))
}

// =============================================================================
// LISTING
// =============================================================================

func TestList_StatusFilter(t *testing.T) {
	// GIVEN: three invoices in states draft, sent, paid
	// WHEN:  listing with and without a status
	// THEN:  empty status returns all, a status narrows, unknown is rejected
	f := newFixture(t)
	f.seedProfile(t)
	iv := billing.NewInvoicer(f.store)
	ctx := context.Background()

	var invoices []billing.Invoice
	for month := 1; month <= 3; month++ {
		f.seedEntry(t, billing.NoProject, fmt.Sprintf("2024-%02d-15", month), 8)
		inv, err := iv.CreateInvoice(ctx, billing.CreateInvoiceInput{
			UserID:      owner,
			CompanyID:   f.company,
			PeriodStart: billing.MustDate(fmt.Sprintf("2024-%02d-01", month)),
			PeriodEnd:   billing.MustDate(fmt.Sprintf("2024-%02d-28", month)),
		})
		require.NoError(t, err)
		invoices = append(invoices, inv)
	}
	_, err := iv.Transition(ctx, owner, invoices[1].ID, billing.StatusSent)
	require.NoError(t, err)
	_, err = iv.Transition(ctx, owner, invoices[2].ID, billing.StatusPaid)
	require.NoError(t, err)

	all, err := iv.List(ctx, owner, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"001", "002", "003"}, []string{all[0].Number, all[1].Number, all[2].Number})

	sent, err := iv.List(ctx, owner, billing.StatusSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "002", sent[0].Number)

	drafts, err := iv.List(ctx, owner, billing.StatusDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "001", drafts[0].Number)

	_, err = iv.List(ctx, owner, "archived")
	assert.ErrorIs(t, err, billing.ErrInvalidInput)
	assert.True(t, billing.IsClientError(err))
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestDelete_OnlyDrafts(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)
	iv := billing.NewInvoicer(f.store)
	ctx := context.Background()

	inv := draftInvoice(t, f)
	_, err := iv.Transition(ctx, owner, inv.ID, billing.StatusSent)
	require.NoError(t, err)

	err = iv.Delete(ctx, owner, inv.ID)
	assert.ErrorIs(t, err, billing.ErrPreconditionFailed)

	// Still there.
	_, _, err = iv.Get(ctx, owner, inv.ID)
	assert.NoError(t, err)
}

func TestInvoice_ForeignUserSeesNotFound(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t)
	f.seedEntry(t, billing.NoProject, "2024-03-04", 8)
	iv := billing.NewInvoicer(f.store)
	ctx := context.Background()

	inv := draftInvoice(t, f)

	_, _, err := iv.Get(ctx, intruder, inv.ID)
	assert.ErrorIs(t, err, billing.ErrNotFound)

	_, err = iv.Transition(ctx, intruder, inv.ID, billing.StatusSent)
	assert.ErrorIs(t, err, billing.ErrNotFound)

	err = iv.Delete(ctx, intruder, inv.ID)
	assert.ErrorIs(t, err, billing.ErrNotFound)
}
