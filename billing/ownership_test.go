package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally/billable-engine/billing"
)

func TestResolver_CompanyOwnedAndForeign(t *testing.T) {
	f := newFixture(t)
	r := billing.NewResolver(f.store)
	ctx := context.Background()

	company, err := r.Company(ctx, owner, f.company)
	require.NoError(t, err)
	assert.Equal(t, "Acme Consulting", company.Name)

	// Foreign and nonexistent look identical to the caller.
	_, err = r.Company(ctx, intruder, f.company)
	assert.ErrorIs(t, err, billing.ErrNotFound)
	_, err = r.Company(ctx, owner, "ghost")
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestResolver_ProjectNeedsBothLinks(t *testing.T) {
	f := newFixture(t)
	r := billing.NewResolver(f.store)
	ctx := context.Background()

	project, err := r.Project(ctx, owner, f.company, f.project)
	require.NoError(t, err)
	assert.Equal(t, "Backend", project.Name)

	_, err = r.Project(ctx, intruder, f.company, f.project)
	assert.ErrorIs(t, err, billing.ErrNotFound)

	// Right user, wrong company: the project is real but must not resolve
	// under a company it does not belong to.
	other := billing.Company{ID: "company-2", UserID: owner, Name: "Other"}
	require.NoError(t, f.store.CreateCompany(ctx, other))
	_, err = r.Project(ctx, owner, other.ID, f.project)
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestResolver_EntryScope(t *testing.T) {
	f := newFixture(t)
	r := billing.NewResolver(f.store)
	ctx := context.Background()

	// Unassigned bucket needs only the company.
	_, err := r.EntryScope(ctx, owner, f.company, billing.NoProject)
	assert.NoError(t, err)

	_, err = r.EntryScope(ctx, owner, f.company, f.project)
	assert.NoError(t, err)

	_, err = r.EntryScope(ctx, owner, f.company, "ghost-project")
	assert.ErrorIs(t, err, billing.ErrNotFound)

	_, err = r.EntryScope(ctx, intruder, f.company, billing.NoProject)
	assert.ErrorIs(t, err, billing.ErrNotFound)
}
