/*
directory.go - Tenant portfolio management

PURPOSE:
  The CRUD surface around the engine: companies, projects, and billing
  profiles, with the ownership rule enforced here rather than trusted to
  callers. The reconciliation and invoicing engines assume the hierarchy
  this file maintains.

RULES:
  - A company's hourly rate is never negative
  - The billing cycle day is a day of month, 1..28 so every month has it
  - A project name is unique within its company
  - Deleting a company or project is fail-closed like every other mutation
*/
package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Directory struct {
	store    Store
	resolver *Resolver
	now      func() time.Time
}

func NewDirectory(store Store) *Directory {
	return &Directory{store: store, resolver: NewResolver(store), now: time.Now}
}

// =============================================================================
// COMPANIES
// =============================================================================

// CompanyInput carries the mutable fields of a company.
type CompanyInput struct {
	Name            string
	HourlyRate      decimal.Decimal
	BillingCycleDay int
	Client          *ClientProfile
}

func (in CompanyInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &PreconditionError{Reason: "company name is required"}
	}
	if in.HourlyRate.IsNegative() {
		return &PreconditionError{Reason: "hourly rate cannot be negative"}
	}
	if in.BillingCycleDay < 1 || in.BillingCycleDay > 28 {
		return &PreconditionError{Reason: "billing cycle day must be between 1 and 28"}
	}
	return nil
}

func (d *Directory) CreateCompany(ctx context.Context, userID UserID, in CompanyInput) (Company, error) {
	if err := in.validate(); err != nil {
		return Company{}, err
	}
	company := Company{
		ID:              CompanyID(uuid.NewString()),
		UserID:          userID,
		Name:            in.Name,
		HourlyRate:      in.HourlyRate,
		BillingCycleDay: in.BillingCycleDay,
		Client:          in.Client,
		CreatedAt:       d.now(),
	}
	if err := d.store.CreateCompany(ctx, company); err != nil {
		return Company{}, err
	}
	return company, nil
}

func (d *Directory) UpdateCompany(ctx context.Context, userID UserID, companyID CompanyID, in CompanyInput) (Company, error) {
	if err := in.validate(); err != nil {
		return Company{}, err
	}
	company, err := d.resolver.Company(ctx, userID, companyID)
	if err != nil {
		return Company{}, err
	}
	company.Name = in.Name
	company.HourlyRate = in.HourlyRate
	company.BillingCycleDay = in.BillingCycleDay
	company.Client = in.Client
	if err := d.store.UpdateCompany(ctx, company); err != nil {
		return Company{}, err
	}
	return company, nil
}

func (d *Directory) DeleteCompany(ctx context.Context, userID UserID, companyID CompanyID) error {
	if _, err := d.resolver.Company(ctx, userID, companyID); err != nil {
		return err
	}
	return d.store.DeleteCompany(ctx, companyID)
}

func (d *Directory) GetCompany(ctx context.Context, userID UserID, companyID CompanyID) (Company, error) {
	return d.resolver.Company(ctx, userID, companyID)
}

func (d *Directory) ListCompanies(ctx context.Context, userID UserID) ([]Company, error) {
	return d.store.ListCompanies(ctx, userID)
}

// =============================================================================
// PROJECTS
// =============================================================================

func (d *Directory) CreateProject(ctx context.Context, userID UserID, companyID CompanyID, name string) (Project, error) {
	if strings.TrimSpace(name) == "" {
		return Project{}, &PreconditionError{Reason: "project name is required"}
	}
	if _, err := d.resolver.Company(ctx, userID, companyID); err != nil {
		return Project{}, err
	}

	project := Project{
		ID:        ProjectID(uuid.NewString()),
		CompanyID: companyID,
		UserID:    userID,
		Name:      name,
		CreatedAt: d.now(),
	}

	// The uniqueness check and the insert must see the same state, or two
	// concurrent creations with the same name could both pass the scan.
	err := inTx(ctx, d.store, func(s Store) error {
		siblings, err := s.ListProjects(ctx, companyID)
		if err != nil {
			return err
		}
		for _, p := range siblings {
			if strings.EqualFold(p.Name, name) {
				return fmt.Errorf("project %q: %w", name, ErrAlreadyExists)
			}
		}
		return s.CreateProject(ctx, project)
	})
	if err != nil {
		return Project{}, err
	}
	return project, nil
}

func (d *Directory) DeleteProject(ctx context.Context, userID UserID, companyID CompanyID, projectID ProjectID) error {
	if _, err := d.resolver.Project(ctx, userID, companyID, projectID); err != nil {
		return err
	}
	return d.store.DeleteProject(ctx, projectID)
}

func (d *Directory) ListProjects(ctx context.Context, userID UserID, companyID CompanyID) ([]Project, error) {
	if _, err := d.resolver.Company(ctx, userID, companyID); err != nil {
		return nil, err
	}
	return d.store.ListProjects(ctx, companyID)
}

// =============================================================================
// BILLING PROFILES
// =============================================================================

// PutBillingProfile creates or replaces the user's issuer identity.
// Existing invoices keep their frozen snapshot regardless.
func (d *Directory) PutBillingProfile(ctx context.Context, p BillingProfile) error {
	if strings.TrimSpace(p.LegalName) == "" {
		return &PreconditionError{Reason: "legal name is required"}
	}
	p.UpdatedAt = d.now()
	return d.store.PutBillingProfile(ctx, p)
}

func (d *Directory) GetBillingProfile(ctx context.Context, userID UserID) (BillingProfile, error) {
	return d.store.GetBillingProfile(ctx, userID)
}
