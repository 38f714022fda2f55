/*
ownership.go - The single gate in front of every mutation

PURPOSE:
  Validates the three-level hierarchy user -> company -> project before any
  entry or invoice operation touches storage. Ownership checks used to be
  easy to scatter and easy to forget; here they exist exactly once.

FAIL-CLOSED:
  "does not exist" and "belongs to someone else" both come back as
  ErrNotFound. A caller probing other tenants' IDs learns nothing.

A project resolves only when it belongs BOTH to the given user AND to the
given company. A project that references a different company than the one
the caller named is rejected, never silently reassigned.
*/
package billing

import "context"

// Resolver authorizes access to companies and projects.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Company returns the company iff it is owned by the user.
func (r *Resolver) Company(ctx context.Context, userID UserID, companyID CompanyID) (Company, error) {
	company, err := r.store.GetCompany(ctx, companyID)
	if err != nil {
		return Company{}, err
	}
	if company.UserID != userID {
		return Company{}, ErrNotFound
	}
	return company, nil
}

// Project returns the project iff the company is owned by the user and the
// project belongs to that company.
func (r *Resolver) Project(ctx context.Context, userID UserID, companyID CompanyID, projectID ProjectID) (Project, error) {
	if _, err := r.Company(ctx, userID, companyID); err != nil {
		return Project{}, err
	}
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if project.UserID != userID || project.CompanyID != companyID {
		return Project{}, ErrNotFound
	}
	return project, nil
}

// EntryScope resolves the (company, project) pair an entry operation targets.
// projectID == NoProject only checks the company.
func (r *Resolver) EntryScope(ctx context.Context, userID UserID, companyID CompanyID, projectID ProjectID) (Company, error) {
	company, err := r.Company(ctx, userID, companyID)
	if err != nil {
		return Company{}, err
	}
	if projectID != NoProject {
		if _, err := r.Project(ctx, userID, companyID, projectID); err != nil {
			return Company{}, err
		}
	}
	return company, nil
}
