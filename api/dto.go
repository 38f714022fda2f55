/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  The JSON contract, kept separate from the domain types so field names
  and shapes can evolve without touching the engine. Decimals are rendered
  as strings: clients must never do float arithmetic on money.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
*/
package api

import (
	"time"

	"github.com/tally/billable-engine/billing"
)

// =============================================================================
// AUTH
// =============================================================================

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// =============================================================================
// PROFILE
// =============================================================================

type BillingProfileDTO struct {
	LegalName        string `json:"legal_name"`
	IDType           string `json:"id_type"`
	IDNumber         string `json:"id_number"`
	Address          string `json:"address,omitempty"`
	BankName         string `json:"bank_name,omitempty"`
	BankAccount      string `json:"bank_account,omitempty"`
	SignatureImage   string `json:"signature_image,omitempty"`
	LegalDeclaration string `json:"legal_declaration,omitempty"`
}

// =============================================================================
// COMPANIES AND PROJECTS
// =============================================================================

type ClientProfileDTO struct {
	LegalName string `json:"legal_name"`
	TaxID     string `json:"tax_id"`
	Address   string `json:"address,omitempty"`
	Contact   string `json:"contact,omitempty"`
}

type CompanyDTO struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	HourlyRate      string            `json:"hourly_rate"`
	BillingCycleDay int               `json:"billing_cycle_day"`
	Client          *ClientProfileDTO `json:"client,omitempty"`
	CreatedAt       string            `json:"created_at,omitempty"`
}

type CompanyRequest struct {
	Name            string            `json:"name"`
	HourlyRate      string            `json:"hourly_rate"`
	BillingCycleDay int               `json:"billing_cycle_day"`
	Client          *ClientProfileDTO `json:"client,omitempty"`
}

type ProjectDTO struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateProjectRequest struct {
	Name string `json:"name"`
}

// =============================================================================
// ENTRIES
// =============================================================================

type EntryDTO struct {
	CompanyID   string `json:"company_id"`
	ProjectID   string `json:"project_id,omitempty"`
	Date        string `json:"date"`
	Hours       string `json:"hours"`
	Description string `json:"description,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// ReconcileRequest writes one date.
type ReconcileRequest struct {
	ProjectID   string `json:"project_id,omitempty"`
	Date        string `json:"date"`
	Hours       string `json:"hours"`
	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"` // set | accumulate | error, default set
}

// BulkReconcileRequest writes a whole range.
type BulkReconcileRequest struct {
	ProjectID    string   `json:"project_id,omitempty"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Weekdays     []string `json:"weekdays,omitempty"`
	Hours        string   `json:"hours"`
	Description  string   `json:"description,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	SkipExisting bool     `json:"skip_existing,omitempty"`
	FailFast     bool     `json:"fail_fast,omitempty"`
}

type ChangeDTO struct {
	Date     string `json:"date"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
	Existed  bool   `json:"existed"`
}

type BulkResultDTO struct {
	Changes  []ChangeDTO  `json:"changes"`
	Skipped  []string     `json:"skipped,omitempty"`
	Failures []FailureDTO `json:"failures,omitempty"`
}

type FailureDTO struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// =============================================================================
// AVERAGES
// =============================================================================

type WeekdayStatsDTO struct {
	Weekday    string `json:"weekday"`
	Average    string `json:"average"`
	TotalHours string `json:"total_hours"`
	EntryCount int    `json:"entry_count"`
}

type FillAveragesRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// =============================================================================
// INVOICES
// =============================================================================

type CreateInvoiceRequest struct {
	CompanyID   string `json:"company_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	ProjectID   string `json:"project_id,omitempty"`
	Concept     string `json:"concept,omitempty"`
	IssueDate   string `json:"issue_date,omitempty"`
}

type InvoiceDTO struct {
	ID          string           `json:"id"`
	CompanyID   string           `json:"company_id"`
	Number      string           `json:"number"`
	Status      string           `json:"status"`
	PeriodStart string           `json:"period_start"`
	PeriodEnd   string           `json:"period_end"`
	IssueDate   string           `json:"issue_date"`
	TotalHours  string           `json:"total_hours"`
	HourlyRate  string           `json:"hourly_rate"`
	TotalAmount string           `json:"total_amount"`
	Issuer      IssuerDTO        `json:"issuer"`
	Client      ClientDTO        `json:"client"`
	Items       []InvoiceItemDTO `json:"items,omitempty"`
	CreatedAt   string           `json:"created_at,omitempty"`
}

type IssuerDTO struct {
	LegalName        string `json:"legal_name"`
	IDType           string `json:"id_type"`
	IDNumber         string `json:"id_number"`
	Address          string `json:"address,omitempty"`
	BankName         string `json:"bank_name,omitempty"`
	BankAccount      string `json:"bank_account,omitempty"`
	LegalDeclaration string `json:"legal_declaration,omitempty"`
}

type ClientDTO struct {
	Name      string `json:"name"`
	LegalName string `json:"legal_name,omitempty"`
	TaxID     string `json:"tax_id,omitempty"`
	Address   string `json:"address,omitempty"`
	Contact   string `json:"contact,omitempty"`
}

type InvoiceItemDTO struct {
	Concept   string `json:"concept"`
	Hours     string `json:"hours"`
	Rate      string `json:"rate"`
	Total     string `json:"total"`
	ProjectID string `json:"project_id,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// TRENDS
// =============================================================================

type PeriodStatsDTO struct {
	TotalHours            string `json:"total_hours"`
	WorkingDays           int    `json:"working_days"`
	AvgHoursPerWorkingDay string `json:"avg_hours_per_working_day"`
	TotalEarnings         string `json:"total_earnings"`
}

type TrendReportDTO struct {
	ThisWeek     PeriodStatsDTO    `json:"this_week"`
	LastWeek     PeriodStatsDTO    `json:"last_week"`
	ThisMonth    PeriodStatsDTO    `json:"this_month"`
	LastMonth    PeriodStatsDTO    `json:"last_month"`
	WeeklyTrend  string            `json:"weekly_trend"`
	MonthlyTrend string            `json:"monthly_trend"`
	WeekdayHours map[string]string `json:"weekday_hours"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toCompanyDTO(c billing.Company) CompanyDTO {
	dto := CompanyDTO{
		ID:              string(c.ID),
		Name:            c.Name,
		HourlyRate:      c.HourlyRate.String(),
		BillingCycleDay: c.BillingCycleDay,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
	if c.Client != nil {
		dto.Client = &ClientProfileDTO{
			LegalName: c.Client.LegalName,
			TaxID:     c.Client.TaxID,
			Address:   c.Client.Address,
			Contact:   c.Client.Contact,
		}
	}
	return dto
}

func toProjectDTO(p billing.Project) ProjectDTO {
	return ProjectDTO{
		ID:        string(p.ID),
		CompanyID: string(p.CompanyID),
		Name:      p.Name,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e billing.HourEntry) EntryDTO {
	return EntryDTO{
		CompanyID:   string(e.CompanyID),
		ProjectID:   string(e.ProjectID),
		Date:        e.Date.String(),
		Hours:       e.Hours.String(),
		Description: e.Description,
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}

func toChangeDTO(c billing.Change) ChangeDTO {
	return ChangeDTO{
		Date:     c.Date.String(),
		OldValue: c.OldValue.String(),
		NewValue: c.NewValue.String(),
		Existed:  c.Existed,
	}
}

func toChangeDTOs(changes []billing.Change) []ChangeDTO {
	dtos := make([]ChangeDTO, len(changes))
	for i, c := range changes {
		dtos[i] = toChangeDTO(c)
	}
	return dtos
}

func toBulkResultDTO(r billing.BulkResult) BulkResultDTO {
	dto := BulkResultDTO{Changes: toChangeDTOs(r.Changes)}
	for _, d := range r.Skipped {
		dto.Skipped = append(dto.Skipped, d.String())
	}
	for _, f := range r.Failures {
		dto.Failures = append(dto.Failures, FailureDTO{Date: f.Date.String(), Reason: f.Reason.Error()})
	}
	return dto
}

func toInvoiceDTO(inv billing.Invoice, items []billing.InvoiceItem) InvoiceDTO {
	dto := InvoiceDTO{
		ID:          string(inv.ID),
		CompanyID:   string(inv.CompanyID),
		Number:      inv.Number,
		Status:      string(inv.Status),
		PeriodStart: inv.PeriodStart.String(),
		PeriodEnd:   inv.PeriodEnd.String(),
		IssueDate:   inv.IssueDate.String(),
		TotalHours:  inv.TotalHours.String(),
		HourlyRate:  inv.HourlyRate.String(),
		TotalAmount: inv.TotalAmount.String(),
		Issuer: IssuerDTO{
			LegalName:        inv.Issuer.LegalName,
			IDType:           inv.Issuer.IDType,
			IDNumber:         inv.Issuer.IDNumber,
			Address:          inv.Issuer.Address,
			BankName:         inv.Issuer.BankName,
			BankAccount:      inv.Issuer.BankAccount,
			LegalDeclaration: inv.Issuer.LegalDeclaration,
		},
		Client: ClientDTO{
			Name:      inv.Client.Name,
			LegalName: inv.Client.LegalName,
			TaxID:     inv.Client.TaxID,
			Address:   inv.Client.Address,
			Contact:   inv.Client.Contact,
		},
		CreatedAt: inv.CreatedAt.Format(time.RFC3339),
	}
	for _, item := range items {
		dto.Items = append(dto.Items, InvoiceItemDTO{
			Concept:   item.Concept,
			Hours:     item.Hours.String(),
			Rate:      item.Rate.String(),
			Total:     item.Total.String(),
			ProjectID: string(item.ProjectID),
		})
	}
	return dto
}

func toPeriodStatsDTO(s billing.PeriodStats) PeriodStatsDTO {
	return PeriodStatsDTO{
		TotalHours:            s.TotalHours.String(),
		WorkingDays:           s.WorkingDays,
		AvgHoursPerWorkingDay: s.AvgHoursPerWorkingDay.String(),
		TotalEarnings:         s.TotalEarnings.String(),
	}
}

func toTrendReportDTO(r billing.TrendReport) TrendReportDTO {
	dto := TrendReportDTO{
		ThisWeek:     toPeriodStatsDTO(r.ThisWeek),
		LastWeek:     toPeriodStatsDTO(r.LastWeek),
		ThisMonth:    toPeriodStatsDTO(r.ThisMonth),
		LastMonth:    toPeriodStatsDTO(r.LastMonth),
		WeeklyTrend:  string(r.WeeklyTrend),
		MonthlyTrend: string(r.MonthlyTrend),
		WeekdayHours: make(map[string]string, len(r.WeekdayHours)),
	}
	for wd, h := range r.WeekdayHours {
		dto.WeekdayHours[wd.String()] = h.String()
	}
	return dto
}
