/*
handlers.go - HTTP handlers for the billable hours engine

PURPOSE:
  Exposes the engine via REST. Handlers parse and validate input, resolve
  the calling user from the request context, delegate to the domain
  engines, and serialize the result. No business rule lives here.

ENDPOINTS:
  Auth:
    POST   /api/auth/register               Create account, returns token
    POST   /api/auth/login                  Issue token

  Profile:
    GET    /api/me/profile                  Billing profile
    PUT    /api/me/profile                  Create/replace billing profile

  Companies:
    GET    /api/companies                   List
    POST   /api/companies                   Create
    GET    /api/companies/{id}              Get
    PUT    /api/companies/{id}              Update
    DELETE /api/companies/{id}              Delete (cascades projects/entries)

  Projects:
    GET    /api/companies/{id}/projects     List
    POST   /api/companies/{id}/projects     Create
    DELETE /api/companies/{id}/projects/{pid}

  Entries:
    GET    /api/companies/{id}/entries      List (from/to/project_id query)
    PUT    /api/companies/{id}/entries      Reconcile one date
    POST   /api/companies/{id}/entries/bulk Reconcile a range
    DELETE /api/companies/{id}/entries      Delete one (date/project_id query)

  Averages:
    GET    /api/companies/{id}/averages     Per-weekday stats (exclude_month)
    POST   /api/companies/{id}/averages/fill

  Trends:
    GET    /api/companies/{id}/trends       Dashboard report (as_of query)

  Invoices:
    GET    /api/invoices                    List the user's invoices
    POST   /api/invoices                    Aggregate a period into a draft
    GET    /api/invoices/{id}               Get with line items
    POST   /api/invoices/{id}/status        Status transition
    DELETE /api/invoices/{id}               Delete (drafts only)

ERROR HANDLING:
  respondError maps domain errors to status codes in one switch:
  - 404: not found / not owned (indistinguishable on purpose)
  - 409: already exists, illegal transition, write conflict
  - 400: everything else the caller can fix
  - 500: storage failures

SEE ALSO:
  - dto.go: Request/response shapes
  - auth.go: Token middleware
  - server.go: Router setup
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tally/billable-engine/billing"
	"github.com/tally/billable-engine/logger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the engines and their shared store.
type Handler struct {
	Store billing.Store

	directory  *billing.Directory
	reconciler *billing.Reconciler
	averages   *billing.AverageEngine
	invoicer   *billing.Invoicer

	jwtSecret []byte
	tokenTTL  time.Duration
	log       zerolog.Logger
}

// NewHandler wires the engines over one store.
func NewHandler(store billing.Store, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{
		Store:      store,
		directory:  billing.NewDirectory(store),
		reconciler: billing.NewReconciler(store),
		averages:   billing.NewAverageEngine(store),
		invoicer:   billing.NewInvoicer(store),
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		log:        logger.WithComponent("api"),
	}
}

// =============================================================================
// PROFILE
// =============================================================================

// GetProfile returns the caller's billing profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.directory.GetBillingProfile(r.Context(), userFrom(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BillingProfileDTO{
		LegalName:        profile.LegalName,
		IDType:           profile.IDType,
		IDNumber:         profile.IDNumber,
		Address:          profile.Address,
		BankName:         profile.BankName,
		BankAccount:      profile.BankAccount,
		SignatureImage:   profile.SignatureImage,
		LegalDeclaration: profile.LegalDeclaration,
	})
}

// PutProfile creates or replaces the caller's billing profile. Invoices
// already created keep their frozen snapshot.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var req BillingProfileDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	err := h.directory.PutBillingProfile(r.Context(), billing.BillingProfile{
		UserID:           userFrom(r.Context()),
		LegalName:        req.LegalName,
		IDType:           req.IDType,
		IDNumber:         req.IDNumber,
		Address:          req.Address,
		BankName:         req.BankName,
		BankAccount:      req.BankAccount,
		SignatureImage:   req.SignatureImage,
		LegalDeclaration: req.LegalDeclaration,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// COMPANIES
// =============================================================================

func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.directory.ListCompanies(r.Context(), userFrom(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	dtos := make([]CompanyDTO, len(companies))
	for i, c := range companies {
		dtos[i] = toCompanyDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeCompanyInput(w, r)
	if !ok {
		return
	}
	company, err := h.directory.CreateCompany(r.Context(), userFrom(r.Context()), input)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompanyDTO(company))
}

func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.directory.GetCompany(r.Context(), userFrom(r.Context()), companyParam(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyDTO(company))
}

func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeCompanyInput(w, r)
	if !ok {
		return
	}
	company, err := h.directory.UpdateCompany(r.Context(), userFrom(r.Context()), companyParam(r), input)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyDTO(company))
}

func (h *Handler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.DeleteCompany(r.Context(), userFrom(r.Context()), companyParam(r)); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeCompanyInput(w http.ResponseWriter, r *http.Request) (billing.CompanyInput, bool) {
	var req CompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return billing.CompanyInput{}, false
	}
	rate, err := decimal.NewFromString(req.HourlyRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hourly_rate", err)
		return billing.CompanyInput{}, false
	}
	input := billing.CompanyInput{
		Name:            req.Name,
		HourlyRate:      rate,
		BillingCycleDay: req.BillingCycleDay,
	}
	if req.Client != nil {
		input.Client = &billing.ClientProfile{
			LegalName: req.Client.LegalName,
			TaxID:     req.Client.TaxID,
			Address:   req.Client.Address,
			Contact:   req.Client.Contact,
		}
	}
	return input, true
}

// =============================================================================
// PROJECTS
// =============================================================================

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.directory.ListProjects(r.Context(), userFrom(r.Context()), companyParam(r))
	if err != nil {
		respondError(w, err)
		return
	}
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	project, err := h.directory.CreateProject(r.Context(), userFrom(r.Context()), companyParam(r), req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(project))
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := billing.ProjectID(chi.URLParam(r, "projectID"))
	err := h.directory.DeleteProject(r.Context(), userFrom(r.Context()), companyParam(r), projectID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ENTRIES
// =============================================================================

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	var from, to *billing.Date
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := billing.ParseDate(v)
		if err != nil {
			respondError(w, err)
			return
		}
		from = &d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := billing.ParseDate(v)
		if err != nil {
			respondError(w, err)
			return
		}
		to = &d
	}
	var project *billing.ProjectID
	if v, present := r.URL.Query()["project_id"]; present && len(v) > 0 {
		project = billing.ProjectFilter(billing.ProjectID(v[0]))
	}

	entries, err := h.reconciler.Entries(r.Context(), userFrom(r.Context()), companyParam(r), from, to, project)
	if err != nil {
		respondError(w, err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReconcileEntry writes one date under the requested mode.
func (h *Handler) ReconcileEntry(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	date, err := billing.ParseDate(req.Date)
	if err != nil {
		respondError(w, err)
		return
	}
	hours, err := decimal.NewFromString(req.Hours)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hours", err)
		return
	}
	mode := billing.Mode(req.Mode)
	if req.Mode == "" {
		mode = billing.ModeSet
	}
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "invalid mode (set, accumulate, error)", nil)
		return
	}

	change, err := h.reconciler.Reconcile(r.Context(), userFrom(r.Context()), companyParam(r),
		billing.ProjectID(req.ProjectID), date, hours, req.Description, mode)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChangeDTO(change))
}

// BulkReconcile expands a range and writes each date independently.
func (h *Handler) BulkReconcile(w http.ResponseWriter, r *http.Request) {
	var req BulkReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	start, err := billing.ParseDate(req.StartDate)
	if err != nil {
		respondError(w, err)
		return
	}
	end, err := billing.ParseDate(req.EndDate)
	if err != nil {
		respondError(w, err)
		return
	}
	hours, err := decimal.NewFromString(req.Hours)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hours", err)
		return
	}
	mode := billing.Mode(req.Mode)
	if req.Mode == "" {
		mode = billing.ModeSet
	}
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "invalid mode (set, accumulate, error)", nil)
		return
	}

	result, err := h.reconciler.ReconcileRange(r.Context(), billing.BulkRequest{
		UserID:       userFrom(r.Context()),
		CompanyID:    companyParam(r),
		ProjectID:    billing.ProjectID(req.ProjectID),
		Start:        start,
		End:          end,
		Weekdays:     req.Weekdays,
		Hours:        hours,
		Description:  req.Description,
		Mode:         mode,
		SkipExisting: req.SkipExisting,
		FailFast:     req.FailFast,
	})
	if err != nil && len(result.Changes) == 0 && len(result.Failures) == 0 {
		respondError(w, err)
		return
	}
	// A fail-fast abort still reports the partial result.
	status := http.StatusOK
	if err != nil {
		status = http.StatusConflict
	}
	writeJSON(w, status, toBulkResultDTO(result))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	date, err := billing.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, err)
		return
	}
	projectID := billing.ProjectID(r.URL.Query().Get("project_id"))
	err = h.reconciler.DeleteEntry(r.Context(), userFrom(r.Context()), companyParam(r), projectID, date)
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// AVERAGES
// =============================================================================

func (h *Handler) GetAverages(w http.ResponseWriter, r *http.Request) {
	var excludeMonth *billing.YearMonth
	if v := r.URL.Query().Get("exclude_month"); v != "" {
		d, err := billing.ParseDate(v + "-01")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid exclude_month (use YYYY-MM)", err)
			return
		}
		ym := billing.MonthOf(d)
		excludeMonth = &ym
	}

	stats, err := h.averages.ComputeAverages(r.Context(), userFrom(r.Context()), companyParam(r), excludeMonth)
	if err != nil {
		respondError(w, err)
		return
	}
	dtos := make([]WeekdayStatsDTO, 0, len(stats))
	for wd := billing.Monday; wd <= billing.Sunday; wd++ {
		s, ok := stats[wd]
		if !ok {
			continue
		}
		dtos = append(dtos, WeekdayStatsDTO{
			Weekday:    wd.String(),
			Average:    s.Average.String(),
			TotalHours: s.TotalHours.String(),
			EntryCount: s.EntryCount,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) FillAverages(w http.ResponseWriter, r *http.Request) {
	var req FillAveragesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	start, err := billing.ParseDate(req.StartDate)
	if err != nil {
		respondError(w, err)
		return
	}
	end, err := billing.ParseDate(req.EndDate)
	if err != nil {
		respondError(w, err)
		return
	}

	changes, err := h.averages.FillWithAverages(r.Context(), userFrom(r.Context()), companyParam(r),
		billing.ProjectID(req.ProjectID), start, end, req.Overwrite)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChangeDTOs(changes))
}

// =============================================================================
// TRENDS
// =============================================================================

func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	companyID := companyParam(r)
	userID := userFrom(r.Context())

	company, err := h.directory.GetCompany(r.Context(), userID, companyID)
	if err != nil {
		respondError(w, err)
		return
	}

	asOf := billing.Today()
	if v := r.URL.Query().Get("as_of"); v != "" {
		asOf, err = billing.ParseDate(v)
		if err != nil {
			respondError(w, err)
			return
		}
	}

	entries, err := h.reconciler.Entries(r.Context(), userID, companyID, nil, nil, nil)
	if err != nil {
		respondError(w, err)
		return
	}

	report := billing.AnalyzeTrends(entries, company.HourlyRate, asOf, billing.DefaultTrendThresholds())
	writeJSON(w, http.StatusOK, toTrendReportDTO(report))
}

// =============================================================================
// INVOICES
// =============================================================================

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	status := billing.InvoiceStatus(r.URL.Query().Get("status"))
	invoices, err := h.invoicer.List(r.Context(), userFrom(r.Context()), status)
	if err != nil {
		respondError(w, err)
		return
	}
	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	start, err := billing.ParseDate(req.PeriodStart)
	if err != nil {
		respondError(w, err)
		return
	}
	end, err := billing.ParseDate(req.PeriodEnd)
	if err != nil {
		respondError(w, err)
		return
	}

	input := billing.CreateInvoiceInput{
		UserID:      userFrom(r.Context()),
		CompanyID:   billing.CompanyID(req.CompanyID),
		PeriodStart: start,
		PeriodEnd:   end,
		Concept:     req.Concept,
	}
	if req.ProjectID != "" {
		project := billing.ProjectID(req.ProjectID)
		input.Project = &project
	}
	if req.IssueDate != "" {
		issueDate, err := billing.ParseDate(req.IssueDate)
		if err != nil {
			respondError(w, err)
			return
		}
		input.IssueDate = &issueDate
	}

	invoice, err := h.invoicer.CreateInvoice(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}
	h.log.Info().
		Str("invoice", invoice.Number).
		Str("company", string(invoice.CompanyID)).
		Str("total", invoice.TotalAmount.String()).
		Msg("invoice created")
	writeJSON(w, http.StatusCreated, toInvoiceDTO(invoice, nil))
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := billing.InvoiceID(chi.URLParam(r, "invoiceID"))
	invoice, items, err := h.invoicer.Get(r.Context(), userFrom(r.Context()), invoiceID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(invoice, items))
}

func (h *Handler) TransitionInvoice(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	invoiceID := billing.InvoiceID(chi.URLParam(r, "invoiceID"))
	invoice, err := h.invoicer.Transition(r.Context(), userFrom(r.Context()), invoiceID, billing.InvoiceStatus(req.Status))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(invoice, nil))
}

func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := billing.InvoiceID(chi.URLParam(r, "invoiceID"))
	if err := h.invoicer.Delete(r.Context(), userFrom(r.Context()), invoiceID); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func companyParam(r *http.Request) billing.CompanyID {
	return billing.CompanyID(chi.URLParam(r, "companyID"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// respondError is the single mapping from domain errors to HTTP status.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", nil)
	case errors.Is(err, billing.ErrAlreadyExists),
		errors.Is(err, billing.ErrInvalidTransition),
		errors.Is(err, billing.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
