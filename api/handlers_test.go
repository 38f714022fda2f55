package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally/billable-engine/api"
	"github.com/tally/billable-engine/billing/store"
)

// testServer is a full router over a memory store with one registered user.
type testServer struct {
	srv   *httptest.Server
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	handler := api.NewHandler(store.NewMemory(), "test-secret", time.Hour)
	router := api.NewRouter(handler, []string{"*"})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	ts := &testServer{srv: srv}
	resp := ts.do(t, http.MethodPost, "/api/auth/register", api.CredentialsRequest{
		Username: "freelancer",
		Password: "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	var tok api.TokenResponse
	resp.decode(t, &tok)
	ts.token = tok.Token
	return ts
}

type response struct {
	Code int
	Body *bytes.Buffer
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(v))
}

func (ts *testServer) do(t *testing.T, method, path string, body any) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{Code: resp.StatusCode, Body: &bytes.Buffer{}}
	_, err = out.Body.ReadFrom(resp.Body)
	require.NoError(t, err)
	return out
}

func (ts *testServer) createCompany(t *testing.T, name string) api.CompanyDTO {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/companies", api.CompanyRequest{
		Name:            name,
		HourlyRate:      "50000",
		BillingCycleDay: 1,
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	var company api.CompanyDTO
	resp.decode(t, &company)
	return company
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth_RegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	// Duplicate username
	resp := ts.do(t, http.MethodPost, "/api/auth/register", api.CredentialsRequest{
		Username: "freelancer", Password: "another-pass",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = ts.do(t, http.MethodPost, "/api/auth/login", api.CredentialsRequest{
		Username: "freelancer", Password: "s3cret-pass",
	})
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.do(t, http.MethodPost, "/api/auth/login", api.CredentialsRequest{
		Username: "freelancer", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuth_ProtectedRoutesRejectMissingToken(t *testing.T) {
	ts := newTestServer(t)
	bare := &testServer{srv: ts.srv} // no token
	resp := bare.do(t, http.MethodGet, "/api/companies", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

// =============================================================================
// COMPANIES AND ENTRIES
// =============================================================================

func TestCompanies_CRUDOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	company := ts.createCompany(t, "Acme")

	resp := ts.do(t, http.MethodGet, "/api/companies/"+company.ID, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.do(t, http.MethodGet, "/api/companies/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.do(t, http.MethodPost, "/api/companies", api.CompanyRequest{
		Name: "Bad", HourlyRate: "not-a-number", BillingCycleDay: 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestEntries_ReconcileOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	company := ts.createCompany(t, "Acme")
	base := "/api/companies/" + company.ID + "/entries"

	resp := ts.do(t, http.MethodPut, base, api.ReconcileRequest{
		Date: "2024-03-04", Hours: "8", Mode: "error",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	var change api.ChangeDTO
	resp.decode(t, &change)
	assert.Equal(t, "8", change.NewValue)

	// Same date in error mode is a conflict.
	resp = ts.do(t, http.MethodPut, base, api.ReconcileRequest{
		Date: "2024-03-04", Hours: "6", Mode: "error",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)

	// Past the daily bound is the caller's fault.
	resp = ts.do(t, http.MethodPut, base, api.ReconcileRequest{
		Date: "2024-03-05", Hours: "25",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.do(t, http.MethodGet, base+"?from=2024-03-01&to=2024-03-31", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var entries []api.EntryDTO
	resp.decode(t, &entries)
	assert.Len(t, entries, 1)

	resp = ts.do(t, http.MethodDelete, base+"?date=2024-03-04", nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
}

func TestEntries_BulkOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	company := ts.createCompany(t, "Acme")
	base := "/api/companies/" + company.ID + "/entries"

	resp := ts.do(t, http.MethodPost, base+"/bulk", api.BulkReconcileRequest{
		StartDate: "2024-01-01",
		EndDate:   "2024-01-07",
		Weekdays:  []string{"mon", "mie", "viernes"},
		Hours:     "8",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	var result api.BulkResultDTO
	resp.decode(t, &result)
	assert.Len(t, result.Changes, 3)

	// Rerun in error mode with skip_existing: everything is skipped.
	resp = ts.do(t, http.MethodPost, base+"/bulk", api.BulkReconcileRequest{
		StartDate:    "2024-01-01",
		EndDate:      "2024-01-07",
		Weekdays:     []string{"mon", "mie", "viernes"},
		Hours:        "8",
		Mode:         "error",
		SkipExisting: true,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	resp.decode(t, &result)
	assert.Empty(t, result.Changes)
	assert.Len(t, result.Skipped, 3)
}

// =============================================================================
// INVOICES
// =============================================================================

func TestInvoices_FullFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	company := ts.createCompany(t, "Acme")

	// No billing profile yet.
	resp := ts.do(t, http.MethodPut, "/api/companies/"+company.ID+"/entries", api.ReconcileRequest{
		Date: "2024-03-04", Hours: "8",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	createReq := api.CreateInvoiceRequest{
		CompanyID:   company.ID,
		PeriodStart: "2024-03-01",
		PeriodEnd:   "2024-03-31",
		Concept:     "March services",
	}
	resp = ts.do(t, http.MethodPost, "/api/invoices", createReq)
	assert.Equal(t, http.StatusBadRequest, resp.Code, "missing profile blocks invoicing")

	resp = ts.do(t, http.MethodPut, "/api/me/profile", api.BillingProfileDTO{
		LegalName: "Jane Freelancer", IDType: "NIF", IDNumber: "12345678Z",
	})
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.do(t, http.MethodPost, "/api/invoices", createReq)
	require.Equal(t, http.StatusCreated, resp.Code)
	var invoice api.InvoiceDTO
	resp.decode(t, &invoice)
	assert.Equal(t, "001", invoice.Number)
	assert.Equal(t, "draft", invoice.Status)
	assert.Equal(t, "400000", invoice.TotalAmount)
	assert.Equal(t, "Jane Freelancer", invoice.Issuer.LegalName)

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/invoices/%s/status", invoice.ID), api.StatusRequest{Status: "sent"})
	require.Equal(t, http.StatusOK, resp.Code)

	// Backward move is a conflict.
	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/invoices/%s/status", invoice.ID), api.StatusRequest{Status: "draft"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	// Sent invoices cannot be deleted.
	resp = ts.do(t, http.MethodDelete, "/api/invoices/"+invoice.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// The list endpoint filters on status.
	var listed []api.InvoiceDTO
	resp = ts.do(t, http.MethodGet, "/api/invoices?status=sent", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	resp.decode(t, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "001", listed[0].Number)

	resp = ts.do(t, http.MethodGet, "/api/invoices?status=draft", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	listed = nil
	resp.decode(t, &listed)
	assert.Empty(t, listed)

	resp = ts.do(t, http.MethodGet, "/api/invoices?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

// =============================================================================
// TENANT ISOLATION
// =============================================================================

func TestTenantIsolationOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	company := ts.createCompany(t, "Acme")

	// A second account cannot see or touch the first one's company.
	resp := ts.do(t, http.MethodPost, "/api/auth/register", api.CredentialsRequest{
		Username: "other", Password: "other-pass-123",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	var tok api.TokenResponse
	resp.decode(t, &tok)

	other := &testServer{srv: ts.srv, token: tok.Token}
	resp = other.do(t, http.MethodGet, "/api/companies/"+company.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = other.do(t, http.MethodPut, "/api/companies/"+company.ID+"/entries", api.ReconcileRequest{
		Date: "2024-03-04", Hours: "8",
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = other.do(t, http.MethodGet, "/api/companies", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var companies []api.CompanyDTO
	resp.decode(t, &companies)
	assert.Empty(t, companies)
}
