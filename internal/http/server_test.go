package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propel/internal/core"
	"propel/internal/log"
	"propel/internal/services"
)

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv := NewServer(":0", fakeDB{}, nil, log.Discard())

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := get(t, srv, path)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	}
}

func TestReady_DatabaseDown(t *testing.T) {
	srv := NewServer(":0", fakeDB{err: errors.New("database is locked")}, nil, log.Discard())

	rr := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "database is locked")
}

func TestLastRun(t *testing.T) {
	srv := NewServer(":0", fakeDB{}, nil, log.Discard())

	rr := get(t, srv, "/runs/last")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rep := services.CycleReport{
		RunID: "run-9",
		Invoices: services.InvoiceRunReport{
			Period: core.Biweek(core.NewDate(2025, 1, 6)),
			Accounts: []services.AccountOutcome{
				{BillingID: 1, Outcome: services.OutcomeCreated},
				{BillingID: 2, Outcome: services.OutcomeSendFailed},
			},
		},
		Payroll: services.PayrollReport{Skipped: true},
	}
	srv.RecordRun(rep, errors.New("payroll: boom"), time.Date(2025, 1, 20, 7, 0, 0, 0, time.UTC))

	rr = get(t, srv, "/runs/last")
	require.Equal(t, http.StatusOK, rr.Code)

	var got RunStatus
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "run-9", got.RunID)
	assert.Equal(t, "2025-01-06", got.PeriodStart)
	assert.Equal(t, "2025-01-20", got.PeriodEnd)
	assert.Equal(t, 1, got.InvoicesCreated)
	assert.Equal(t, 1, got.SendFailed)
	assert.True(t, got.PayrollSkipped)
	assert.Equal(t, "payroll: boom", got.Error)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("propel_invoices_total 3\n"))
	})
	srv := NewServer(":0", fakeDB{}, metrics, log.Discard())

	rr := get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "propel_invoices_total"))

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
