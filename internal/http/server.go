// Package http serves the status endpoints of the billing scheduler.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"propel/internal/log"
	"propel/internal/middleware/trace"
	"propel/internal/services"
)

// Pinger reports whether the billing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunStatus summarizes the most recent billing cycle.
type RunStatus struct {
	RunID           string    `json:"run_id"`
	PeriodStart     string    `json:"period_start"`
	PeriodEnd       string    `json:"period_end"`
	FinishedAt      time.Time `json:"finished_at"`
	InvoicesCreated int       `json:"invoices_created"`
	AlreadyBilled   int       `json:"already_billed"`
	InvoicesFailed  int       `json:"invoices_failed"`
	SendFailed      int       `json:"send_failed"`
	AccountMissing  int       `json:"account_missing"`
	PayrollCreated  bool      `json:"payroll_created"`
	PayrollSkipped  bool      `json:"payroll_skipped"`
	Error           string    `json:"error,omitempty"`
}

type Server struct {
	http.Server
	db      Pinger
	started time.Time
	logger  *log.Logger

	mu   sync.RWMutex
	last *RunStatus
}

// NewServer configures the status routes. metrics may be nil.
func NewServer(addr string, db Pinger, metrics http.Handler, logger *log.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           trace.NewMiddleware(logger).Middleware(mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
		db:      db,
		started: time.Now(),
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /runs/last", s.handleLastRun)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return s
}

// Start serves in the background until Shutdown is called.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Status server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server failed", log.FieldError, err)
		}
	}()
}

// RecordRun stores the outcome of a billing cycle for /runs/last.
func (s *Server) RecordRun(rep services.CycleReport, runErr error, at time.Time) {
	st := &RunStatus{
		RunID:           rep.RunID,
		PeriodStart:     rep.Invoices.Period.Start.String(),
		PeriodEnd:       rep.Invoices.Period.End.String(),
		FinishedAt:      at.UTC(),
		InvoicesCreated: rep.Invoices.Count(services.OutcomeCreated),
		AlreadyBilled:   rep.Invoices.Count(services.OutcomeAlreadyBilled),
		InvoicesFailed:  rep.Invoices.Count(services.OutcomeFailed),
		SendFailed:      rep.Invoices.Count(services.OutcomeSendFailed),
		AccountMissing:  rep.Invoices.Count(services.OutcomeAccountMissing),
		PayrollCreated:  rep.Payroll.Result.Created,
		PayrollSkipped:  rep.Payroll.Skipped,
	}
	if runErr != nil {
		st.Error = runErr.Error()
	}

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
}

// LastRun returns the most recent run, or nil before the first one.
func (s *Server) LastRun() *RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
