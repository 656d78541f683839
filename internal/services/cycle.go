// Package services orchestrates the biweekly billing cycle: session
// ingestion, invoicing with email delivery, and tutor payroll.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"propel/internal/amqp"
	"propel/internal/billing"
	"propel/internal/core"
	"propel/internal/ledger"
	"propel/internal/log"
	"propel/internal/metrics"
	"propel/internal/notify"
)

// Outcome is the per-account result of an invoice run.
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeAlreadyBilled  Outcome = "already_billed"
	OutcomeFailed         Outcome = "failed"
	OutcomeSendFailed     Outcome = "send_failed"
	OutcomeAccountMissing Outcome = "account_missing"
)

// Document kinds used as archive key segments.
const (
	docInvoices = "invoices"
	docPayroll  = "payroll"
)

// Notifier emails an invoice document to its billing account.
type Notifier interface {
	Dispatch(ctx context.Context, billingID int64, attachment string, period core.Period) (notify.Notice, error)
}

// Publisher announces billing events. Optional.
type Publisher interface {
	PublishInvoiceIssued(ctx context.Context, msg *amqp.InvoiceIssuedMessage) error
	PublishPayrollGenerated(ctx context.Context, msg *amqp.PayrollGeneratedMessage) error
}

// Archiver copies rendered documents to long-term storage. Optional.
type Archiver interface {
	Store(ctx context.Context, kind string, biweekStart core.Date, localPath string) (string, error)
}

// AccountOutcome is what happened to one billing account.
type AccountOutcome struct {
	BillingID  int64
	Outcome    Outcome
	InvoiceID  int64
	Document   string
	ArchiveKey string
	Kind       notify.Kind
	Err        error
}

// InvoiceRunReport summarizes one invoice run.
type InvoiceRunReport struct {
	RunID    string
	Period   core.Period
	Accounts []AccountOutcome // ordered by billing id
	Unbilled int              // sessions of students without a billing account
}

// Count returns how many accounts ended with o.
func (r InvoiceRunReport) Count(o Outcome) int {
	n := 0
	for _, a := range r.Accounts {
		if a.Outcome == o {
			n++
		}
	}
	return n
}

// PayrollReport summarizes one payroll run.
type PayrollReport struct {
	Result     billing.PayrollResult
	Skipped    bool // no sessions in the period
	ArchiveKey string
}

// CycleReport summarizes a full RunCycle call.
type CycleReport struct {
	RunID    string
	Ingest   *IngestReport
	Invoices InvoiceRunReport
	Payroll  PayrollReport
}

// RunOptions selects the optional stages of a cycle.
type RunOptions struct {
	Ingest bool
}

// CycleDeps wires the cycle. Ingestor, Publisher, Archiver and Metrics may be nil.
type CycleDeps struct {
	Ledger      *ledger.Reader
	Invoices    *billing.InvoiceBuilder
	Payroll     *billing.PayrollBuilder
	Notifier    Notifier
	Ingestor    *Ingestor
	Publisher   Publisher
	Archiver    Archiver
	Metrics     *metrics.Metrics
	Concurrency int
	Logger      *log.Logger
}

type Cycle struct {
	ledger      *ledger.Reader
	invoices    *billing.InvoiceBuilder
	payroll     *billing.PayrollBuilder
	notifier    Notifier
	ingestor    *Ingestor
	publisher   Publisher
	archiver    Archiver
	metrics     *metrics.Metrics
	concurrency int
	logger      *log.Logger
}

func NewCycle(deps CycleDeps) *Cycle {
	concurrency := deps.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Cycle{
		ledger:      deps.Ledger,
		invoices:    deps.Invoices,
		payroll:     deps.Payroll,
		notifier:    deps.Notifier,
		ingestor:    deps.Ingestor,
		publisher:   deps.Publisher,
		archiver:    deps.Archiver,
		metrics:     deps.Metrics,
		concurrency: concurrency,
		logger:      deps.Logger.WithComponent(log.ComponentCycle),
	}
}

// withRun tags ctx with a run id unless it already carries one.
func withRun(ctx context.Context) (context.Context, string) {
	if id := log.RunIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return log.WithRunID(ctx, id), id
}

// RunCycle ingests (when asked), invoices every billed account and builds
// the payroll for period. Only ingestion, session-fetch and payroll failures
// are returned as errors; per-account failures are in the report.
func (c *Cycle) RunCycle(ctx context.Context, period core.Period, opts RunOptions) (CycleReport, error) {
	ctx, runID := withRun(ctx)
	rep := CycleReport{RunID: runID}
	start := time.Now()

	c.logger.InfoContext(ctx, "Billing cycle started",
		log.FieldPeriodStart, period.Start.String(),
		log.FieldPeriodEnd, period.End.String(),
		"ingest", opts.Ingest)

	if opts.Ingest && c.ingestor != nil {
		stageStart := time.Now()
		ing, err := c.ingestor.Ingest(ctx, period)
		c.metrics.ObserveStage(log.OpIngest, stageStart)
		if err != nil {
			return rep, fmt.Errorf("ingest sessions: %w", err)
		}
		rep.Ingest = &ing
	}

	l, err := c.ledger.Read(ctx, period)
	if err != nil {
		return rep, fmt.Errorf("read sessions: %w", err)
	}

	rep.Invoices = c.invoiceLedger(ctx, runID, l)

	rep.Payroll, err = c.payrollLedger(ctx, runID, l)
	if err != nil {
		return rep, err
	}

	c.metrics.MarkSuccess(time.Now())
	c.logger.InfoContext(ctx, "Billing cycle finished",
		"invoices_created", rep.Invoices.Count(OutcomeCreated),
		"invoices_failed", rep.Invoices.Count(OutcomeFailed),
		"payroll_created", rep.Payroll.Result.Created,
		log.FieldDuration, time.Since(start).Milliseconds())
	return rep, nil
}

// GenerateAndSendInvoices invoices and emails every account with sessions in
// period. Only a failure to read the sessions is returned as an error.
func (c *Cycle) GenerateAndSendInvoices(ctx context.Context, period core.Period) (InvoiceRunReport, error) {
	ctx, runID := withRun(ctx)
	l, err := c.ledger.Read(ctx, period)
	if err != nil {
		return InvoiceRunReport{RunID: runID, Period: period}, fmt.Errorf("read sessions: %w", err)
	}
	return c.invoiceLedger(ctx, runID, l), nil
}

// GeneratePayroll builds the payroll for period from an already read ledger.
// A zero ledger is read from the store.
func (c *Cycle) GeneratePayroll(ctx context.Context, period core.Period, l ledger.Ledger) (PayrollReport, error) {
	ctx, runID := withRun(ctx)
	switch {
	case l.Period.Start.IsZero():
		var err error
		if l, err = c.ledger.Read(ctx, period); err != nil {
			return PayrollReport{}, fmt.Errorf("read sessions: %w", err)
		}
	case !l.Period.Start.Equal(period.Start.Time) || !l.Period.End.Equal(period.End.Time):
		return PayrollReport{}, fmt.Errorf("%w: ledger covers %s, not %s", core.ErrInvalidPeriod, l.Period, period)
	}
	return c.payrollLedger(ctx, runID, l)
}

func (c *Cycle) invoiceLedger(ctx context.Context, runID string, l ledger.Ledger) InvoiceRunReport {
	start := time.Now()
	defer c.metrics.ObserveStage(log.OpInvoice, start)

	ids := l.BillingIDs()
	rep := InvoiceRunReport{
		RunID:    runID,
		Period:   l.Period,
		Accounts: make([]AccountOutcome, len(ids)),
		Unbilled: len(l.Unbilled),
	}
	if rep.Unbilled > 0 {
		c.logger.WarnContext(ctx, "Sessions without a billing account were not invoiced",
			"count", rep.Unbilled)
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			rep.Accounts[i] = c.invoiceAccount(ctx, runID, id, l.Accounts[id], l.Period)
			return nil
		})
	}
	_ = g.Wait()

	c.logger.InfoContext(ctx, "Invoice run finished",
		log.FieldPeriodStart, l.Period.Start.String(),
		"accounts", len(ids),
		"created", rep.Count(OutcomeCreated),
		"already_billed", rep.Count(OutcomeAlreadyBilled),
		"failed", rep.Count(OutcomeFailed),
		"send_failed", rep.Count(OutcomeSendFailed),
		"account_missing", rep.Count(OutcomeAccountMissing))
	return rep
}

func (c *Cycle) invoiceAccount(ctx context.Context, runID string, billingID int64, sessions []core.Session, period core.Period) AccountOutcome {
	out := AccountOutcome{BillingID: billingID}

	res, err := c.invoices.Build(ctx, billingID, sessions, period)
	if err != nil {
		out.Outcome, out.Err = OutcomeFailed, err
		c.metrics.RecordInvoice(string(out.Outcome), 0)
		return out
	}
	out.InvoiceID = res.Invoice.ID
	if !res.Created {
		out.Outcome = OutcomeAlreadyBilled
		c.metrics.RecordInvoice(string(out.Outcome), 0)
		return out
	}
	out.Document = res.DocumentPath
	out.ArchiveKey = c.archive(ctx, docInvoices, period.Start, res.DocumentPath)
	c.publishInvoice(ctx, runID, res)

	notice, err := c.notifier.Dispatch(ctx, billingID, res.DocumentPath, period)
	out.Kind = notice.Kind
	switch {
	case err == nil:
		out.Outcome = OutcomeCreated
		c.metrics.RecordEmail(string(notice.Kind), "sent")
	case errors.Is(err, notify.ErrFlagNotCleared):
		// The email went out; the next invoice will repeat the welcome.
		out.Outcome, out.Err = OutcomeCreated, err
		c.metrics.RecordEmail(string(notice.Kind), "sent")
	case errors.Is(err, notify.ErrAccountNotFound):
		out.Outcome, out.Err = OutcomeAccountMissing, err
	default:
		out.Outcome, out.Err = OutcomeSendFailed, err
		c.metrics.RecordEmail(string(notice.Kind), "failed")
	}
	c.metrics.RecordInvoice(string(out.Outcome), core.ToCents(res.Invoice.TotalAmount))
	return out
}

func (c *Cycle) payrollLedger(ctx context.Context, runID string, l ledger.Ledger) (PayrollReport, error) {
	start := time.Now()
	defer c.metrics.ObserveStage(log.OpPayroll, start)

	tutors := billing.SummarizeTutors(l.Sessions())
	res, err := c.payroll.Build(ctx, tutors, l.Period)
	if errors.Is(err, billing.ErrNoSessions) {
		c.logger.InfoContext(ctx, "No sessions in period, payroll skipped",
			log.FieldPeriodStart, l.Period.Start.String())
		c.metrics.RecordPayroll("skipped")
		return PayrollReport{Skipped: true}, nil
	}
	if err != nil {
		c.metrics.RecordPayroll(string(OutcomeFailed))
		return PayrollReport{}, fmt.Errorf("generate payroll: %w", err)
	}

	rep := PayrollReport{Result: res}
	if !res.Created {
		c.metrics.RecordPayroll(string(OutcomeAlreadyBilled))
		return rep, nil
	}
	c.metrics.RecordPayroll(string(OutcomeCreated))
	rep.ArchiveKey = c.archive(ctx, docPayroll, l.Period.Start, res.DocumentPath)

	if c.publisher != nil {
		msg := amqp.NewPayrollGeneratedMessage(runID, res.Payroll, len(res.Entries))
		if err := c.publisher.PublishPayrollGenerated(ctx, msg); err != nil {
			c.logger.WarnContext(ctx, "Failed to publish payroll event",
				log.FieldPayrollID, res.Payroll.ID, log.FieldError, err)
		}
	}
	return rep, nil
}

// archive stores a document and returns its key, or "" when archiving is
// disabled or fails. Archive failures never fail the run.
func (c *Cycle) archive(ctx context.Context, kind string, start core.Date, path string) string {
	if c.archiver == nil || path == "" {
		return ""
	}
	key, err := c.archiver.Store(ctx, kind, start, path)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to archive document",
			log.FieldDocument, path, log.FieldError, err)
		return ""
	}
	return key
}

func (c *Cycle) publishInvoice(ctx context.Context, runID string, res billing.InvoiceResult) {
	if c.publisher == nil {
		return
	}
	msg := amqp.NewInvoiceIssuedMessage(runID, res.Invoice, res.DocumentPath)
	if err := c.publisher.PublishInvoiceIssued(ctx, msg); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish invoice event",
			log.FieldInvoiceID, res.Invoice.ID, log.FieldError, err)
	}
}
