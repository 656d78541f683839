package billing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"propel/internal/core"
	"propel/internal/log"
	"propel/internal/render"
	"propel/internal/storage"
)

// ErrNoSessions is returned when asked to bill or pay for an empty session list.
var ErrNoSessions = errors.New("no sessions")

// Store runs billing writes atomically.
type Store interface {
	WithTransaction(ctx context.Context, fn func(*storage.Tx) error) error
}

// InvoiceResult describes the outcome of one Build call. Created is false
// when the account was already invoiced for the period.
type InvoiceResult struct {
	Invoice      core.Invoice
	Summary      core.AccountSummary
	CurrentTab   decimal.Decimal
	TotalDue     decimal.Decimal
	Created      bool
	DocumentPath string
}

type InvoiceBuilder struct {
	store    Store
	renderer render.Renderer
	now      func() time.Time
	logger   *log.Logger
}

func NewInvoiceBuilder(store Store, renderer render.Renderer, logger *log.Logger) *InvoiceBuilder {
	return &InvoiceBuilder{
		store:    store,
		renderer: renderer,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentInvoice),
	}
}

// WithClock overrides the clock used to date invoices.
func (b *InvoiceBuilder) WithClock(now func() time.Time) *InvoiceBuilder {
	b.now = now
	return b
}

// Build invoices billingID for period. The balance lookup, the conditional
// insert and the document render share one transaction; any failure leaves
// no invoice row and no document behind.
func (b *InvoiceBuilder) Build(ctx context.Context, billingID int64, sessions []core.Session, period core.Period) (InvoiceResult, error) {
	if len(sessions) == 0 {
		return InvoiceResult{}, fmt.Errorf("invoice %d: %w", billingID, ErrNoSessions)
	}

	sum := SummarizeAccount(billingID, sessions)
	res := InvoiceResult{
		Summary: sum,
		Invoice: core.Invoice{
			BillingID:   billingID,
			BiweekStart: period.Start,
			TotalHours:  sum.TotalHours,
			TotalAmount: sum.SessionTotal.Round(2),
			DateSent:    today(b.now),
		},
	}

	err := b.store.WithTransaction(ctx, func(tx *storage.Tx) error {
		tab, err := tx.CurrentTab(ctx, billingID, period.Start)
		if err != nil {
			return err
		}
		res.CurrentTab = tab
		res.TotalDue = tab.Add(res.Invoice.TotalAmount)

		id, created, err := tx.InsertInvoiceIfAbsent(ctx, res.Invoice)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		res.Invoice.ID = id
		res.Created = true

		path, err := b.renderer.RenderInvoice(ctx, invoiceView(sum, res.Invoice, period, tab, res.TotalDue))
		if err != nil {
			return fmt.Errorf("render invoice %d: %w", id, err)
		}
		res.DocumentPath = path
		return nil
	})
	if err != nil {
		if res.DocumentPath != "" {
			_ = os.Remove(res.DocumentPath)
		}
		b.logger.ErrorContext(ctx, "Invoice rolled back",
			log.NewFields().WithInvoice(res.Invoice).WithPeriod(period).WithError(err).ToSlice()...)
		return InvoiceResult{}, err
	}

	if !res.Created {
		b.logger.InfoContext(ctx, "Invoice already exists for period, skipping",
			log.FieldBillingID, billingID,
			log.FieldPeriodStart, period.Start.String())
		return res, nil
	}

	b.logger.InfoContext(ctx, "Invoice created",
		log.NewFields().WithInvoice(res.Invoice).WithPeriod(period).ToSlice()...)
	return res, nil
}
