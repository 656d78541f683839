// Package notify emails invoices to billing accounts and tracks which
// accounts have received their first invoice.
package notify

import (
	"context"
	"errors"
	"fmt"

	"propel/internal/core"
	"propel/internal/log"
	"propel/internal/mailer"
	"propel/internal/storage"
)

var (
	// ErrAccountNotFound is returned when the billing account has no contact row.
	ErrAccountNotFound = errors.New("billing account not found")
	// ErrFlagNotCleared means the email went out but the first-invoice flag
	// could not be updated.
	ErrFlagNotCleared = errors.New("first invoice flag not cleared")
)

// AccountStore reads contact details and clears the first-invoice flag.
type AccountStore interface {
	GetBillingAccount(ctx context.Context, billingID int64) (core.BillingAccount, error)
	ClearFirstInvoice(ctx context.Context, billingID int64) (bool, error)
}

// Profile is the sender identity and payment terms used in every message.
type Profile struct {
	BusinessName   string
	FromAddress    string
	Signature      string
	KnownEmails    []string
	PaymentDueDays int    // defaults to 10
	PaymentMethod  string // defaults to "e-transfer"
}

const (
	defaultPaymentDueDays = 10
	defaultPaymentMethod  = "e-transfer"
)

// Notice records what was sent.
type Notice struct {
	BillingID   int64
	Kind        Kind
	Recipient   string
	FlagCleared bool
}

type Dispatcher struct {
	accounts AccountStore
	sender   mailer.Sender
	profile  Profile
	known    map[string]struct{}
	logger   *log.Logger
}

func NewDispatcher(accounts AccountStore, sender mailer.Sender, profile Profile, logger *log.Logger) *Dispatcher {
	if profile.PaymentDueDays <= 0 {
		profile.PaymentDueDays = defaultPaymentDueDays
	}
	if profile.PaymentMethod == "" {
		profile.PaymentMethod = defaultPaymentMethod
	}
	return &Dispatcher{
		accounts: accounts,
		sender:   sender,
		profile:  profile,
		known:    KnownEmailSet(profile.KnownEmails),
		logger:   logger.WithComponent(log.ComponentNotify),
	}
}

// Subject is the subject line of every invoice email.
func (d *Dispatcher) Subject() string {
	return d.profile.BusinessName + " Invoice"
}

// Dispatch emails the invoice document to billingID. The first-invoice flag
// is cleared only after the send succeeds, and only if it is still set.
func (d *Dispatcher) Dispatch(ctx context.Context, billingID int64, attachment string, period core.Period) (Notice, error) {
	acct, err := d.accounts.GetBillingAccount(ctx, billingID)
	if errors.Is(err, storage.ErrNotFound) {
		d.logger.ErrorContext(ctx, "No contact information for billing account, cannot send invoice",
			log.FieldBillingID, billingID)
		return Notice{}, fmt.Errorf("%w: %d", ErrAccountNotFound, billingID)
	}
	if err != nil {
		return Notice{}, fmt.Errorf("load billing account %d: %w", billingID, err)
	}

	kind := SelectKind(acct.FirstInvoice, acct.Email, d.known)
	body, err := renderBody(kind, bodyData{
		Name:      acct.DisplayName,
		Business:  d.profile.BusinessName,
		Period:    PeriodPhrase(period),
		Signature: d.profile.Signature,
		DueDays:   d.profile.PaymentDueDays,
		Method:    d.profile.PaymentMethod,
	})
	if err != nil {
		return Notice{}, err
	}

	notice := Notice{BillingID: billingID, Kind: kind, Recipient: acct.Email}
	msg := mailer.Message{
		From:        d.profile.FromAddress,
		To:          acct.Email,
		Subject:     d.Subject(),
		Body:        body,
		Attachments: []string{attachment},
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.ErrorContext(ctx, "Invoice email failed",
			log.FieldBillingID, billingID,
			log.FieldRecipient, acct.Email,
			log.FieldError, err)
		return notice, fmt.Errorf("send invoice to %d: %w", billingID, err)
	}

	if acct.FirstInvoice {
		cleared, err := d.accounts.ClearFirstInvoice(ctx, billingID)
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to clear first invoice flag",
				log.FieldBillingID, billingID, log.FieldError, err)
			return notice, fmt.Errorf("%w: %w", ErrFlagNotCleared, err)
		}
		notice.FlagCleared = cleared
	}

	d.logger.InfoContext(ctx, "Invoice emailed",
		log.FieldBillingID, billingID,
		log.FieldRecipient, acct.Email,
		"kind", string(kind),
		log.FieldDocument, attachment)
	return notice, nil
}
