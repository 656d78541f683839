package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"propel/internal/core"
)

// Kind selects the email body.
type Kind string

const (
	KindWelcomeKnown Kind = "welcome_known"
	KindWelcomeNew   Kind = "welcome_new"
	KindRecurring    Kind = "recurring"
)

// SelectKind picks the body for an account: first invoices get a welcome,
// split on whether the address is already known to the business.
func SelectKind(firstInvoice bool, email string, known map[string]struct{}) Kind {
	if !firstInvoice {
		return KindRecurring
	}
	if _, ok := known[normalizeEmail(email)]; ok {
		return KindWelcomeKnown
	}
	return KindWelcomeNew
}

// PeriodPhrase renders "January 06 (inclusive) to January 20, 2025 (exclusive)".
func PeriodPhrase(p core.Period) string {
	return p.Start.Format("January 02") + " (inclusive) to " + p.End.Format("January 02, 2006") + " (exclusive)"
}

type bodyData struct {
	Name      string
	Business  string
	Period    string
	Signature string
	DueDays   int
	Method    string
}

// terms is shared by both welcome bodies. The 15-minute increment is fixed.
const terms = `{{define "terms"}}• Invoices are sent every two weeks directly to this email address, each covering a 2-week period of tutoring sessions.
• Payment is due within {{.DueDays}} days from the day you receive the invoice.
• All fees can be paid via {{.Method}} to the email and phone number listed on each invoice. Please include the invoice number in the message.

Sessions are billed in increments of 15 minutes, rounded up or down to the nearest 0.25 hours, and once set, hourly rates per tutor are locked in.{{end}}`

func parseBody(kind Kind, text string) *template.Template {
	return template.Must(template.Must(template.New(string(kind)).Parse(terms)).Parse(text))
}

var bodies = map[Kind]*template.Template{
	KindWelcomeKnown: parseBody(KindWelcomeKnown, `Hello {{.Name}},

Thank you for continuing with {{.Business}}. Not much changes for you with our new invoicing system:

{{template "terms" .}}

Attached is your first {{.Business}} invoice, for {{.Period}}.

If you have any questions about invoices or payments, just reply to this email.

{{.Signature}}`),
	KindWelcomeNew: parseBody(KindWelcomeNew, `Hello {{.Name}},

Welcome to {{.Business}}! We use an automated invoicing system to keep billing simple and consistent. Here is what to expect:

{{template "terms" .}}

Attached is your first invoice, for tutoring sessions from {{.Period}}.

If you have any questions about invoices or payments, just reply to this email.

{{.Signature}}`),
	KindRecurring: parseBody(KindRecurring, `Hello {{.Name}},

Attached is your invoice for tutoring sessions from {{.Period}}.

Payment is due within {{.DueDays}} days. When paying via {{.Method}}, please include the invoice number in the message.

{{.Signature}}`),
}

func renderBody(kind Kind, data bodyData) (string, error) {
	tmpl, ok := bodies[kind]
	if !ok {
		return "", fmt.Errorf("unknown message kind %q", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s body: %w", kind, err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// KnownEmailSet builds the allow-list lookup used by SelectKind.
func KnownEmailSet(emails []string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}
