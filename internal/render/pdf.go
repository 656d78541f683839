package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// Business is the letterhead printed on every document.
type Business struct {
	Name  string
	Email string
	Phone string
}

// PDFRenderer writes A4 PDF documents into Dir.
type PDFRenderer struct {
	Dir      string
	Business Business
}

func NewPDFRenderer(dir string, business Business) *PDFRenderer {
	return &PDFRenderer{Dir: dir, Business: business}
}

var _ Renderer = (*PDFRenderer)(nil)

func (r *PDFRenderer) RenderInvoice(ctx context.Context, v InvoiceView) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d := r.newDocument("INVOICE")

	d.keyValue("Invoice #", v.InvoiceNumber)
	d.keyValue("Account", v.BillingID)
	d.keyValue("Date", v.InvoiceDate)
	d.keyValue("Period", v.PeriodLabel)
	d.keyValue("Students", v.Students)
	d.keyValue("Subjects", v.Subjects)
	d.Ln(6)

	widths := []float64{28, 52, 36, 20, 24, 30}
	d.header(widths, []string{"Date", "Student", "Tutor", "Hours", "Rate", "Amount"})
	d.SetFont("Arial", "", 10)
	for _, l := range v.Lines {
		d.row(widths, []string{l.Date, l.Student, l.Tutor, l.Hours, l.Rate, l.Amount})
	}
	d.Ln(6)

	d.total("Sessions", strconv.Itoa(v.SessionCount))
	d.total("Total hours", v.TotalHours)
	d.total("Session total", v.SessionTotal)
	d.total("Previous balance", v.CurrentTab)
	d.SetFont("Arial", "B", 12)
	d.total("Total due", v.TotalDue)

	return r.write(d.Fpdf, InvoiceFileName(v))
}

func (r *PDFRenderer) RenderPayroll(ctx context.Context, v PayrollView) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d := r.newDocument("PAYROLL")

	d.keyValue("Payroll #", v.PayrollNumber)
	d.keyValue("Generated", v.DateGenerated)
	d.keyValue("Pay date", v.DatePaid)
	d.keyValue("Period", v.PeriodLabel)
	d.Ln(6)

	widths := []float64{60, 28, 28, 28, 46}
	d.header(widths, []string{"Tutor", "Sessions", "Hours", "Students", "Earned"})
	d.SetFont("Arial", "", 10)
	for _, e := range v.Entries {
		d.row(widths, []string{e.Tutor, strconv.Itoa(e.Sessions), e.Hours, strconv.Itoa(e.Students), e.Earned})
	}
	d.Ln(6)

	d.SetFont("Arial", "B", 12)
	d.total("Total hours", v.TotalHours)
	d.total("Total payroll", v.TotalAmount)

	return r.write(d.Fpdf, PayrollFileName(v))
}

// document is a page under construction. Core fonts are cp1252, so every
// string goes through tr before it is drawn.
type document struct {
	*gofpdf.Fpdf
	tr func(string) string
}

func (r *PDFRenderer) newDocument(title string) *document {
	pdf := gofpdf.New("P", "mm", "A4", "")
	d := &document{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	d.SetTitle(title, true)
	d.AddPage()

	d.SetFont("Arial", "B", 18)
	d.Cell(120, 10, d.tr(r.Business.Name))
	d.CellFormat(70, 10, title, "", 1, "R", false, 0, "")
	d.SetFont("Arial", "", 10)
	d.Cell(0, 5, d.tr(r.Business.Email))
	d.Ln(5)
	d.Cell(0, 5, d.tr(r.Business.Phone))
	d.Ln(10)
	return d
}

func (d *document) keyValue(key, value string) {
	d.SetFont("Arial", "B", 10)
	d.Cell(32, 6, d.tr(key))
	d.SetFont("Arial", "", 10)
	d.MultiCell(0, 6, d.tr(value), "", "L", false)
}

func (d *document) total(label, value string) {
	d.CellFormat(150, 7, d.tr(label), "", 0, "R", false, 0, "")
	d.CellFormat(40, 7, d.tr(value), "", 1, "R", false, 0, "")
}

func (d *document) header(widths []float64, cols []string) {
	d.SetFont("Arial", "B", 10)
	d.SetFillColor(230, 230, 230)
	for i, c := range cols {
		d.CellFormat(widths[i], 7, d.tr(c), "1", 0, "C", true, 0, "")
	}
	d.Ln(-1)
}

func (d *document) row(widths []float64, cols []string) {
	for i, c := range cols {
		align := "L"
		if i >= 3 {
			align = "R"
		}
		d.CellFormat(widths[i], 6, d.tr(c), "1", 0, align, false, 0, "")
	}
	d.Ln(-1)
}

func (r *PDFRenderer) write(pdf *gofpdf.Fpdf, name string) (string, error) {
	if err := pdf.Error(); err != nil {
		return "", fmt.Errorf("build %s: %w", name, err)
	}
	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(r.Dir, name)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
