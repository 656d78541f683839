package render

import (
	"bytes"
	"compress/zlib"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFRenderer_RenderInvoice(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "invoices", "spring-2025")
	r := NewPDFRenderer(dir, Business{Name: "Propel Tutoring", Email: "billing@example.com", Phone: "555-0100"})

	path, err := r.RenderInvoice(context.Background(), InvoiceView{
		InvoiceNumber: "0007",
		BillingID:     "03",
		InvoiceDate:   "January 20, 2025",
		PeriodLabel:   "Jan 06 - Jan 20, 2025",
		Students:      "Robert (Bobby) Smith",
		Subjects:      "Math",
		Lines: []InvoiceLine{
			{Date: "2025-01-07", Student: "Robert (Bobby) Smith", Tutor: "Kate", Hours: "1.50", Rate: "$50.00", Amount: "$75.00"},
		},
		SessionCount: 1,
		TotalHours:   "1.50",
		SessionTotal: "$75.00",
		CurrentTab:   "$0.00",
		TotalDue:     "$75.00",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "INV-0007-03.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestPDFRenderer_RenderPayroll(t *testing.T) {
	dir := t.TempDir()
	r := NewPDFRenderer(dir, Business{Name: "Propel Tutoring"})

	path, err := r.RenderPayroll(context.Background(), PayrollView{
		PayrollNumber: "0002",
		DateGenerated: "January 20, 2025",
		DatePaid:      "January 27, 2025",
		PeriodLabel:   "Jan 06 - Jan 20, 2025",
		Entries:       []PayrollLine{{Tutor: "Kate", Sessions: 3, Hours: "4.00", Students: 2, Earned: "$160.00"}},
		TotalHours:    "4.00",
		TotalAmount:   "$160.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "PAY-0002.pdf", filepath.Base(path))
	assert.FileExists(t, path)
}

func TestPDFRenderer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPDFRenderer(t.TempDir(), Business{}).RenderInvoice(ctx, InvoiceView{InvoiceNumber: "0001", BillingID: "01"})
	assert.ErrorIs(t, err, context.Canceled)
}

// contentStreams inflates every compressed stream in a PDF file.
func contentStreams(t *testing.T, data []byte) []byte {
	t.Helper()
	var out []byte
	for {
		i := bytes.Index(data, []byte("stream\n"))
		if i < 0 {
			return out
		}
		data = data[i+len("stream\n"):]
		j := bytes.Index(data, []byte("endstream"))
		require.GreaterOrEqual(t, j, 0)
		zr, err := zlib.NewReader(bytes.NewReader(data[:j]))
		if err == nil {
			plain, _ := io.ReadAll(zr)
			out = append(out, plain...)
		}
		data = data[j+len("endstream"):]
	}
}

func TestPDFRenderer_AccentedNamesUseCp1252(t *testing.T) {
	r := NewPDFRenderer(t.TempDir(), Business{Name: "Propel Tutoring"})

	path, err := r.RenderInvoice(context.Background(), InvoiceView{
		InvoiceNumber: "0008",
		BillingID:     "04",
		Students:      "Zoë Müller",
		Lines: []InvoiceLine{
			{Date: "2025-01-07", Student: "Zoë Müller", Tutor: "José", Hours: "1.00", Rate: "$50.00", Amount: "$50.00"},
		},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := contentStreams(t, data)

	assert.Contains(t, string(text), "Zo\xeb M\xfcller")
	assert.Contains(t, string(text), "Jos\xe9")
	assert.NotContains(t, string(text), "Zo\xc3\xab")
}
