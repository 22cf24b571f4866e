package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fakturku/fakturku/internal/invoicing"
	"github.com/fakturku/fakturku/internal/masterdata"
	"github.com/fakturku/fakturku/internal/shared"
)

type fakeTemplates struct {
	byID map[int64]*masterdata.InvoiceTemplate
	def  *masterdata.InvoiceTemplate
}

func (f *fakeTemplates) GetTemplate(ctx context.Context, id int64) (*masterdata.InvoiceTemplate, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return t, nil
}

func (f *fakeTemplates) GetDefaultTemplate(ctx context.Context) (*masterdata.InvoiceTemplate, error) {
	if f.def == nil {
		return nil, shared.ErrNotFound
	}
	return f.def, nil
}

// gotenbergStub captures the HTML it is asked to convert and returns a
// fixed byte string in place of a real PDF.
func gotenbergStub(t *testing.T, captured *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("files")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		body, err := io.ReadAll(file)
		require.NoError(t, err)
		*captured = string(body)
		_, _ = w.Write([]byte("%PDF-stub"))
	}))
}

func sampleDetail() *invoicing.InvoiceDetail {
	customer := &invoicing.CustomerRef{ID: shared.ID(1), Name: "PT Maju Bersama"}
	detail := &invoicing.InvoiceDetail{
		Invoice: invoicing.Invoice{
			ID:        shared.ID(10),
			InvoiceNo: "INV-202608-0001",
			Status:    invoicing.StatusIssued,
			Currency:  "IDR",
			Subtotal:  decimal.RequireFromString("1500000"),
			Total:     decimal.RequireFromString("1500000"),
		},
		Customer: customer,
		Items: []invoicing.InvoiceItem{
			{
				Description: "Jasa desain",
				Quantity:    decimal.RequireFromString("2"),
				UnitPrice:   decimal.RequireFromString("750000"),
				Subtotal:    decimal.RequireFromString("1500000"),
			},
		},
		TotalPaid: decimal.Zero,
		Remaining: decimal.RequireFromString("1500000"),
	}
	return detail
}

func TestRenderInvoiceBuiltinLayout(t *testing.T) {
	var captured string
	server := gotenbergStub(t, &captured)
	defer server.Close()

	renderer := NewInvoiceRenderer(NewClient(server.URL), &fakeTemplates{byID: map[int64]*masterdata.InvoiceTemplate{}})

	pdf, err := renderer.RenderInvoice(context.Background(), sampleDetail(), 0)
	require.NoError(t, err)
	require.Equal(t, "%PDF-stub", string(pdf))

	require.Contains(t, captured, "INV-202608-0001")
	require.Contains(t, captured, "PT Maju Bersama")
	require.Contains(t, captured, "Jasa desain")
	require.Contains(t, captured, "1.500.000")
}

func TestRenderInvoicePrefersStoredTemplates(t *testing.T) {
	var captured string
	server := gotenbergStub(t, &captured)
	defer server.Close()

	store := &fakeTemplates{
		byID: map[int64]*masterdata.InvoiceTemplate{
			5: {ID: shared.ID(5), Name: "Khusus", Content: "<html>KHUSUS {{.InvoiceNo}}</html>"},
		},
		def: &masterdata.InvoiceTemplate{ID: shared.ID(2), Name: "Standar", Content: "<html>DEFAULT {{.InvoiceNo}}</html>", IsDefault: true},
	}
	renderer := NewInvoiceRenderer(NewClient(server.URL), store)

	_, err := renderer.RenderInvoice(context.Background(), sampleDetail(), 5)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(captured, "<html>KHUSUS"))

	_, err = renderer.RenderInvoice(context.Background(), sampleDetail(), 0)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(captured, "<html>DEFAULT"))
}

func TestRenderInvoiceUnknownTemplate(t *testing.T) {
	renderer := NewInvoiceRenderer(NewClient("http://127.0.0.1:0"), &fakeTemplates{byID: map[int64]*masterdata.InvoiceTemplate{}})

	_, err := renderer.RenderInvoice(context.Background(), sampleDetail(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
